// Package memory provides the in-memory Store used for development and
// tests. It favors clarity over performance; one RWMutex guards both the
// projection map and the ledger, which makes every commit unit trivially
// atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"talenttrack/internal/roster/models"
	id "talenttrack/pkg/domain"
	"talenttrack/pkg/platform/sentinel"
)

type Store struct {
	mu        sync.RWMutex
	employees map[id.EmployeeID]*models.Employee
	byEmail   map[string]id.EmployeeID
	ledger    []*models.TransitionRecord
	seq       int64
}

func New() *Store {
	return &Store{
		employees: make(map[id.EmployeeID]*models.Employee),
		byEmail:   make(map[string]id.EmployeeID),
	}
}

func (s *Store) CreateEmployee(_ context.Context, emp *models.Employee, first *models.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[emp.Email]; taken {
		return sentinel.ErrConflict
	}

	cp := *emp
	s.employees[emp.ID] = &cp
	s.byEmail[emp.Email] = emp.ID
	s.appendLocked(first)
	return nil
}

func (s *Store) ApplyTransition(_ context.Context, employeeID id.EmployeeID, stage id.Stage, annotation string, at time.Time) (*models.Employee, *models.TransitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emp, ok := s.employees[employeeID]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}

	at = clampToHead(at, emp)
	rec := models.NewTransitionRecord(employeeID, stage, annotation, at)
	s.appendLocked(rec)
	emp.ApplyTransition(stage, at)

	empCopy := *emp
	recCopy := *rec
	return &empCopy, &recCopy, nil
}

func (s *Store) ApplyBulkTransition(_ context.Context, employeeIDs []id.EmployeeID, stage id.Stage, at time.Time) ([]*models.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching anything: all-or-nothing.
	for _, employeeID := range employeeIDs {
		if _, ok := s.employees[employeeID]; !ok {
			return nil, sentinel.ErrNotFound
		}
	}

	updated := make([]*models.Employee, 0, len(employeeIDs))
	for _, employeeID := range employeeIDs {
		emp := s.employees[employeeID]
		stamp := clampToHead(at, emp)
		s.appendLocked(models.NewTransitionRecord(employeeID, stage, "", stamp))
		emp.ApplyTransition(stage, stamp)
		cp := *emp
		updated = append(updated, &cp)
	}
	return updated, nil
}

func (s *Store) UpdateEmployee(_ context.Context, emp *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.employees[emp.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if other, taken := s.byEmail[emp.Email]; taken && other != emp.ID {
		return sentinel.ErrConflict
	}

	delete(s.byEmail, current.Email)
	cp := *emp
	s.employees[emp.ID] = &cp
	s.byEmail[emp.Email] = emp.ID
	return nil
}

func (s *Store) DeleteEmployee(_ context.Context, employeeID id.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emp, ok := s.employees[employeeID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, emp.Email)
	delete(s.employees, employeeID)
	// The ledger keeps the employee's records: audit trail outlives the row.
	return nil
}

func (s *Store) GetEmployee(_ context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.employees[employeeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *emp
	return &cp, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(*models.Employee) bool { return true }), nil
}

func (s *Store) ListByStages(_ context.Context, stages []id.Stage) ([]*models.Employee, error) {
	wanted := make(map[id.Stage]bool, len(stages))
	for _, st := range stages {
		wanted[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(e *models.Employee) bool { return wanted[e.CurrentStage] }), nil
}

func (s *Store) SearchByName(_ context.Context, term string) ([]*models.Employee, error) {
	term = strings.ToLower(term)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.listLocked(func(e *models.Employee) bool {
		return strings.Contains(strings.ToLower(e.Name), term)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CountByStage(_ context.Context) ([]models.StageCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[id.Stage]int)
	for _, emp := range s.employees {
		counts[emp.CurrentStage]++
	}
	out := make([]models.StageCount, 0, len(counts))
	for stage, n := range counts {
		out = append(out, models.StageCount{Stage: stage, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Stage < out[j].Stage
	})
	return out, nil
}

func (s *Store) HistoryByEmployee(_ context.Context, employeeID id.EmployeeID) ([]*models.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TransitionRecord
	for _, rec := range s.ledger {
		if rec.EmployeeID == employeeID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	// Ledger is stored in append order; newest first for the history view.
	sort.Slice(out, func(i, j int) bool { return chronoLess(out[j], out[i]) })
	return out, nil
}

func (s *Store) AllHistory(_ context.Context) ([]*models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.HistoryEntry
	for _, rec := range s.ledger {
		emp, ok := s.employees[rec.EmployeeID]
		if !ok {
			continue
		}
		out = append(out, &models.HistoryEntry{
			TransitionRecord: *rec,
			Name:             emp.Name,
			Email:            emp.Email,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return chronoLess(&out[j].TransitionRecord, &out[i].TransitionRecord)
	})
	return out, nil
}

func (s *Store) AllLedger(_ context.Context) ([]*models.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.TransitionRecord, 0, len(s.ledger))
	for _, rec := range s.ledger {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID.String() < out[j].EmployeeID.String()
		}
		return chronoLess(out[i], out[j])
	})
	return out, nil
}

// appendLocked assigns the next sequence number and appends. Callers hold the
// write lock.
func (s *Store) appendLocked(rec *models.TransitionRecord) {
	s.seq++
	rec.Seq = s.seq
	cp := *rec
	s.ledger = append(s.ledger, &cp)
}

func (s *Store) listLocked(keep func(*models.Employee) bool) []*models.Employee {
	var out []*models.Employee
	for _, emp := range s.employees {
		if keep(emp) {
			cp := *emp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// clampToHead keeps per-employee ledger timestamps non-decreasing. A commit
// whose request clock was captured before a competing writer committed would
// otherwise land behind the ledger head.
func clampToHead(at time.Time, emp *models.Employee) time.Time {
	if at.Before(emp.StageEnteredAt) {
		return emp.StageEnteredAt
	}
	return at
}

func chronoLess(a, b *models.TransitionRecord) bool {
	if !a.ChangedAt.Equal(b.ChangedAt) {
		return a.ChangedAt.Before(b.ChangedAt)
	}
	return a.Seq < b.Seq
}
