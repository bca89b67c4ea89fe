// Package memory provides an in-memory note store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"talenttrack/internal/notes/models"
	id "talenttrack/pkg/domain"
	"talenttrack/pkg/platform/sentinel"
)

// Store keeps notes in a map guarded by a single mutex.
type Store struct {
	mu    sync.RWMutex
	notes map[id.NoteID]*models.Note
}

// New creates an empty store.
func New() *Store {
	return &Store{notes: make(map[id.NoteID]*models.Note)}
}

func (s *Store) Create(_ context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[note.ID]; ok {
		return fmt.Errorf("note %s: %w", note.ID, sentinel.ErrConflict)
	}
	clone := *note
	s.notes[note.ID] = &clone
	return nil
}

func (s *Store) Get(_ context.Context, noteID id.NoteID) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[noteID]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", noteID, sentinel.ErrNotFound)
	}
	clone := *note
	return &clone, nil
}

func (s *Store) Update(_ context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[note.ID]; !ok {
		return fmt.Errorf("note %s: %w", note.ID, sentinel.ErrNotFound)
	}
	clone := *note
	s.notes[note.ID] = &clone
	return nil
}

func (s *Store) Delete(_ context.Context, noteID id.NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[noteID]; !ok {
		return fmt.Errorf("note %s: %w", noteID, sentinel.ErrNotFound)
	}
	delete(s.notes, noteID)
	return nil
}

func (s *Store) ListByEmployee(_ context.Context, employeeID id.EmployeeID) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Note
	for _, note := range s.notes {
		if note.EmployeeID != employeeID {
			continue
		}
		clone := *note
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Latest(_ context.Context) (map[id.EmployeeID]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[id.EmployeeID]*models.Note)
	for _, note := range s.notes {
		current, ok := latest[note.EmployeeID]
		if ok && !note.CreatedAt.After(current.CreatedAt) {
			continue
		}
		clone := *note
		latest[note.EmployeeID] = &clone
	}
	return latest, nil
}

func (s *Store) DeleteByEmployee(_ context.Context, employeeID id.EmployeeID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for noteID, note := range s.notes {
		if note.EmployeeID == employeeID {
			delete(s.notes, noteID)
			removed++
		}
	}
	return removed, nil
}
