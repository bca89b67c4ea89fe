package service

import (
	"context"
	"log/slog"
	"strings"

	"talenttrack/internal/roster/models"
	"talenttrack/internal/roster/store"
	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
)

// Queries serves the read side of the roster: projection lookups and ledger
// history views.
type Queries struct {
	store  store.Store
	logger *slog.Logger
}

// NewQueries constructs the read service.
func NewQueries(s store.Store, logger *slog.Logger) *Queries {
	return &Queries{store: s, logger: logger}
}

// Get returns one employee's projection.
func (q *Queries) Get(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	if err := requireEmployeeID(employeeID); err != nil {
		return nil, err
	}
	emp, err := q.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, translateStoreErr(err, "load employee")
	}
	return emp, nil
}

// List returns every employee, newest first. When stages are given only
// employees currently in one of them are returned; when a search term is
// given it filters by name, ignoring case.
func (q *Queries) List(ctx context.Context, stages []string, search string) ([]*models.Employee, error) {
	search = strings.TrimSpace(search)

	switch {
	case len(stages) > 0:
		parsed := make([]id.Stage, 0, len(stages))
		for _, raw := range stages {
			stage, err := id.ParseStage(raw)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, stage)
		}
		employees, err := q.store.ListByStages(ctx, parsed)
		if err != nil {
			return nil, translateStoreErr(err, "list employees by stage")
		}
		return employees, nil
	case search != "":
		employees, err := q.store.SearchByName(ctx, search)
		if err != nil {
			return nil, translateStoreErr(err, "search employees")
		}
		return employees, nil
	default:
		employees, err := q.store.ListEmployees(ctx)
		if err != nil {
			return nil, translateStoreErr(err, "list employees")
		}
		return employees, nil
	}
}

// History returns one employee's ledger records, newest first. Deleted
// employees keep their history; the lookup only fails when no record of the
// employee ever existed.
func (q *Queries) History(ctx context.Context, employeeID id.EmployeeID) ([]*models.TransitionRecord, error) {
	if err := requireEmployeeID(employeeID); err != nil {
		return nil, err
	}
	records, err := q.store.HistoryByEmployee(ctx, employeeID)
	if err != nil {
		return nil, translateStoreErr(err, "load history")
	}
	if len(records) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	return records, nil
}

// AllHistory returns the full ledger joined with current employee identity,
// newest first.
func (q *Queries) AllHistory(ctx context.Context) ([]*models.HistoryEntry, error) {
	entries, err := q.store.AllHistory(ctx)
	if err != nil {
		return nil, translateStoreErr(err, "load history")
	}
	return entries, nil
}
