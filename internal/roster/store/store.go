// Package store defines the persistence contract for the transition ledger
// and the employee projection. Implementations must commit each write method
// atomically: the ledger append and the projection update of one operation
// either both land or neither does.
package store

import (
	"context"
	"time"

	"talenttrack/internal/roster/models"
	id "talenttrack/pkg/domain"
)

// Store persists employees and their transition ledger.
//
// Write methods are commit units; they return pkg/platform/sentinel errors
// (ErrNotFound, ErrConflict, ErrUnavailable) for services to translate.
// Reads observe committed state only; an in-flight commit is never visible.
type Store interface {
	// CreateEmployee inserts the projection row and its first ledger record
	// as one unit. Returns ErrConflict when the email is already taken.
	CreateEmployee(ctx context.Context, emp *models.Employee, first *models.TransitionRecord) error

	// ApplyTransition appends a ledger record and moves the projection to
	// the new stage as one unit, returning both. ErrNotFound when the
	// employee does not exist.
	ApplyTransition(ctx context.Context, employeeID id.EmployeeID, stage id.Stage, annotation string, at time.Time) (*models.Employee, *models.TransitionRecord, error)

	// ApplyBulkTransition applies the transition to every listed employee as
	// one all-or-nothing unit. If any id is missing the whole batch fails
	// with ErrNotFound and no employee is mutated.
	ApplyBulkTransition(ctx context.Context, employeeIDs []id.EmployeeID, stage id.Stage, at time.Time) ([]*models.Employee, error)

	// UpdateEmployee replaces the projection's descriptive fields. The stage
	// fields in emp are written as-is; callers must not change them here.
	// ErrConflict when the new email collides with another employee.
	UpdateEmployee(ctx context.Context, emp *models.Employee) error

	// DeleteEmployee removes the projection row. Ledger records are
	// retained for audit; they are simply no longer reachable as current
	// state.
	DeleteEmployee(ctx context.Context, employeeID id.EmployeeID) error

	GetEmployee(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error)

	// ListEmployees returns every projection row, newest created first.
	ListEmployees(ctx context.Context) ([]*models.Employee, error)

	// ListByStages filters the projection by stage membership, newest
	// created first.
	ListByStages(ctx context.Context, stages []id.Stage) ([]*models.Employee, error)

	// SearchByName returns employees whose name contains the term
	// (case-insensitive), ordered by name.
	SearchByName(ctx context.Context, term string) ([]*models.Employee, error)

	// CountByStage returns the stage distribution over current projections,
	// descending by count, ties by stage name.
	CountByStage(ctx context.Context) ([]models.StageCount, error)

	// HistoryByEmployee returns the employee's ledger, newest first. The
	// ledger survives deletion, so this does not require a live projection.
	HistoryByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.TransitionRecord, error)

	// AllHistory returns the full ledger joined with owning-employee
	// identity fields, newest first. Records whose employee was deleted are
	// omitted (there is no identity row left to join).
	AllHistory(ctx context.Context) ([]*models.HistoryEntry, error)

	// AllLedger returns the full ledger ordered by employee, then
	// chronologically (ChangedAt, Seq ascending). The analytics engine
	// derives residency intervals from this ordering.
	AllLedger(ctx context.Context) ([]*models.TransitionRecord, error)
}
