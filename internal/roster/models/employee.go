package models

import (
	"strings"
	"time"

	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
	"talenttrack/pkg/stream"
)

// Employee is the current-state projection of one tracked person, derived
// from the transition ledger.
//
// Invariants:
//   - Email is globally unique (enforced by the store)
//   - CurrentStage is a member of the fixed pipeline enumeration
//   - StageEnteredAt changes only when CurrentStage changes, and always
//     equals the ChangedAt of the most recent TransitionRecord
//   - CreatedAt is immutable after construction
//
// The projection is owned exclusively by the transition recorder; every other
// component reads it. A read observed outside the recorder's per-employee
// lock still never sees a projection that disagrees with the ledger, because
// the store commits the ledger append and the projection update as one unit.
type Employee struct {
	ID             id.EmployeeID `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	HireDate       time.Time     `json:"hire_date"`
	CurrentStage   id.Stage      `json:"current_status"`
	StageEnteredAt time.Time     `json:"status_updated_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewEmployee validates and constructs a projection row entering the pipeline
// at the given stage.
func NewEmployee(name, email string, hireDate time.Time, stage id.Stage, now time.Time) (*Employee, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name cannot be empty")
	}
	if len(name) > 255 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name must be 255 characters or less")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if hireDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "hire date is required")
	}
	if !stage.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", stage)
	}
	return &Employee{
		ID:             id.NewEmployeeID(),
		Name:           name,
		Email:          email,
		HireDate:       hireDate,
		CurrentStage:   stage,
		StageEnteredAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ApplyTransition moves the projection to a new stage. Call under the
// recorder's per-employee lock, paired with the matching ledger append.
func (e *Employee) ApplyTransition(stage id.Stage, now time.Time) {
	e.CurrentStage = stage
	e.StageEnteredAt = now
	e.UpdatedAt = now
}

// ApplyDetails updates the descriptive fields. Stage fields are untouched:
// detail edits never produce ledger entries.
func (e *Employee) ApplyDetails(name, email string, hireDate time.Time, now time.Time) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name cannot be empty")
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	if hireDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "hire date is required")
	}
	e.Name = name
	e.Email = email
	e.HireDate = hireDate
	e.UpdatedAt = now
	return nil
}

// Snapshot converts the projection to its wire shape for notifications.
func (e *Employee) Snapshot() stream.Employee {
	return stream.Employee{
		ID:             e.ID,
		Name:           e.Name,
		Email:          e.Email,
		HireDate:       e.HireDate,
		CurrentStage:   e.CurrentStage,
		StageEnteredAt: e.StageEnteredAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email cannot be empty")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || len(email) > 255 {
		return dErrors.New(dErrors.CodeInvalidInput, "email is not valid")
	}
	return nil
}
