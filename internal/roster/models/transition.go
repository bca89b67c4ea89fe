package models

import (
	"time"

	id "talenttrack/pkg/domain"
)

// TransitionRecord is one ledger entry: the fact that an employee entered a
// stage at a point in time. Records are append-only; they are never mutated
// or deleted, and they outlive the employee row as the audit trail.
//
// Invariant: per employee, records are monotonically non-decreasing in
// ChangedAt; Seq breaks ties so same-timestamp commits keep their commit
// order.
type TransitionRecord struct {
	ID         id.TransitionID `json:"id"`
	EmployeeID id.EmployeeID   `json:"employee_id"`
	Stage      id.Stage        `json:"status"`
	Annotation string          `json:"notes,omitempty"`
	ChangedAt  time.Time       `json:"changed_at"`
	Seq        int64           `json:"-"`
}

// NewTransitionRecord builds a ledger entry. Seq is assigned by the store at
// commit time.
func NewTransitionRecord(employeeID id.EmployeeID, stage id.Stage, annotation string, at time.Time) *TransitionRecord {
	return &TransitionRecord{
		ID:         id.NewTransitionID(),
		EmployeeID: employeeID,
		Stage:      stage,
		Annotation: annotation,
		ChangedAt:  at,
	}
}

// HistoryEntry is a ledger record joined with the owning employee's identity
// fields, for the all-history view.
type HistoryEntry struct {
	TransitionRecord
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StageCount is one row of the stage distribution.
type StageCount struct {
	Stage id.Stage `json:"status"`
	Count int      `json:"count"`
}

// StageResidency is one row of the average-residency report: how many
// ledger intervals closed (or are open) in this stage and their mean length
// in days.
type StageResidency struct {
	Stage   id.Stage `json:"status"`
	Count   int      `json:"count"`
	AvgDays float64  `json:"avgDays"`
}

// Analytics is the combined on-demand report.
type Analytics struct {
	StageDistribution []StageCount     `json:"statusDistribution"`
	AverageResidency  []StageResidency `json:"averageTimeByStatus"`
}

// StaleEmployee is an employee that has sat in a stage at least the
// threshold number of days.
type StaleEmployee struct {
	Employee
	DaysInStage int `json:"days_in_status"`
}
