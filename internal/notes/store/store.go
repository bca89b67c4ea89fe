// Package store defines persistence for employee notes. Implementations
// return sentinel errors; the service translates them to domain errors.
package store

import (
	"context"

	"talenttrack/internal/notes/models"
	id "talenttrack/pkg/domain"
)

// Store persists notes.
type Store interface {
	// Create inserts a note.
	Create(ctx context.Context, note *models.Note) error
	// Get returns one note, or sentinel.ErrNotFound.
	Get(ctx context.Context, noteID id.NoteID) (*models.Note, error)
	// Update rewrites a note's content, or returns sentinel.ErrNotFound.
	Update(ctx context.Context, note *models.Note) error
	// Delete removes a note, or returns sentinel.ErrNotFound.
	Delete(ctx context.Context, noteID id.NoteID) error
	// ListByEmployee returns an employee's notes, newest first.
	ListByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.Note, error)
	// Latest returns each employee's most recent note.
	Latest(ctx context.Context) (map[id.EmployeeID]*models.Note, error)
	// DeleteByEmployee removes all of an employee's notes, returning how
	// many were removed. Used when the employee itself is deleted.
	DeleteByEmployee(ctx context.Context, employeeID id.EmployeeID) (int, error)
}
