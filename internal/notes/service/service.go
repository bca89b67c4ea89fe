// Package service orchestrates the note lifecycle: attaching to live
// employees, detaching, and the read views the subscriber side refetches on
// connect.
package service

import (
	"context"
	"errors"
	"log/slog"

	"talenttrack/internal/events"
	"talenttrack/internal/notes/models"
	"talenttrack/internal/notes/store"
	rmodels "talenttrack/internal/roster/models"
	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
	"talenttrack/pkg/platform/sentinel"
	"talenttrack/pkg/requestcontext"
	"talenttrack/pkg/stream"
)

// EmployeeDirectory is the slice of the roster store the note service needs:
// existence checks before attaching.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, employeeID id.EmployeeID) (*rmodels.Employee, error)
}

// Service manages notes.
type Service struct {
	notes     store.Store
	employees EmployeeDirectory
	publisher events.Publisher
	logger    *slog.Logger
}

// New constructs the note service.
func New(notes store.Store, employees EmployeeDirectory, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		notes:     notes,
		employees: employees,
		publisher: publisher,
		logger:    logger,
	}
}

// Attach validates and stores a note on a live employee, then notifies.
func (s *Service) Attach(ctx context.Context, employeeID id.EmployeeID, content string) (*models.Note, error) {
	if employeeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "employee id is required")
	}
	if _, err := s.employees.GetEmployee(ctx, employeeID); err != nil {
		return nil, translateErr(err, "load employee")
	}

	note, err := models.NewNote(employeeID, content, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, translateErr(err, "create note")
	}

	s.logger.Info("note attached", "note_id", note.ID, "employee_id", employeeID)

	snapshot := note.Snapshot()
	s.publisher.Publish(ctx, stream.Notification{
		Kind:       stream.KindNoteAttached,
		EmployeeID: employeeID,
		Note:       &snapshot,
	})
	return note, nil
}

// Update rewrites a note's content. The change re-announces as
// note-attached: subscribers track only the latest note per employee, so the
// updated snapshot simply replaces it.
func (s *Service) Update(ctx context.Context, noteID id.NoteID, content string) (*models.Note, error) {
	if noteID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "note id is required")
	}
	note, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return nil, translateErr(err, "load note")
	}
	if err := note.ApplyContent(content, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.notes.Update(ctx, note); err != nil {
		return nil, translateErr(err, "update note")
	}

	s.logger.Info("note updated", "note_id", noteID, "employee_id", note.EmployeeID)

	snapshot := note.Snapshot()
	s.publisher.Publish(ctx, stream.Notification{
		Kind:       stream.KindNoteAttached,
		EmployeeID: note.EmployeeID,
		Note:       &snapshot,
	})
	return note, nil
}

// Detach removes a note and notifies with both IDs so subscribers can clear
// only the matching note.
func (s *Service) Detach(ctx context.Context, noteID id.NoteID) error {
	if noteID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "note id is required")
	}
	note, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return translateErr(err, "load note")
	}
	if err := s.notes.Delete(ctx, noteID); err != nil {
		return translateErr(err, "delete note")
	}

	s.logger.Info("note detached", "note_id", noteID, "employee_id", note.EmployeeID)

	s.publisher.Publish(ctx, stream.Notification{
		Kind:       stream.KindNoteDetached,
		EmployeeID: note.EmployeeID,
		NoteID:     noteID,
	})
	return nil
}

// ListByEmployee returns an employee's notes, newest first. Unlike ledger
// history, notes do not survive the employee: the lookup requires a live
// employee.
func (s *Service) ListByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.Note, error) {
	if employeeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "employee id is required")
	}
	if _, err := s.employees.GetEmployee(ctx, employeeID); err != nil {
		return nil, translateErr(err, "load employee")
	}
	notes, err := s.notes.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, translateErr(err, "list notes")
	}
	return notes, nil
}

// Latest returns each employee's most recent note, the shape subscribers
// seed their cache with on connect.
func (s *Service) Latest(ctx context.Context) (map[id.EmployeeID]*models.Note, error) {
	latest, err := s.notes.Latest(ctx)
	if err != nil {
		return nil, translateErr(err, "load latest notes")
	}
	return latest, nil
}

// PurgeForEmployee drops all notes of a deleted employee. No per-note
// notifications go out; subscribers drop the whole view on the deleted
// notification.
func (s *Service) PurgeForEmployee(ctx context.Context, employeeID id.EmployeeID) error {
	removed, err := s.notes.DeleteByEmployee(ctx, employeeID)
	if err != nil {
		return translateErr(err, "purge notes")
	}
	if removed > 0 {
		s.logger.Info("notes purged", "employee_id", employeeID, "count", removed)
	}
	return nil
}

func translateErr(err error, action string) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}
