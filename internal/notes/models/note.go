package models

import (
	"strings"
	"time"

	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
	"talenttrack/pkg/stream"
)

const maxContentLength = 2000

// Note is a free-text annotation attached to an employee, independent of the
// stage ledger. Detaching a note removes it outright; notes are not
// versioned.
type Note struct {
	ID         id.NoteID     `json:"id"`
	EmployeeID id.EmployeeID `json:"employee_id"`
	Content    string        `json:"content"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NewNote validates and constructs a note.
func NewNote(employeeID id.EmployeeID, content string, now time.Time) (*Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "note content cannot be empty")
	}
	if len(content) > maxContentLength {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "note content exceeds %d characters", maxContentLength)
	}
	return &Note{
		ID:         id.NewNoteID(),
		EmployeeID: employeeID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ApplyContent replaces the note's text.
func (n *Note) ApplyContent(content string, now time.Time) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "note content cannot be empty")
	}
	if len(content) > maxContentLength {
		return dErrors.Newf(dErrors.CodeInvalidInput, "note content exceeds %d characters", maxContentLength)
	}
	n.Content = content
	n.UpdatedAt = now
	return nil
}

// Snapshot converts the note to its notification shape.
func (n *Note) Snapshot() stream.Note {
	return stream.Note{
		ID:         n.ID,
		EmployeeID: n.EmployeeID,
		Content:    n.Content,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}
