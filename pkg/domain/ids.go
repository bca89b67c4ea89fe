package domain

import (
	"github.com/google/uuid"

	dErrors "talenttrack/pkg/domain-errors"
)

// Typed IDs keep employee, transition, and note identifiers from being mixed
// up at compile time. Construct them from external input via the Parse
// functions; direct casting bypasses validation.
type (
	EmployeeID   uuid.UUID
	TransitionID uuid.UUID
	NoteID       uuid.UUID
)

// NewEmployeeID returns a fresh random employee ID.
func NewEmployeeID() EmployeeID { return EmployeeID(uuid.New()) }

// NewTransitionID returns a fresh random transition ID.
func NewTransitionID() TransitionID { return TransitionID(uuid.New()) }

// NewNoteID returns a fresh random note ID.
func NewNoteID() NoteID { return NoteID(uuid.New()) }

func (id EmployeeID) String() string   { return uuid.UUID(id).String() }
func (id TransitionID) String() string { return uuid.UUID(id).String() }
func (id NoteID) String() string       { return uuid.UUID(id).String() }

func (id EmployeeID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TransitionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id NoteID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// The ID types marshal as canonical UUID strings in JSON payloads and wire
// notifications. Defined types do not inherit uuid.UUID's text methods, so
// each is spelled out.

func (id EmployeeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *EmployeeID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = EmployeeID(u)
	return nil
}

func (id TransitionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *TransitionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = TransitionID(u)
	return nil
}

func (id NoteID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *NoteID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = NoteID(u)
	return nil
}

// ParseEmployeeID parses an employee ID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseEmployeeID(s string) (EmployeeID, error) {
	u, err := parseUUID(s, "employee id")
	if err != nil {
		return EmployeeID{}, err
	}
	return EmployeeID(u), nil
}

// ParseTransitionID parses a transition ID from external input.
func ParseTransitionID(s string) (TransitionID, error) {
	u, err := parseUUID(s, "transition id")
	if err != nil {
		return TransitionID{}, err
	}
	return TransitionID(u), nil
}

// ParseNoteID parses a note ID from external input.
func ParseNoteID(s string) (NoteID, error) {
	u, err := parseUUID(s, "note id")
	if err != nil {
		return NoteID{}, err
	}
	return NoteID(u), nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", what)
	}
	return u, nil
}
