// Package postgres persists notes in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"talenttrack/internal/notes/models"
	id "talenttrack/pkg/domain"
	"talenttrack/pkg/platform/sentinel"
)

// Schema is the DDL for the notes table.
//
//go:embed schema.sql
var Schema string

// Store is a PostgreSQL-backed note store.
type Store struct {
	db *sql.DB
}

// New constructs a Store on an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (id, employee_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(note.ID), uuid.UUID(note.EmployeeID), note.Content, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, noteID id.NoteID) (*models.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, employee_id, content, created_at, updated_at FROM notes WHERE id = $1`,
		uuid.UUID(noteID))
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", noteID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

func (s *Store) Update(ctx context.Context, note *models.Note) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET content = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(note.ID), note.Content, note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("note %s: %w", note.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, noteID id.NoteID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, uuid.UUID(noteID))
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("note %s: %w", noteID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, content, created_at, updated_at
		FROM notes
		WHERE employee_id = $1
		ORDER BY created_at DESC, id
	`, uuid.UUID(employeeID))
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

func (s *Store) Latest(ctx context.Context) (map[id.EmployeeID]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (employee_id) id, employee_id, content, created_at, updated_at
		FROM notes
		ORDER BY employee_id, created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("latest notes: %w", err)
	}
	defer rows.Close()

	latest := make(map[id.EmployeeID]*models.Note)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		latest[note.EmployeeID] = note
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest notes: %w", err)
	}
	return latest, nil
}

func (s *Store) DeleteByEmployee(ctx context.Context, employeeID id.EmployeeID) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE employee_id = $1`, uuid.UUID(employeeID))
	if err != nil {
		return 0, fmt.Errorf("delete notes by employee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete notes rows affected: %w", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	var note models.Note
	var noteID, employeeID uuid.UUID
	if err := row.Scan(&noteID, &employeeID, &note.Content, &note.CreatedAt, &note.UpdatedAt); err != nil {
		return nil, err
	}
	note.ID = id.NoteID(noteID)
	note.EmployeeID = id.EmployeeID(employeeID)
	return &note, nil
}
