// Package postgres persists the employee projection and the stage ledger in
// PostgreSQL. Commit units run inside a single transaction with the employee
// rows locked, so the ledger append and the projection update land together.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"talenttrack/internal/roster/models"
	id "talenttrack/pkg/domain"
	"talenttrack/pkg/platform/sentinel"
	"talenttrack/pkg/platform/tx"
)

// Schema is the DDL for the tables this store owns.
//
//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

// Store is a PostgreSQL-backed roster store.
type Store struct {
	db *sql.DB
}

// New constructs a Store on an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction from context when a commit unit is in flight,
// otherwise the plain handle.
func (s *Store) q(ctx context.Context) querier {
	if txn, ok := tx.From(ctx); ok {
		return txn
	}
	return s.db
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx.WithTx(ctx, txn)); err != nil {
		_ = txn.Rollback()
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// CreateEmployee inserts the projection row and its first ledger record.
func (s *Store) CreateEmployee(ctx context.Context, emp *models.Employee, first *models.TransitionRecord) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO employees (id, name, email, hire_date, current_stage, stage_entered_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := s.q(ctx).ExecContext(ctx, query,
			uuid.UUID(emp.ID), emp.Name, emp.Email, emp.HireDate,
			string(emp.CurrentStage), emp.StageEnteredAt, emp.CreatedAt, emp.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("email %s: %w", emp.Email, sentinel.ErrConflict)
			}
			return fmt.Errorf("insert employee: %w", err)
		}
		return s.appendRecord(ctx, first)
	})
}

// ApplyTransition locks the employee row, moves the projection to the new
// stage and appends the ledger record.
func (s *Store) ApplyTransition(ctx context.Context, employeeID id.EmployeeID, stage id.Stage, annotation string, at time.Time) (*models.Employee, *models.TransitionRecord, error) {
	var (
		emp *models.Employee
		rec *models.TransitionRecord
	)
	err := s.inTx(ctx, func(ctx context.Context) error {
		locked, err := s.lockEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		at = clampToHead(at, locked)
		locked.ApplyTransition(stage, at)
		if err := s.saveProjection(ctx, locked); err != nil {
			return err
		}
		r := models.NewTransitionRecord(employeeID, stage, annotation, at)
		if err := s.appendRecord(ctx, r); err != nil {
			return err
		}
		emp, rec = locked, r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return emp, rec, nil
}

// ApplyBulkTransition moves every listed employee to the stage, or none of
// them. A single unknown ID fails the whole unit with ErrNotFound.
func (s *Store) ApplyBulkTransition(ctx context.Context, employeeIDs []id.EmployeeID, stage id.Stage, at time.Time) ([]*models.Employee, error) {
	var out []*models.Employee
	err := s.inTx(ctx, func(ctx context.Context) error {
		// Row locks are taken in sorted ID order so overlapping bulks on
		// separate instances cannot deadlock each other inside Postgres.
		byID := make(map[id.EmployeeID]*models.Employee, len(employeeIDs))
		for _, employeeID := range lockOrder(employeeIDs) {
			locked, err := s.lockEmployee(ctx, employeeID)
			if err != nil {
				return err
			}
			byID[employeeID] = locked
		}
		out = make([]*models.Employee, 0, len(byID))
		seen := make(map[id.EmployeeID]bool, len(byID))
		for _, employeeID := range employeeIDs {
			if seen[employeeID] {
				continue
			}
			seen[employeeID] = true
			emp := byID[employeeID]
			stamp := clampToHead(at, emp)
			emp.ApplyTransition(stage, stamp)
			if err := s.saveProjection(ctx, emp); err != nil {
				return err
			}
			if err := s.appendRecord(ctx, models.NewTransitionRecord(employeeID, stage, "", stamp)); err != nil {
				return err
			}
			out = append(out, emp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateEmployee rewrites the identity fields without touching the ledger.
func (s *Store) UpdateEmployee(ctx context.Context, emp *models.Employee) error {
	query := `
		UPDATE employees
		SET name = $2, email = $3, hire_date = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(emp.ID), emp.Name, emp.Email, emp.HireDate, emp.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", emp.Email, sentinel.ErrConflict)
		}
		return fmt.Errorf("update employee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update employee rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("employee %s: %w", emp.ID, sentinel.ErrNotFound)
	}
	return nil
}

// DeleteEmployee removes the projection row. The ledger is retained.
func (s *Store) DeleteEmployee(ctx context.Context, employeeID id.EmployeeID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, uuid.UUID(employeeID))
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete employee rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("employee %s: %w", employeeID, sentinel.ErrNotFound)
	}
	return nil
}

const employeeColumns = `id, name, email, hire_date, current_stage, stage_entered_at, created_at, updated_at`

// GetEmployee returns the projection row for one employee.
func (s *Store) GetEmployee(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`, uuid.UUID(employeeID))
	emp, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("employee %s: %w", employeeID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return emp, nil
}

// ListEmployees returns every projection row, newest first.
func (s *Store) ListEmployees(ctx context.Context) ([]*models.Employee, error) {
	return s.queryEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY created_at DESC, id`)
}

// ListByStages returns employees currently in any of the given stages.
func (s *Store) ListByStages(ctx context.Context, stages []id.Stage) ([]*models.Employee, error) {
	names := make([]string, len(stages))
	for i, stage := range stages {
		names[i] = string(stage)
	}
	return s.queryEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE current_stage = ANY($1) ORDER BY created_at DESC, id`,
		pq.Array(names))
}

// SearchByName returns employees whose name contains the term, ignoring case.
func (s *Store) SearchByName(ctx context.Context, term string) ([]*models.Employee, error) {
	return s.queryEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE name ILIKE '%' || $1 || '%' ORDER BY created_at DESC, id`,
		term)
}

// CountByStage returns occupancy per stage, highest first. Empty stages are
// omitted.
func (s *Store) CountByStage(ctx context.Context) ([]models.StageCount, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT current_stage, COUNT(*)
		FROM employees
		GROUP BY current_stage
		ORDER BY COUNT(*) DESC, current_stage
	`)
	if err != nil {
		return nil, fmt.Errorf("count by stage: %w", err)
	}
	defer rows.Close()

	var counts []models.StageCount
	for rows.Next() {
		var c models.StageCount
		var stage string
		if err := rows.Scan(&stage, &c.Count); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		c.Stage = id.Stage(stage)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage counts: %w", err)
	}
	return counts, nil
}

const recordColumns = `id, employee_id, stage, annotation, changed_at, seq`

// HistoryByEmployee returns the employee's ledger records, newest first.
// Records survive deletion of the projection row.
func (s *Store) HistoryByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.TransitionRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM stage_ledger WHERE employee_id = $1 ORDER BY changed_at DESC, seq DESC`,
		uuid.UUID(employeeID))
	if err != nil {
		return nil, fmt.Errorf("history by employee: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// AllHistory returns every ledger record joined with the current identity of
// its employee, newest first. Records left behind by deleted employees have
// no identity row and are omitted.
func (s *Store) AllHistory(ctx context.Context) ([]*models.HistoryEntry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT l.id, l.employee_id, l.stage, l.annotation, l.changed_at, l.seq, e.name, e.email
		FROM stage_ledger l
		JOIN employees e ON e.id = l.employee_id
		ORDER BY l.changed_at DESC, l.seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("all history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var recordID, employeeID uuid.UUID
		var stage string
		if err := rows.Scan(&recordID, &employeeID, &stage, &entry.Annotation, &entry.ChangedAt, &entry.Seq, &entry.Name, &entry.Email); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.ID = id.TransitionID(recordID)
		entry.EmployeeID = id.EmployeeID(employeeID)
		entry.Stage = id.Stage(stage)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// AllLedger returns the full ledger grouped by employee in chronological
// order, the shape the analytics pass consumes.
func (s *Store) AllLedger(ctx context.Context) ([]*models.TransitionRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM stage_ledger ORDER BY employee_id, changed_at, seq`)
	if err != nil {
		return nil, fmt.Errorf("all ledger: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// clampToHead keeps per-employee ledger timestamps non-decreasing. A commit
// whose request clock was captured before a competing writer committed would
// otherwise land behind the ledger head.
func clampToHead(at time.Time, emp *models.Employee) time.Time {
	if at.Before(emp.StageEnteredAt) {
		return emp.StageEnteredAt
	}
	return at
}

// lockOrder dedupes and sorts the IDs into the order row locks are acquired.
func lockOrder(employeeIDs []id.EmployeeID) []id.EmployeeID {
	seen := make(map[id.EmployeeID]struct{}, len(employeeIDs))
	out := make([]id.EmployeeID, 0, len(employeeIDs))
	for _, employeeID := range employeeIDs {
		if _, ok := seen[employeeID]; ok {
			continue
		}
		seen[employeeID] = struct{}{}
		out = append(out, employeeID)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

func (s *Store) lockEmployee(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1 FOR UPDATE`, uuid.UUID(employeeID))
	emp, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("employee %s: %w", employeeID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock employee: %w", err)
	}
	return emp, nil
}

func (s *Store) saveProjection(ctx context.Context, emp *models.Employee) error {
	query := `
		UPDATE employees
		SET current_stage = $2, stage_entered_at = $3, updated_at = $4
		WHERE id = $1
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(emp.ID), string(emp.CurrentStage), emp.StageEnteredAt, emp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save projection: %w", err)
	}
	return nil
}

func (s *Store) appendRecord(ctx context.Context, rec *models.TransitionRecord) error {
	query := `
		INSERT INTO stage_ledger (id, employee_id, stage, annotation, changed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		uuid.UUID(rec.ID), uuid.UUID(rec.EmployeeID), string(rec.Stage), rec.Annotation, rec.ChangedAt).
		Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("append ledger record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*models.Employee, error) {
	var emp models.Employee
	var employeeID uuid.UUID
	var stage string
	err := row.Scan(&employeeID, &emp.Name, &emp.Email, &emp.HireDate,
		&stage, &emp.StageEnteredAt, &emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	emp.ID = id.EmployeeID(employeeID)
	emp.CurrentStage = id.Stage(stage)
	return &emp, nil
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]*models.Employee, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var employees []*models.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

func collectRecords(rows *sql.Rows) ([]*models.TransitionRecord, error) {
	var records []*models.TransitionRecord
	for rows.Next() {
		var rec models.TransitionRecord
		var recordID, employeeID uuid.UUID
		var stage string
		if err := rows.Scan(&recordID, &employeeID, &stage, &rec.Annotation, &rec.ChangedAt, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		rec.ID = id.TransitionID(recordID)
		rec.EmployeeID = id.EmployeeID(employeeID)
		rec.Stage = id.Stage(stage)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger records: %w", err)
	}
	return records, nil
}
