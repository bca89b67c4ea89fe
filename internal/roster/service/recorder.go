package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"talenttrack/internal/events"
	"talenttrack/internal/platform/metrics"
	"talenttrack/internal/roster/models"
	"talenttrack/internal/roster/store"
	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
	"talenttrack/pkg/platform/sentinel"
	"talenttrack/pkg/requestcontext"
	"talenttrack/pkg/stream"
)

// Recorder is the single writer of the transition ledger and the employee
// projection. All writes to one employee serialize on a per-employee lock;
// the bulk operation takes its locks in a fixed order so two overlapping
// bulks cannot deadlock. Notifications go out only after the store commit.
type Recorder struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	locksMu sync.Mutex
	locks   map[id.EmployeeID]*employeeLock
}

type employeeLock struct {
	mu   sync.Mutex
	refs int
}

// NewRecorder constructs the transition recorder.
func NewRecorder(s store.Store, publisher events.Publisher, logger *slog.Logger, m *metrics.Metrics) *Recorder {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Recorder{
		store:     s,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("talenttrack/roster"),
		locks:     make(map[id.EmployeeID]*employeeLock),
	}
}

// RecordCreation validates and registers a new employee entering the
// pipeline, writing the projection row and the first ledger record as one
// unit. An empty stage defaults to the pipeline entry stage.
func (r *Recorder) RecordCreation(ctx context.Context, name, email string, hireDate time.Time, stage id.Stage) (*models.Employee, error) {
	ctx, span := r.tracer.Start(ctx, "recorder.RecordCreation")
	defer span.End()

	if stage == "" {
		stage = id.StageCandidatePrep
	}
	if !stage.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", stage)
	}

	now := requestcontext.Now(ctx)
	emp, err := models.NewEmployee(name, email, hireDate, stage, now)
	if err != nil {
		return nil, err
	}
	first := models.NewTransitionRecord(emp.ID, stage, "", now)

	if err := r.store.CreateEmployee(ctx, emp, first); err != nil {
		return nil, translateStoreErr(err, "create employee")
	}
	span.SetAttributes(attribute.String("employee.id", emp.ID.String()))

	r.metrics.IncrementEmployeesCreated()
	r.metrics.IncrementTransitions(string(stage))
	r.logger.Info("employee created", "employee_id", emp.ID, "stage", stage)

	snapshot := emp.Snapshot()
	r.publisher.Publish(ctx, stream.Notification{Kind: stream.KindCreated, Employee: &snapshot})
	return emp, nil
}

// RecordTransition moves one employee to a new stage: one ledger append plus
// the matching projection update, then one notification.
func (r *Recorder) RecordTransition(ctx context.Context, employeeID id.EmployeeID, stage id.Stage, annotation string) (*models.Employee, *models.TransitionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "recorder.RecordTransition",
		trace.WithAttributes(attribute.String("employee.id", employeeID.String())))
	defer span.End()

	if err := requireEmployeeID(employeeID); err != nil {
		return nil, nil, err
	}
	if !stage.IsValid() {
		return nil, nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", stage)
	}

	unlock := r.lockEmployee(employeeID)
	emp, rec, err := r.store.ApplyTransition(ctx, employeeID, stage, annotation, requestcontext.Now(ctx))
	unlock()
	if err != nil {
		return nil, nil, translateStoreErr(err, "record transition")
	}

	r.metrics.IncrementTransitions(string(stage))
	r.logger.Info("transition recorded", "employee_id", employeeID, "stage", stage)

	snapshot := emp.Snapshot()
	r.publisher.Publish(ctx, stream.Notification{Kind: stream.KindTransitioned, Employee: &snapshot})
	return emp, rec, nil
}

// RecordBulkTransition moves every listed employee to the stage, all or
// nothing. One notification carries all the updated snapshots.
func (r *Recorder) RecordBulkTransition(ctx context.Context, employeeIDs []id.EmployeeID, stage id.Stage) ([]*models.Employee, error) {
	ctx, span := r.tracer.Start(ctx, "recorder.RecordBulkTransition",
		trace.WithAttributes(attribute.Int("employee.count", len(employeeIDs))))
	defer span.End()

	if len(employeeIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one employee id is required")
	}
	for _, employeeID := range employeeIDs {
		if err := requireEmployeeID(employeeID); err != nil {
			return nil, err
		}
	}
	if !stage.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", stage)
	}

	ordered := dedupeSorted(employeeIDs)
	unlocks := make([]func(), 0, len(ordered))
	for _, employeeID := range ordered {
		unlocks = append(unlocks, r.lockEmployee(employeeID))
	}
	employees, err := r.store.ApplyBulkTransition(ctx, employeeIDs, stage, requestcontext.Now(ctx))
	for i := len(unlocks) - 1; i >= 0; i-- {
		unlocks[i]()
	}
	if err != nil {
		return nil, translateStoreErr(err, "record bulk transition")
	}

	r.metrics.IncrementBulkTransitions()
	for range employees {
		r.metrics.IncrementTransitions(string(stage))
	}
	r.logger.Info("bulk transition recorded", "count", len(employees), "stage", stage)

	snapshots := make([]stream.Employee, len(employees))
	for i, emp := range employees {
		snapshots[i] = emp.Snapshot()
	}
	r.publisher.Publish(ctx, stream.Notification{Kind: stream.KindBulkTransitioned, Employees: snapshots})
	return employees, nil
}

// RecordUpdate rewrites identity fields. Stage is untouched and nothing is
// appended to the ledger.
func (r *Recorder) RecordUpdate(ctx context.Context, employeeID id.EmployeeID, name, email string, hireDate time.Time) (*models.Employee, error) {
	ctx, span := r.tracer.Start(ctx, "recorder.RecordUpdate",
		trace.WithAttributes(attribute.String("employee.id", employeeID.String())))
	defer span.End()

	if err := requireEmployeeID(employeeID); err != nil {
		return nil, err
	}

	unlock := r.lockEmployee(employeeID)
	defer unlock()

	emp, err := r.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, translateStoreErr(err, "load employee")
	}
	if err := emp.ApplyDetails(name, email, hireDate, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := r.store.UpdateEmployee(ctx, emp); err != nil {
		return nil, translateStoreErr(err, "update employee")
	}

	r.logger.Info("employee updated", "employee_id", employeeID)

	snapshot := emp.Snapshot()
	r.publisher.Publish(ctx, stream.Notification{Kind: stream.KindUpdated, Employee: &snapshot})
	return emp, nil
}

// RecordDeletion removes the projection row. Ledger records stay behind for
// the audit trail.
func (r *Recorder) RecordDeletion(ctx context.Context, employeeID id.EmployeeID) error {
	ctx, span := r.tracer.Start(ctx, "recorder.RecordDeletion",
		trace.WithAttributes(attribute.String("employee.id", employeeID.String())))
	defer span.End()

	if err := requireEmployeeID(employeeID); err != nil {
		return err
	}

	unlock := r.lockEmployee(employeeID)
	err := r.store.DeleteEmployee(ctx, employeeID)
	unlock()
	if err != nil {
		return translateStoreErr(err, "delete employee")
	}

	r.metrics.IncrementEmployeesDeleted()
	r.logger.Info("employee deleted", "employee_id", employeeID)

	r.publisher.Publish(ctx, stream.Notification{Kind: stream.KindDeleted, EmployeeID: employeeID})
	return nil
}

// lockEmployee serializes writers of one employee. Entries are refcounted so
// the map does not grow with the roster.
func (r *Recorder) lockEmployee(employeeID id.EmployeeID) func() {
	r.locksMu.Lock()
	l, ok := r.locks[employeeID]
	if !ok {
		l = &employeeLock{}
		r.locks[employeeID] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, employeeID)
		}
		r.locksMu.Unlock()
	}
}

func dedupeSorted(employeeIDs []id.EmployeeID) []id.EmployeeID {
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

func requireEmployeeID(employeeID id.EmployeeID) error {
	if employeeID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "employee id is required")
	}
	return nil
}

// translateStoreErr maps sentinel store failures onto domain error codes.
// Coded errors pass through untouched.
func translateStoreErr(err error, action string) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "employee not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "email already in use")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}
