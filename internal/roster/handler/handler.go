// Package handler exposes the roster over HTTP: employee CRUD, stage
// transitions, ledger history, and the analytics views.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"talenttrack/internal/roster/models"
	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
	"talenttrack/pkg/platform/httputil"
)

const defaultStaleDays = 30

// Recorder defines the write operations the handler exposes.
type Recorder interface {
	RecordCreation(ctx context.Context, name, email string, hireDate time.Time, stage id.Stage) (*models.Employee, error)
	RecordTransition(ctx context.Context, employeeID id.EmployeeID, stage id.Stage, annotation string) (*models.Employee, *models.TransitionRecord, error)
	RecordBulkTransition(ctx context.Context, employeeIDs []id.EmployeeID, stage id.Stage) ([]*models.Employee, error)
	RecordUpdate(ctx context.Context, employeeID id.EmployeeID, name, email string, hireDate time.Time) (*models.Employee, error)
	RecordDeletion(ctx context.Context, employeeID id.EmployeeID) error
}

// Queries defines the read operations the handler exposes.
type Queries interface {
	Get(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error)
	List(ctx context.Context, stages []string, search string) ([]*models.Employee, error)
	History(ctx context.Context, employeeID id.EmployeeID) ([]*models.TransitionRecord, error)
	AllHistory(ctx context.Context) ([]*models.HistoryEntry, error)
}

// Analytics defines the reporting operations the handler exposes.
type Analytics interface {
	Report(ctx context.Context) (*models.Analytics, error)
	Stale(ctx context.Context, stages []id.Stage, thresholdDays int) ([]models.StaleEmployee, error)
}

// NotePurger drops an employee's notes after the employee is deleted.
type NotePurger interface {
	PurgeForEmployee(ctx context.Context, employeeID id.EmployeeID) error
}

// Handler handles roster endpoints.
type Handler struct {
	logger    *slog.Logger
	recorder  Recorder
	queries   Queries
	analytics Analytics
	purger    NotePurger
}

// New creates a roster Handler. purger may be nil when notes are not wired.
func New(recorder Recorder, queries Queries, analytics Analytics, purger NotePurger, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		recorder:  recorder,
		queries:   queries,
		analytics: analytics,
		purger:    purger,
	}
}

// Register mounts the roster routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/employees", h.handleCreate)
	r.Get("/employees", h.handleList)
	r.Patch("/employees/bulk/status", h.handleBulkTransition)
	r.Get("/employees/{employeeID}", h.handleGet)
	r.Put("/employees/{employeeID}", h.handleUpdate)
	r.Patch("/employees/{employeeID}/status", h.handleTransition)
	r.Delete("/employees/{employeeID}", h.handleDelete)

	r.Get("/history", h.handleAllHistory)
	r.Get("/history/stale", h.handleStale)
	r.Get("/history/analytics", h.handleAnalytics)
	r.Get("/history/{employeeID}", h.handleHistory)
}

type createRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	HireDate string `json:"hire_date"`
	Stage    string `json:"current_status"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	hireDate, err := parseDate(req.HireDate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	emp, err := h.recorder.RecordCreation(ctx, req.Name, req.Email, hireDate, id.Stage(req.Stage))
	if err != nil {
		h.logger.WarnContext(ctx, "create employee failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, emp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	stages := splitParam(r.URL.Query().Get("statuses"))
	search := r.URL.Query().Get("search")

	employees, err := h.queries.List(r.Context(), stages, search)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if employees == nil {
		employees = []*models.Employee{}
	}
	httputil.WriteJSON(w, http.StatusOK, employees)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	emp, err := h.queries.Get(r.Context(), employeeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, emp)
}

type updateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	HireDate string `json:"hire_date"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	hireDate, err := parseDate(req.HireDate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	emp, err := h.recorder.RecordUpdate(ctx, employeeID, req.Name, req.Email, hireDate)
	if err != nil {
		h.logger.WarnContext(ctx, "update employee failed", "employee_id", employeeID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, emp)
}

type transitionRequest struct {
	Stage      string `json:"status"`
	Annotation string `json:"notes"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	emp, _, err := h.recorder.RecordTransition(ctx, employeeID, id.Stage(req.Stage), req.Annotation)
	if err != nil {
		h.logger.WarnContext(ctx, "transition failed", "employee_id", employeeID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, emp)
}

type bulkTransitionRequest struct {
	EmployeeIDs []string `json:"employeeIds"`
	Stage       string   `json:"status"`
}

func (h *Handler) handleBulkTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bulkTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	employeeIDs := make([]id.EmployeeID, 0, len(req.EmployeeIDs))
	for _, raw := range req.EmployeeIDs {
		employeeID, err := id.ParseEmployeeID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		employeeIDs = append(employeeIDs, employeeID)
	}

	employees, err := h.recorder.RecordBulkTransition(ctx, employeeIDs, id.Stage(req.Stage))
	if err != nil {
		h.logger.WarnContext(ctx, "bulk transition failed", "count", len(employeeIDs), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, employees)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.recorder.RecordDeletion(ctx, employeeID); err != nil {
		h.logger.WarnContext(ctx, "delete employee failed", "employee_id", employeeID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	if h.purger != nil {
		if err := h.purger.PurgeForEmployee(ctx, employeeID); err != nil {
			// The employee is gone; orphaned notes are an inconsistency to
			// log, not a reason to fail the request.
			h.logger.ErrorContext(ctx, "purge notes failed", "employee_id", employeeID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAllHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queries.AllHistory(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.queries.History(r.Context(), employeeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) handleStale(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days := defaultStaleDays
	if raw := q.Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "days must be an integer"))
			return
		}
		days = parsed
	}

	var stages []id.Stage
	for _, raw := range splitParam(q.Get("status")) {
		stages = append(stages, id.Stage(raw))
	}

	stale, err := h.analytics.Stale(r.Context(), stages, days)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stale)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Report(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// parseDate accepts RFC 3339 timestamps or bare dates.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "hire_date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "invalid hire_date %q", raw)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
