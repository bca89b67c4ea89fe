package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"talenttrack/internal/notes/models"
	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
	"talenttrack/pkg/platform/httputil"
)

// Service defines the note operations the handler exposes.
type Service interface {
	Attach(ctx context.Context, employeeID id.EmployeeID, content string) (*models.Note, error)
	Update(ctx context.Context, noteID id.NoteID, content string) (*models.Note, error)
	Detach(ctx context.Context, noteID id.NoteID) error
	ListByEmployee(ctx context.Context, employeeID id.EmployeeID) ([]*models.Note, error)
	Latest(ctx context.Context) (map[id.EmployeeID]*models.Note, error)
}

// Handler exposes the note endpoints.
type Handler struct {
	logger *slog.Logger
	notes  Service
}

// New creates a note Handler.
func New(notes Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, notes: notes}
}

// Register mounts the note routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/employees/{employeeID}/notes", h.handleList)
	r.Post("/employees/{employeeID}/notes", h.handleAttach)
	r.Get("/notes/latest", h.handleLatest)
	r.Put("/notes/{noteID}", h.handleUpdate)
	r.Delete("/notes/{noteID}", h.handleDetach)
}

type noteRequest struct {
	Content string `json:"content"`
}

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	note, err := h.notes.Attach(ctx, employeeID, req.Content)
	if err != nil {
		h.logger.WarnContext(ctx, "attach note failed", "employee_id", employeeID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, note)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	note, err := h.notes.Update(ctx, noteID, req.Content)
	if err != nil {
		h.logger.WarnContext(ctx, "update note failed", "note_id", noteID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, note)
}

func (h *Handler) handleDetach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.notes.Detach(ctx, noteID); err != nil {
		h.logger.WarnContext(ctx, "detach note failed", "note_id", noteID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	notes, err := h.notes.ListByEmployee(ctx, employeeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	httputil.WriteJSON(w, http.StatusOK, notes)
}

// handleLatest serves the per-employee latest note map subscribers seed
// their cache with on connect.
func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.notes.Latest(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make(map[string]*models.Note, len(latest))
	for employeeID, note := range latest {
		out[employeeID.String()] = note
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
