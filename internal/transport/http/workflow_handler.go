package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stickforstats/internal/workflow"
	api "stickforstats/pkg/contracts/api/v1"
)

// WorkflowHandler exposes the session navigation endpoints. It talks to
// the workflow store directly; session state needs no orchestration.
type WorkflowHandler struct {
	store  *workflow.Store
	logger *slog.Logger
}

// NewWorkflowHandler creates the workflow handler.
func NewWorkflowHandler(store *workflow.Store, logger *slog.Logger) *WorkflowHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "workflow")),
	}
}

// Routes returns the workflow session endpoints.
func (h *WorkflowHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Get("/sessions/{id}", h.Get)
	r.Post("/sessions/{id}/advance", h.Advance)
	r.Get("/sessions/{id}/next", h.NextStep)
	r.Delete("/sessions/{id}", h.Delete)
	return r
}

// Create handles POST /api/v1/workflow/sessions.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Create()
	h.logger.InfoContext(r.Context(), "workflow session created",
		slog.String("session_id", sess.ID))
	renderOK(w, r, sess)
}

// Get handles GET /api/v1/workflow/sessions/{id}.
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderOK(w, r, sess)
}

// Advance handles POST /api/v1/workflow/sessions/{id}/advance. Flag
// updates are applied first so the step change sees the new state.
func (h *WorkflowHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req api.WorkflowAdvanceRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if req.HasData != nil || req.GuardianPassed != nil || req.TestSelected != nil {
		if _, err := h.store.Apply(id, workflow.Update{
			HasData:        req.HasData,
			GuardianPassed: req.GuardianPassed,
			TestSelected:   req.TestSelected,
		}); err != nil {
			renderError(w, r, err)
			return
		}
	}

	sess, err := h.store.Advance(id, workflow.Step(req.Step))
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderOK(w, r, sess)
}

// NextStep handles GET /api/v1/workflow/sessions/{id}/next.
func (h *WorkflowHandler) NextStep(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.NextStep(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderOK(w, r, rec)
}

// Delete handles DELETE /api/v1/workflow/sessions/{id}.
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "id")); err != nil {
		renderError(w, r, err)
		return
	}
	renderOK(w, r, map[string]string{"deleted": chi.URLParam(r, "id")})
}
