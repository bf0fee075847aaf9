package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"stickforstats/internal/operations"
	"stickforstats/internal/services"
	api "stickforstats/pkg/contracts/api/v1"
)

// OperationsHandler exposes the async job endpoints.
type OperationsHandler struct {
	service *services.OperationsService
	logger  *slog.Logger
}

// NewOperationsHandler creates the operations handler.
func NewOperationsHandler(service *services.OperationsService, logger *slog.Logger) *OperationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "operations")),
	}
}

// Routes returns the job lifecycle endpoints.
func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Submit)
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Cancel)
	return r
}

// Submit handles POST /api/v1/operations. The job is accepted before it
// runs, so the response is 202.
func (h *OperationsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req api.OperationSubmitRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	job, err := h.service.Submit(r.Context(), req.Kind, req.Payload)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	renderOK(w, r, job)
}

// List handles GET /api/v1/operations.
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := operations.JobFilter{
		Status: operations.JobStatus(q.Get("status")),
		Kind:   q.Get("kind"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		filter.Since = t
	}

	jobs, err := h.service.List(r.Context(), filter)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*operations.Job{}
	}
	renderOK(w, r, jobs)
}

// Get handles GET /api/v1/operations/{id}.
func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderOK(w, r, job)
}

// Cancel handles DELETE /api/v1/operations/{id}.
func (h *OperationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "job cancellation requested", slog.String("job_id", id))
	renderOK(w, r, map[string]string{"cancelled": id})
}

// Stats handles GET /api/v1/operations/stats.
func (h *OperationsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	renderOK(w, r, h.service.Stats())
}
