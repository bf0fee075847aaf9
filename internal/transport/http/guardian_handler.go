package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stickforstats/internal/services"
	api "stickforstats/pkg/contracts/api/v1"
)

// GuardianHandler exposes the standalone assumption check endpoint.
type GuardianHandler struct {
	service *services.StatsService
	logger  *slog.Logger
}

// NewGuardianHandler creates the guardian handler.
func NewGuardianHandler(service *services.StatsService, logger *slog.Logger) *GuardianHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardianHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "guardian")),
	}
}

// Routes returns the guardian endpoints.
func (h *GuardianHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/check", h.Check)
	return r
}

// Check handles POST /api/guardian/check. The explicit check endpoint
// reports failures but never blocks.
func (h *GuardianHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req api.GuardianCheckRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	groups, err := req.Resolve()
	if err != nil {
		renderError(w, r, err)
		return
	}
	report, err := h.service.CheckAssumptions(r.Context(), req.Test, groups)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderOK(w, r, report)
}
