package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"stickforstats/internal/audit"
	"stickforstats/internal/services"
)

// AuditHandler exposes the audit record read endpoints and the export
// download.
type AuditHandler struct {
	service *services.AuditService
	logger  *slog.Logger
}

// NewAuditHandler creates the audit handler.
func NewAuditHandler(service *services.AuditService, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "audit")),
	}
}

// Routes returns the audit record endpoints.
func (h *AuditHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/records", h.List)
	r.Get("/records/{id}", h.Get)
	r.Get("/summary", h.Summary)
	return r
}

// parseFilter reads the listing filter from query parameters.
func parseFilter(r *http.Request) audit.Filter {
	q := r.URL.Query()
	f := audit.Filter{
		TestType: q.Get("test_type"),
		TestName: q.Get("test_name"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		f.Offset = v
	}
	if t, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		f.From = t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		f.To = t
	}
	return f
}

// List handles GET /api/v1/audit/records.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), parseFilter(r))
	if err != nil {
		renderError(w, r, err)
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	renderOK(w, r, records)
}

// Get handles GET /api/v1/audit/records/{id}.
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderOK(w, r, rec)
}

// Summary handles GET /api/v1/audit/summary.
func (h *AuditHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	q := r.URL.Query()
	if t, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		from = t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		to = t
	}
	sum, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderOK(w, r, sum)
}

// Export handles GET /api/v1/export/audit. The format query parameter
// selects csv (default) or xlsx.
func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := services.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = services.FormatCSV
	}

	filename := fmt.Sprintf("audit_records_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	switch format {
	case services.FormatCSV:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	case services.FormatXLSX:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		renderError(w, r, services.ErrExportUnsupported)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := h.service.Export(r.Context(), parseFilter(r), format, w); err != nil {
		// Headers are out; log instead of writing a second envelope.
		h.logger.ErrorContext(r.Context(), "audit export failed", slog.String("error", err.Error()))
	}
}
