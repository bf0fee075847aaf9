package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "stickforstats/internal/errors"
	"stickforstats/internal/services"
	"stickforstats/internal/stats"
	"stickforstats/internal/survival"
	api "stickforstats/pkg/contracts/api/v1"
)

// StatsHandler fronts the synchronous analysis endpoints. One handler
// covers all test families; they share the same service and envelope.
type StatsHandler struct {
	service *services.StatsService
	logger  *slog.Logger
}

// NewStatsHandler creates the analysis handler.
func NewStatsHandler(service *services.StatsService, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "stats")),
	}
}

// Routes returns the parametric and descriptive endpoints.
func (h *StatsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/descriptive", h.Descriptive)
	r.Post("/ttest", h.TTest)
	r.Post("/anova", h.ANOVA)
	r.Post("/correlation", h.Correlation)
	r.Post("/regression", h.Regression)
	return r
}

// NonparametricRoutes returns the rank-based test endpoints.
func (h *StatsHandler) NonparametricRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/mann-whitney", h.MannWhitney)
	r.Post("/wilcoxon", h.Wilcoxon)
	r.Post("/kruskal-wallis", h.KruskalWallis)
	r.Post("/sign", h.SignTest)
	return r
}

// CategoricalRoutes returns the contingency table test endpoints.
func (h *StatsHandler) CategoricalRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/chi-square", h.ChiSquare)
	r.Post("/goodness-of-fit", h.GoodnessOfFit)
	r.Post("/fisher", h.Fisher)
	return r
}

// SurvivalRoutes returns the survival analysis endpoints.
func (h *StatsHandler) SurvivalRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/kaplan-meier", h.KaplanMeier)
	r.Post("/log-rank", h.LogRank)
	return r
}

// SQCRoutes returns the statistical quality control endpoints.
func (h *StatsHandler) SQCRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/control-chart", h.ControlChart)
	r.Post("/capability", h.Capability)
	return r
}

// respond wraps an analysis result with its run metadata.
func respond(w http.ResponseWriter, r *http.Request, result interface{}, info *services.RunInfo) {
	resp := api.AnalysisResponse{Result: result}
	if info != nil {
		resp.Guardian = info.Guardian
		resp.AuditID = info.AuditID
	}
	renderOK(w, r, resp)
}

// Descriptive handles POST /api/v1/stats/descriptive.
func (h *StatsHandler) Descriptive(w http.ResponseWriter, r *http.Request) {
	var req api.DescriptiveRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.Descriptive(r.Context(), req.Data, stats.DescriptiveOptions{
		ConfidenceLevel: req.ConfidenceLevel,
		HighPrecision:   req.HighPrecision,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// TTest handles POST /api/v1/stats/ttest.
func (h *StatsHandler) TTest(w http.ResponseWriter, r *http.Request) {
	var req api.TTestRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	a, b, err := req.Samples()
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.TTest(r.Context(), req.Kind, a, b, stats.TTestOptions{
		Mu:              req.Mu,
		Alternative:     stats.Alternative(req.Alternative),
		ConfidenceLevel: req.ConfidenceLevel,
		HighPrecision:   req.HighPrecision,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// ANOVA handles POST /api/v1/stats/anova.
func (h *StatsHandler) ANOVA(w http.ResponseWriter, r *http.Request) {
	var req api.ANOVARequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	groups, err := req.Resolve()
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.ANOVA(r.Context(), groups, stats.ANOVAOptions{
		Labels:  req.Labels,
		PostHoc: req.PostHoc,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// Correlation handles POST /api/v1/stats/correlation.
func (h *StatsHandler) Correlation(w http.ResponseWriter, r *http.Request) {
	var req api.CorrelationRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	x, y, err := req.Samples()
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.Correlate(r.Context(), x, y, stats.CorrelationOptions{
		Method:        stats.CorrelationMethod(req.Method),
		HighPrecision: req.HighPrecision,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// Regression handles POST /api/v1/stats/regression.
func (h *StatsHandler) Regression(w http.ResponseWriter, r *http.Request) {
	var req api.RegressionRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	y, predictors, err := req.Resolve()
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.Regression(r.Context(), y, predictors, stats.RegressionOptions{
		Names:            req.Names,
		IncludeResiduals: req.IncludeResiduals,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// twoSampleFunc adapts the two-sample nonparametric service methods to
// one shape so the handlers can share a body.
type twoSampleFunc func(a, b []float64, alt stats.Alternative) (interface{}, *services.RunInfo, error)

// MannWhitney handles POST /api/v1/nonparametric/mann-whitney.
func (h *StatsHandler) MannWhitney(w http.ResponseWriter, r *http.Request) {
	h.twoSample(w, r, func(a, b []float64, alt stats.Alternative) (interface{}, *services.RunInfo, error) {
		res, info, err := h.service.MannWhitney(r.Context(), a, b, alt)
		return res, info, err
	})
}

// Wilcoxon handles POST /api/v1/nonparametric/wilcoxon.
func (h *StatsHandler) Wilcoxon(w http.ResponseWriter, r *http.Request) {
	h.twoSample(w, r, func(a, b []float64, alt stats.Alternative) (interface{}, *services.RunInfo, error) {
		res, info, err := h.service.Wilcoxon(r.Context(), a, b, alt)
		return res, info, err
	})
}

// SignTest handles POST /api/v1/nonparametric/sign.
func (h *StatsHandler) SignTest(w http.ResponseWriter, r *http.Request) {
	h.twoSample(w, r, func(a, b []float64, alt stats.Alternative) (interface{}, *services.RunInfo, error) {
		res, info, err := h.service.SignTest(r.Context(), a, b, alt)
		return res, info, err
	})
}

// twoSample is the shared body of the two-sample nonparametric handlers.
func (h *StatsHandler) twoSample(w http.ResponseWriter, r *http.Request, run twoSampleFunc) {
	var req api.TwoSampleRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	a, b, err := req.Samples()
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := run(a, b, stats.Alternative(req.Alternative))
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// KruskalWallis handles POST /api/v1/nonparametric/kruskal-wallis.
func (h *StatsHandler) KruskalWallis(w http.ResponseWriter, r *http.Request) {
	var req api.GroupsRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	groups, err := req.Resolve()
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.KruskalWallis(r.Context(), groups, req.Labels)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// ChiSquare handles POST /api/v1/categorical/chi-square.
func (h *StatsHandler) ChiSquare(w http.ResponseWriter, r *http.Request) {
	var req api.ChiSquareRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	table, err := req.Resolve()
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.ChiSquare(r.Context(), table, req.Yates)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// GoodnessOfFit handles POST /api/v1/categorical/goodness-of-fit.
func (h *StatsHandler) GoodnessOfFit(w http.ResponseWriter, r *http.Request) {
	var req api.GoodnessOfFitRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.GoodnessOfFit(r.Context(), req.Observed, req.ResolveProportions())
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// Fisher handles POST /api/v1/categorical/fisher.
func (h *StatsHandler) Fisher(w http.ResponseWriter, r *http.Request) {
	var req api.FisherRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	a, b, c, d, err := req.Cells()
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.FisherExact(r.Context(), a, b, c, d, stats.Alternative(req.Alternative))
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// KaplanMeier handles POST /api/v1/survival/kaplan-meier.
func (h *StatsHandler) KaplanMeier(w http.ResponseWriter, r *http.Request) {
	var req api.KaplanMeierRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	obs, err := toObservations(req.Times, req.Events)
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.KaplanMeier(r.Context(), obs)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// LogRank handles POST /api/v1/survival/log-rank.
func (h *StatsHandler) LogRank(w http.ResponseWriter, r *http.Request) {
	var req api.LogRankRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	g1, err := toObservations(req.Group1.Times, req.Group1.Events)
	if err != nil {
		renderError(w, r, err)
		return
	}
	g2, err := toObservations(req.Group2.Times, req.Group2.Events)
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.LogRank(r.Context(), g1, g2)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// ControlChart handles POST /api/v1/sqc/control-chart.
func (h *StatsHandler) ControlChart(w http.ResponseWriter, r *http.Request) {
	var req api.ControlChartRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	res, err := h.service.ControlChart(r.Context(), services.ControlChartInput{
		Kind:       req.Kind,
		Subgroups:  req.Subgroups,
		Values:     req.Values,
		Defective:  req.Defective,
		SampleSize: req.SampleSize,
		Counts:     req.Counts,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, nil)
}

// Capability handles POST /api/v1/sqc/capability.
func (h *StatsHandler) Capability(w http.ResponseWriter, r *http.Request) {
	var req api.CapabilityRequest
	if err := decodeValid(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	res, info, err := h.service.Capability(r.Context(), req.Subgroups, req.LSL, req.USL)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, res, info)
}

// toObservations pairs times with event indicators.
func toObservations(times []float64, events []bool) ([]survival.Observation, error) {
	if len(times) != len(events) {
		return nil, apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED",
			"Request validation failed", "times and events must have the same length")
	}
	obs := make([]survival.Observation, len(times))
	for i := range times {
		obs[i] = survival.Observation{Time: times[i], Event: events[i]}
	}
	return obs, nil
}
