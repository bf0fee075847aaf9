package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"stickforstats/internal/operations"
	"stickforstats/internal/stats"
	"stickforstats/internal/survival"
	api "stickforstats/pkg/contracts/api/v1"
)

// OperationsService exposes the async job queue and registers one
// handler per analysis kind. Job payloads are the request bodies of the
// corresponding synchronous endpoints.
type OperationsService struct {
	queue  *operations.JobQueue
	stats  *StatsService
	logger *slog.Logger
}

// NewOperationsService wires the stats service into the job queue.
func NewOperationsService(queue *operations.JobQueue, statsService *StatsService, logger *slog.Logger) *OperationsService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &OperationsService{
		queue:  queue,
		stats:  statsService,
		logger: logger.With(slog.String("component", "services.operations")),
	}
	s.registerHandlers()
	return s
}

// Submit enqueues one analysis job.
func (s *OperationsService) Submit(ctx context.Context, kind string, payload json.RawMessage) (*operations.Job, error) {
	job := &operations.Job{Kind: kind, Payload: payload}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "analysis job submitted",
		slog.String("job_id", job.ID),
		slog.String("kind", kind))
	return job, nil
}

// Get returns one job by id.
func (s *OperationsService) Get(ctx context.Context, id string) (*operations.Job, error) {
	return s.queue.GetJob(id)
}

// Cancel cancels a pending or running job.
func (s *OperationsService) Cancel(ctx context.Context, id string) error {
	return s.queue.CancelJob(id)
}

// List returns jobs matching the filter.
func (s *OperationsService) List(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	return s.queue.ListJobs(filter)
}

// Stats returns queue statistics.
func (s *OperationsService) Stats() map[string]interface{} {
	return s.queue.Stats()
}

// decode unmarshals and validates a job payload.
func decode[T any](job *operations.Job) (*T, error) {
	var req T
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := api.Validate(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &req, nil
}

// respond marshals the analysis response stored as the job result.
func respond(result interface{}, info *RunInfo) (json.RawMessage, error) {
	resp := api.AnalysisResponse{Result: result}
	if info != nil {
		resp.Guardian = info.Guardian
		resp.AuditID = info.AuditID
	}
	return json.Marshal(resp)
}

func (s *OperationsService) registerHandlers() {
	s.queue.Register("descriptive", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.DescriptiveRequest](job)
		if err != nil {
			return nil, err
		}
		progress(20, "computing summary")
		res, info, err := s.stats.Descriptive(ctx, req.Data, stats.DescriptiveOptions{
			ConfidenceLevel: req.ConfidenceLevel,
			HighPrecision:   req.HighPrecision,
		})
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("ttest", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.TTestRequest](job)
		if err != nil {
			return nil, err
		}
		a, b, err := req.Samples()
		if err != nil {
			return nil, err
		}
		progress(20, "checking assumptions")
		res, info, err := s.stats.TTest(ctx, req.Kind, a, b, stats.TTestOptions{
			Mu:              req.Mu,
			Alternative:     stats.Alternative(req.Alternative),
			ConfidenceLevel: req.ConfidenceLevel,
			HighPrecision:   req.HighPrecision,
		})
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("anova", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.ANOVARequest](job)
		if err != nil {
			return nil, err
		}
		groups, err := req.Resolve()
		if err != nil {
			return nil, err
		}
		progress(20, "checking assumptions")
		res, info, err := s.stats.ANOVA(ctx, groups, stats.ANOVAOptions{
			Labels:  req.Labels,
			PostHoc: req.PostHoc,
		})
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("correlation", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.CorrelationRequest](job)
		if err != nil {
			return nil, err
		}
		x, y, err := req.Samples()
		if err != nil {
			return nil, err
		}
		progress(20, "computing correlation")
		res, info, err := s.stats.Correlate(ctx, x, y, stats.CorrelationOptions{
			Method:        stats.CorrelationMethod(req.Method),
			HighPrecision: req.HighPrecision,
		})
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("regression", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.RegressionRequest](job)
		if err != nil {
			return nil, err
		}
		y, predictors, err := req.Resolve()
		if err != nil {
			return nil, err
		}
		progress(20, "fitting model")
		res, info, err := s.stats.Regression(ctx, y, predictors, stats.RegressionOptions{
			Names:            req.Names,
			IncludeResiduals: req.IncludeResiduals,
		})
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("mann_whitney", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.TwoSampleRequest](job)
		if err != nil {
			return nil, err
		}
		a, b, err := req.Samples()
		if err != nil {
			return nil, err
		}
		progress(20, "ranking")
		res, info, err := s.stats.MannWhitney(ctx, a, b, stats.Alternative(req.Alternative))
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("wilcoxon", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.TwoSampleRequest](job)
		if err != nil {
			return nil, err
		}
		a, b, err := req.Samples()
		if err != nil {
			return nil, err
		}
		progress(20, "ranking")
		res, info, err := s.stats.Wilcoxon(ctx, a, b, stats.Alternative(req.Alternative))
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("kruskal_wallis", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.GroupsRequest](job)
		if err != nil {
			return nil, err
		}
		groups, err := req.Resolve()
		if err != nil {
			return nil, err
		}
		progress(20, "ranking")
		res, info, err := s.stats.KruskalWallis(ctx, groups, req.Labels)
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("sign", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.TwoSampleRequest](job)
		if err != nil {
			return nil, err
		}
		a, b, err := req.Samples()
		if err != nil {
			return nil, err
		}
		res, info, err := s.stats.SignTest(ctx, a, b, stats.Alternative(req.Alternative))
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("chi_square", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.ChiSquareRequest](job)
		if err != nil {
			return nil, err
		}
		table, err := req.Resolve()
		if err != nil {
			return nil, err
		}
		res, info, err := s.stats.ChiSquare(ctx, table, req.Yates)
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("goodness_of_fit", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.GoodnessOfFitRequest](job)
		if err != nil {
			return nil, err
		}
		res, info, err := s.stats.GoodnessOfFit(ctx, req.Observed, req.ResolveProportions())
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("fisher", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.FisherRequest](job)
		if err != nil {
			return nil, err
		}
		a, b, c, d, err := req.Cells()
		if err != nil {
			return nil, err
		}
		res, info, err := s.stats.FisherExact(ctx, a, b, c, d, stats.Alternative(req.Alternative))
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("kaplan_meier", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.KaplanMeierRequest](job)
		if err != nil {
			return nil, err
		}
		obs, err := toObservations(req.Times, req.Events)
		if err != nil {
			return nil, err
		}
		progress(20, "estimating survival curve")
		res, info, err := s.stats.KaplanMeier(ctx, obs)
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("log_rank", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.LogRankRequest](job)
		if err != nil {
			return nil, err
		}
		g1, err := toObservations(req.Group1.Times, req.Group1.Events)
		if err != nil {
			return nil, err
		}
		g2, err := toObservations(req.Group2.Times, req.Group2.Events)
		if err != nil {
			return nil, err
		}
		progress(20, "comparing curves")
		res, info, err := s.stats.LogRank(ctx, g1, g2)
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})

	s.queue.Register("control_chart", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.ControlChartRequest](job)
		if err != nil {
			return nil, err
		}
		progress(20, "building chart")
		res, err := s.stats.ControlChart(ctx, ControlChartInput{
			Kind:       req.Kind,
			Subgroups:  req.Subgroups,
			Values:     req.Values,
			Defective:  req.Defective,
			SampleSize: req.SampleSize,
			Counts:     req.Counts,
		})
		if err != nil {
			return nil, err
		}
		return respond(res, nil)
	})

	s.queue.Register("capability", func(ctx context.Context, job *operations.Job, progress operations.ProgressFunc) (json.RawMessage, error) {
		req, err := decode[api.CapabilityRequest](job)
		if err != nil {
			return nil, err
		}
		res, info, err := s.stats.Capability(ctx, req.Subgroups, req.LSL, req.USL)
		if err != nil {
			return nil, err
		}
		return respond(res, info)
	})
}

// toObservations pairs times with event indicators.
func toObservations(times []float64, events []bool) ([]survival.Observation, error) {
	if len(times) != len(events) {
		return nil, fmt.Errorf("%w: times and events lengths differ (%d vs %d)",
			ErrInvalidPayload, len(times), len(events))
	}
	obs := make([]survival.Observation, len(times))
	for i := range times {
		obs[i] = survival.Observation{Time: times[i], Event: events[i]}
	}
	return obs, nil
}
