// Package services wires the statistical engines to the transport
// layer: guardian gating, audit recording, metrics, and the async job
// registry live here.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"stickforstats/internal/audit"
	"stickforstats/internal/guardian"
	"stickforstats/internal/infrastructure"
	"stickforstats/internal/sqc"
	"stickforstats/internal/stats"
	"stickforstats/internal/survival"
)

// StatsService runs analyses end to end: assumption checks first, then
// the engine, then an audit record of the run.
type StatsService struct {
	checker *guardian.Checker
	audits  audit.Store
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger

	// strict refuses to run parametric tests whose critical
	// assumptions fail instead of attaching a warning report.
	strict bool
}

// NewStatsService creates the analysis orchestrator.
func NewStatsService(checker *guardian.Checker, audits audit.Store, metrics *infrastructure.BusinessMetrics, strict bool, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{
		checker: checker,
		audits:  audits,
		metrics: metrics,
		strict:  strict,
		logger:  logger.With(slog.String("component", "services.stats")),
	}
}

// RunInfo carries run metadata alongside an analysis result.
type RunInfo struct {
	AuditID  string           `json:"audit_id,omitempty"`
	Guardian *guardian.Report `json:"guardian,omitempty"`
}

// guard runs the assumption checks for a parametric test. In strict
// mode a blocked report aborts the run.
func (s *StatsService) guard(ctx context.Context, test guardian.TestID, groups [][]float64) (*guardian.Report, error) {
	report, err := s.checker.Check(test, groups)
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range report.Results {
		if r.Status == guardian.StatusFail {
			failed++
		}
	}
	infrastructure.RecordGuardianMetrics(ctx, s.metrics, string(test), len(report.Results), failed, report.Blocked())

	if s.strict && report.Blocked() {
		s.logger.WarnContext(ctx, "analysis blocked by assumption failures",
			slog.String("test", string(test)),
			slog.Int("critical_failures", report.CriticalFailures))
		return report, &AssumptionsError{Report: report}
	}
	return report, nil
}

// record writes the audit record for one run and returns its id. Audit
// failures are logged, not surfaced; the analysis already succeeded.
func (s *StatsService) record(ctx context.Context, testType, testName string, sampleSize, fieldCount int, statistic, pValue string, report *guardian.Report) string {
	if s.audits == nil {
		return ""
	}

	rec := &audit.Record{
		TestType:             testType,
		TestName:             testName,
		FieldCount:           fieldCount,
		SampleSize:           sampleSize,
		Statistic:            statistic,
		PValue:               pValue,
		MethodologyScore:     methodologyScore(report),
		ReproducibilityScore: 100,
		TransparencyScore:    transparencyScore(report),
	}
	if report != nil {
		if err := rec.SetGuardianReport(report); err != nil {
			s.logger.WarnContext(ctx, "failed to attach guardian report", slog.String("error", err.Error()))
		}
	}

	if err := s.audits.Save(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to save audit record",
			slog.String("test_name", testName),
			slog.String("error", err.Error()))
		return ""
	}
	return rec.ID
}

// methodologyScore grades a run by its assumption report: each warning
// costs 5 points and each critical failure 20, floored at 40.
func methodologyScore(report *guardian.Report) float64 {
	if report == nil {
		return 85
	}
	score := 100.0 - 5*float64(report.Warnings) - 20*float64(report.CriticalFailures)
	if score < 40 {
		score = 40
	}
	return score
}

// transparencyScore rewards runs that carry a full assumption report.
func transparencyScore(report *guardian.Report) float64 {
	if report == nil {
		return 80
	}
	return 100
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CheckAssumptions runs the guardian for a named test and returns the
// report without gating; the explicit check endpoint never blocks.
func (s *StatsService) CheckAssumptions(ctx context.Context, test string, groups [][]float64) (*guardian.Report, error) {
	report, err := s.checker.Check(guardian.TestID(test), groups)
	if err != nil {
		return nil, err
	}
	failed := 0
	for _, r := range report.Results {
		if r.Status == guardian.StatusFail {
			failed++
		}
	}
	infrastructure.RecordGuardianMetrics(ctx, s.metrics, test, len(report.Results), failed, report.Blocked())
	return report, nil
}

// Descriptive computes the descriptive summary of one sample.
func (s *StatsService) Descriptive(ctx context.Context, data []float64, opts stats.DescriptiveOptions) (*stats.DescriptiveResult, *RunInfo, error) {
	start := time.Now()
	res, err := stats.Describe(data, opts)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "descriptive", "descriptive", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "descriptive", "descriptive", res.N, 1, formatFloat(res.Mean), "", nil)
	return res, info, nil
}

// TTest runs the requested t-test variant behind the guardian gate.
func (s *StatsService) TTest(ctx context.Context, kind string, a, b []float64, opts stats.TTestOptions) (*stats.TTestResult, *RunInfo, error) {
	var guardianTest guardian.TestID
	switch kind {
	case "one-sample":
		guardianTest = guardian.TestOneSampleT
	case "two-sample", "welch":
		guardianTest = guardian.TestTwoSampleT
	case "paired":
		guardianTest = guardian.TestPairedT
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTestKind, kind)
	}

	groups := [][]float64{a}
	if b != nil {
		groups = append(groups, b)
	}
	report, err := s.guard(ctx, guardianTest, groups)
	if err != nil {
		return nil, &RunInfo{Guardian: report}, err
	}

	start := time.Now()
	var res *stats.TTestResult
	switch kind {
	case "one-sample":
		res, err = stats.OneSampleTTest(a, opts)
	case "two-sample":
		res, err = stats.TwoSampleTTest(a, b, false, opts)
	case "welch":
		res, err = stats.TwoSampleTTest(a, b, true, opts)
	case "paired":
		res, err = stats.PairedTTest(a, b, opts)
	}
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "parametric", kind+"_t", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{Guardian: report}
	info.AuditID = s.record(ctx, "parametric", kind+"_t", res.N1+res.N2, len(groups), formatFloat(res.T), formatFloat(res.P), report)
	return res, info, nil
}

// ANOVA runs a one-way ANOVA behind the guardian gate.
func (s *StatsService) ANOVA(ctx context.Context, groups [][]float64, opts stats.ANOVAOptions) (*stats.ANOVAResult, *RunInfo, error) {
	report, err := s.guard(ctx, guardian.TestANOVA, groups)
	if err != nil {
		return nil, &RunInfo{Guardian: report}, err
	}

	start := time.Now()
	res, err := stats.OneWayANOVA(groups, opts)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "parametric", "anova", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	info := &RunInfo{Guardian: report}
	info.AuditID = s.record(ctx, "parametric", "anova", total, len(groups), formatFloat(res.F), formatFloat(res.P), report)
	return res, info, nil
}

// Correlate computes a correlation; Pearson runs behind the guardian.
func (s *StatsService) Correlate(ctx context.Context, x, y []float64, opts stats.CorrelationOptions) (*stats.CorrelationResult, *RunInfo, error) {
	var report *guardian.Report
	var err error
	if opts.Method == "" || opts.Method == stats.Pearson {
		report, err = s.guard(ctx, guardian.TestPearson, [][]float64{x, y})
		if err != nil {
			return nil, &RunInfo{Guardian: report}, err
		}
	}

	start := time.Now()
	res, err := stats.Correlate(x, y, opts)
	name := "correlation"
	if res != nil {
		name = string(res.Method)
	}
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "correlation", name, time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{Guardian: report}
	info.AuditID = s.record(ctx, "correlation", string(res.Method), res.N, 2, formatFloat(res.R), formatFloat(res.P), report)
	return res, info, nil
}

// Regression fits an OLS model behind the guardian gate.
func (s *StatsService) Regression(ctx context.Context, y []float64, predictors [][]float64, opts stats.RegressionOptions) (*stats.RegressionResult, *RunInfo, error) {
	report, err := s.guard(ctx, guardian.TestRegression, [][]float64{y})
	if err != nil {
		return nil, &RunInfo{Guardian: report}, err
	}

	start := time.Now()
	res, err := stats.LinearRegression(y, predictors, opts)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "regression", "ols", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{Guardian: report}
	info.AuditID = s.record(ctx, "regression", "ols", res.N, res.K+1, formatFloat(res.F), formatFloat(res.FP), report)
	return res, info, nil
}

// MannWhitney runs the Mann-Whitney U test. Nonparametric tests skip
// the guardian gate; they are the recommended alternatives.
func (s *StatsService) MannWhitney(ctx context.Context, a, b []float64, alt stats.Alternative) (*stats.MannWhitneyResult, *RunInfo, error) {
	start := time.Now()
	res, err := stats.MannWhitneyU(a, b, alt)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "nonparametric", "mann_whitney", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "nonparametric", "mann_whitney", len(a)+len(b), 2, formatFloat(res.U), formatFloat(res.P), nil)
	return res, info, nil
}

// Wilcoxon runs the Wilcoxon signed-rank test on paired samples.
func (s *StatsService) Wilcoxon(ctx context.Context, a, b []float64, alt stats.Alternative) (*stats.WilcoxonResult, *RunInfo, error) {
	start := time.Now()
	res, err := stats.WilcoxonSignedRank(a, b, alt)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "nonparametric", "wilcoxon", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "nonparametric", "wilcoxon", len(a), 2, formatFloat(res.W), formatFloat(res.P), nil)
	return res, info, nil
}

// KruskalWallis runs the k-group rank test.
func (s *StatsService) KruskalWallis(ctx context.Context, groups [][]float64, labels []string) (*stats.KruskalWallisResult, *RunInfo, error) {
	start := time.Now()
	res, err := stats.KruskalWallis(groups, labels)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "nonparametric", "kruskal_wallis", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	info := &RunInfo{}
	info.AuditID = s.record(ctx, "nonparametric", "kruskal_wallis", total, len(groups), formatFloat(res.H), formatFloat(res.P), nil)
	return res, info, nil
}

// SignTest runs the paired sign test.
func (s *StatsService) SignTest(ctx context.Context, a, b []float64, alt stats.Alternative) (*stats.SignTestResult, *RunInfo, error) {
	start := time.Now()
	res, err := stats.SignTest(a, b, alt)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "nonparametric", "sign", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "nonparametric", "sign", len(a), 2, strconv.Itoa(res.NPositive), formatFloat(res.P), nil)
	return res, info, nil
}

// ChiSquare runs the chi-square test of independence.
func (s *StatsService) ChiSquare(ctx context.Context, observed [][]int, yates bool) (*stats.ChiSquareResult, *RunInfo, error) {
	start := time.Now()
	res, err := stats.ChiSquareIndependence(observed, yates)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "categorical", "chi_square", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "categorical", "chi_square", res.N, len(observed), formatFloat(res.ChiSquare), formatFloat(res.P), nil)
	return res, info, nil
}

// GoodnessOfFit runs the chi-square goodness-of-fit test.
func (s *StatsService) GoodnessOfFit(ctx context.Context, observed []int, proportions []float64) (*stats.ChiSquareResult, *RunInfo, error) {
	start := time.Now()
	res, err := stats.GoodnessOfFit(observed, proportions)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "categorical", "goodness_of_fit", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "categorical", "goodness_of_fit", res.N, len(observed), formatFloat(res.ChiSquare), formatFloat(res.P), nil)
	return res, info, nil
}

// FisherExact runs the Fisher exact test on a 2x2 table.
func (s *StatsService) FisherExact(ctx context.Context, a, b, c, d int, alt stats.Alternative) (*stats.FisherExactResult, *RunInfo, error) {
	start := time.Now()
	res, err := stats.FisherExact(a, b, c, d, alt)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "categorical", "fisher_exact", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "categorical", "fisher_exact", a+b+c+d, 2, formatFloat(res.OddsRatio), formatFloat(res.P), nil)
	return res, info, nil
}

// KaplanMeier estimates the survival curve.
func (s *StatsService) KaplanMeier(ctx context.Context, obs []survival.Observation) (*survival.KMResult, *RunInfo, error) {
	start := time.Now()
	res, err := survival.KaplanMeier(obs)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "survival", "kaplan_meier", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	statistic := ""
	if res.MedianReached() {
		statistic = formatFloat(res.MedianSurvival)
	}
	info.AuditID = s.record(ctx, "survival", "kaplan_meier", res.N, 1, statistic, "", nil)
	return res, info, nil
}

// LogRank compares two survival curves.
func (s *StatsService) LogRank(ctx context.Context, group1, group2 []survival.Observation) (*survival.LogRankResult, *RunInfo, error) {
	start := time.Now()
	res, err := survival.LogRank(group1, group2)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "survival", "log_rank", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "survival", "log_rank", res.N1+res.N2, 2, formatFloat(res.ChiSquare), formatFloat(res.P), nil)
	return res, info, nil
}

// ControlChartInput selects one chart kind and carries its data.
type ControlChartInput struct {
	Kind       string
	Subgroups  [][]float64
	Values     []float64
	Defective  []int
	SampleSize int
	Counts     []int
}

// ControlChartResult is the union of the chart outputs.
type ControlChartResult struct {
	Kind  string           `json:"kind"`
	XBarR *sqc.XBarRResult `json:"xbar_r,omitempty"`
	IMR   *sqc.IMRResult   `json:"imr,omitempty"`
	Chart *sqc.Chart       `json:"chart,omitempty"`
}

// ControlChart builds the requested control chart.
func (s *StatsService) ControlChart(ctx context.Context, in ControlChartInput) (*ControlChartResult, error) {
	start := time.Now()
	out := &ControlChartResult{Kind: in.Kind}
	var err error

	switch in.Kind {
	case "xbar_r":
		out.XBarR, err = sqc.XBarR(in.Subgroups)
	case "imr":
		out.IMR, err = sqc.IMR(in.Values)
	case "p":
		out.Chart, err = sqc.PChart(in.Defective, in.SampleSize)
	case "c":
		out.Chart, err = sqc.CChart(in.Counts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChartKind, in.Kind)
	}

	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "sqc", "chart_"+in.Kind, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Capability runs a process capability study.
func (s *StatsService) Capability(ctx context.Context, subgroups [][]float64, lsl, usl float64) (*sqc.CapabilityResult, *RunInfo, error) {
	start := time.Now()
	res, err := sqc.Capability(subgroups, lsl, usl)
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, "sqc", "capability", time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	info := &RunInfo{}
	info.AuditID = s.record(ctx, "sqc", "capability", res.N, len(subgroups), formatFloat(res.Cpk), "", nil)
	return res, info, nil
}
