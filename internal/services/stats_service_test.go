package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stickforstats/internal/audit"
	"stickforstats/internal/guardian"
	"stickforstats/internal/stats"
	"stickforstats/internal/survival"
)

// wellBehaved samples: symmetric, similar spread, large enough for the
// assumption checks to pass.
var (
	sampleA = []float64{4.2, 5.1, 4.8, 5.5, 4.9, 5.2, 4.6, 5.0, 5.3, 4.7, 5.4, 4.95}
	sampleB = []float64{5.9, 6.4, 6.1, 6.7, 6.0, 6.3, 5.8, 6.2, 6.5, 5.95, 6.6, 6.15}

	// skewed triggers a critical normality failure.
	skewed = []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 60}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, strict bool) (*StatsService, audit.Store) {
	t.Helper()
	store, err := audit.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewStatsService(guardian.NewChecker(), store, nil, strict, discardLogger())
	return svc, store
}

func TestTTestRecordsAudit(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	res, info, err := svc.TTest(ctx, "two-sample", sampleA, sampleB, stats.TTestOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Greater(t, res.P, 0.0)
	assert.Less(t, res.P, 1.0)

	require.NotNil(t, info)
	require.NotEmpty(t, info.AuditID)
	require.NotNil(t, info.Guardian)

	rec, err := store.Get(ctx, info.AuditID)
	require.NoError(t, err)
	assert.Equal(t, "parametric", rec.TestType)
	assert.Equal(t, "two-sample_t", rec.TestName)
	assert.Equal(t, 24, rec.SampleSize)
	assert.Greater(t, rec.AssumptionsChecked, 0)
	assert.NotEmpty(t, rec.Statistic)
	assert.NotEmpty(t, rec.PValue)
	assert.InDelta(t, 100, rec.TransparencyScore, 0.001)
}

func TestTTestUnknownKind(t *testing.T) {
	svc, _ := newTestService(t, false)

	_, _, err := svc.TTest(context.Background(), "triple", sampleA, sampleB, stats.TTestOptions{})
	require.ErrorIs(t, err, ErrUnknownTestKind)
}

func TestTTestStrictModeBlocks(t *testing.T) {
	svc, _ := newTestService(t, true)

	res, info, err := svc.TTest(context.Background(), "one-sample", skewed, nil, stats.TTestOptions{Mu: 5})
	require.Error(t, err)
	assert.Nil(t, res)

	ae, ok := AsAssumptionsError(err)
	require.True(t, ok)
	assert.True(t, ae.Report.Blocked())
	require.NotNil(t, info)
	assert.Same(t, ae.Report, info.Guardian)
}

func TestTTestLenientModeWarns(t *testing.T) {
	svc, _ := newTestService(t, false)

	res, info, err := svc.TTest(context.Background(), "one-sample", skewed, nil, stats.TTestOptions{Mu: 5})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotNil(t, info.Guardian)
	assert.True(t, info.Guardian.Blocked(), "report should still flag the failures")
}

func TestCheckAssumptionsNeverBlocks(t *testing.T) {
	svc, _ := newTestService(t, true)

	report, err := svc.CheckAssumptions(context.Background(), "one_sample_t", [][]float64{skewed})
	require.NoError(t, err)
	assert.True(t, report.Blocked())
}

func TestDescriptiveSkipsGuardian(t *testing.T) {
	svc, store := newTestService(t, true)
	ctx := context.Background()

	res, info, err := svc.Descriptive(ctx, sampleA, stats.DescriptiveOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(sampleA), res.N)
	assert.Nil(t, info.Guardian)
	require.NotEmpty(t, info.AuditID)

	rec, err := store.Get(ctx, info.AuditID)
	require.NoError(t, err)
	assert.Equal(t, "descriptive", rec.TestType)
	assert.Zero(t, rec.AssumptionsChecked)
	assert.InDelta(t, 85, rec.MethodologyScore, 0.001)
	assert.InDelta(t, 80, rec.TransparencyScore, 0.001)
}

func TestMannWhitneySkipsGuardian(t *testing.T) {
	// Nonparametric tests run even on data that would block a t-test.
	svc, _ := newTestService(t, true)

	res, info, err := svc.MannWhitney(context.Background(), skewed, sampleB, stats.TwoSided)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, info.Guardian)
	assert.NotEmpty(t, info.AuditID)
}

func TestANOVARecordsGroupCount(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	groupC := []float64{7.1, 7.6, 7.3, 7.9, 7.2, 7.5, 7.0, 7.4, 7.7, 7.15, 7.8, 7.35}
	res, info, err := svc.ANOVA(ctx, [][]float64{sampleA, sampleB, groupC}, stats.ANOVAOptions{})
	require.NoError(t, err)
	assert.Greater(t, res.F, 0.0)

	rec, err := store.Get(ctx, info.AuditID)
	require.NoError(t, err)
	assert.Equal(t, "anova", rec.TestName)
	assert.Equal(t, 3, rec.FieldCount)
	assert.Equal(t, 36, rec.SampleSize)
}

func TestSpearmanSkipsGuardian(t *testing.T) {
	svc, _ := newTestService(t, true)

	res, info, err := svc.Correlate(context.Background(), skewed, sampleB, stats.CorrelationOptions{Method: stats.Spearman})
	require.NoError(t, err)
	assert.Equal(t, stats.Spearman, res.Method)
	assert.Nil(t, info.Guardian)
}

func TestChiSquareAudit(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	res, info, err := svc.ChiSquare(ctx, [][]int{{20, 30}, {35, 15}}, false)
	require.NoError(t, err)
	assert.Equal(t, 100, res.N)

	rec, err := store.Get(ctx, info.AuditID)
	require.NoError(t, err)
	assert.Equal(t, "categorical", rec.TestType)
	assert.Equal(t, "chi_square", rec.TestName)
}

func TestKaplanMeierAudit(t *testing.T) {
	svc, _ := newTestService(t, false)

	obs := []survival.Observation{
		{Time: 5, Event: true}, {Time: 8, Event: true}, {Time: 12, Event: false},
		{Time: 15, Event: true}, {Time: 20, Event: false}, {Time: 22, Event: true},
	}
	res, info, err := svc.KaplanMeier(context.Background(), obs)
	require.NoError(t, err)
	assert.Equal(t, 6, res.N)
	assert.NotEmpty(t, info.AuditID)
}

func TestControlChartKinds(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()

	subgroups := [][]float64{
		{5.1, 5.0, 4.9, 5.2}, {5.0, 5.1, 5.0, 4.8}, {4.9, 5.2, 5.1, 5.0},
		{5.1, 4.9, 5.0, 5.1}, {5.0, 5.0, 5.2, 4.9},
	}

	out, err := svc.ControlChart(ctx, ControlChartInput{Kind: "xbar_r", Subgroups: subgroups})
	require.NoError(t, err)
	require.NotNil(t, out.XBarR)
	assert.Equal(t, "xbar_r", out.Kind)

	out, err = svc.ControlChart(ctx, ControlChartInput{
		Kind:   "imr",
		Values: []float64{5.1, 5.0, 4.9, 5.2, 5.0, 5.1, 4.8, 5.0, 5.1, 4.95},
	})
	require.NoError(t, err)
	require.NotNil(t, out.IMR)

	_, err = svc.ControlChart(ctx, ControlChartInput{Kind: "np"})
	require.ErrorIs(t, err, ErrUnknownChartKind)
}

func TestNilAuditStore(t *testing.T) {
	svc := NewStatsService(guardian.NewChecker(), nil, nil, false, discardLogger())

	res, info, err := svc.Descriptive(context.Background(), sampleA, stats.DescriptiveOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Empty(t, info.AuditID)
}

func TestInvalidInputPropagates(t *testing.T) {
	svc, _ := newTestService(t, false)

	_, _, err := svc.Descriptive(context.Background(), nil, stats.DescriptiveOptions{})
	require.ErrorIs(t, err, stats.ErrInvalidInput)
}

func TestMethodologyScore(t *testing.T) {
	assert.InDelta(t, 85, methodologyScore(nil), 0.001)
	assert.InDelta(t, 100, methodologyScore(&guardian.Report{}), 0.001)
	assert.InDelta(t, 90, methodologyScore(&guardian.Report{Warnings: 2}), 0.001)
	assert.InDelta(t, 75, methodologyScore(&guardian.Report{Warnings: 1, CriticalFailures: 1}), 0.001)
	// Floor at 40 regardless of how many checks failed.
	assert.InDelta(t, 40, methodologyScore(&guardian.Report{CriticalFailures: 5}), 0.001)
}
