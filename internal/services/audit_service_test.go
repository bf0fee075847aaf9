package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stickforstats/internal/audit"
	"stickforstats/internal/exporter"
)

func newAuditService(t *testing.T) (*AuditService, audit.Store) {
	t.Helper()
	store, err := audit.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewAuditService(store, exporter.New(discardLogger()), discardLogger()), store
}

func seedRecords(t *testing.T, store audit.Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rec := &audit.Record{
			TestType:             "parametric",
			TestName:             "anova",
			SampleSize:           30 + i,
			Statistic:            "4.21",
			PValue:               "0.019",
			MethodologyScore:     90,
			ReproducibilityScore: 100,
			TransparencyScore:    100,
		}
		require.NoError(t, store.Save(context.Background(), rec))
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestAuditServiceGetAndDelete(t *testing.T) {
	svc, store := newAuditService(t)
	ctx := context.Background()
	ids := seedRecords(t, store, 1)

	rec, err := svc.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "anova", rec.TestName)

	require.NoError(t, svc.Delete(ctx, ids[0]))
	_, err = svc.Get(ctx, ids[0])
	require.ErrorIs(t, err, audit.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, ids[0]), audit.ErrNotFound)
}

func TestAuditServiceListFilter(t *testing.T) {
	svc, store := newAuditService(t)
	ctx := context.Background()
	seedRecords(t, store, 3)

	records, err := svc.List(ctx, audit.Filter{TestName: "anova"})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = svc.List(ctx, audit.Filter{TestName: "ttest"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAuditServiceSummaryDefaults(t *testing.T) {
	svc, store := newAuditService(t)
	ctx := context.Background()
	seedRecords(t, store, 2)

	// Zero bounds default to the last 30 days.
	sum, err := svc.Summary(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalRuns)
	assert.Equal(t, 2, sum.PassedRuns)
	assert.InDelta(t, 1.0, sum.PassRate, 0.001)
}

func TestAuditServiceExportCSV(t *testing.T) {
	svc, store := newAuditService(t)
	seedRecords(t, store, 2)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), audit.Filter{}, FormatCSV, &buf))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n")) // header + 2 rows
}

func TestAuditServiceExportUnsupportedFormat(t *testing.T) {
	svc, _ := newAuditService(t)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), audit.Filter{}, "pdf", &buf)
	require.ErrorIs(t, err, ErrExportUnsupported)
}

func TestAuditServiceNilStore(t *testing.T) {
	svc := NewAuditService(nil, exporter.New(discardLogger()), discardLogger())
	ctx := context.Background()

	_, err := svc.Get(ctx, "x")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = svc.List(ctx, audit.Filter{})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, svc.Delete(ctx, "x"), ErrStoreUnavailable)
}
