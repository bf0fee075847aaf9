package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stickforstats/internal/guardian"
	"stickforstats/internal/services"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadSamples(t *testing.T) {
	path := writeCSV(t, "weight,height\n1.5,170\n2.5,165\n3.5,\n")

	names, samples, err := readSamples(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"weight", "height"}, names)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, samples[0])
	assert.Equal(t, []float64{170, 165}, samples[1])
}

func TestReadSamplesBadCell(t *testing.T) {
	path := writeCSV(t, "a\n1.0\nnot-a-number\n")

	_, _, err := readSamples(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "a"`)
}

func TestReadSamplesEmptyColumn(t *testing.T) {
	path := writeCSV(t, "a,b\n1.0,\n2.0,\n")

	_, _, err := readSamples(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "b"`)
}

func TestAnalyzeAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := services.NewStatsService(guardian.NewChecker(), nil, nil, false, logger)

	names := []string{"x", "y"}
	samples := [][]float64{
		{2.1, 3.4, 2.8, 3.9, 3.1, 2.5, 3.6, 2.9, 3.3, 2.7},
		{5.1, 6.4, 5.8, 6.9, 6.1, 5.5, 6.6, 5.9, 6.3, 5.7},
	}

	results, err := analyzeAll(context.Background(), service, names, samples, "one_sample_t", false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.EqualValues(t, 10, results["x"].Descriptive.N)
	require.NotNil(t, results["y"].Guardian)
}

func TestAnalyzeAllUnknownCheck(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := services.NewStatsService(guardian.NewChecker(), nil, nil, false, logger)

	_, err := analyzeAll(context.Background(), service,
		[]string{"x"}, [][]float64{{1, 2, 3, 4, 5, 6, 7, 8}}, "bootstrap", false)
	require.Error(t, err)
}
