// Command analyze runs descriptive statistics and assumption checks on a
// CSV file without starting the server. Each CSV column is treated as one
// sample; the header row names the samples. Results are written as JSON.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"stickforstats/internal/audit"
	"stickforstats/internal/config"
	"stickforstats/internal/guardian"
	"stickforstats/internal/services"
	"stickforstats/internal/stats"
)

type columnResult struct {
	Descriptive *stats.DescriptiveResult `json:"descriptive"`
	Guardian    *guardian.Report         `json:"guardian,omitempty"`
	AuditID     string                   `json:"audit_id,omitempty"`
}

func main() {
	input := flag.String("input", "", "CSV file with one sample per column (header row names them)")
	check := flag.String("check", "", "also run assumption checks for this test (e.g. one_sample_t, anova)")
	auditDB := flag.String("audit-db", "", "record runs into this audit database (empty disables)")
	highPrec := flag.Bool("high-precision", false, "attach 50-digit moment strings")
	out := flag.String("out", "", "output JSON file (defaults to stdout)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -input data.csv [-check anova] [-out results.json]")
		os.Exit(2)
	}

	// Logs go to stderr so stdout stays valid JSON.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	names, samples, err := readSamples(*input)
	if err != nil {
		logger.Error("failed to read input", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var store audit.Store
	if *auditDB != "" {
		sqlStore, err := audit.NewSQLiteStore(*auditDB)
		if err != nil {
			logger.Error("failed to open audit store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	checker := guardian.NewChecker()
	checker.Alpha = cfg.Guardian.Alpha
	checker.MinSample = cfg.Guardian.MinSample
	service := services.NewStatsService(checker, store, nil, false, logger)

	results, err := analyzeAll(context.Background(), service, names, samples, *check, *highPrec)
	if err != nil {
		logger.Error("analysis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("failed to create output file", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Error("failed to write results", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// analyzeAll runs the per-column analyses concurrently.
func analyzeAll(ctx context.Context, service *services.StatsService, names []string, samples [][]float64, check string, highPrec bool) (map[string]*columnResult, error) {
	results := make(map[string]*columnResult, len(names))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range names {
		name, sample := names[i], samples[i]
		g.Go(func() error {
			res, info, err := service.Descriptive(ctx, sample, stats.DescriptiveOptions{HighPrecision: highPrec})
			if err != nil {
				return fmt.Errorf("column %q: %w", name, err)
			}
			col := &columnResult{Descriptive: res}
			if info != nil {
				col.AuditID = info.AuditID
			}
			if check != "" {
				report, err := service.CheckAssumptions(ctx, check, [][]float64{sample})
				if err != nil {
					return fmt.Errorf("column %q: %w", name, err)
				}
				col.Guardian = report
			}
			mu.Lock()
			results[name] = col
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// readSamples parses the CSV into named columns, skipping blank cells so
// ragged columns are allowed.
func readSamples(path string) ([]string, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		if names[i] == "" {
			names[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	samples := make([][]float64, len(names))
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line++
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if i >= len(samples) || cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d, column %q: %w", line, names[i], err)
			}
			samples[i] = append(samples[i], v)
		}
	}

	for i, s := range samples {
		if len(s) == 0 {
			return nil, nil, fmt.Errorf("column %q has no numeric values", names[i])
		}
	}
	return names, samples, nil
}
