// Package exporter renders audit records as CSV and xlsx downloads.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"stickforstats/internal/audit"
)

// auditHeaders is the column order shared by both formats.
var auditHeaders = []string{
	"id", "test_type", "test_name", "field_count", "sample_size",
	"statistic", "p_value",
	"methodology_score", "reproducibility_score", "transparency_score", "integrity_score",
	"assumptions_checked", "assumptions_failed",
	"created_at",
}

// Exporter writes audit record tables.
type Exporter struct {
	logger *slog.Logger
}

// New creates an exporter.
func New(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger.With(slog.String("component", "exporter"))}
}

// auditRow flattens one record into the shared column order. Statistic
// and p-value are passed through as stored, preserving full precision.
func auditRow(rec *audit.Record) []string {
	return []string{
		rec.ID,
		rec.TestType,
		rec.TestName,
		strconv.Itoa(rec.FieldCount),
		strconv.Itoa(rec.SampleSize),
		rec.Statistic,
		rec.PValue,
		formatScore(rec.MethodologyScore),
		formatScore(rec.ReproducibilityScore),
		formatScore(rec.TransparencyScore),
		formatScore(rec.IntegrityScore),
		strconv.Itoa(rec.AssumptionsChecked),
		strconv.Itoa(rec.AssumptionsFailed),
		rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteCSV streams the records as CSV with a UTF-8 BOM so Excel opens
// the file correctly.
func (e *Exporter) WriteCSV(w io.Writer, records []*audit.Record) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("exporter: write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(auditHeaders); err != nil {
		return fmt.Errorf("exporter: write headers: %w", err)
	}
	for i, rec := range records {
		if err := cw.Write(auditRow(rec)); err != nil {
			return fmt.Errorf("exporter: write record %d: %w", i, err)
		}
	}
	cw.Flush()

	e.logger.Debug("csv export written", slog.Int("records", len(records)))
	return cw.Error()
}

// WriteXLSX writes the records as a single-sheet xlsx workbook.
func (e *Exporter) WriteXLSX(w io.Writer, records []*audit.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Audit Records"
	f.SetSheetName("Sheet1", sheet)

	for col, header := range auditHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("exporter: header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("exporter: set header: %w", err)
		}
	}

	for i, rec := range records {
		for col, value := range auditRow(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("exporter: record cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("exporter: set value: %w", err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("exporter: write workbook: %w", err)
	}

	e.logger.Debug("xlsx export written", slog.Int("records", len(records)))
	return nil
}
