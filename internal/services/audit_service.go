package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"stickforstats/internal/audit"
	"stickforstats/internal/exporter"
)

// ExportFormat selects the download encoding for audit exports.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// AuditService fronts the audit store for the read endpoints and the
// export download.
type AuditService struct {
	store    audit.Store
	exporter *exporter.Exporter
	logger   *slog.Logger
}

// NewAuditService creates an audit service over the given store.
func NewAuditService(store audit.Store, exp *exporter.Exporter, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{
		store:    store,
		exporter: exp,
		logger:   logger.With(slog.String("component", "services.audit")),
	}
}

// Get returns one record or audit.ErrNotFound.
func (s *AuditService) Get(ctx context.Context, id string) (*audit.Record, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	return s.store.Get(ctx, id)
}

// List returns records matching the filter, newest first.
func (s *AuditService) List(ctx context.Context, f audit.Filter) ([]*audit.Record, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	return s.store.List(ctx, f)
}

// Delete removes one record.
func (s *AuditService) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return ErrStoreUnavailable
	}
	return s.store.Delete(ctx, id)
}

// Summary aggregates runs over [from, to). A zero from defaults to 30
// days before to; a zero to defaults to now.
func (s *AuditService) Summary(ctx context.Context, from, to time.Time) (*audit.Summary, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return s.store.Summarize(ctx, from, to)
}

// Export writes records matching the filter to w in the given format.
func (s *AuditService) Export(ctx context.Context, f audit.Filter, format ExportFormat, w io.Writer) error {
	records, err := s.List(ctx, f)
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV, "":
		err = s.exporter.WriteCSV(w, records)
	case FormatXLSX:
		err = s.exporter.WriteXLSX(w, records)
	default:
		return ErrExportUnsupported
	}
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "audit export completed",
		slog.String("format", string(format)),
		slog.Int("records", len(records)))
	return nil
}
