package services

import (
	"errors"
	"fmt"

	"stickforstats/internal/guardian"
)

// Service-level errors shared across the handlers.
var (
	ErrUnknownTestKind   = errors.New("unknown test kind")
	ErrUnknownChartKind  = errors.New("unknown control chart kind")
	ErrUnknownJobKind    = errors.New("unknown job kind")
	ErrInvalidPayload    = errors.New("invalid job payload")
	ErrStoreUnavailable  = errors.New("audit store unavailable")
	ErrExportUnsupported = errors.New("unsupported export format")
)

// AssumptionsError is returned in strict mode when the guardian blocks
// a parametric analysis. It carries the full report for the client.
type AssumptionsError struct {
	Report *guardian.Report
}

func (e *AssumptionsError) Error() string {
	return fmt.Sprintf("critical statistical assumptions failed for %s (%d critical failures)",
		e.Report.Test, e.Report.CriticalFailures)
}

// AsAssumptionsError unwraps an AssumptionsError if err carries one.
func AsAssumptionsError(err error) (*AssumptionsError, bool) {
	var ae *AssumptionsError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
