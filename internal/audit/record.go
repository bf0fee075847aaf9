// Package audit persists a denormalized record of every analysis run,
// including high-precision results kept as strings and the guardian
// verdict the run was gated on.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stickforstats/internal/guardian"
)

var (
	// ErrNotFound is returned when no record matches the given id.
	ErrNotFound = errors.New("audit: record not found")
	// ErrInvalidRecord is returned when a record fails validation on save.
	ErrInvalidRecord = errors.New("audit: invalid record")
)

// Record is one analysis run. Statistic and PValue are stored as strings
// so 50-digit results survive the round trip untouched.
type Record struct {
	ID         string `json:"id"`
	TestType   string `json:"test_type"` // parametric, nonparametric, categorical, ...
	TestName   string `json:"test_name"`
	FieldCount int    `json:"field_count"`
	SampleSize int    `json:"sample_size"`

	Statistic string `json:"statistic"`
	PValue    string `json:"p_value"`

	// Component scores on the 0-100 scale.
	MethodologyScore     float64 `json:"methodology_score"`
	ReproducibilityScore float64 `json:"reproducibility_score"`
	TransparencyScore    float64 `json:"transparency_score"`
	// IntegrityScore is derived on save: the mean of the component scores.
	IntegrityScore float64 `json:"integrity_score"`

	// GuardianReport is the serialized assumption report for the run.
	GuardianReport json.RawMessage `json:"guardian_report,omitempty"`
	// AssumptionsChecked and AssumptionsFailed are derived from the
	// guardian report on save.
	AssumptionsChecked int `json:"assumptions_checked"`
	AssumptionsFailed  int `json:"assumptions_failed"`

	ClientID      string `json:"client_id,omitempty"`
	ClientVersion string `json:"client_version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetGuardianReport attaches a guardian report to the record.
func (r *Record) SetGuardianReport(rep *guardian.Report) error {
	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("audit: marshal guardian report: %w", err)
	}
	r.GuardianReport = raw
	return nil
}

// finalize validates the record and computes the derived fields. Called by
// the store before every insert.
func (r *Record) finalize(now time.Time) error {
	if r.TestName == "" {
		return fmt.Errorf("%w: test name required", ErrInvalidRecord)
	}
	if r.SampleSize < 0 || r.FieldCount < 0 {
		return fmt.Errorf("%w: negative counts", ErrInvalidRecord)
	}
	for _, s := range []float64{r.MethodologyScore, r.ReproducibilityScore, r.TransparencyScore} {
		if s < 0 || s > 100 {
			return fmt.Errorf("%w: score %.2f outside 0-100", ErrInvalidRecord, s)
		}
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	r.IntegrityScore = (r.MethodologyScore + r.ReproducibilityScore + r.TransparencyScore) / 3

	r.AssumptionsChecked = 0
	r.AssumptionsFailed = 0
	if len(r.GuardianReport) > 0 {
		var rep guardian.Report
		if err := json.Unmarshal(r.GuardianReport, &rep); err != nil {
			return fmt.Errorf("%w: bad guardian report: %v", ErrInvalidRecord, err)
		}
		r.AssumptionsChecked = len(rep.Results)
		for _, res := range rep.Results {
			if res.Status == guardian.StatusFail {
				r.AssumptionsFailed++
			}
		}
	}
	return nil
}

// Passed reports whether the run cleared every assumption check.
func (r *Record) Passed() bool {
	return r.AssumptionsFailed == 0
}

// Summary is an aggregate rollup over a period.
type Summary struct {
	PeriodStart  time.Time      `json:"period_start"`
	PeriodEnd    time.Time      `json:"period_end"`
	TotalRuns    int            `json:"total_runs"`
	PassedRuns   int            `json:"passed_runs"`
	PassRate     float64        `json:"pass_rate"`
	AvgIntegrity float64        `json:"avg_integrity"`
	ByTestType   map[string]int `json:"by_test_type"`
}

// Filter narrows a listing. Zero values mean no constraint.
type Filter struct {
	TestType string
	TestName string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}
