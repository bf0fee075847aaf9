// Package api contains the v1 request and response contracts for the
// StickForStats REST surface. Request types accept the documented field
// synonyms (data1/group1/x, groups/data) and normalize them to canonical
// samples before validation.
package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation on any request DTO.
func Validate(v interface{}) error {
	return validate.Struct(v)
}

// ErrMissingSample is returned when no synonym for a required sample
// field was supplied.
var ErrMissingSample = errors.New("missing sample data")

// firstOf returns the first non-empty sample among the synonyms.
func firstOf(samples ...[]float64) []float64 {
	for _, s := range samples {
		if len(s) > 0 {
			return s
		}
	}
	return nil
}

// DescriptiveRequest asks for a descriptive summary of one sample.
type DescriptiveRequest struct {
	Data            []float64 `json:"data" validate:"required,min=1"`
	ConfidenceLevel float64   `json:"confidence_level" validate:"omitempty,gt=0,lt=1"`
	HighPrecision   bool      `json:"high_precision"`
}

// TTestRequest covers all t-test variants. Sample fields accept the
// documented synonyms; Samples resolves them.
type TTestRequest struct {
	Kind string `json:"kind" validate:"required,oneof=one-sample two-sample welch paired"`

	Data1  []float64 `json:"data1"`
	Data2  []float64 `json:"data2"`
	Group1 []float64 `json:"group1"`
	Group2 []float64 `json:"group2"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`

	Mu              float64 `json:"mu"`
	Alternative     string  `json:"alternative" validate:"omitempty,oneof=two-sided less greater"`
	ConfidenceLevel float64 `json:"confidence_level" validate:"omitempty,gt=0,lt=1"`
	HighPrecision   bool    `json:"high_precision"`
}

// Samples resolves the synonym fields into the canonical pair. The
// second sample is nil for one-sample requests.
func (r *TTestRequest) Samples() (a, b []float64, err error) {
	a = firstOf(r.Data1, r.Group1, r.X)
	b = firstOf(r.Data2, r.Group2, r.Y)
	if a == nil {
		return nil, nil, fmt.Errorf("%w: data1 (or group1/x) is required", ErrMissingSample)
	}
	if r.Kind != "one-sample" && b == nil {
		return nil, nil, fmt.Errorf("%w: data2 (or group2/y) is required for %s t-test", ErrMissingSample, r.Kind)
	}
	return a, b, nil
}

// ANOVARequest asks for a one-way ANOVA across groups.
type ANOVARequest struct {
	Groups  [][]float64 `json:"groups"`
	Data    [][]float64 `json:"data"` // synonym for groups
	Labels  []string    `json:"labels"`
	PostHoc bool        `json:"post_hoc"`
}

// Resolve returns the canonical group set.
func (r *ANOVARequest) Resolve() ([][]float64, error) {
	groups := r.Groups
	if len(groups) == 0 {
		groups = r.Data
	}
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: groups (or data) must contain at least 2 groups", ErrMissingSample)
	}
	return groups, nil
}

// CorrelationRequest asks for a correlation between two samples.
type CorrelationRequest struct {
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Data1 []float64 `json:"data1"` // synonym for x
	Data2 []float64 `json:"data2"` // synonym for y

	Method        string `json:"method" validate:"omitempty,oneof=pearson spearman kendall"`
	HighPrecision bool   `json:"high_precision"`
}

// Samples resolves the synonym fields into the canonical pair.
func (r *CorrelationRequest) Samples() (x, y []float64, err error) {
	x = firstOf(r.X, r.Data1)
	y = firstOf(r.Y, r.Data2)
	if x == nil || y == nil {
		return nil, nil, fmt.Errorf("%w: both x (or data1) and y (or data2) are required", ErrMissingSample)
	}
	return x, y, nil
}

// RegressionRequest asks for an OLS fit of y on one or more predictors.
type RegressionRequest struct {
	Y          []float64   `json:"y"`
	Dependent  []float64   `json:"dependent"` // synonym for y
	X          [][]float64 `json:"x"`
	Predictors [][]float64 `json:"predictors"` // synonym for x

	Names            []string `json:"names"`
	IncludeResiduals bool     `json:"include_residuals"`
}

// Resolve returns the canonical response variable and predictor columns.
func (r *RegressionRequest) Resolve() (y []float64, predictors [][]float64, err error) {
	y = firstOf(r.Y, r.Dependent)
	predictors = r.X
	if len(predictors) == 0 {
		predictors = r.Predictors
	}
	if y == nil {
		return nil, nil, fmt.Errorf("%w: y (or dependent) is required", ErrMissingSample)
	}
	if len(predictors) == 0 {
		return nil, nil, fmt.Errorf("%w: x (or predictors) is required", ErrMissingSample)
	}
	return y, predictors, nil
}

// TwoSampleRequest covers the two-sample nonparametric tests
// (Mann-Whitney, Wilcoxon signed-rank, sign test).
type TwoSampleRequest struct {
	Data1  []float64 `json:"data1"`
	Data2  []float64 `json:"data2"`
	Group1 []float64 `json:"group1"`
	Group2 []float64 `json:"group2"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`

	Alternative string `json:"alternative" validate:"omitempty,oneof=two-sided less greater"`
}

// Samples resolves the synonym fields into the canonical pair.
func (r *TwoSampleRequest) Samples() (a, b []float64, err error) {
	a = firstOf(r.Data1, r.Group1, r.X)
	b = firstOf(r.Data2, r.Group2, r.Y)
	if a == nil || b == nil {
		return nil, nil, fmt.Errorf("%w: two samples are required (data1/data2, group1/group2, or x/y)", ErrMissingSample)
	}
	return a, b, nil
}

// GroupsRequest covers the k-group nonparametric tests (Kruskal-Wallis).
type GroupsRequest struct {
	Groups [][]float64 `json:"groups"`
	Data   [][]float64 `json:"data"` // synonym for groups
	Labels []string    `json:"labels"`
}

// Resolve returns the canonical group set.
func (r *GroupsRequest) Resolve() ([][]float64, error) {
	groups := r.Groups
	if len(groups) == 0 {
		groups = r.Data
	}
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: groups (or data) must contain at least 2 groups", ErrMissingSample)
	}
	return groups, nil
}

// ChiSquareRequest asks for a chi-square test of independence on a
// contingency table.
type ChiSquareRequest struct {
	Observed [][]int `json:"observed"`
	Table    [][]int `json:"table"` // synonym for observed
	Yates    bool    `json:"yates"`
}

// Resolve returns the canonical contingency table.
func (r *ChiSquareRequest) Resolve() ([][]int, error) {
	table := r.Observed
	if len(table) == 0 {
		table = r.Table
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: observed (or table) is required", ErrMissingSample)
	}
	return table, nil
}

// GoodnessOfFitRequest asks for a chi-square goodness-of-fit test.
// Proportions may be omitted for a uniform null.
type GoodnessOfFitRequest struct {
	Observed    []int     `json:"observed" validate:"required,min=2"`
	Proportions []float64 `json:"proportions"`
	Expected    []float64 `json:"expected"` // synonym for proportions
}

// ResolveProportions returns the null proportions, nil for uniform.
func (r *GoodnessOfFitRequest) ResolveProportions() []float64 {
	if len(r.Proportions) > 0 {
		return r.Proportions
	}
	return r.Expected
}

// FisherRequest asks for a Fisher exact test on a 2x2 table, supplied
// either as a table or as the four cells.
type FisherRequest struct {
	Table       [][]int `json:"table"`
	A           int     `json:"a"`
	B           int     `json:"b"`
	C           int     `json:"c"`
	D           int     `json:"d"`
	Alternative string  `json:"alternative" validate:"omitempty,oneof=two-sided less greater"`
}

// Cells returns the four cells of the 2x2 table.
func (r *FisherRequest) Cells() (a, b, c, d int, err error) {
	if len(r.Table) > 0 {
		if len(r.Table) != 2 || len(r.Table[0]) != 2 || len(r.Table[1]) != 2 {
			return 0, 0, 0, 0, fmt.Errorf("%w: fisher exact requires a 2x2 table", ErrMissingSample)
		}
		return r.Table[0][0], r.Table[0][1], r.Table[1][0], r.Table[1][1], nil
	}
	return r.A, r.B, r.C, r.D, nil
}

// KaplanMeierRequest asks for a Kaplan-Meier survival curve.
type KaplanMeierRequest struct {
	Times  []float64 `json:"times" validate:"required,min=1"`
	Events []bool    `json:"events" validate:"required,min=1"`
}

// SurvivalGroup is one arm of a log-rank comparison.
type SurvivalGroup struct {
	Times  []float64 `json:"times" validate:"required,min=1"`
	Events []bool    `json:"events" validate:"required,min=1"`
}

// LogRankRequest asks for a two-group log-rank test.
type LogRankRequest struct {
	Group1 SurvivalGroup `json:"group1" validate:"required"`
	Group2 SurvivalGroup `json:"group2" validate:"required"`
}

// ControlChartRequest asks for one control chart. The sample fields
// depend on the kind: subgroups for xbar_r, values for imr, defective +
// sample_size for p, counts for c.
type ControlChartRequest struct {
	Kind       string      `json:"kind" validate:"required,oneof=xbar_r imr p c"`
	Subgroups  [][]float64 `json:"subgroups"`
	Values     []float64   `json:"values"`
	Defective  []int       `json:"defective"`
	SampleSize int         `json:"sample_size"`
	Counts     []int       `json:"counts"`
}

// CapabilityRequest asks for a process capability study.
type CapabilityRequest struct {
	Subgroups [][]float64 `json:"subgroups" validate:"required,min=2"`
	LSL       float64     `json:"lsl"`
	USL       float64     `json:"usl"`
}

// GuardianCheckRequest asks for an assumption check against a named test.
type GuardianCheckRequest struct {
	Test   string      `json:"test" validate:"required"`
	Groups [][]float64 `json:"groups"`
	Data   [][]float64 `json:"data"` // synonym for groups
}

// Resolve returns the canonical group set.
func (r *GuardianCheckRequest) Resolve() ([][]float64, error) {
	groups := r.Groups
	if len(groups) == 0 {
		groups = r.Data
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: groups (or data) is required", ErrMissingSample)
	}
	return groups, nil
}

// WorkflowAdvanceRequest moves a workflow session to a step and updates
// its flags. Nil flags are left untouched.
type WorkflowAdvanceRequest struct {
	Step           string  `json:"step" validate:"required"`
	HasData        *bool   `json:"has_data"`
	GuardianPassed *bool   `json:"guardian_passed"`
	TestSelected   *string `json:"test_selected"`
}

// OperationSubmitRequest enqueues an async analysis job. The payload is
// the request body of the corresponding synchronous endpoint.
type OperationSubmitRequest struct {
	Kind    string          `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}
