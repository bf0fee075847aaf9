// Package sqc implements statistical quality control: Shewhart control
// charts (X-bar/R, I-MR, p, c), Western Electric run rules and process
// capability indices.
package sqc

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned for data a chart cannot be built from.
var ErrInvalidInput = errors.New("sqc: invalid input")

// chartConstants holds the Shewhart constants for one subgroup size.
type chartConstants struct {
	A2 float64
	D3 float64
	D4 float64
	D2 float64 // d2, bias correction for the range
}

// constants for subgroup sizes 2 through 10, the standard tables.
var constants = map[int]chartConstants{
	2:  {A2: 1.880, D3: 0, D4: 3.267, D2: 1.128},
	3:  {A2: 1.023, D3: 0, D4: 2.574, D2: 1.693},
	4:  {A2: 0.729, D3: 0, D4: 2.282, D2: 2.059},
	5:  {A2: 0.577, D3: 0, D4: 2.114, D2: 2.326},
	6:  {A2: 0.483, D3: 0, D4: 2.004, D2: 2.534},
	7:  {A2: 0.419, D3: 0.076, D4: 1.924, D2: 2.704},
	8:  {A2: 0.373, D3: 0.136, D4: 1.864, D2: 2.847},
	9:  {A2: 0.337, D3: 0.184, D4: 1.816, D2: 2.970},
	10: {A2: 0.308, D3: 0.223, D4: 1.777, D2: 3.078},
}

// e2 is the individuals-chart constant 3/d2 for moving ranges of span 2.
const e2 = 3.0 / 1.128

// Point is one plotted value with any run-rule violations attached.
type Point struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	// Violations lists the Western Electric rule numbers this point
	// triggers, empty when in control.
	Violations []int `json:"violations,omitempty"`
}

// Chart is a single control chart with its limits and flagged points.
type Chart struct {
	Kind   string  `json:"kind"`
	Center float64 `json:"center"`
	UCL    float64 `json:"ucl"`
	LCL    float64 `json:"lcl"`
	Points []Point `json:"points"`
	// OutOfControl lists indices of points with at least one violation.
	OutOfControl []int `json:"out_of_control,omitempty"`
}

// InControl reports whether no point violates any applied rule.
func (c *Chart) InControl() bool {
	return len(c.OutOfControl) == 0
}

// XBarRResult pairs the X-bar chart with its companion R chart.
type XBarRResult struct {
	XBar         Chart   `json:"xbar"`
	R            Chart   `json:"r"`
	SubgroupSize int     `json:"subgroup_size"`
	SigmaWithin  float64 `json:"sigma_within"` // R-bar / d2
}

// XBarR builds X-bar and R charts from rational subgroups of equal size
// 2 through 10. The full Western Electric rule set runs on the X-bar
// chart; the R chart is checked against its control limits only.
func XBarR(subgroups [][]float64) (*XBarRResult, error) {
	if len(subgroups) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 subgroups, got %d", ErrInvalidInput, len(subgroups))
	}
	size := len(subgroups[0])
	cc, ok := constants[size]
	if !ok {
		return nil, fmt.Errorf("%w: subgroup size %d outside the 2-10 table", ErrInvalidInput, size)
	}

	means := make([]float64, len(subgroups))
	ranges := make([]float64, len(subgroups))
	for i, g := range subgroups {
		if len(g) != size {
			return nil, fmt.Errorf("%w: subgroup %d has size %d, expected %d", ErrInvalidInput, i, len(g), size)
		}
		lo, hi := g[0], g[0]
		var sum float64
		for _, v := range g {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value in subgroup %d", ErrInvalidInput, i)
			}
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		means[i] = sum / float64(size)
		ranges[i] = hi - lo
	}

	grand := meanOf(means)
	rBar := meanOf(ranges)

	xbar := Chart{
		Kind:   "xbar",
		Center: grand,
		UCL:    grand + cc.A2*rBar,
		LCL:    grand - cc.A2*rBar,
	}
	applyRules(&xbar, means, allRules)

	r := Chart{
		Kind:   "r",
		Center: rBar,
		UCL:    cc.D4 * rBar,
		LCL:    cc.D3 * rBar,
	}
	applyRules(&r, ranges, limitRuleOnly)

	return &XBarRResult{
		XBar:         xbar,
		R:            r,
		SubgroupSize: size,
		SigmaWithin:  rBar / cc.D2,
	}, nil
}

// IMRResult pairs the individuals chart with its moving-range chart.
type IMRResult struct {
	Individuals Chart   `json:"individuals"`
	MovingRange Chart   `json:"moving_range"`
	SigmaWithin float64 `json:"sigma_within"` // MR-bar / 1.128
}

// IMR builds an individuals / moving-range chart pair for data without
// rational subgroups. Moving ranges have span 2; the first observation
// carries no range point.
func IMR(values []float64) (*IMRResult, error) {
	if len(values) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 observations, got %d", ErrInvalidInput, len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value at index %d", ErrInvalidInput, i)
		}
	}

	mrs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		mrs[i-1] = math.Abs(values[i] - values[i-1])
	}
	mrBar := meanOf(mrs)
	center := meanOf(values)

	ind := Chart{
		Kind:   "individuals",
		Center: center,
		UCL:    center + e2*mrBar,
		LCL:    center - e2*mrBar,
	}
	applyRules(&ind, values, allRules)

	mr := Chart{
		Kind:   "moving_range",
		Center: mrBar,
		UCL:    3.267 * mrBar, // D4 for n=2
		LCL:    0,
	}
	applyRules(&mr, mrs, limitRuleOnly)

	return &IMRResult{
		Individuals: ind,
		MovingRange: mr,
		SigmaWithin: mrBar / 1.128,
	}, nil
}

// PChart builds a fraction-defective chart for samples of constant size.
func PChart(defective []int, sampleSize int) (*Chart, error) {
	if len(defective) < 2 || sampleSize < 1 {
		return nil, ErrInvalidInput
	}
	props := make([]float64, len(defective))
	var total int
	for i, d := range defective {
		if d < 0 || d > sampleSize {
			return nil, fmt.Errorf("%w: defective count %d outside sample size %d", ErrInvalidInput, d, sampleSize)
		}
		total += d
		props[i] = float64(d) / float64(sampleSize)
	}
	pBar := float64(total) / float64(len(defective)*sampleSize)
	if pBar == 0 || pBar == 1 {
		return nil, fmt.Errorf("%w: degenerate defect rate %.0f", ErrInvalidInput, pBar)
	}

	spread := 3 * math.Sqrt(pBar*(1-pBar)/float64(sampleSize))
	chart := &Chart{
		Kind:   "p",
		Center: pBar,
		UCL:    math.Min(1, pBar+spread),
		LCL:    math.Max(0, pBar-spread),
	}
	applyRules(chart, props, limitRuleOnly)
	return chart, nil
}

// CChart builds a defects-per-unit chart for count data.
func CChart(counts []int) (*Chart, error) {
	if len(counts) < 2 {
		return nil, ErrInvalidInput
	}
	vals := make([]float64, len(counts))
	var total int
	for i, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("%w: negative count at index %d", ErrInvalidInput, i)
		}
		total += c
		vals[i] = float64(c)
	}
	cBar := float64(total) / float64(len(counts))
	if cBar == 0 {
		return nil, fmt.Errorf("%w: all counts are zero", ErrInvalidInput)
	}

	chart := &Chart{
		Kind:   "c",
		Center: cBar,
		UCL:    cBar + 3*math.Sqrt(cBar),
		LCL:    math.Max(0, cBar-3*math.Sqrt(cBar)),
	}
	applyRules(chart, vals, limitRuleOnly)
	return chart, nil
}

func meanOf(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}
