package stats

import (
	"math"

	"github.com/shopspring/decimal"

	"stickforstats/internal/highprec"
	"stickforstats/internal/stats/dist"
)

// TTestKind selects the flavour of t-test.
type TTestKind string

const (
	OneSampleT TTestKind = "one-sample"
	TwoSampleT TTestKind = "two-sample" // Student, pooled variance
	WelchT     TTestKind = "welch"
	PairedT    TTestKind = "paired"
)

// TTestResult is the outcome of any t-test variant.
type TTestResult struct {
	Kind        TTestKind   `json:"kind"`
	Alternative Alternative `json:"alternative"`
	N1          int         `json:"n1"`
	N2          int         `json:"n2,omitempty"`
	Mean1       float64     `json:"mean1"`
	Mean2       float64     `json:"mean2,omitempty"`
	MeanDiff    float64     `json:"mean_diff"`
	T           float64     `json:"t"`
	DF          float64     `json:"df"`
	P           float64     `json:"p"`
	CohensD     float64     `json:"cohens_d"`
	CILevel     float64     `json:"ci_level"`
	CILower     float64     `json:"ci_lower"`
	CIUpper     float64     `json:"ci_upper"`
	THighPrec   string      `json:"t_high_precision,omitempty"`
}

// TTestOptions carries shared test parameters.
type TTestOptions struct {
	Mu              float64     // hypothesized mean (one-sample only)
	Alternative     Alternative // default two-sided
	ConfidenceLevel float64     // default 0.95
	HighPrecision   bool        // attach 50-digit t statistic (one-sample)
}

// OneSampleTTest tests H0: mean(data) == mu.
func OneSampleTTest(data []float64, opts TTestOptions) (*TTestResult, error) {
	if len(data) < 2 {
		return nil, invalidf("one-sample t-test requires at least 2 observations, got %d", len(data))
	}
	if err := checkFinite("data", data); err != nil {
		return nil, err
	}
	if !opts.Alternative.Valid() {
		return nil, invalidf("unknown alternative %q", opts.Alternative)
	}

	n := float64(len(data))
	m := mean(data)
	v := sampleVariance(data)
	if v == 0 {
		return nil, invalidf("one-sample t-test undefined for constant data")
	}
	sd := math.Sqrt(v)
	sem := sd / math.Sqrt(n)

	t := (m - opts.Mu) / sem
	df := n - 1

	res := &TTestResult{
		Kind:        OneSampleT,
		Alternative: opts.Alternative.orTwoSided(),
		N1:          len(data),
		Mean1:       m,
		MeanDiff:    m - opts.Mu,
		T:           t,
		DF:          df,
		P:           pValue(t, df, opts.Alternative),
		CohensD:     (m - opts.Mu) / sd,
	}
	res.CILevel, res.CILower, res.CIUpper = tConfidenceInterval(m-opts.Mu, sem, df, opts.ConfidenceLevel)

	if opts.HighPrecision {
		calc := highprec.NewCalculator(highprec.DefaultPrecision)
		if hpT, err := calc.TStatOneSample(highprec.FromFloats(data), decimal.NewFromFloat(opts.Mu)); err == nil {
			res.THighPrec = calc.String(hpT)
		}
	}

	return res, nil
}

// TwoSampleTTest tests H0: mean(a) == mean(b). welch selects the unequal
// variance form; otherwise the pooled Student form is used.
func TwoSampleTTest(a, b []float64, welch bool, opts TTestOptions) (*TTestResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return nil, invalidf("two-sample t-test requires at least 2 observations per group, got %d and %d", len(a), len(b))
	}
	if err := checkFinite("group1", a); err != nil {
		return nil, err
	}
	if err := checkFinite("group2", b); err != nil {
		return nil, err
	}
	if !opts.Alternative.Valid() {
		return nil, invalidf("unknown alternative %q", opts.Alternative)
	}

	n1, n2 := float64(len(a)), float64(len(b))
	m1, m2 := mean(a), mean(b)
	v1, v2 := sampleVariance(a), sampleVariance(b)
	if v1 == 0 && v2 == 0 {
		return nil, invalidf("two-sample t-test undefined when both groups are constant")
	}

	var t, df, se float64
	kind := TwoSampleT
	if welch {
		kind = WelchT
		se = math.Sqrt(v1/n1 + v2/n2)
		t = (m1 - m2) / se
		// Welch-Satterthwaite degrees of freedom.
		num := (v1/n1 + v2/n2) * (v1/n1 + v2/n2)
		den := (v1/n1)*(v1/n1)/(n1-1) + (v2/n2)*(v2/n2)/(n2-1)
		df = num / den
	} else {
		pooled := ((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2)
		se = math.Sqrt(pooled * (1/n1 + 1/n2))
		t = (m1 - m2) / se
		df = n1 + n2 - 2
	}

	// Pooled standard deviation for the effect size in both forms.
	pooledSD := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))

	res := &TTestResult{
		Kind:        kind,
		Alternative: opts.Alternative.orTwoSided(),
		N1:          len(a),
		N2:          len(b),
		Mean1:       m1,
		Mean2:       m2,
		MeanDiff:    m1 - m2,
		T:           t,
		DF:          df,
		P:           pValue(t, df, opts.Alternative),
	}
	if pooledSD > 0 {
		res.CohensD = (m1 - m2) / pooledSD
	}
	res.CILevel, res.CILower, res.CIUpper = tConfidenceInterval(m1-m2, se, df, opts.ConfidenceLevel)

	return res, nil
}

// PairedTTest tests H0: mean(a - b) == 0 on paired observations.
func PairedTTest(a, b []float64, opts TTestOptions) (*TTestResult, error) {
	if len(a) != len(b) {
		return nil, invalidf("paired t-test requires equal lengths, got %d and %d", len(a), len(b))
	}
	if len(a) < 2 {
		return nil, invalidf("paired t-test requires at least 2 pairs, got %d", len(a))
	}

	diffs := make([]float64, len(a))
	for i := range a {
		diffs[i] = a[i] - b[i]
	}

	res, err := OneSampleTTest(diffs, TTestOptions{
		Alternative:     opts.Alternative,
		ConfidenceLevel: opts.ConfidenceLevel,
		HighPrecision:   opts.HighPrecision,
	})
	if err != nil {
		return nil, err
	}

	res.Kind = PairedT
	res.N1 = len(a)
	res.Mean1 = mean(a)
	res.Mean2 = mean(b)
	res.N2 = len(b)
	return res, nil
}

// pValue maps a t statistic onto the requested tail.
func pValue(t, df float64, alt Alternative) float64 {
	switch alt.orTwoSided() {
	case Less:
		return dist.StudentTCDF(t, df)
	case Greater:
		return 1 - dist.StudentTCDF(t, df)
	default:
		return dist.StudentTTwoSided(t, df)
	}
}

// tConfidenceInterval returns the two-sided CI of the estimate at the given
// level (default 0.95).
func tConfidenceInterval(estimate, se, df, level float64) (lvl, lo, hi float64) {
	if level == 0 {
		level = 0.95
	}
	tcrit := dist.StudentTQuantile(1-(1-level)/2, df)
	return level, estimate - tcrit*se, estimate + tcrit*se
}
