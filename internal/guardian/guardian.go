// Package guardian validates statistical assumptions before a test runs.
//
// Each analysis handler asks the Checker for a Report covering the
// assumptions of the requested test. The report carries per-check results,
// severities and alternative-test recommendations; in strict mode a report
// with critical failures blocks execution of the parametric test.
package guardian

import (
	"fmt"
	"math"
	"sort"

	"stickforstats/internal/stats/dist"
)

// Check names as they appear in reports and audit records.
const (
	CheckNormality    = "normality"
	CheckOutliers     = "outliers"
	CheckHomogeneity  = "homogeneity"
	CheckSampleSize   = "sample_size"
	CheckIndependence = "independence"
)

// Status classifies a single check outcome.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
)

// Severity ranks how much a failed check undermines the requested test.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Result is the outcome of one assumption check.
type Result struct {
	Name     string             `json:"name"`
	Status   Status             `json:"status"`
	Severity Severity           `json:"severity"`
	Message  string             `json:"message"`
	Group    int                `json:"group,omitempty"`
	Details  map[string]float64 `json:"details,omitempty"`
}

// Checker runs assumption checks with configurable thresholds.
type Checker struct {
	// Alpha is the significance level for normality and homogeneity tests.
	Alpha float64
	// MinSample is the smallest group size considered adequate for
	// parametric tests.
	MinSample int
	// OutlierZ is the z-score fence for extreme outliers.
	OutlierZ float64
	// IQRFence is the multiplier on the interquartile range.
	IQRFence float64
}

// NewChecker returns a Checker with the conventional thresholds
// (alpha 0.05, minimum n of 8, z fence 3, IQR fence 1.5).
func NewChecker() *Checker {
	return &Checker{
		Alpha:     0.05,
		MinSample: 8,
		OutlierZ:  3.0,
		IQRFence:  1.5,
	}
}

// Normality tests a sample against the normal shape using the Jarque-Bera
// statistic on population skewness and excess kurtosis. Samples below the
// minimum size get a warning instead of a verdict, the asymptotic
// chi-square approximation is unreliable there.
func (c *Checker) Normality(data []float64) Result {
	n := len(data)
	if n < 3 {
		return Result{
			Name:     CheckNormality,
			Status:   StatusFail,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("need at least 3 observations, got %d", n),
		}
	}

	skew, kurt := momentShape(data)
	jb := float64(n) / 6.0 * (skew*skew + kurt*kurt/4.0)
	p := dist.ChiSquareSF(jb, 2)

	details := map[string]float64{
		"skewness":    skew,
		"kurtosis":    kurt,
		"jarque_bera": jb,
		"p_value":     p,
	}

	if n < c.MinSample {
		return Result{
			Name:     CheckNormality,
			Status:   StatusWarning,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("sample of %d is too small for a reliable normality test", n),
			Details:  details,
		}
	}
	if p < c.Alpha {
		return Result{
			Name:     CheckNormality,
			Status:   StatusFail,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Jarque-Bera rejects normality (JB=%.4f, p=%.4g)", jb, p),
			Details:  details,
		}
	}
	return Result{
		Name:     CheckNormality,
		Status:   StatusPass,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("no evidence against normality (JB=%.4f, p=%.4g)", jb, p),
		Details:  details,
	}
}

// Outliers flags observations outside the IQR fences or beyond the z-score
// threshold. Outliers are a warning, not a hard failure: they degrade
// parametric tests but do not invalidate them outright.
func (c *Checker) Outliers(data []float64) Result {
	n := len(data)
	if n < 4 {
		return Result{
			Name:     CheckOutliers,
			Status:   StatusWarning,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("sample of %d is too small for outlier detection", n),
		}
	}

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lo := q1 - c.IQRFence*iqr
	hi := q3 + c.IQRFence*iqr

	m := mean(data)
	sd := math.Sqrt(sampleVariance(data, m))

	iqrCount, zCount := 0, 0
	for _, v := range data {
		if v < lo || v > hi {
			iqrCount++
		}
		if sd > 0 && math.Abs(v-m)/sd > c.OutlierZ {
			zCount++
		}
	}

	details := map[string]float64{
		"iqr_outliers": float64(iqrCount),
		"z_outliers":   float64(zCount),
		"lower_fence":  lo,
		"upper_fence":  hi,
	}
	if iqrCount == 0 && zCount == 0 {
		return Result{
			Name:     CheckOutliers,
			Status:   StatusPass,
			Severity: SeverityInfo,
			Message:  "no outliers detected",
			Details:  details,
		}
	}
	return Result{
		Name:     CheckOutliers,
		Status:   StatusWarning,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%d observation(s) outside the %.1fx IQR fences", iqrCount, c.IQRFence),
		Details:  details,
	}
}

// Homogeneity runs the Brown-Forsythe test: a one-way ANOVA on absolute
// deviations from the group medians. Robust to non-normal groups, unlike
// the classic Levene variant on means.
func (c *Checker) Homogeneity(groups [][]float64) Result {
	if len(groups) < 2 {
		return Result{
			Name:     CheckHomogeneity,
			Status:   StatusWarning,
			Severity: SeverityInfo,
			Message:  "homogeneity requires at least two groups",
		}
	}
	for i, g := range groups {
		if len(g) < 2 {
			return Result{
				Name:     CheckHomogeneity,
				Status:   StatusWarning,
				Severity: SeverityWarning,
				Group:    i + 1,
				Message:  fmt.Sprintf("group %d has fewer than 2 observations", i+1),
			}
		}
	}

	deviations := make([][]float64, len(groups))
	for i, g := range groups {
		med := median(g)
		d := make([]float64, len(g))
		for j, v := range g {
			d[j] = math.Abs(v - med)
		}
		deviations[i] = d
	}

	f, df1, df2, ok := anovaF(deviations)
	if !ok {
		// All deviations identical: variances are exactly equal.
		return Result{
			Name:     CheckHomogeneity,
			Status:   StatusPass,
			Severity: SeverityInfo,
			Message:  "group spreads are indistinguishable",
		}
	}
	p := dist.FSF(f, df1, df2)

	details := map[string]float64{
		"f_statistic": f,
		"df1":         df1,
		"df2":         df2,
		"p_value":     p,
	}
	if p < c.Alpha {
		return Result{
			Name:     CheckHomogeneity,
			Status:   StatusFail,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Brown-Forsythe rejects equal variances (F=%.4f, p=%.4g)", f, p),
			Details:  details,
		}
	}
	return Result{
		Name:     CheckHomogeneity,
		Status:   StatusPass,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("no evidence against equal variances (F=%.4f, p=%.4g)", f, p),
		Details:  details,
	}
}

// SampleSize checks each group against the minimum adequate size.
func (c *Checker) SampleSize(groups [][]float64) Result {
	smallest := math.MaxInt
	for _, g := range groups {
		if len(g) < smallest {
			smallest = len(g)
		}
	}
	details := map[string]float64{
		"smallest_group": float64(smallest),
		"minimum":        float64(c.MinSample),
	}
	if smallest < c.MinSample {
		return Result{
			Name:     CheckSampleSize,
			Status:   StatusWarning,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("smallest group has %d observations, below the recommended %d", smallest, c.MinSample),
			Details:  details,
		}
	}
	return Result{
		Name:     CheckSampleSize,
		Status:   StatusPass,
		Severity: SeverityInfo,
		Message:  "all groups meet the minimum sample size",
		Details:  details,
	}
}

// Independence is a heuristic: the lag-1 autocorrelation of the sample in
// its given order, compared against the 2/sqrt(n) rule of thumb. It only
// catches serial structure in the submission order, but that is the most
// common violation in practice.
func (c *Checker) Independence(data []float64) Result {
	n := len(data)
	if n < 4 {
		return Result{
			Name:     CheckIndependence,
			Status:   StatusWarning,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("sample of %d is too small for an autocorrelation check", n),
		}
	}

	m := mean(data)
	var num, den float64
	for i := 0; i < n; i++ {
		d := data[i] - m
		den += d * d
		if i > 0 {
			num += (data[i-1] - m) * d
		}
	}
	if den == 0 {
		return Result{
			Name:     CheckIndependence,
			Status:   StatusWarning,
			Severity: SeverityInfo,
			Message:  "constant sample, autocorrelation undefined",
		}
	}
	r1 := num / den
	bound := 2.0 / math.Sqrt(float64(n))

	details := map[string]float64{
		"lag1_autocorrelation": r1,
		"bound":                bound,
	}
	if math.Abs(r1) > bound {
		return Result{
			Name:     CheckIndependence,
			Status:   StatusWarning,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("lag-1 autocorrelation %.3f exceeds %.3f, observations may not be independent", r1, bound),
			Details:  details,
		}
	}
	return Result{
		Name:     CheckIndependence,
		Status:   StatusPass,
		Severity: SeverityInfo,
		Message:  "no serial correlation detected",
		Details:  details,
	}
}

// momentShape returns population skewness and excess kurtosis, the moments
// the Jarque-Bera statistic is defined on.
func momentShape(data []float64) (skew, kurt float64) {
	n := float64(len(data))
	m := mean(data)
	var m2, m3, m4 float64
	for _, v := range data {
		d := v - m
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 == 0 {
		return 0, 0
	}
	skew = m3 / math.Pow(m2, 1.5)
	kurt = m4/(m2*m2) - 3.0
	return skew, kurt
}

func mean(data []float64) float64 {
	var s float64
	for _, v := range data {
		s += v
	}
	return s / float64(len(data))
}

func sampleVariance(data []float64, m float64) float64 {
	if len(data) < 2 {
		return 0
	}
	var ss float64
	for _, v := range data {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(data)-1)
}

func median(data []float64) float64 {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	return quantile(sorted, 0.5)
}

// quantile interpolates linearly on sorted data (type 7, the R default).
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// anovaF computes the one-way F statistic across groups. ok is false when
// the within-group sum of squares is zero.
func anovaF(groups [][]float64) (f, df1, df2 float64, ok bool) {
	var totalN int
	var grandSum float64
	for _, g := range groups {
		totalN += len(g)
		for _, v := range g {
			grandSum += v
		}
	}
	grand := grandSum / float64(totalN)

	var ssb, ssw float64
	for _, g := range groups {
		gm := mean(g)
		ssb += float64(len(g)) * (gm - grand) * (gm - grand)
		for _, v := range g {
			ssw += (v - gm) * (v - gm)
		}
	}
	df1 = float64(len(groups) - 1)
	df2 = float64(totalN - len(groups))
	if ssw == 0 || df2 <= 0 {
		return 0, df1, df2, false
	}
	return (ssb / df1) / (ssw / df2), df1, df2, true
}
