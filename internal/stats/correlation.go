package stats

import (
	"math"

	"stickforstats/internal/highprec"
	"stickforstats/internal/stats/dist"
)

// CorrelationMethod selects the correlation coefficient.
type CorrelationMethod string

const (
	Pearson  CorrelationMethod = "pearson"
	Spearman CorrelationMethod = "spearman"
	Kendall  CorrelationMethod = "kendall"
)

// CorrelationResult is the outcome of a correlation test.
type CorrelationResult struct {
	Method    CorrelationMethod `json:"method"`
	N         int               `json:"n"`
	R         float64           `json:"r"`
	T         float64           `json:"t,omitempty"` // pearson/spearman statistic
	Z         float64           `json:"z,omitempty"` // kendall normal approximation
	DF        float64           `json:"df,omitempty"`
	P         float64           `json:"p"`
	RHighPrec string            `json:"r_high_precision,omitempty"`
}

// CorrelationOptions carries optional settings.
type CorrelationOptions struct {
	Method        CorrelationMethod // default pearson
	HighPrecision bool              // attach 50-digit r (pearson only)
}

// Correlate computes the requested correlation between x and y with its
// two-sided p-value.
func Correlate(x, y []float64, opts CorrelationOptions) (*CorrelationResult, error) {
	if len(x) != len(y) {
		return nil, invalidf("correlation requires equal lengths, got %d and %d", len(x), len(y))
	}
	if len(x) < 3 {
		return nil, invalidf("correlation requires at least 3 pairs, got %d", len(x))
	}
	if err := checkFinite("x", x); err != nil {
		return nil, err
	}
	if err := checkFinite("y", y); err != nil {
		return nil, err
	}

	method := opts.Method
	if method == "" {
		method = Pearson
	}

	switch method {
	case Pearson:
		return pearsonCorrelation(x, y, opts.HighPrecision)
	case Spearman:
		rx, _ := rankData(x)
		ry, _ := rankData(y)
		res, err := pearsonCorrelation(rx, ry, false)
		if err != nil {
			return nil, err
		}
		res.Method = Spearman
		return res, nil
	case Kendall:
		return kendallTauB(x, y)
	default:
		return nil, invalidf("unknown correlation method %q", method)
	}
}

func pearsonCorrelation(x, y []float64, highPrecision bool) (*CorrelationResult, error) {
	n := float64(len(x))
	mx, my := mean(x), mean(y)

	var sxy, sxx, syy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return nil, invalidf("correlation undefined for constant series")
	}

	r := sxy / math.Sqrt(sxx*syy)
	// Guard against floating point spill past +/-1.
	r = math.Max(-1, math.Min(1, r))

	res := &CorrelationResult{
		Method: Pearson,
		N:      len(x),
		R:      r,
		DF:     n - 2,
	}

	if math.Abs(r) == 1 {
		res.T = math.Inf(int(math.Copysign(1, r)))
		res.P = 0
	} else {
		res.T = r * math.Sqrt((n-2)/(1-r*r))
		res.P = dist.StudentTTwoSided(res.T, n-2)
	}

	if highPrecision {
		calc := highprec.NewCalculator(highprec.DefaultPrecision)
		if hpR, err := calc.PearsonR(highprec.FromFloats(x), highprec.FromFloats(y)); err == nil {
			res.RHighPrec = calc.String(hpR)
		}
	}

	return res, nil
}

// kendallTauB computes Kendall's tau-b with the normal approximation
// p-value, including tie corrections in the variance.
func kendallTauB(x, y []float64) (*CorrelationResult, error) {
	n := len(x)

	var concordant, discordant float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := x[j] - x[i]
			dy := y[j] - y[i]
			s := dx * dy
			if s > 0 {
				concordant++
			} else if s < 0 {
				discordant++
			}
		}
	}

	_, tiesX := rankData(x)
	_, tiesY := rankData(y)

	n0 := float64(n*(n-1)) / 2
	n1 := tiePairSum(tiesX)
	n2 := tiePairSum(tiesY)

	den := math.Sqrt((n0 - n1) * (n0 - n2))
	if den == 0 {
		return nil, invalidf("kendall tau undefined for constant series")
	}
	tau := (concordant - discordant) / den

	// Normal approximation under H0 (no-tie variance; adequate for the
	// modest tie counts the API sees).
	nf := float64(n)
	v := nf * (nf - 1) * (2*nf + 5) / 18
	z := (concordant - discordant) / math.Sqrt(v)
	p := 2 * dist.NormalSF(math.Abs(z))
	if p > 1 {
		p = 1
	}

	return &CorrelationResult{
		Method: Kendall,
		N:      n,
		R:      tau,
		Z:      z,
		P:      p,
	}, nil
}

// tiePairSum computes sum over tie groups of t*(t-1)/2.
func tiePairSum(tieSizes []int) float64 {
	s := 0.0
	for _, t := range tieSizes {
		s += float64(t*(t-1)) / 2
	}
	return s
}
