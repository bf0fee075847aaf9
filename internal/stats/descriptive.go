package stats

import (
	"math"

	"github.com/shopspring/decimal"

	"stickforstats/internal/highprec"
	"stickforstats/internal/stats/dist"
)

// DescriptiveResult summarizes a single numeric sample. HighPrecision
// carries the 50-digit renderings of the moment statistics when the caller
// requested them.
type DescriptiveResult struct {
	N             int     `json:"n"`
	Mean          float64 `json:"mean"`
	Median        float64 `json:"median"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Range         float64 `json:"range"`
	Q1            float64 `json:"q1"`
	Q3            float64 `json:"q3"`
	IQR           float64 `json:"iqr"`
	Variance      float64 `json:"variance"`
	StdDev        float64 `json:"std_dev"`
	SEM           float64 `json:"sem"`
	Skewness      float64 `json:"skewness"`
	Kurtosis      float64 `json:"kurtosis"` // excess kurtosis
	CILevel       float64 `json:"ci_level"`
	CILower       float64 `json:"ci_lower"`
	CIUpper       float64 `json:"ci_upper"`
	HighPrecision *HighPrecisionMoments `json:"high_precision,omitempty"`
}

// HighPrecisionMoments holds exact-string renderings of the basic moments.
type HighPrecisionMoments struct {
	Precision int32  `json:"precision"`
	Mean      string `json:"mean"`
	Variance  string `json:"variance"`
	StdDev    string `json:"std_dev"`
	SEM       string `json:"sem"`
}

// DescriptiveOptions controls optional parts of the summary.
type DescriptiveOptions struct {
	ConfidenceLevel float64 // default 0.95
	HighPrecision   bool    // attach 50-digit moment strings
}

// Describe computes the descriptive summary of data.
func Describe(data []float64, opts DescriptiveOptions) (*DescriptiveResult, error) {
	if len(data) == 0 {
		return nil, invalidf("descriptive statistics require at least 1 observation")
	}
	if err := checkFinite("data", data); err != nil {
		return nil, err
	}

	level := opts.ConfidenceLevel
	if level == 0 {
		level = 0.95
	}
	if level <= 0 || level >= 1 {
		return nil, invalidf("confidence level must be in (0, 1), got %v", level)
	}

	n := len(data)
	sorted := sortedCopy(data)
	m := mean(data)

	res := &DescriptiveResult{
		N:       n,
		Mean:    m,
		Median:  percentile(sorted, 50),
		Min:     sorted[0],
		Max:     sorted[n-1],
		Range:   sorted[n-1] - sorted[0],
		Q1:      percentile(sorted, 25),
		Q3:      percentile(sorted, 75),
		CILevel: level,
		CILower: math.NaN(),
		CIUpper: math.NaN(),
	}
	res.IQR = res.Q3 - res.Q1

	if n > 1 {
		res.Variance = sampleVariance(data)
		res.StdDev = math.Sqrt(res.Variance)
		res.SEM = res.StdDev / math.Sqrt(float64(n))

		if res.SEM > 0 {
			tcrit := dist.StudentTQuantile(1-(1-level)/2, float64(n-1))
			res.CILower = m - tcrit*res.SEM
			res.CIUpper = m + tcrit*res.SEM
		} else {
			res.CILower = m
			res.CIUpper = m
		}
	}

	res.Skewness = skewness(data, m, res.StdDev)
	res.Kurtosis = excessKurtosis(data, m, res.StdDev)

	if opts.HighPrecision {
		hp, err := describeHighPrecision(data)
		if err == nil {
			res.HighPrecision = hp
		}
	}

	return res, nil
}

// skewness returns the adjusted Fisher-Pearson sample skewness (g1 with the
// small-sample correction). Zero for n < 3 or constant data.
func skewness(data []float64, m, sd float64) float64 {
	n := float64(len(data))
	if n < 3 || sd == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		d := (v - m) / sd
		sum += d * d * d
	}
	return n / ((n - 1) * (n - 2)) * sum
}

// excessKurtosis returns the sample excess kurtosis with the small-sample
// correction. Zero for n < 4 or constant data.
func excessKurtosis(data []float64, m, sd float64) float64 {
	n := float64(len(data))
	if n < 4 || sd == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		d := (v - m) / sd
		sum += d * d * d * d
	}
	return n*(n+1)/((n-1)*(n-2)*(n-3))*sum - 3*(n-1)*(n-1)/((n-2)*(n-3))
}

func describeHighPrecision(data []float64) (*HighPrecisionMoments, error) {
	calc := highprec.NewCalculator(highprec.DefaultPrecision)
	d := highprec.FromFloats(data)

	hp := &HighPrecisionMoments{Precision: calc.Precision()}

	m, err := calc.Mean(d)
	if err != nil {
		return nil, err
	}
	hp.Mean = calc.String(m)

	if len(data) < 2 {
		hp.Variance = "0"
		hp.StdDev = "0"
		hp.SEM = "0"
		return hp, nil
	}

	v, err := calc.Variance(d, false)
	if err != nil {
		return nil, err
	}
	hp.Variance = calc.String(v)

	sd, err := calc.Sqrt(v)
	if err != nil {
		return nil, err
	}
	hp.StdDev = calc.String(sd)

	sqrtN, err := calc.Sqrt(decimal.NewFromInt(int64(len(data))))
	if err != nil {
		return nil, err
	}
	hp.SEM = calc.String(sd.DivRound(sqrtN, calc.Precision()))

	return hp, nil
}
