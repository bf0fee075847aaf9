// Package highprec provides the high-precision calculation layer used by
// the statistical engine and the audit trail. All arithmetic runs on
// github.com/shopspring/decimal at a configurable digit precision
// (50 digits by default) so that summary statistics survive round-tripping
// through persistence as exact strings rather than binary floats.
package highprec

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of significant decimal digits carried by
// the calculator. It matches the precision the audit store persists.
const DefaultPrecision = 50

// Calculator performs descriptive statistics in fixed-point decimal
// arithmetic. The zero value is not usable; construct with NewCalculator.
type Calculator struct {
	precision int32
}

// NewCalculator returns a calculator carrying the given number of decimal
// digits. Non-positive precision falls back to DefaultPrecision.
func NewCalculator(precision int32) *Calculator {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &Calculator{precision: precision}
}

// Precision reports the configured digit precision.
func (c *Calculator) Precision() int32 { return c.precision }

// FromFloats converts a float64 slice into decimals without loss beyond the
// inputs' own binary representation.
func FromFloats(data []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(data))
	for i, v := range data {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

// Sum returns the exact sum of the input values.
func (c *Calculator) Sum(data []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range data {
		sum = sum.Add(v)
	}
	return sum
}

// Mean returns the arithmetic mean at the configured precision.
func (c *Calculator) Mean(data []decimal.Decimal) (decimal.Decimal, error) {
	if len(data) == 0 {
		return decimal.Zero, fmt.Errorf("mean of empty data")
	}
	n := decimal.NewFromInt(int64(len(data)))
	return c.Sum(data).DivRound(n, c.precision), nil
}

// Variance returns the sample variance (divisor n-1). Population variance
// uses divisor n.
func (c *Calculator) Variance(data []decimal.Decimal, population bool) (decimal.Decimal, error) {
	n := len(data)
	if n < 2 && !population {
		return decimal.Zero, fmt.Errorf("sample variance requires at least 2 values, got %d", n)
	}
	if n == 0 {
		return decimal.Zero, fmt.Errorf("variance of empty data")
	}

	mean, err := c.Mean(data)
	if err != nil {
		return decimal.Zero, err
	}

	ss := decimal.Zero
	for _, v := range data {
		d := v.Sub(mean)
		ss = ss.Add(d.Mul(d))
	}

	div := int64(n - 1)
	if population {
		div = int64(n)
	}
	return ss.DivRound(decimal.NewFromInt(div), c.precision), nil
}

// StdDev returns the sample (or population) standard deviation.
func (c *Calculator) StdDev(data []decimal.Decimal, population bool) (decimal.Decimal, error) {
	v, err := c.Variance(data, population)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Sqrt(v)
}

// StandardError returns the standard error of the mean, s / sqrt(n).
func (c *Calculator) StandardError(data []decimal.Decimal) (decimal.Decimal, error) {
	if len(data) < 2 {
		return decimal.Zero, fmt.Errorf("standard error requires at least 2 values, got %d", len(data))
	}
	sd, err := c.StdDev(data, false)
	if err != nil {
		return decimal.Zero, err
	}
	sqrtN, err := c.Sqrt(decimal.NewFromInt(int64(len(data))))
	if err != nil {
		return decimal.Zero, err
	}
	return sd.DivRound(sqrtN, c.precision), nil
}

// Covariance returns the sample covariance of two equal-length series.
func (c *Calculator) Covariance(x, y []decimal.Decimal) (decimal.Decimal, error) {
	if len(x) != len(y) {
		return decimal.Zero, fmt.Errorf("covariance requires equal lengths, got %d and %d", len(x), len(y))
	}
	if len(x) < 2 {
		return decimal.Zero, fmt.Errorf("covariance requires at least 2 pairs, got %d", len(x))
	}

	mx, err := c.Mean(x)
	if err != nil {
		return decimal.Zero, err
	}
	my, err := c.Mean(y)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for i := range x {
		sum = sum.Add(x[i].Sub(mx).Mul(y[i].Sub(my)))
	}
	return sum.DivRound(decimal.NewFromInt(int64(len(x)-1)), c.precision), nil
}

// PearsonR returns the Pearson correlation coefficient in decimal precision.
func (c *Calculator) PearsonR(x, y []decimal.Decimal) (decimal.Decimal, error) {
	cov, err := c.Covariance(x, y)
	if err != nil {
		return decimal.Zero, err
	}
	sx, err := c.StdDev(x, false)
	if err != nil {
		return decimal.Zero, err
	}
	sy, err := c.StdDev(y, false)
	if err != nil {
		return decimal.Zero, err
	}
	if sx.IsZero() || sy.IsZero() {
		return decimal.Zero, fmt.Errorf("correlation undefined for constant series")
	}
	return cov.DivRound(sx.Mul(sy), c.precision), nil
}

// TStatOneSample returns the one-sample t statistic (mean - mu) / SEM.
func (c *Calculator) TStatOneSample(data []decimal.Decimal, mu decimal.Decimal) (decimal.Decimal, error) {
	mean, err := c.Mean(data)
	if err != nil {
		return decimal.Zero, err
	}
	sem, err := c.StandardError(data)
	if err != nil {
		return decimal.Zero, err
	}
	if sem.IsZero() {
		return decimal.Zero, fmt.Errorf("t statistic undefined: zero standard error")
	}
	return mean.Sub(mu).DivRound(sem, c.precision), nil
}

// Sqrt computes the square root by Newton-Raphson iteration carried at the
// calculator's precision. Decimal has no native root operation.
func (c *Calculator) Sqrt(v decimal.Decimal) (decimal.Decimal, error) {
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("square root of negative value %s", v.String())
	}
	if v.IsZero() {
		return decimal.Zero, nil
	}

	// Seed from the float64 approximation, then refine. Each Newton step
	// roughly doubles the correct digit count, so iterating to a fixed
	// bound well past precision/2 doublings is sufficient.
	f, _ := v.Float64()
	guess := decimal.NewFromFloat(sqrtSeed(f))
	if guess.IsZero() {
		guess = decimal.New(1, 0)
	}

	two := decimal.NewFromInt(2)
	prev := decimal.Zero
	for i := 0; i < 200; i++ {
		next := guess.Add(v.DivRound(guess, c.precision+2)).DivRound(two, c.precision+2)
		if next.Equal(guess) || next.Equal(prev) {
			guess = next
			break
		}
		prev = guess
		guess = next
	}
	return guess.Round(c.precision), nil
}

func sqrtSeed(f float64) float64 {
	if f <= 0 {
		return 1
	}
	// math.Sqrt via a dependency-free bit trick is unnecessary; the float
	// approximation only seeds the decimal iteration.
	x := f
	for i := 0; i < 32; i++ {
		x = (x + f/x) / 2
	}
	return x
}

// String renders a decimal value preserving the calculator precision, the
// form the audit store persists.
func (c *Calculator) String(v decimal.Decimal) string {
	return v.Round(c.precision).String()
}
