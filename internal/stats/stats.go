// Package stats implements the statistical engine behind the REST surface:
// descriptive statistics, t-tests, one-way ANOVA, correlation, ordinary
// least squares regression, the rank-based nonparametric tests, and the
// categorical tests. Every p-value comes from internal/stats/dist; the
// high-precision variants route through internal/highprec.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidInput marks errors caused by unusable caller data (too few
// observations, mismatched lengths, constant series where variation is
// required). The transport layer maps it to HTTP 400.
var ErrInvalidInput = errors.New("invalid input")

// invalidf wraps ErrInvalidInput with a formatted message.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Alternative selects the tail of a hypothesis test.
type Alternative string

const (
	TwoSided Alternative = "two-sided"
	Less     Alternative = "less"
	Greater  Alternative = "greater"
)

// Valid reports whether the alternative is one of the supported tails.
func (a Alternative) Valid() bool {
	switch a {
	case TwoSided, Less, Greater, "":
		return true
	}
	return false
}

// orTwoSided resolves the empty alternative to the default.
func (a Alternative) orTwoSided() Alternative {
	if a == "" {
		return TwoSided
	}
	return a
}

// checkFinite rejects NaN and infinite observations up front so they cannot
// poison downstream sums.
func checkFinite(name string, data []float64) error {
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidf("%s contains non-finite value at index %d", name, i)
		}
	}
	return nil
}

// mean returns the arithmetic mean. Caller guarantees len > 0.
func mean(data []float64) float64 {
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// sampleVariance returns the n-1 variance. Caller guarantees len > 1.
func sampleVariance(data []float64) float64 {
	m := mean(data)
	ss := 0.0
	for _, v := range data {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(data)-1)
}

// percentile returns the p-th percentile (0..100) using linear
// interpolation between closest ranks, matching the engine's quartiles.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// sortedCopy returns an ascending copy of data.
func sortedCopy(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	sort.Float64s(out)
	return out
}

// rankData assigns midranks to the values (average rank for ties) and
// returns the ranks alongside the tie-group sizes needed for tie
// corrections in the rank tests.
func rankData(data []float64) (ranks []float64, tieSizes []int) {
	n := len(data)
	ranks = make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return data[idx[a]] < data[idx[b]] })

	i := 0
	for i < n {
		j := i
		for j+1 < n && data[idx[j+1]] == data[idx[i]] {
			j++
		}
		// Midrank for the tie group [i, j].
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		if j > i {
			tieSizes = append(tieSizes, j-i+1)
		}
		i = j + 1
	}
	return ranks, tieSizes
}
