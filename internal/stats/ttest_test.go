package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneSampleTTest(t *testing.T) {
	t.Run("mean equals mu gives t=0 p=1", func(t *testing.T) {
		res, err := OneSampleTTest([]float64{1, 2, 3, 4, 5}, TTestOptions{Mu: 3})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, res.T, 1e-12)
		assert.InDelta(t, 1.0, res.P, 1e-9)
		assert.Equal(t, 4.0, res.DF)
		assert.Equal(t, OneSampleT, res.Kind)
	})

	t.Run("known fixture", func(t *testing.T) {
		// {2,4,6,8} vs mu=3: t = 1.5491933, df = 3, p = 0.2191020.
		res, err := OneSampleTTest([]float64{2, 4, 6, 8}, TTestOptions{Mu: 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.5491933384829668, res.T, 1e-10)
		assert.InDelta(t, 0.2191020371425709, res.P, 1e-7)
		assert.InDelta(t, 2.0, res.MeanDiff, 1e-12)
	})

	t.Run("one-sided tails are complementary", func(t *testing.T) {
		data := []float64{2, 4, 6, 8}
		greater, err := OneSampleTTest(data, TTestOptions{Mu: 3, Alternative: Greater})
		require.NoError(t, err)
		less, err := OneSampleTTest(data, TTestOptions{Mu: 3, Alternative: Less})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, greater.P+less.P, 1e-9)
		assert.Less(t, greater.P, less.P) // observed mean above mu
	})

	t.Run("confidence interval brackets the difference", func(t *testing.T) {
		res, err := OneSampleTTest([]float64{2, 4, 6, 8}, TTestOptions{Mu: 3})
		require.NoError(t, err)
		assert.Less(t, res.CILower, res.MeanDiff)
		assert.Greater(t, res.CIUpper, res.MeanDiff)
	})

	t.Run("high precision t statistic", func(t *testing.T) {
		res, err := OneSampleTTest([]float64{2, 4, 6, 8}, TTestOptions{Mu: 3, HighPrecision: true})
		require.NoError(t, err)
		require.NotEmpty(t, res.THighPrec)
		// The float64 statistic must agree with the decimal rendering.
		assert.Equal(t, byte('1'), res.THighPrec[0])
	})

	t.Run("constant data rejected", func(t *testing.T) {
		_, err := OneSampleTTest([]float64{5, 5, 5}, TTestOptions{Mu: 3})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("too few observations", func(t *testing.T) {
		_, err := OneSampleTTest([]float64{1}, TTestOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestTwoSampleTTest(t *testing.T) {
	a := []float64{12.1, 11.3, 12.8, 13.0, 11.9}
	b := []float64{10.2, 10.9, 11.1, 10.5}

	t.Run("welch fixture", func(t *testing.T) {
		res, err := TwoSampleTTest(a, b, true, TTestOptions{})
		require.NoError(t, err)
		assert.Equal(t, WelchT, res.Kind)
		assert.InDelta(t, 4.189084458170335, res.T, 1e-10)
		assert.InDelta(t, 6.5486898445858035, res.DF, 1e-9)
		assert.InDelta(t, 0.004742415673832, res.P, 1e-7)
	})

	t.Run("student fixture", func(t *testing.T) {
		res, err := TwoSampleTTest(a, b, false, TTestOptions{})
		require.NoError(t, err)
		assert.Equal(t, TwoSampleT, res.Kind)
		assert.InDelta(t, 3.9370702066041856, res.T, 1e-10)
		assert.Equal(t, 7.0, res.DF)
		assert.InDelta(t, 0.005624432453, res.P, 1e-7)
	})

	t.Run("identical groups give t=0", func(t *testing.T) {
		g := []float64{1, 2, 3, 4}
		res, err := TwoSampleTTest(g, g, true, TTestOptions{})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, res.T, 1e-12)
		assert.InDelta(t, 1.0, res.P, 1e-9)
		assert.InDelta(t, 0.0, res.CohensD, 1e-12)
	})

	t.Run("sign flips with group order", func(t *testing.T) {
		r1, err := TwoSampleTTest(a, b, true, TTestOptions{})
		require.NoError(t, err)
		r2, err := TwoSampleTTest(b, a, true, TTestOptions{})
		require.NoError(t, err)
		assert.InDelta(t, -r1.T, r2.T, 1e-12)
		assert.InDelta(t, r1.P, r2.P, 1e-12)
	})

	t.Run("both groups constant rejected", func(t *testing.T) {
		_, err := TwoSampleTTest([]float64{1, 1}, []float64{2, 2}, true, TTestOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestPairedTTest(t *testing.T) {
	t.Run("reduces to one-sample on differences", func(t *testing.T) {
		a := []float64{10, 12, 14, 16}
		b := []float64{9, 10, 13, 14}
		res, err := PairedTTest(a, b, TTestOptions{})
		require.NoError(t, err)

		diffs := []float64{1, 2, 1, 2}
		want, err := OneSampleTTest(diffs, TTestOptions{})
		require.NoError(t, err)

		assert.Equal(t, PairedT, res.Kind)
		assert.InDelta(t, want.T, res.T, 1e-12)
		assert.InDelta(t, want.P, res.P, 1e-12)
		assert.Equal(t, 4, res.N1)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := PairedTTest([]float64{1, 2}, []float64{1}, TTestOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("identical pairs rejected", func(t *testing.T) {
		g := []float64{1, 2, 3}
		_, err := PairedTTest(g, g, TTestOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestCohensD(t *testing.T) {
	// Separation of exactly one pooled SD.
	a := []float64{10, 12, 14}
	b := []float64{8, 10, 12}
	res, err := TwoSampleTTest(a, b, false, TTestOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.CohensD, 1e-12)
	assert.False(t, math.IsNaN(res.CohensD))
}
