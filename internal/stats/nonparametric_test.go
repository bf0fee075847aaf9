package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMannWhitneyU(t *testing.T) {
	t.Run("fully separated groups", func(t *testing.T) {
		// a entirely below b: U1 = 0, z = -2.1650635, p = 0.0303828.
		a := []float64{1, 2, 3, 4}
		b := []float64{10, 11, 12, 13}
		res, err := MannWhitneyU(a, b, TwoSided)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.U1)
		assert.Equal(t, 0.0, res.U)
		assert.InDelta(t, -2.165063509461097, res.Z, 1e-10)
		assert.InDelta(t, 0.03038282197657751, res.P, 1e-10)
		assert.InDelta(t, 1.0, res.RankBiserial, 1e-12)
	})

	t.Run("identical groups", func(t *testing.T) {
		a := []float64{1, 2, 3, 4}
		res, err := MannWhitneyU(a, a, TwoSided)
		require.NoError(t, err)
		// U1 = U2 = n1*n2/2 under perfect overlap.
		assert.InDelta(t, 8.0, res.U1, 1e-12)
		assert.Greater(t, res.P, 0.9)
	})

	t.Run("one-sided direction", func(t *testing.T) {
		a := []float64{1, 2, 3, 4}
		b := []float64{10, 11, 12, 13}
		less, err := MannWhitneyU(a, b, Less)
		require.NoError(t, err)
		greater, err := MannWhitneyU(a, b, Greater)
		require.NoError(t, err)
		assert.Less(t, less.P, 0.05)
		assert.Greater(t, greater.P, 0.95)
	})

	t.Run("all tied rejected", func(t *testing.T) {
		_, err := MannWhitneyU([]float64{5, 5}, []float64{5, 5}, TwoSided)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("too small", func(t *testing.T) {
		_, err := MannWhitneyU([]float64{1}, []float64{2, 3}, TwoSided)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestWilcoxonSignedRank(t *testing.T) {
	t.Run("known fixture", func(t *testing.T) {
		// Differences {2,4,6,8,10,-1,-3,-5,-7,-9}: W+ = 30, W- = 25,
		// z = (30 - 27.5 - 0.5) / sqrt(96.25).
		a := []float64{2, 4, 6, 8, 10, 0, 0, 0, 0, 0}
		b := []float64{0, 0, 0, 0, 0, 1, 3, 5, 7, 9}
		res, err := WilcoxonSignedRank(a, b, TwoSided)
		require.NoError(t, err)
		assert.Equal(t, 30.0, res.WPlus)
		assert.Equal(t, 25.0, res.WMinus)
		assert.Equal(t, 25.0, res.W)
		assert.Equal(t, 10, res.NReduced)
		assert.InDelta(t, 2.0/math.Sqrt(96.25), res.Z, 1e-10)
		assert.Greater(t, res.P, 0.5) // clearly not significant
	})

	t.Run("zero differences dropped", func(t *testing.T) {
		a := []float64{1, 2, 3, 4, 5}
		b := []float64{1, 2, 1, 2, 3}
		res, err := WilcoxonSignedRank(a, b, TwoSided)
		require.NoError(t, err)
		assert.Equal(t, 5, res.N)
		assert.Equal(t, 3, res.NReduced)
	})

	t.Run("all zero differences rejected", func(t *testing.T) {
		g := []float64{1, 2, 3}
		_, err := WilcoxonSignedRank(g, g, TwoSided)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non-finite observations rejected", func(t *testing.T) {
		a := []float64{1, 2, math.NaN(), 4, 5, 6}
		b := []float64{2, 1, 1, 1, 1, 1}
		_, err := WilcoxonSignedRank(a, b, TwoSided)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = WilcoxonSignedRank(b, []float64{1, 2, 3, 4, 5, math.Inf(1)}, TwoSided)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("strong one-direction effect is significant", func(t *testing.T) {
		a := []float64{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
		b := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		res, err := WilcoxonSignedRank(a, b, Greater)
		require.NoError(t, err)
		assert.Less(t, res.P, 0.01)
	})
}

func TestKruskalWallis(t *testing.T) {
	t.Run("known fixture no ties", func(t *testing.T) {
		// {1,2,3}, {4,5,6}, {7,8,9}: H = 7.2, df = 2, p = exp(-3.6).
		groups := [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
		res, err := KruskalWallis(groups, nil)
		require.NoError(t, err)
		assert.InDelta(t, 7.2, res.H, 1e-10)
		assert.InDelta(t, 7.2, res.HCorrected, 1e-10) // no ties, no correction
		assert.Equal(t, 2.0, res.DF)
		assert.InDelta(t, math.Exp(-3.6), res.P, 1e-9)
	})

	t.Run("identical groups give H near zero", func(t *testing.T) {
		g := []float64{1, 2, 3}
		res, err := KruskalWallis([][]float64{g, g, g}, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, res.H, 1)
		assert.Greater(t, res.P, 0.5)
	})

	t.Run("labels applied", func(t *testing.T) {
		res, err := KruskalWallis([][]float64{{1, 2}, {3, 4}}, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, "a", res.Groups[0].Label)
		assert.Equal(t, "b", res.Groups[1].Label)
	})

	t.Run("all tied rejected", func(t *testing.T) {
		_, err := KruskalWallis([][]float64{{5, 5}, {5, 5}}, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestSignTest(t *testing.T) {
	t.Run("known binomial fixture", func(t *testing.T) {
		// 8 positive out of 10, no ties: p = 2 * 56/1024 = 0.109375.
		a := []float64{2, 2, 2, 2, 2, 2, 2, 2, 0, 0}
		b := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
		res, err := SignTest(a, b, TwoSided)
		require.NoError(t, err)
		assert.Equal(t, 8, res.NPositive)
		assert.Equal(t, 2, res.NNegative)
		assert.Equal(t, 0, res.NTies)
		assert.InDelta(t, 0.109375, res.P, 1e-12)
	})

	t.Run("ties excluded", func(t *testing.T) {
		a := []float64{1, 2, 3, 5}
		b := []float64{1, 1, 1, 5}
		res, err := SignTest(a, b, TwoSided)
		require.NoError(t, err)
		assert.Equal(t, 2, res.NPositive)
		assert.Equal(t, 2, res.NTies)
	})

	t.Run("balanced signs give p=1", func(t *testing.T) {
		a := []float64{2, 2, 0, 0}
		b := []float64{1, 1, 1, 1}
		res, err := SignTest(a, b, TwoSided)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, res.P, 1e-9)
	})

	t.Run("all tied rejected", func(t *testing.T) {
		g := []float64{1, 2, 3}
		_, err := SignTest(g, g, TwoSided)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non-finite observations rejected", func(t *testing.T) {
		// A NaN pair compares false both ways and would count as a tie.
		a := []float64{2, math.NaN(), math.NaN(), math.NaN()}
		b := []float64{1, 1, 1, 1}
		_, err := SignTest(a, b, TwoSided)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = SignTest(b, []float64{1, 1, 1, math.Inf(-1)}, TwoSided)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
