package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelatePearson(t *testing.T) {
	t.Run("known fixture", func(t *testing.T) {
		// x=1..5, y={2,4,5,4,5}: r = 0.7745967, t = 2.1213203, p = 0.1240271.
		res, err := Correlate([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 5, 4, 5}, CorrelationOptions{})
		require.NoError(t, err)
		assert.Equal(t, Pearson, res.Method)
		assert.InDelta(t, 0.7745966692414834, res.R, 1e-10)
		assert.InDelta(t, 2.121320343559643, res.T, 1e-9)
		assert.InDelta(t, 0.12402706238342519, res.P, 1e-7)
		assert.Equal(t, 3.0, res.DF)
	})

	t.Run("perfect correlation", func(t *testing.T) {
		res, err := Correlate([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8}, CorrelationOptions{})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, res.R, 1e-12)
		assert.Equal(t, 0.0, res.P)
	})

	t.Run("perfect anti-correlation", func(t *testing.T) {
		res, err := Correlate([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2}, CorrelationOptions{})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, res.R, 1e-12)
		assert.Equal(t, 0.0, res.P)
	})

	t.Run("high precision r", func(t *testing.T) {
		res, err := Correlate([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8},
			CorrelationOptions{HighPrecision: true})
		require.NoError(t, err)
		assert.NotEmpty(t, res.RHighPrec)
	})

	t.Run("constant series rejected", func(t *testing.T) {
		_, err := Correlate([]float64{1, 1, 1}, []float64{1, 2, 3}, CorrelationOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Correlate([]float64{1, 2}, []float64{1, 2, 3}, CorrelationOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("too few pairs", func(t *testing.T) {
		_, err := Correlate([]float64{1, 2}, []float64{3, 4}, CorrelationOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestCorrelateSpearman(t *testing.T) {
	t.Run("monotone nonlinear relation is perfect", func(t *testing.T) {
		x := []float64{1, 2, 3, 4, 5}
		y := []float64{1, 8, 27, 64, 125} // x^3, monotone
		res, err := Correlate(x, y, CorrelationOptions{Method: Spearman})
		require.NoError(t, err)
		assert.Equal(t, Spearman, res.Method)
		assert.InDelta(t, 1.0, res.R, 1e-12)
	})

	t.Run("reversed order is -1", func(t *testing.T) {
		x := []float64{1, 2, 3, 4, 5}
		y := []float64{10, 8, 7, 5, 1}
		res, err := Correlate(x, y, CorrelationOptions{Method: Spearman})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, res.R, 1e-12)
	})

	t.Run("agrees with pearson on ranks", func(t *testing.T) {
		x := []float64{3, 1, 4, 1.5, 9, 2.6}
		y := []float64{2, 7, 1, 8, 2.8, 1.8}
		res, err := Correlate(x, y, CorrelationOptions{Method: Spearman})
		require.NoError(t, err)

		rx, _ := rankData(x)
		ry, _ := rankData(y)
		want, err := Correlate(rx, ry, CorrelationOptions{Method: Pearson})
		require.NoError(t, err)
		assert.InDelta(t, want.R, res.R, 1e-12)
	})
}

func TestCorrelateKendall(t *testing.T) {
	t.Run("perfect concordance", func(t *testing.T) {
		res, err := Correlate([]float64{1, 2, 3, 4, 5}, []float64{10, 20, 30, 40, 50},
			CorrelationOptions{Method: Kendall})
		require.NoError(t, err)
		assert.Equal(t, Kendall, res.Method)
		assert.InDelta(t, 1.0, res.R, 1e-12)
		assert.Less(t, res.P, 0.05)
	})

	t.Run("perfect discordance", func(t *testing.T) {
		res, err := Correlate([]float64{1, 2, 3, 4, 5}, []float64{50, 40, 30, 20, 10},
			CorrelationOptions{Method: Kendall})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, res.R, 1e-12)
	})

	t.Run("one swap", func(t *testing.T) {
		// 10 pairs, 1 discordant: tau = (9-1)/10 = 0.8.
		res, err := Correlate([]float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 5, 4},
			CorrelationOptions{Method: Kendall})
		require.NoError(t, err)
		assert.InDelta(t, 0.8, res.R, 1e-12)
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := Correlate([]float64{1, 2, 3}, []float64{1, 2, 3},
			CorrelationOptions{Method: "cosine"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestCorrelateSymmetry(t *testing.T) {
	x := []float64{1.2, 3.4, 2.2, 5.1, 4.4}
	y := []float64{2.3, 3.3, 1.9, 6.0, 4.1}
	for _, m := range []CorrelationMethod{Pearson, Spearman, Kendall} {
		r1, err := Correlate(x, y, CorrelationOptions{Method: m})
		require.NoError(t, err)
		r2, err := Correlate(y, x, CorrelationOptions{Method: m})
		require.NoError(t, err)
		assert.InDelta(t, r1.R, r2.R, 1e-12, "method %s", m)
		assert.False(t, math.IsNaN(r1.P))
	}
}
