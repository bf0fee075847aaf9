package survival

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events(times ...float64) []Observation {
	obs := make([]Observation, len(times))
	for i, t := range times {
		obs[i] = Observation{Time: t, Event: true}
	}
	return obs
}

func TestKaplanMeier(t *testing.T) {
	t.Run("all events", func(t *testing.T) {
		res, err := KaplanMeier(events(1, 2, 3, 4, 5))
		require.NoError(t, err)

		require.Len(t, res.Points, 5)
		want := []float64{0.8, 0.6, 0.4, 0.2, 0}
		for i, p := range res.Points {
			assert.InDelta(t, want[i], p.Survival, 1e-12)
			assert.Equal(t, 5-i, p.AtRisk)
			assert.Equal(t, 1, p.Events)
		}

		// Greenwood at the first step: 0.8 * sqrt(1/(5*4)).
		assert.InDelta(t, 0.8*math.Sqrt(0.05), res.Points[0].StdErr, 1e-12)
		// Second step: 0.6 * sqrt(1/20 + 1/12).
		assert.InDelta(t, 0.6*math.Sqrt(1.0/20+1.0/12), res.Points[1].StdErr, 1e-12)

		assert.Equal(t, 5, res.N)
		assert.Equal(t, 5, res.NEvents)
		assert.Equal(t, 0, res.NCensored)
		assert.True(t, res.MedianReached())
		assert.Equal(t, 3.0, res.MedianSurvival) // first time survival <= 0.5
	})

	t.Run("censoring shrinks the risk set without a step", func(t *testing.T) {
		obs := []Observation{
			{Time: 1, Event: true},
			{Time: 2, Event: false},
			{Time: 3, Event: true},
		}
		res, err := KaplanMeier(obs)
		require.NoError(t, err)

		require.Len(t, res.Points, 2)
		assert.InDelta(t, 2.0/3.0, res.Points[0].Survival, 1e-12)
		assert.Equal(t, 1, res.Points[1].AtRisk)
		assert.InDelta(t, 0.0, res.Points[1].Survival, 1e-12)
		assert.Equal(t, 1, res.NCensored)
	})

	t.Run("median not reached under heavy censoring", func(t *testing.T) {
		obs := []Observation{
			{Time: 1, Event: true},
			{Time: 5, Event: false},
			{Time: 6, Event: false},
			{Time: 7, Event: false},
		}
		res, err := KaplanMeier(obs)
		require.NoError(t, err)
		assert.False(t, res.MedianReached())
		assert.InDelta(t, 0.75, res.Points[0].Survival, 1e-12)
	})

	t.Run("confidence bounds clamped", func(t *testing.T) {
		res, err := KaplanMeier(events(1, 2, 3, 4, 5))
		require.NoError(t, err)
		for _, p := range res.Points {
			assert.GreaterOrEqual(t, p.CILower, 0.0)
			assert.LessOrEqual(t, p.CIUpper, 1.0)
			assert.LessOrEqual(t, p.CILower, p.Survival)
			assert.GreaterOrEqual(t, p.CIUpper, p.Survival)
		}
	})

	t.Run("no events rejected", func(t *testing.T) {
		_, err := KaplanMeier([]Observation{{Time: 3, Event: false}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("negative time rejected", func(t *testing.T) {
		_, err := KaplanMeier([]Observation{{Time: -1, Event: true}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("empty input rejected", func(t *testing.T) {
		_, err := KaplanMeier(nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestLogRank(t *testing.T) {
	t.Run("separated groups", func(t *testing.T) {
		// Group 1 dies at 1..4 while group 2 is fully at risk:
		// O1 = 4, E1 = 307/210, chi = 284089/38681.
		g1 := events(1, 2, 3, 4)
		g2 := events(10, 11, 12, 13)
		res, err := LogRank(g1, g2)
		require.NoError(t, err)

		assert.Equal(t, 4.0, res.Observed1)
		assert.InDelta(t, 307.0/210.0, res.Expected1, 1e-12)
		assert.InDelta(t, 284089.0/38681.0, res.ChiSquare, 1e-9)
		assert.Equal(t, 1.0, res.DF)
		assert.Less(t, res.P, 0.01)
		assert.Equal(t, 4, res.N1)
		assert.Equal(t, 4, res.N2)
	})

	t.Run("identical groups", func(t *testing.T) {
		g := events(1, 2, 3)
		res, err := LogRank(g, g)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, res.ChiSquare, 1e-12)
		assert.InDelta(t, 1.0, res.P, 1e-9)
	})

	t.Run("censored subjects contribute only to the risk set", func(t *testing.T) {
		g1 := []Observation{
			{Time: 1, Event: true},
			{Time: 2, Event: false},
			{Time: 4, Event: true},
		}
		g2 := events(3, 5, 6)
		res, err := LogRank(g1, g2)
		require.NoError(t, err)
		assert.Equal(t, 2.0, res.Observed1)
		assert.Greater(t, res.P, 0.05) // no real separation here
	})

	t.Run("empty group rejected", func(t *testing.T) {
		_, err := LogRank(events(1, 2), nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("no events rejected", func(t *testing.T) {
		c := []Observation{{Time: 1, Event: false}}
		_, err := LogRank(c, c)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non-finite times rejected", func(t *testing.T) {
		g := events(1, 2, 3)
		_, err := LogRank([]Observation{{Time: math.Inf(1), Event: true}}, g)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = LogRank(g, []Observation{{Time: math.NaN(), Event: true}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
