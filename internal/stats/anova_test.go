package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneWayANOVA(t *testing.T) {
	t.Run("known fixture", func(t *testing.T) {
		// g1={1,2,3}, g2={2,3,4}, g3={6,7,8}: SSB=42, SSW=6,
		// F = 21 with df (2,6), p = 1/512.
		groups := [][]float64{{1, 2, 3}, {2, 3, 4}, {6, 7, 8}}
		res, err := OneWayANOVA(groups, ANOVAOptions{})
		require.NoError(t, err)

		assert.InDelta(t, 42.0, res.SSBetween, 1e-10)
		assert.InDelta(t, 6.0, res.SSWithin, 1e-10)
		assert.Equal(t, 2.0, res.DFBetween)
		assert.Equal(t, 6.0, res.DFWithin)
		assert.InDelta(t, 21.0, res.F, 1e-10)
		assert.InDelta(t, 0.001953125, res.P, 1e-9) // exactly 1/512
		assert.InDelta(t, 4.0, res.GrandMean, 1e-12)
		assert.InDelta(t, 42.0/48.0, res.EtaSquared, 1e-10)
		require.Len(t, res.Groups, 3)
		assert.Equal(t, "group1", res.Groups[0].Label)
		assert.InDelta(t, 2.0, res.Groups[0].Mean, 1e-12)
		assert.InDelta(t, 7.0, res.Groups[2].Mean, 1e-12)
	})

	t.Run("equal means give F near zero", func(t *testing.T) {
		groups := [][]float64{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}
		res, err := OneWayANOVA(groups, ANOVAOptions{})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, res.F, 1e-12)
		assert.InDelta(t, 1.0, res.P, 1e-9)
		assert.Equal(t, 0.0, res.OmegaSquared) // clamped, never negative
	})

	t.Run("post hoc comparisons", func(t *testing.T) {
		groups := [][]float64{{1, 2, 3}, {2, 3, 4}, {10, 11, 12}}
		res, err := OneWayANOVA(groups, ANOVAOptions{
			Labels:  []string{"control", "low", "high"},
			PostHoc: true,
		})
		require.NoError(t, err)
		require.Len(t, res.PostHoc, 3)

		// control vs high must be the most significant pair.
		var ctrlHigh *PairwiseComparison
		for i := range res.PostHoc {
			if res.PostHoc[i].Group1 == "control" && res.PostHoc[i].Group2 == "high" {
				ctrlHigh = &res.PostHoc[i]
			}
			// Bonferroni never lowers the p-value.
			assert.GreaterOrEqual(t, res.PostHoc[i].PAdjusted, res.PostHoc[i].P)
			assert.LessOrEqual(t, res.PostHoc[i].PAdjusted, 1.0)
		}
		require.NotNil(t, ctrlHigh)
		assert.Less(t, ctrlHigh.P, 0.01)
		assert.InDelta(t, -9.0, ctrlHigh.MeanDiff, 1e-12)
	})

	t.Run("single group rejected", func(t *testing.T) {
		_, err := OneWayANOVA([][]float64{{1, 2, 3}}, ANOVAOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("tiny group rejected", func(t *testing.T) {
		_, err := OneWayANOVA([][]float64{{1, 2}, {3}}, ANOVAOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("all constant groups rejected", func(t *testing.T) {
		_, err := OneWayANOVA([][]float64{{1, 1}, {2, 2}}, ANOVAOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
