package sqc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXBarR(t *testing.T) {
	t.Run("in-control process", func(t *testing.T) {
		subgroups := [][]float64{
			{1, 2, 3, 4, 5},
			{2, 3, 4, 5, 6},
			{3, 4, 5, 6, 7},
			{2, 3, 4, 5, 6},
		}
		res, err := XBarR(subgroups)
		require.NoError(t, err)

		assert.InDelta(t, 4.0, res.XBar.Center, 1e-12)          // grand mean
		assert.InDelta(t, 4+0.577*4, res.XBar.UCL, 1e-12)       // A2 for n=5
		assert.InDelta(t, 4-0.577*4, res.XBar.LCL, 1e-12)
		assert.InDelta(t, 4.0, res.R.Center, 1e-12)             // R-bar
		assert.InDelta(t, 2.114*4, res.R.UCL, 1e-12)            // D4 for n=5
		assert.InDelta(t, 0.0, res.R.LCL, 1e-12)                // D3 is zero
		assert.InDelta(t, 4.0/2.326, res.SigmaWithin, 1e-12)    // R-bar/d2
		assert.Equal(t, 5, res.SubgroupSize)
		assert.True(t, res.XBar.InControl())
		assert.True(t, res.R.InControl())
	})

	t.Run("shifted subgroup breaks the limit", func(t *testing.T) {
		subgroups := [][]float64{
			{1, 2, 3, 4, 5},
			{1, 2, 3, 4, 5},
			{1, 2, 3, 4, 5},
			{1, 2, 3, 4, 5},
			{10, 11, 12, 13, 14},
		}
		res, err := XBarR(subgroups)
		require.NoError(t, err)
		assert.False(t, res.XBar.InControl())
		assert.Contains(t, res.XBar.OutOfControl, 4)
		assert.Contains(t, res.XBar.Points[4].Violations, RuleBeyondLimits)
		// The range stayed constant, so the R chart is clean.
		assert.True(t, res.R.InControl())
	})

	t.Run("size outside the table rejected", func(t *testing.T) {
		_, err := XBarR([][]float64{{1}, {2}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unequal subgroup sizes rejected", func(t *testing.T) {
		_, err := XBarR([][]float64{{1, 2, 3}, {1, 2}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("single subgroup rejected", func(t *testing.T) {
		_, err := XBarR([][]float64{{1, 2, 3}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestIMR(t *testing.T) {
	t.Run("stable individuals", func(t *testing.T) {
		values := []float64{10, 11, 10, 11, 10, 11, 10}
		res, err := IMR(values)
		require.NoError(t, err)

		assert.InDelta(t, 73.0/7.0, res.Individuals.Center, 1e-12)
		assert.InDelta(t, 1.0, res.MovingRange.Center, 1e-12) // all MRs are 1
		assert.InDelta(t, 1.0/1.128, res.SigmaWithin, 1e-12)
		assert.True(t, res.Individuals.InControl())
		assert.Len(t, res.MovingRange.Points, 6)
	})

	t.Run("spike flagged on both charts", func(t *testing.T) {
		values := []float64{10, 10.1, 9.9, 10, 10.1, 9.9, 20}
		res, err := IMR(values)
		require.NoError(t, err)
		assert.Contains(t, res.Individuals.OutOfControl, 6)
		assert.Contains(t, res.MovingRange.OutOfControl, 5) // the 10.1 jump
	})

	t.Run("too short rejected", func(t *testing.T) {
		_, err := IMR([]float64{1, 2})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestPChart(t *testing.T) {
	t.Run("stable then spike", func(t *testing.T) {
		defective := []int{1, 2, 1, 2, 1, 2, 1, 2, 10}
		chart, err := PChart(defective, 50)
		require.NoError(t, err)
		assert.InDelta(t, 22.0/450.0, chart.Center, 1e-12)
		assert.GreaterOrEqual(t, chart.LCL, 0.0)
		assert.Contains(t, chart.OutOfControl, 8)
		assert.InDelta(t, 0.2, chart.Points[8].Value, 1e-12)
	})

	t.Run("count above sample size rejected", func(t *testing.T) {
		_, err := PChart([]int{1, 60}, 50)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("all zero rejected", func(t *testing.T) {
		_, err := PChart([]int{0, 0, 0}, 50)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestCChart(t *testing.T) {
	t.Run("spiked count flagged", func(t *testing.T) {
		chart, err := CChart([]int{2, 3, 2, 3, 2, 3, 15})
		require.NoError(t, err)
		assert.InDelta(t, 30.0/7.0, chart.Center, 1e-12)
		assert.Contains(t, chart.OutOfControl, 6)
	})

	t.Run("negative count rejected", func(t *testing.T) {
		_, err := CChart([]int{2, -1, 3})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestWesternElectricRules(t *testing.T) {
	// Synthetic chart with center 0 and unit sigma keeps the zone
	// boundaries exact.
	newChart := func() *Chart {
		return &Chart{Center: 0, UCL: 3, LCL: -3}
	}

	t.Run("rule 1 beyond limits", func(t *testing.T) {
		c := newChart()
		applyRules(c, []float64{0, 0.5, 3.5, 0}, allRules)
		assert.Equal(t, []int{2}, c.OutOfControl)
		assert.Contains(t, c.Points[2].Violations, RuleBeyondLimits)
	})

	t.Run("rule 2 two of three beyond two sigma", func(t *testing.T) {
		c := newChart()
		applyRules(c, []float64{0, 2.5, 0.5, 2.5, 0}, allRules)
		assert.Contains(t, c.Points[3].Violations, RuleTwoOfThree)
	})

	t.Run("rule 3 four of five beyond one sigma", func(t *testing.T) {
		c := newChart()
		applyRules(c, []float64{-1.5, -1.5, 0, -1.5, -1.5}, allRules)
		assert.Contains(t, c.Points[4].Violations, RuleFourOfFive)
	})

	t.Run("rule 4 eight on one side", func(t *testing.T) {
		c := newChart()
		applyRules(c, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, allRules)
		assert.Contains(t, c.Points[7].Violations, RuleEightSameSide)
		// The run is only complete at the eighth point.
		assert.NotContains(t, c.Points[6].Violations, RuleEightSameSide)
	})

	t.Run("completing point must be on the run side", func(t *testing.T) {
		c := newChart()
		// Four points below -1 sigma followed by one above: the fifth
		// point does not complete a downward run.
		applyRules(c, []float64{-1.5, -1.5, -1.5, -1.5, 2.0}, allRules)
		assert.NotContains(t, c.Points[4].Violations, RuleFourOfFive)
		assert.Contains(t, c.Points[3].Violations, RuleFourOfFive)
	})

	t.Run("limit-only mode skips run rules", func(t *testing.T) {
		c := newChart()
		applyRules(c, []float64{2.5, 2.5, 2.5, 2.5, 2.5, 2.5, 2.5, 2.5}, limitRuleOnly)
		assert.True(t, c.InControl())
	})
}

func TestCapability(t *testing.T) {
	subgroups := [][]float64{
		{1, 2, 3, 4, 5},
		{2, 3, 4, 5, 6},
		{3, 4, 5, 6, 7},
		{2, 3, 4, 5, 6},
	}

	t.Run("centered process", func(t *testing.T) {
		res, err := Capability(subgroups, -2, 10)
		require.NoError(t, err)

		sigmaW := 4.0 / 2.326
		assert.InDelta(t, sigmaW, res.SigmaWithin, 1e-12)
		assert.InDelta(t, 4.0, res.Mean, 1e-12)
		assert.InDelta(t, 12.0/(6*sigmaW), res.Cp, 1e-12)
		// Mean sits exactly between the limits, so Cp equals Cpk.
		assert.InDelta(t, res.Cp, res.Cpk, 1e-12)
		assert.InDelta(t, 12.0/(6*res.SigmaOverall), res.Pp, 1e-12)
		assert.Equal(t, 20, res.N)
	})

	t.Run("off-center process lowers cpk", func(t *testing.T) {
		res, err := Capability(subgroups, 3, 20)
		require.NoError(t, err)
		assert.Less(t, res.Cpk, res.Cp)
		assert.Less(t, res.Ppk, res.Pp)
		assert.False(t, res.Capable()) // mean 4 sits almost on the LSL
	})

	t.Run("inverted limits rejected", func(t *testing.T) {
		_, err := Capability(subgroups, 10, -2)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("no variation rejected", func(t *testing.T) {
		flat := [][]float64{{5, 5, 5}, {5, 5, 5}}
		_, err := Capability(flat, 0, 10)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
