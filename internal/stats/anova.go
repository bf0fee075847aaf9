package stats

import (
	"fmt"
	"math"

	"stickforstats/internal/stats/dist"
)

// GroupSummary is the per-group breakdown reported with an ANOVA.
type GroupSummary struct {
	Label    string  `json:"label"`
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
}

// PairwiseComparison is one Bonferroni-corrected Welch comparison from the
// post-hoc pass.
type PairwiseComparison struct {
	Group1    string  `json:"group1"`
	Group2    string  `json:"group2"`
	MeanDiff  float64 `json:"mean_diff"`
	T         float64 `json:"t"`
	DF        float64 `json:"df"`
	P         float64 `json:"p"`          // uncorrected
	PAdjusted float64 `json:"p_adjusted"` // Bonferroni
}

// ANOVAResult is the outcome of a one-way ANOVA.
type ANOVAResult struct {
	Groups       []GroupSummary       `json:"groups"`
	F            float64              `json:"f"`
	DFBetween    float64              `json:"df_between"`
	DFWithin     float64              `json:"df_within"`
	SSBetween    float64              `json:"ss_between"`
	SSWithin     float64              `json:"ss_within"`
	MSBetween    float64              `json:"ms_between"`
	MSWithin     float64              `json:"ms_within"`
	P            float64              `json:"p"`
	EtaSquared   float64              `json:"eta_squared"`
	OmegaSquared float64              `json:"omega_squared"`
	GrandMean    float64              `json:"grand_mean"`
	PostHoc      []PairwiseComparison `json:"post_hoc,omitempty"`
}

// ANOVAOptions controls the post-hoc pass.
type ANOVAOptions struct {
	Labels  []string // optional group labels; defaults to group1..groupK
	PostHoc bool     // run Bonferroni-corrected pairwise Welch comparisons
}

// OneWayANOVA tests H0: all group means are equal.
func OneWayANOVA(groups [][]float64, opts ANOVAOptions) (*ANOVAResult, error) {
	if len(groups) < 2 {
		return nil, invalidf("ANOVA requires at least 2 groups, got %d", len(groups))
	}

	labels := opts.Labels
	if len(labels) != len(groups) {
		labels = defaultLabels(len(groups))
	}

	total := 0
	for i, g := range groups {
		if len(g) < 2 {
			return nil, invalidf("ANOVA group %q requires at least 2 observations, got %d", labels[i], len(g))
		}
		if err := checkFinite(labels[i], g); err != nil {
			return nil, err
		}
		total += len(g)
	}

	// Grand mean and per-group summaries.
	grandSum := 0.0
	summaries := make([]GroupSummary, len(groups))
	for i, g := range groups {
		m := mean(g)
		v := sampleVariance(g)
		summaries[i] = GroupSummary{
			Label:    labels[i],
			N:        len(g),
			Mean:     m,
			Variance: v,
			StdDev:   math.Sqrt(v),
		}
		for _, x := range g {
			grandSum += x
		}
	}
	grandMean := grandSum / float64(total)

	ssBetween := 0.0
	ssWithin := 0.0
	for i, g := range groups {
		d := summaries[i].Mean - grandMean
		ssBetween += float64(len(g)) * d * d
		for _, x := range g {
			e := x - summaries[i].Mean
			ssWithin += e * e
		}
	}

	dfBetween := float64(len(groups) - 1)
	dfWithin := float64(total - len(groups))
	msBetween := ssBetween / dfBetween
	msWithin := ssWithin / dfWithin

	if msWithin == 0 {
		return nil, invalidf("ANOVA undefined: zero within-group variance")
	}

	f := msBetween / msWithin
	ssTotal := ssBetween + ssWithin

	res := &ANOVAResult{
		Groups:     summaries,
		F:          f,
		DFBetween:  dfBetween,
		DFWithin:   dfWithin,
		SSBetween:  ssBetween,
		SSWithin:   ssWithin,
		MSBetween:  msBetween,
		MSWithin:   msWithin,
		P:          dist.FSF(f, dfBetween, dfWithin),
		EtaSquared: ssBetween / ssTotal,
		GrandMean:  grandMean,
	}
	// Omega squared is the less biased effect size; can go slightly
	// negative for tiny effects, clamp at 0.
	omega := (ssBetween - dfBetween*msWithin) / (ssTotal + msWithin)
	res.OmegaSquared = math.Max(0, omega)

	if opts.PostHoc {
		res.PostHoc = pairwiseWelch(groups, labels)
	}

	return res, nil
}

// pairwiseWelch runs all pairwise Welch t-tests with Bonferroni correction.
func pairwiseWelch(groups [][]float64, labels []string) []PairwiseComparison {
	k := len(groups)
	nComparisons := float64(k * (k - 1) / 2)

	var out []PairwiseComparison
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			res, err := TwoSampleTTest(groups[i], groups[j], true, TTestOptions{})
			if err != nil {
				continue
			}
			adj := res.P * nComparisons
			if adj > 1 {
				adj = 1
			}
			out = append(out, PairwiseComparison{
				Group1:    labels[i],
				Group2:    labels[j],
				MeanDiff:  res.MeanDiff,
				T:         res.T,
				DF:        res.DF,
				P:         res.P,
				PAdjusted: adj,
			})
		}
	}
	return out
}

func defaultLabels(k int) []string {
	labels := make([]string, k)
	for i := range labels {
		labels[i] = groupLabel(i)
	}
	return labels
}

func groupLabel(i int) string {
	return fmt.Sprintf("group%d", i+1)
}
