package stats

import (
	"math"

	"stickforstats/internal/stats/dist"
)

// MannWhitneyResult is the outcome of the Mann-Whitney U test.
type MannWhitneyResult struct {
	N1          int         `json:"n1"`
	N2          int         `json:"n2"`
	U           float64     `json:"u"`  // min(U1, U2)
	U1          float64     `json:"u1"` // U for group 1
	Z           float64     `json:"z"`
	P           float64     `json:"p"`
	Alternative Alternative `json:"alternative"`
	MedianDiff  float64     `json:"median_diff"`
	RankBiserial float64    `json:"rank_biserial"` // effect size
}

// MannWhitneyU runs the Mann-Whitney U test with the normal approximation,
// tie correction, and continuity correction.
func MannWhitneyU(a, b []float64, alt Alternative) (*MannWhitneyResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return nil, invalidf("mann-whitney requires at least 2 observations per group, got %d and %d", len(a), len(b))
	}
	if err := checkFinite("group1", a); err != nil {
		return nil, err
	}
	if err := checkFinite("group2", b); err != nil {
		return nil, err
	}
	if !alt.Valid() {
		return nil, invalidf("unknown alternative %q", alt)
	}

	n1, n2 := float64(len(a)), float64(len(b))
	combined := append(append([]float64{}, a...), b...)
	ranks, ties := rankData(combined)

	// Rank sum of the first group.
	r1 := 0.0
	for i := range a {
		r1 += ranks[i]
	}

	u1 := r1 - n1*(n1+1)/2
	u2 := n1*n2 - u1
	u := math.Min(u1, u2)

	// Normal approximation with tie-corrected variance.
	n := n1 + n2
	meanU := n1 * n2 / 2
	tieTerm := 0.0
	for _, t := range ties {
		tf := float64(t)
		tieTerm += tf*tf*tf - tf
	}
	varU := n1 * n2 / 12 * ((n + 1) - tieTerm/(n*(n-1)))
	if varU <= 0 {
		return nil, invalidf("mann-whitney undefined: all observations are tied")
	}

	// Continuity correction toward the mean.
	z := (u1 - meanU)
	switch {
	case z > 0:
		z -= 0.5
	case z < 0:
		z += 0.5
	}
	z /= math.Sqrt(varU)

	var p float64
	switch alt.orTwoSided() {
	case Less:
		p = dist.NormalCDF(z)
	case Greater:
		p = dist.NormalSF(z)
	default:
		p = 2 * dist.NormalSF(math.Abs(z))
	}
	if p > 1 {
		p = 1
	}

	sa, sb := sortedCopy(a), sortedCopy(b)
	return &MannWhitneyResult{
		N1:           len(a),
		N2:           len(b),
		U:            u,
		U1:           u1,
		Z:            z,
		P:            p,
		Alternative:  alt.orTwoSided(),
		MedianDiff:   percentile(sa, 50) - percentile(sb, 50),
		RankBiserial: 1 - 2*u/(n1*n2),
	}, nil
}

// WilcoxonResult is the outcome of the Wilcoxon signed-rank test.
type WilcoxonResult struct {
	N           int         `json:"n"`  // pairs
	NReduced    int         `json:"n_reduced"` // pairs after dropping zero differences
	WPlus       float64     `json:"w_plus"`
	WMinus      float64     `json:"w_minus"`
	W           float64     `json:"w"` // min(W+, W-)
	Z           float64     `json:"z"`
	P           float64     `json:"p"`
	Alternative Alternative `json:"alternative"`
}

// WilcoxonSignedRank runs the paired Wilcoxon signed-rank test with the
// normal approximation. Zero differences are dropped (Wilcoxon's method).
func WilcoxonSignedRank(a, b []float64, alt Alternative) (*WilcoxonResult, error) {
	if len(a) != len(b) {
		return nil, invalidf("wilcoxon requires equal lengths, got %d and %d", len(a), len(b))
	}
	if len(a) < 2 {
		return nil, invalidf("wilcoxon requires at least 2 pairs, got %d", len(a))
	}
	if err := checkFinite("data1", a); err != nil {
		return nil, err
	}
	if err := checkFinite("data2", b); err != nil {
		return nil, err
	}
	if !alt.Valid() {
		return nil, invalidf("unknown alternative %q", alt)
	}

	var diffs []float64
	for i := range a {
		d := a[i] - b[i]
		if d != 0 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) < 2 {
		return nil, invalidf("wilcoxon undefined: fewer than 2 non-zero differences")
	}

	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	ranks, ties := rankData(abs)

	var wPlus, wMinus float64
	for i, d := range diffs {
		if d > 0 {
			wPlus += ranks[i]
		} else {
			wMinus += ranks[i]
		}
	}

	nr := float64(len(diffs))
	meanW := nr * (nr + 1) / 4
	tieTerm := 0.0
	for _, t := range ties {
		tf := float64(t)
		tieTerm += tf*tf*tf - tf
	}
	varW := nr*(nr+1)*(2*nr+1)/24 - tieTerm/48
	if varW <= 0 {
		return nil, invalidf("wilcoxon undefined: all differences are tied")
	}

	z := wPlus - meanW
	switch {
	case z > 0:
		z -= 0.5
	case z < 0:
		z += 0.5
	}
	z /= math.Sqrt(varW)

	var p float64
	switch alt.orTwoSided() {
	case Less:
		p = dist.NormalCDF(z)
	case Greater:
		p = dist.NormalSF(z)
	default:
		p = 2 * dist.NormalSF(math.Abs(z))
	}
	if p > 1 {
		p = 1
	}

	return &WilcoxonResult{
		N:           len(a),
		NReduced:    len(diffs),
		WPlus:       wPlus,
		WMinus:      wMinus,
		W:           math.Min(wPlus, wMinus),
		Z:           z,
		P:           p,
		Alternative: alt.orTwoSided(),
	}, nil
}

// KruskalWallisResult is the outcome of the Kruskal-Wallis H test.
type KruskalWallisResult struct {
	Groups     []GroupSummary `json:"groups"`
	H          float64        `json:"h"`
	HCorrected float64        `json:"h_corrected"` // tie-corrected
	DF         float64        `json:"df"`
	P          float64        `json:"p"`
	EpsilonSq  float64        `json:"epsilon_squared"` // effect size
}

// KruskalWallis runs the Kruskal-Wallis rank test across k groups with the
// chi-square approximation and tie correction.
func KruskalWallis(groups [][]float64, labels []string) (*KruskalWallisResult, error) {
	if len(groups) < 2 {
		return nil, invalidf("kruskal-wallis requires at least 2 groups, got %d", len(groups))
	}
	if len(labels) != len(groups) {
		labels = defaultLabels(len(groups))
	}

	total := 0
	for i, g := range groups {
		if len(g) < 2 {
			return nil, invalidf("kruskal-wallis group %q requires at least 2 observations, got %d", labels[i], len(g))
		}
		if err := checkFinite(labels[i], g); err != nil {
			return nil, err
		}
		total += len(g)
	}

	combined := make([]float64, 0, total)
	for _, g := range groups {
		combined = append(combined, g...)
	}
	ranks, ties := rankData(combined)

	n := float64(total)
	h := 0.0
	offset := 0
	summaries := make([]GroupSummary, len(groups))
	for i, g := range groups {
		ri := 0.0
		for j := range g {
			ri += ranks[offset+j]
		}
		ni := float64(len(g))
		h += ri * ri / ni
		v := sampleVariance(g)
		summaries[i] = GroupSummary{
			Label:    labels[i],
			N:        len(g),
			Mean:     mean(g),
			Variance: v,
			StdDev:   math.Sqrt(v),
		}
		offset += len(g)
	}
	h = 12/(n*(n+1))*h - 3*(n+1)

	// Tie correction divisor.
	tieTerm := 0.0
	for _, t := range ties {
		tf := float64(t)
		tieTerm += tf*tf*tf - tf
	}
	correction := 1 - tieTerm/(n*n*n-n)
	if correction <= 0 {
		return nil, invalidf("kruskal-wallis undefined: all observations are tied")
	}
	hc := h / correction

	df := float64(len(groups) - 1)
	return &KruskalWallisResult{
		Groups:     summaries,
		H:          h,
		HCorrected: hc,
		DF:         df,
		P:          dist.ChiSquareSF(hc, df),
		EpsilonSq:  hc / (n - 1),
	}, nil
}

// SignTestResult is the outcome of the paired sign test.
type SignTestResult struct {
	N           int         `json:"n"`
	NPositive   int         `json:"n_positive"`
	NNegative   int         `json:"n_negative"`
	NTies       int         `json:"n_ties"`
	P           float64     `json:"p"`
	Alternative Alternative `json:"alternative"`
}

// SignTest runs the exact binomial sign test on paired data.
func SignTest(a, b []float64, alt Alternative) (*SignTestResult, error) {
	if len(a) != len(b) {
		return nil, invalidf("sign test requires equal lengths, got %d and %d", len(a), len(b))
	}
	if len(a) < 2 {
		return nil, invalidf("sign test requires at least 2 pairs, got %d", len(a))
	}
	if err := checkFinite("data1", a); err != nil {
		return nil, err
	}
	if err := checkFinite("data2", b); err != nil {
		return nil, err
	}
	if !alt.Valid() {
		return nil, invalidf("unknown alternative %q", alt)
	}

	var pos, neg, ties int
	for i := range a {
		switch {
		case a[i] > b[i]:
			pos++
		case a[i] < b[i]:
			neg++
		default:
			ties++
		}
	}
	n := pos + neg
	if n == 0 {
		return nil, invalidf("sign test undefined: all pairs are tied")
	}

	// Exact binomial tail probabilities at p=1/2.
	var p float64
	switch alt.orTwoSided() {
	case Greater:
		p = binomialTailGE(pos, n)
	case Less:
		p = binomialTailGE(neg, n)
	default:
		k := pos
		if neg > pos {
			k = neg
		}
		p = 2 * binomialTailGE(k, n)
		if p > 1 {
			p = 1
		}
	}

	return &SignTestResult{
		N:           len(a),
		NPositive:   pos,
		NNegative:   neg,
		NTies:       ties,
		P:           p,
		Alternative: alt.orTwoSided(),
	}, nil
}

// binomialTailGE returns P(X >= k) for X ~ Binomial(n, 1/2), computed in
// log space to stay stable for large n.
func binomialTailGE(k, n int) float64 {
	if k <= 0 {
		return 1
	}
	sum := 0.0
	logHalfN := float64(n) * math.Log(0.5)
	for i := k; i <= n; i++ {
		lc := logChoose(n, i)
		sum += math.Exp(lc + logHalfN)
	}
	if sum > 1 {
		sum = 1
	}
	return sum
}

func logChoose(n, k int) float64 {
	ln1, _ := math.Lgamma(float64(n + 1))
	lk, _ := math.Lgamma(float64(k + 1))
	lnk, _ := math.Lgamma(float64(n - k + 1))
	return ln1 - lk - lnk
}
