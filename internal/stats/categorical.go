package stats

import (
	"math"

	"stickforstats/internal/stats/dist"
)

// ChiSquareResult is the outcome of a chi-square test on a contingency
// table or a goodness-of-fit comparison.
type ChiSquareResult struct {
	ChiSquare      float64     `json:"chi_square"`
	DF             float64     `json:"df"`
	P              float64     `json:"p"`
	N              int         `json:"n"`
	CramersV       float64     `json:"cramers_v,omitempty"`
	Expected       [][]float64 `json:"expected,omitempty"`
	YatesCorrected bool        `json:"yates_corrected"`
	MinExpected    float64     `json:"min_expected"`
	LowExpectedCells int       `json:"low_expected_cells"` // cells with expected < 5
}

// ChiSquareIndependence tests independence of rows and columns in an
// observed count table. yates applies the continuity correction (only
// meaningful for 2x2 tables).
func ChiSquareIndependence(observed [][]int, yates bool) (*ChiSquareResult, error) {
	rows := len(observed)
	if rows < 2 {
		return nil, invalidf("chi-square requires at least 2 rows, got %d", rows)
	}
	cols := len(observed[0])
	if cols < 2 {
		return nil, invalidf("chi-square requires at least 2 columns, got %d", cols)
	}

	rowSums := make([]float64, rows)
	colSums := make([]float64, cols)
	total := 0.0
	for i, row := range observed {
		if len(row) != cols {
			return nil, invalidf("row %d has %d columns, expected %d", i, len(row), cols)
		}
		for j, v := range row {
			if v < 0 {
				return nil, invalidf("cell (%d,%d) is negative", i, j)
			}
			f := float64(v)
			rowSums[i] += f
			colSums[j] += f
			total += f
		}
	}
	if total == 0 {
		return nil, invalidf("chi-square undefined for an empty table")
	}
	for i, s := range rowSums {
		if s == 0 {
			return nil, invalidf("row %d has zero total", i)
		}
	}
	for j, s := range colSums {
		if s == 0 {
			return nil, invalidf("column %d has zero total", j)
		}
	}

	applyYates := yates && rows == 2 && cols == 2

	chi := 0.0
	minExpected := math.Inf(1)
	lowCells := 0
	expected := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		expected[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			e := rowSums[i] * colSums[j] / total
			expected[i][j] = e
			if e < minExpected {
				minExpected = e
			}
			if e < 5 {
				lowCells++
			}
			d := math.Abs(float64(observed[i][j]) - e)
			if applyYates {
				d = math.Max(0, d-0.5)
			}
			chi += d * d / e
		}
	}

	df := float64((rows - 1) * (cols - 1))
	res := &ChiSquareResult{
		ChiSquare:        chi,
		DF:               df,
		P:                dist.ChiSquareSF(chi, df),
		N:                int(total),
		Expected:         expected,
		YatesCorrected:   applyYates,
		MinExpected:      minExpected,
		LowExpectedCells: lowCells,
	}

	// Cramer's V effect size.
	minDim := float64(rows - 1)
	if cols-1 < rows-1 {
		minDim = float64(cols - 1)
	}
	res.CramersV = math.Sqrt(chi / (total * minDim))

	return res, nil
}

// GoodnessOfFit tests observed counts against expected proportions. When
// proportions is nil a uniform distribution is assumed.
func GoodnessOfFit(observed []int, proportions []float64) (*ChiSquareResult, error) {
	k := len(observed)
	if k < 2 {
		return nil, invalidf("goodness-of-fit requires at least 2 categories, got %d", k)
	}

	total := 0.0
	for i, v := range observed {
		if v < 0 {
			return nil, invalidf("category %d count is negative", i)
		}
		total += float64(v)
	}
	if total == 0 {
		return nil, invalidf("goodness-of-fit undefined for all-zero counts")
	}

	if proportions == nil {
		proportions = make([]float64, k)
		for i := range proportions {
			proportions[i] = 1 / float64(k)
		}
	}
	if len(proportions) != k {
		return nil, invalidf("expected %d proportions, got %d", k, len(proportions))
	}
	propSum := 0.0
	for i, p := range proportions {
		if p <= 0 {
			return nil, invalidf("proportion %d must be positive, got %v", i, p)
		}
		propSum += p
	}
	if math.Abs(propSum-1) > 1e-9 {
		return nil, invalidf("proportions must sum to 1, got %v", propSum)
	}

	chi := 0.0
	minExpected := math.Inf(1)
	lowCells := 0
	expectedRow := make([]float64, k)
	for i, v := range observed {
		e := total * proportions[i]
		expectedRow[i] = e
		if e < minExpected {
			minExpected = e
		}
		if e < 5 {
			lowCells++
		}
		d := float64(v) - e
		chi += d * d / e
	}

	df := float64(k - 1)
	return &ChiSquareResult{
		ChiSquare:        chi,
		DF:               df,
		P:                dist.ChiSquareSF(chi, df),
		N:                int(total),
		Expected:         [][]float64{expectedRow},
		MinExpected:      minExpected,
		LowExpectedCells: lowCells,
	}, nil
}

// FisherExactResult is the outcome of Fisher's exact test on a 2x2 table.
type FisherExactResult struct {
	OddsRatio   float64     `json:"odds_ratio"`
	P           float64     `json:"p"`
	Alternative Alternative `json:"alternative"`
	N           int         `json:"n"`
}

// FisherExact runs Fisher's exact test on the 2x2 table
//
//	a b
//	c d
//
// The two-sided p-value sums all tables at least as extreme (probability at
// most that of the observed table), the convention R and scipy follow.
func FisherExact(a, b, c, d int, alt Alternative) (*FisherExactResult, error) {
	if a < 0 || b < 0 || c < 0 || d < 0 {
		return nil, invalidf("fisher exact requires non-negative counts")
	}
	n := a + b + c + d
	if n == 0 {
		return nil, invalidf("fisher exact undefined for an empty table")
	}
	if !alt.Valid() {
		return nil, invalidf("unknown alternative %q", alt)
	}

	row1 := a + b
	col1 := a + c

	// Hypergeometric support for the top-left cell.
	lo := max(0, col1-(n-row1))
	hi := min(row1, col1)

	logP := func(x int) float64 {
		return logChoose(row1, x) + logChoose(n-row1, col1-x) - logChoose(n, col1)
	}
	pObs := math.Exp(logP(a))

	var p float64
	switch alt.orTwoSided() {
	case Greater:
		for x := a; x <= hi; x++ {
			p += math.Exp(logP(x))
		}
	case Less:
		for x := lo; x <= a; x++ {
			p += math.Exp(logP(x))
		}
	default:
		// Sum over all tables no more probable than the observed one,
		// with a small tolerance for floating point equality.
		const relTol = 1 + 1e-7
		for x := lo; x <= hi; x++ {
			px := math.Exp(logP(x))
			if px <= pObs*relTol {
				p += px
			}
		}
	}
	if p > 1 {
		p = 1
	}

	res := &FisherExactResult{
		P:           p,
		Alternative: alt.orTwoSided(),
		N:           n,
	}
	if b == 0 || c == 0 {
		res.OddsRatio = math.Inf(1)
		if a == 0 || d == 0 {
			res.OddsRatio = math.NaN()
		}
	} else {
		res.OddsRatio = float64(a*d) / float64(b*c)
	}

	return res, nil
}
