package stats

import (
	"fmt"
	"math"

	"stickforstats/internal/stats/dist"
)

// Coefficient is one fitted regression term.
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	T        float64 `json:"t"`
	P        float64 `json:"p"`
}

// RegressionResult is the outcome of an ordinary least squares fit.
type RegressionResult struct {
	Coefficients []Coefficient `json:"coefficients"`
	N            int           `json:"n"`
	K            int           `json:"k"` // predictors, excluding intercept
	RSquared     float64       `json:"r_squared"`
	AdjRSquared  float64       `json:"adj_r_squared"`
	F            float64       `json:"f"`
	FP           float64       `json:"f_p"`
	DFModel      float64       `json:"df_model"`
	DFResidual   float64       `json:"df_residual"`
	ResidualSE   float64       `json:"residual_se"`
	Residuals    []float64     `json:"residuals,omitempty"`
}

// RegressionOptions controls the fit.
type RegressionOptions struct {
	Names            []string // predictor names; defaults to x1..xK
	IncludeResiduals bool
}

// LinearRegression fits y = b0 + b1*x1 + ... + bK*xK by ordinary least
// squares via the normal equations. predictors is column-major: one slice
// per predictor, each the same length as y.
func LinearRegression(y []float64, predictors [][]float64, opts RegressionOptions) (*RegressionResult, error) {
	if len(predictors) == 0 {
		return nil, invalidf("regression requires at least 1 predictor")
	}
	n := len(y)
	k := len(predictors)
	for i, col := range predictors {
		if len(col) != n {
			return nil, invalidf("predictor %d length %d does not match response length %d", i+1, len(col), n)
		}
		if err := checkFinite("predictor", col); err != nil {
			return nil, err
		}
	}
	if err := checkFinite("y", y); err != nil {
		return nil, err
	}
	if n < k+2 {
		return nil, invalidf("regression requires at least %d observations for %d predictors, got %d", k+2, k, n)
	}

	names := opts.Names
	if len(names) != k {
		names = make([]string, k)
		for i := range names {
			names[i] = predictorLabel(i)
		}
	}

	// Design matrix with intercept column, p = k+1 parameters.
	p := k + 1
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		X[i] = make([]float64, p)
		X[i][0] = 1
		for j := 0; j < k; j++ {
			X[i][j+1] = predictors[j][i]
		}
	}

	// Normal equations: (X'X) b = X'y.
	xtx := make([][]float64, p)
	xty := make([]float64, p)
	for a := 0; a < p; a++ {
		xtx[a] = make([]float64, p)
		for b := 0; b < p; b++ {
			s := 0.0
			for i := 0; i < n; i++ {
				s += X[i][a] * X[i][b]
			}
			xtx[a][b] = s
		}
		s := 0.0
		for i := 0; i < n; i++ {
			s += X[i][a] * y[i]
		}
		xty[a] = s
	}

	xtxInv, err := invertMatrix(xtx)
	if err != nil {
		return nil, invalidf("design matrix is singular: %v", err)
	}

	beta := make([]float64, p)
	for a := 0; a < p; a++ {
		for b := 0; b < p; b++ {
			beta[a] += xtxInv[a][b] * xty[b]
		}
	}

	// Residuals and sums of squares.
	residuals := make([]float64, n)
	my := mean(y)
	ssRes, ssTot := 0.0, 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		for a := 0; a < p; a++ {
			fitted += X[i][a] * beta[a]
		}
		residuals[i] = y[i] - fitted
		ssRes += residuals[i] * residuals[i]
		d := y[i] - my
		ssTot += d * d
	}
	if ssTot == 0 {
		return nil, invalidf("regression undefined for constant response")
	}

	dfModel := float64(k)
	dfResidual := float64(n - p)
	mse := ssRes / dfResidual

	res := &RegressionResult{
		N:          n,
		K:          k,
		RSquared:   1 - ssRes/ssTot,
		DFModel:    dfModel,
		DFResidual: dfResidual,
		ResidualSE: math.Sqrt(mse),
	}
	res.AdjRSquared = 1 - (1-res.RSquared)*float64(n-1)/dfResidual

	// Overall F test against the intercept-only model.
	ssReg := ssTot - ssRes
	if mse > 0 {
		res.F = (ssReg / dfModel) / mse
		res.FP = dist.FSF(res.F, dfModel, dfResidual)
	} else {
		res.F = math.Inf(1)
		res.FP = 0
	}

	coefNames := append([]string{"intercept"}, names...)
	res.Coefficients = make([]Coefficient, p)
	for a := 0; a < p; a++ {
		se := math.Sqrt(mse * xtxInv[a][a])
		c := Coefficient{
			Name:     coefNames[a],
			Estimate: beta[a],
			StdErr:   se,
		}
		if se > 0 {
			c.T = beta[a] / se
			c.P = dist.StudentTTwoSided(c.T, dfResidual)
		}
		res.Coefficients[a] = c
	}

	if opts.IncludeResiduals {
		res.Residuals = residuals
	}

	return res, nil
}

// invertMatrix inverts a square matrix by Gauss-Jordan elimination with
// partial pivoting. The matrices here are small (parameters x parameters).
func invertMatrix(m [][]float64) ([][]float64, error) {
	n := len(m)

	// Augment with identity.
	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		// Partial pivot.
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, invalidf("pivot %d is numerically zero", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}

	inv := make([][]float64, n)
	for i := 0; i < n; i++ {
		inv[i] = aug[i][n:]
	}
	return inv, nil
}

func predictorLabel(i int) string {
	return fmt.Sprintf("x%d", i+1)
}
