package dist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		name     string
		x        float64
		expected float64
		delta    float64
	}{
		{"zero", 0, 0.5, 1e-12},
		{"one sigma", 1, 0.8413447460685429, 1e-10},
		{"minus one sigma", -1, 0.15865525393145707, 1e-10},
		{"two sigma", 1.959963984540054, 0.975, 1e-9},
		{"deep lower tail", -6, 9.865876450376946e-10, 1e-14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, NormalCDF(tt.x), tt.delta)
		})
	}
}

func TestNormalCDFSymmetry(t *testing.T) {
	for _, x := range []float64{0.1, 0.5, 1.3, 2.7, 4.2} {
		assert.InDelta(t, 1.0, NormalCDF(x)+NormalCDF(-x), 1e-12)
		assert.InDelta(t, NormalSF(x), NormalCDF(-x), 1e-14)
	}
}

func TestNormalQuantile(t *testing.T) {
	// Round trip across the support, including both tails.
	for _, p := range []float64{1e-8, 0.001, 0.025, 0.1, 0.5, 0.9, 0.975, 0.999, 1 - 1e-8} {
		x := NormalQuantile(p)
		assert.InDelta(t, p, NormalCDF(x), 1e-10, "p=%v", p)
	}

	assert.InDelta(t, 1.959963984540054, NormalQuantile(0.975), 1e-8)
	assert.InDelta(t, 0, NormalQuantile(0.5), 1e-10)
	assert.True(t, math.IsInf(NormalQuantile(0), -1))
	assert.True(t, math.IsInf(NormalQuantile(1), 1))
}

func TestStudentTCDF(t *testing.T) {
	// t=0 is the median for every df.
	for _, df := range []float64{1, 2, 5, 30, 120} {
		assert.InDelta(t, 0.5, StudentTCDF(0, df), 1e-12)
	}

	// df=1 is the Cauchy distribution with closed form CDF.
	cauchy := func(x float64) float64 { return 0.5 + math.Atan(x)/math.Pi }
	for _, x := range []float64{-3, -1, 0.5, 2, 10} {
		assert.InDelta(t, cauchy(x), StudentTCDF(x, 1), 1e-10, "x=%v", x)
	}

	// Large df converges to the normal distribution.
	assert.InDelta(t, NormalCDF(1.5), StudentTCDF(1.5, 1e6), 1e-5)

	// Known critical value: P(T <= 2.228) = 0.975 at df=10.
	assert.InDelta(t, 0.975, StudentTCDF(2.2281388519649385, 10), 1e-8)
}

func TestStudentTTwoSided(t *testing.T) {
	assert.InDelta(t, 1.0, StudentTTwoSided(0, 10), 1e-12)
	assert.InDelta(t, 0.05, StudentTTwoSided(2.2281388519649385, 10), 1e-8)
	// Symmetric in the sign of t.
	assert.InDelta(t, StudentTTwoSided(1.7, 8), StudentTTwoSided(-1.7, 8), 1e-14)
}

func TestStudentTQuantile(t *testing.T) {
	for _, df := range []float64{3, 10, 50} {
		for _, p := range []float64{0.025, 0.25, 0.5, 0.9, 0.975} {
			q := StudentTQuantile(p, df)
			assert.InDelta(t, p, StudentTCDF(q, df), 1e-9, "df=%v p=%v", df, p)
		}
	}
	assert.InDelta(t, 2.2281388519649385, StudentTQuantile(0.975, 10), 1e-6)
}

func TestFCDF(t *testing.T) {
	// F(1; d, d) has median 1.
	for _, d := range []float64{2, 5, 10} {
		assert.InDelta(t, 0.5, FCDF(1, d, d), 1e-10)
	}

	// F with d1=1 is the square of a t variable: P(F <= t^2) = P(|T| <= t).
	tv := 2.0
	df := 12.0
	assert.InDelta(t, 1-StudentTTwoSided(tv, df), FCDF(tv*tv, 1, df), 1e-10)

	assert.Equal(t, 0.0, FCDF(0, 3, 7))
	assert.InDelta(t, 1.0, FCDF(1e9, 3, 7), 1e-9)
}

func TestFSF(t *testing.T) {
	for _, tc := range []struct{ f, d1, d2 float64 }{
		{2.5, 3, 20}, {1.0, 5, 5}, {0.3, 2, 40}, {7.1, 4, 9},
	} {
		assert.InDelta(t, 1-FCDF(tc.f, tc.d1, tc.d2), FSF(tc.f, tc.d1, tc.d2), 1e-12)
	}
	// Known 95th percentile: F(0.95; 1, 10) = 4.9646.
	assert.InDelta(t, 0.05, FSF(4.964602743730711, 1, 10), 1e-8)
}

func TestChiSquareCDF(t *testing.T) {
	// Chi-square with 2 df is Exponential(1/2): CDF = 1 - exp(-x/2).
	for _, x := range []float64{0.5, 1, 3, 8} {
		assert.InDelta(t, 1-math.Exp(-x/2), ChiSquareCDF(x, 2), 1e-12, "x=%v", x)
	}

	// Known critical value: P(X <= 3.8415) = 0.95 at 1 df.
	assert.InDelta(t, 0.95, ChiSquareCDF(3.841458820694124, 1), 1e-9)

	assert.Equal(t, 0.0, ChiSquareCDF(0, 4))
	assert.InDelta(t, 0.05, ChiSquareSF(3.841458820694124, 1), 1e-9)
}

func TestRegIncBetaBounds(t *testing.T) {
	assert.Equal(t, 0.0, RegIncBeta(2, 3, 0))
	assert.Equal(t, 1.0, RegIncBeta(2, 3, 1))

	// I_x(1,1) = x (uniform distribution).
	for _, x := range []float64{0.1, 0.35, 0.8} {
		assert.InDelta(t, x, RegIncBeta(1, 1, x), 1e-12)
	}

	// Symmetry: I_x(a,b) = 1 - I_{1-x}(b,a).
	assert.InDelta(t, 1-RegIncBeta(5, 2, 0.7), RegIncBeta(2, 5, 0.3), 1e-12)
}

func TestRegIncGammaP(t *testing.T) {
	// P(1, x) = 1 - exp(-x).
	for _, x := range []float64{0.2, 1, 4, 10} {
		assert.InDelta(t, 1-math.Exp(-x), RegIncGammaP(1, x), 1e-12, "x=%v", x)
	}
	assert.Equal(t, 0.0, RegIncGammaP(3, 0))
	assert.True(t, math.IsNaN(RegIncGammaP(0, 1)))
}

func TestValidateDF(t *testing.T) {
	require.NoError(t, ValidateDF(10, "test"))
	assert.Error(t, ValidateDF(0, "test"))
	assert.Error(t, ValidateDF(-1, "test"))
	assert.Error(t, ValidateDF(math.NaN(), "test"))
}
