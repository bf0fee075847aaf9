package sqc

import (
	"fmt"
	"math"
)

// CapabilityResult holds short-term (Cp/Cpk, within-subgroup sigma) and
// long-term (Pp/Ppk, overall sigma) process capability indices.
type CapabilityResult struct {
	Cp           float64 `json:"cp"`
	Cpk          float64 `json:"cpk"`
	Pp           float64 `json:"pp"`
	Ppk          float64 `json:"ppk"`
	Mean         float64 `json:"mean"`
	SigmaWithin  float64 `json:"sigma_within"`
	SigmaOverall float64 `json:"sigma_overall"`
	LSL          float64 `json:"lsl"`
	USL          float64 `json:"usl"`
	N            int     `json:"n"`
}

// Capable reports whether the process meets the conventional 1.33 bar
// on Cpk.
func (r *CapabilityResult) Capable() bool {
	return r.Cpk >= 1.33
}

// Capability computes Cp/Cpk against the within-subgroup sigma estimated
// as R-bar/d2, and Pp/Ppk against the overall sample standard deviation.
// Subgroups must share one size in the 2-10 constant table.
func Capability(subgroups [][]float64, lsl, usl float64) (*CapabilityResult, error) {
	if usl <= lsl {
		return nil, fmt.Errorf("%w: USL %.6g must exceed LSL %.6g", ErrInvalidInput, usl, lsl)
	}
	if len(subgroups) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 subgroups", ErrInvalidInput)
	}
	size := len(subgroups[0])
	cc, ok := constants[size]
	if !ok {
		return nil, fmt.Errorf("%w: subgroup size %d outside the 2-10 table", ErrInvalidInput, size)
	}

	var all []float64
	var rSum float64
	for i, g := range subgroups {
		if len(g) != size {
			return nil, fmt.Errorf("%w: subgroup %d has size %d, expected %d", ErrInvalidInput, i, len(g), size)
		}
		lo, hi := g[0], g[0]
		for _, v := range g {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value in subgroup %d", ErrInvalidInput, i)
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			all = append(all, v)
		}
		rSum += hi - lo
	}

	sigmaW := rSum / float64(len(subgroups)) / cc.D2
	mean := meanOf(all)

	var ss float64
	for _, v := range all {
		ss += (v - mean) * (v - mean)
	}
	sigmaO := math.Sqrt(ss / float64(len(all)-1))

	if sigmaW == 0 || sigmaO == 0 {
		return nil, fmt.Errorf("%w: process shows no variation", ErrInvalidInput)
	}

	return &CapabilityResult{
		Cp:           (usl - lsl) / (6 * sigmaW),
		Cpk:          math.Min(usl-mean, mean-lsl) / (3 * sigmaW),
		Pp:           (usl - lsl) / (6 * sigmaO),
		Ppk:          math.Min(usl-mean, mean-lsl) / (3 * sigmaO),
		Mean:         mean,
		SigmaWithin:  sigmaW,
		SigmaOverall: sigmaO,
		LSL:          lsl,
		USL:          usl,
		N:            len(all),
	}, nil
}
