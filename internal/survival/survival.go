// Package survival implements time-to-event analysis: the Kaplan-Meier
// product-limit estimator and the two-group log-rank test.
package survival

import (
	"errors"
	"math"
	"sort"

	"stickforstats/internal/stats/dist"
)

// ErrInvalidInput is returned for empty, negative-time or otherwise
// unusable survival data.
var ErrInvalidInput = errors.New("survival: invalid input")

// Observation is one subject: the follow-up time and whether the event
// occurred (false means censored at that time).
type Observation struct {
	Time  float64 `json:"time"`
	Event bool    `json:"event"`
}

// StepPoint is one step of the Kaplan-Meier curve, at a distinct event time.
type StepPoint struct {
	Time     float64 `json:"time"`
	AtRisk   int     `json:"at_risk"`
	Events   int     `json:"events"`
	Censored int     `json:"censored"`
	Survival float64 `json:"survival"`
	StdErr   float64 `json:"std_err"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
}

// KMResult is the fitted Kaplan-Meier curve.
type KMResult struct {
	Points    []StepPoint `json:"points"`
	N         int         `json:"n"`
	NEvents   int         `json:"n_events"`
	NCensored int         `json:"n_censored"`
	// MedianSurvival is the earliest time the curve reaches 0.5, NaN when
	// the curve never drops that far.
	MedianSurvival float64 `json:"median_survival"`
}

// MedianReached reports whether the survival curve dropped to 0.5.
func (r *KMResult) MedianReached() bool {
	return !math.IsNaN(r.MedianSurvival)
}

const z95 = 1.959963984540054

// KaplanMeier fits the product-limit estimator. Standard errors follow
// Greenwood's formula and confidence intervals are the plain 95% normal
// bounds clamped to [0, 1]. Censored observations reduce the risk set
// between event times but produce no step of their own.
func KaplanMeier(obs []Observation) (*KMResult, error) {
	if len(obs) == 0 {
		return nil, ErrInvalidInput
	}
	for _, o := range obs {
		if o.Time < 0 || math.IsNaN(o.Time) || math.IsInf(o.Time, 0) {
			return nil, ErrInvalidInput
		}
	}

	sorted := append([]Observation(nil), obs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Time != sorted[j].Time {
			return sorted[i].Time < sorted[j].Time
		}
		// Events before censorings at the same time: a subject censored at
		// t is still at risk for the event at t.
		return sorted[i].Event && !sorted[j].Event
	})

	res := &KMResult{
		N:              len(sorted),
		MedianSurvival: math.NaN(),
	}

	surv := 1.0
	greenwood := 0.0
	atRisk := len(sorted)

	for i := 0; i < len(sorted); {
		t := sorted[i].Time
		events, censored := 0, 0
		for i < len(sorted) && sorted[i].Time == t {
			if sorted[i].Event {
				events++
			} else {
				censored++
			}
			i++
		}
		res.NEvents += events
		res.NCensored += censored

		if events > 0 {
			d := float64(events)
			n := float64(atRisk)
			surv *= 1 - d/n
			if n > d {
				greenwood += d / (n * (n - d))
			}

			se := surv * math.Sqrt(greenwood)
			if surv == 0 {
				se = 0
			}
			point := StepPoint{
				Time:     t,
				AtRisk:   atRisk,
				Events:   events,
				Censored: censored,
				Survival: surv,
				StdErr:   se,
				CILower:  math.Max(0, surv-z95*se),
				CIUpper:  math.Min(1, surv+z95*se),
			}
			res.Points = append(res.Points, point)

			if math.IsNaN(res.MedianSurvival) && surv <= 0.5 {
				res.MedianSurvival = t
			}
		}
		atRisk -= events + censored
	}

	if res.NEvents == 0 {
		return nil, ErrInvalidInput
	}
	return res, nil
}

// LogRankResult is the two-group log-rank comparison.
type LogRankResult struct {
	ChiSquare float64 `json:"chi_square"`
	DF        float64 `json:"df"`
	P         float64 `json:"p_value"`
	// Observed and expected event counts in the first group.
	Observed1 float64 `json:"observed_1"`
	Expected1 float64 `json:"expected_1"`
	N1        int     `json:"n1"`
	N2        int     `json:"n2"`
}

// LogRank compares the survival experience of two groups. At every distinct
// event time the observed events in group 1 are compared against the
// hypergeometric expectation given the pooled risk set; the squared total
// deviation over the summed variance is chi-square with 1 df.
func LogRank(group1, group2 []Observation) (*LogRankResult, error) {
	if len(group1) == 0 || len(group2) == 0 {
		return nil, ErrInvalidInput
	}

	type subject struct {
		time  float64
		event bool
		g1    bool
	}
	pooled := make([]subject, 0, len(group1)+len(group2))
	for _, o := range group1 {
		if o.Time < 0 || math.IsNaN(o.Time) || math.IsInf(o.Time, 0) {
			return nil, ErrInvalidInput
		}
		pooled = append(pooled, subject{o.Time, o.Event, true})
	}
	for _, o := range group2 {
		if o.Time < 0 || math.IsNaN(o.Time) || math.IsInf(o.Time, 0) {
			return nil, ErrInvalidInput
		}
		pooled = append(pooled, subject{o.Time, o.Event, false})
	}
	sort.Slice(pooled, func(i, j int) bool { return pooled[i].time < pooled[j].time })

	atRisk1, atRisk := len(group1), len(pooled)
	var observed1, expected1, variance float64
	anyEvent := false

	for i := 0; i < len(pooled); {
		t := pooled[i].time
		d, d1, removed, removed1 := 0, 0, 0, 0
		for i < len(pooled) && pooled[i].time == t {
			removed++
			if pooled[i].g1 {
				removed1++
			}
			if pooled[i].event {
				d++
				if pooled[i].g1 {
					d1++
				}
			}
			i++
		}
		if d > 0 {
			anyEvent = true
			n := float64(atRisk)
			n1 := float64(atRisk1)
			dd := float64(d)
			observed1 += float64(d1)
			expected1 += dd * n1 / n
			if atRisk > 1 {
				variance += dd * (n1 / n) * ((n - n1) / n) * (n - dd) / (n - 1)
			}
		}
		atRisk -= removed
		atRisk1 -= removed1
	}

	if !anyEvent || variance == 0 {
		return nil, ErrInvalidInput
	}

	diff := observed1 - expected1
	chi := diff * diff / variance
	return &LogRankResult{
		ChiSquare: chi,
		DF:        1,
		P:         dist.ChiSquareSF(chi, 1),
		Observed1: observed1,
		Expected1: expected1,
		N1:        len(group1),
		N2:        len(group2),
	}, nil
}
