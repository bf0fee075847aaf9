package guardian

import (
	"fmt"
	"time"
)

// TestID names an analysis the guardian knows the assumptions of.
type TestID string

const (
	TestOneSampleT TestID = "one_sample_t"
	TestTwoSampleT TestID = "two_sample_t"
	TestPairedT    TestID = "paired_t"
	TestANOVA      TestID = "anova"
	TestPearson    TestID = "pearson"
	TestRegression TestID = "regression"
)

// ErrUnknownTest is returned for a TestID the guardian has no
// assumption profile for.
type ErrUnknownTest struct {
	Test TestID
}

func (e *ErrUnknownTest) Error() string {
	return fmt.Sprintf("guardian: unknown test %q", e.Test)
}

// Report is the full assumption verdict for one analysis request.
type Report struct {
	Test             TestID    `json:"test"`
	Results          []Result  `json:"results"`
	AllPassed        bool      `json:"all_passed"`
	CriticalFailures int       `json:"critical_failures"`
	Warnings         int       `json:"warnings"`
	Recommendations  []string  `json:"recommendations,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Blocked reports whether strict mode should refuse to run the test.
func (r *Report) Blocked() bool {
	return r.CriticalFailures > 0
}

// alternatives maps a failed check to the nonparametric or robust
// substitute for each parametric test.
var alternatives = map[TestID]map[string]string{
	TestOneSampleT: {
		CheckNormality: "Wilcoxon signed-rank test",
	},
	TestTwoSampleT: {
		CheckNormality:   "Mann-Whitney U test",
		CheckHomogeneity: "Welch's t-test",
	},
	TestPairedT: {
		CheckNormality: "Wilcoxon signed-rank test",
	},
	TestANOVA: {
		CheckNormality:   "Kruskal-Wallis test",
		CheckHomogeneity: "Kruskal-Wallis test",
	},
	TestPearson: {
		CheckNormality: "Spearman rank correlation",
		CheckOutliers:  "Spearman rank correlation",
	},
	TestRegression: {
		CheckNormality: "rank-based regression on transformed data",
	},
}

// Check runs the assumption profile of the given test over its groups and
// assembles the report. Per-sample checks (normality, outliers,
// independence) run on every group; homogeneity runs across groups when
// there are at least two.
func (c *Checker) Check(test TestID, groups [][]float64) (*Report, error) {
	alt, known := alternatives[test]
	if !known {
		return nil, &ErrUnknownTest{Test: test}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("guardian: no data groups supplied")
	}
	for i, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("guardian: group %d is empty", i+1)
		}
	}

	report := &Report{
		Test:        test,
		GeneratedAt: time.Now().UTC(),
	}

	for i, g := range groups {
		norm := c.Normality(g)
		norm.Group = i + 1
		report.add(norm, alt)

		out := c.Outliers(g)
		out.Group = i + 1
		report.add(out, alt)

		ind := c.Independence(g)
		ind.Group = i + 1
		report.add(ind, alt)
	}

	if len(groups) >= 2 {
		report.add(c.Homogeneity(groups), alt)
	}
	report.add(c.SampleSize(groups), alt)

	report.AllPassed = report.CriticalFailures == 0 && report.Warnings == 0
	return report, nil
}

func (r *Report) add(res Result, alt map[string]string) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case StatusFail:
		if res.Severity == SeverityCritical {
			r.CriticalFailures++
		} else {
			r.Warnings++
		}
		r.recommend(res.Name, alt)
	case StatusWarning:
		r.Warnings++
		if res.Severity == SeverityWarning {
			r.recommend(res.Name, alt)
		}
	}
}

func (r *Report) recommend(check string, alt map[string]string) {
	name, ok := alt[check]
	if !ok {
		return
	}
	for _, existing := range r.Recommendations {
		if existing == name {
			return
		}
	}
	r.Recommendations = append(r.Recommendations, name)
}
