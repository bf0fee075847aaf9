package sqc

// Western Electric run rules. Rule numbers appear in Point.Violations.
//
//	1: one point beyond the 3-sigma limits
//	2: two of three consecutive points beyond 2 sigma on the same side
//	3: four of five consecutive points beyond 1 sigma on the same side
//	4: eight consecutive points on the same side of the center line
const (
	RuleBeyondLimits  = 1
	RuleTwoOfThree    = 2
	RuleFourOfFive    = 3
	RuleEightSameSide = 4
)

type ruleMode int

const (
	// allRules applies the full Western Electric set, for charts with
	// symmetric 3-sigma limits.
	allRules ruleMode = iota
	// limitRuleOnly checks only the control limits, for attribute and
	// range charts where the zone model does not hold.
	limitRuleOnly
)

// applyRules fills chart.Points and chart.OutOfControl from the raw
// plotted values. The last point of a triggering window carries the
// violation.
func applyRules(chart *Chart, values []float64, mode ruleMode) {
	chart.Points = make([]Point, len(values))
	for i, v := range values {
		chart.Points[i] = Point{Index: i, Value: v}
	}

	for i, v := range values {
		if v > chart.UCL || v < chart.LCL {
			chart.Points[i].Violations = append(chart.Points[i].Violations, RuleBeyondLimits)
		}
	}

	if mode == allRules {
		sigma := (chart.UCL - chart.Center) / 3
		if sigma > 0 {
			flagRunRule(chart, values, RuleTwoOfThree, 3, 2, chart.Center+2*sigma, chart.Center-2*sigma)
			flagRunRule(chart, values, RuleFourOfFive, 5, 4, chart.Center+sigma, chart.Center-sigma)
			flagRunRule(chart, values, RuleEightSameSide, 8, 8, chart.Center, chart.Center)
		}
	}

	for i := range chart.Points {
		if len(chart.Points[i].Violations) > 0 {
			chart.OutOfControl = append(chart.OutOfControl, i)
		}
	}
}

// flagRunRule scans windows of `window` consecutive points for at least
// `need` beyond the upper threshold, or at least `need` below the lower
// one. The flagged point is the last one on the violating side of the
// window, the point that completes the pattern. A point exactly on the
// center line counts for neither side.
func flagRunRule(chart *Chart, values []float64, rule, window, need int, upper, lower float64) {
	for end := window - 1; end < len(values); end++ {
		above, below := 0, 0
		lastAbove, lastBelow := -1, -1
		for i := end - window + 1; i <= end; i++ {
			if values[i] > upper {
				above++
				lastAbove = i
			}
			if values[i] < lower {
				below++
				lastBelow = i
			}
		}
		if above >= need {
			flagPoint(chart, lastAbove, rule)
		}
		if below >= need {
			flagPoint(chart, lastBelow, rule)
		}
	}
}

func flagPoint(chart *Chart, i, rule int) {
	p := &chart.Points[i]
	if !hasViolation(p, rule) {
		p.Violations = append(p.Violations, rule)
	}
}

func hasViolation(p *Point, rule int) bool {
	for _, v := range p.Violations {
		if v == rule {
			return true
		}
	}
	return false
}
