// Package qa scores a compiled plan before it is rendered. The score is a
// weighted blend of macro accuracy, meal variety, and constraint
// compliance; the verdict gates whether the plan ships as-is, ships with a
// warning, or is reported as failed.
package qa

import (
	"fmt"

	"nutriplan/internal/compile"
	"nutriplan/internal/compliance"
	"nutriplan/internal/plan"
)

const (
	weightMacro      = 0.4
	weightVariety    = 0.3
	weightCompliance = 0.3

	passThreshold = 0.8
	warnThreshold = 0.6
)

// Verdict is the gate decision for a scored plan.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

// Report is the scoring breakdown attached to the pipeline result.
type Report struct {
	MacroScore      float64 `json:"macro_score"`
	VarietyScore    float64 `json:"variety_score"`
	ComplianceScore float64 `json:"compliance_score"`
	Total           float64 `json:"total"`
	Verdict         Verdict `json:"verdict"`
	Summary         string  `json:"summary"`
}

// Score grades a compiled plan. violations are the residual compliance
// findings after the repair loop.
func Score(cp *compile.CompiledPlan, violations []compliance.Violation) Report {
	r := Report{
		MacroScore:      macroScore(cp),
		VarietyScore:    varietyScore(cp.Draft),
		ComplianceScore: complianceScore(violations),
	}
	r.Total = weightMacro*r.MacroScore + weightVariety*r.VarietyScore + weightCompliance*r.ComplianceScore

	switch {
	case r.Total >= passThreshold:
		r.Verdict = VerdictPass
	case r.Total >= warnThreshold:
		r.Verdict = VerdictWarn
	default:
		r.Verdict = VerdictFail
	}
	r.Summary = fmt.Sprintf("macro %.2f, variety %.2f, compliance %.2f -> %.2f (%s)",
		r.MacroScore, r.VarietyScore, r.ComplianceScore, r.Total, r.Verdict)
	return r
}

// macroScore is the fraction of days whose calories land inside the
// tolerance band around the daily target. Without a target every day
// counts as on-target.
func macroScore(cp *compile.CompiledPlan) float64 {
	if len(cp.Days) == 0 {
		return 0
	}
	if cp.DailyTarget == nil || cp.DailyTarget.DailyKcal <= 0 {
		return 1
	}
	within := 0
	for _, d := range cp.Days {
		if d.WithinTolerance {
			within++
		}
	}
	return float64(within) / float64(len(cp.Days))
}

// varietyScore is the ratio of distinct meal names to total meals. A plan
// repeating one dish everywhere scores near zero.
func varietyScore(draft *plan.MealPlanDraft) float64 {
	if draft == nil {
		return 0
	}
	total := 0
	distinct := map[string]bool{}
	for _, day := range draft.Days {
		for _, meal := range day.Meals {
			total++
			distinct[plan.NormalizeName(meal.Name)] = true
		}
	}
	if total == 0 {
		return 0
	}
	return float64(len(distinct)) / float64(total)
}

// complianceScore starts at 1 and loses a quarter per residual violation.
func complianceScore(violations []compliance.Violation) float64 {
	s := 1.0 - 0.25*float64(len(violations))
	if s < 0 {
		return 0
	}
	return s
}
