package qa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nutriplan/internal/compile"
	"nutriplan/internal/compliance"
	"nutriplan/internal/intake"
	"nutriplan/internal/plan"
)

func compiled(mealNames []string, within []bool) *compile.CompiledPlan {
	draft := &plan.MealPlanDraft{}
	cp := &compile.CompiledPlan{DailyTarget: &intake.MetabolicProfile{DailyKcal: 2000}}
	for i, w := range within {
		day := plan.Day{Number: i + 1}
		for _, n := range mealNames {
			day.Meals = append(day.Meals, plan.Meal{Slot: plan.SlotLunch, Name: n})
		}
		draft.Days = append(draft.Days, day)
		cp.Days = append(cp.Days, compile.CompiledDay{Number: i + 1, WithinTolerance: w})
	}
	cp.Draft = draft
	return cp
}

func TestScorePassesCleanVariedPlan(t *testing.T) {
	cp := compiled([]string{"A"}, []bool{true, true})
	// Two days, both on target, two distinct dishes overall.
	cp.Draft.Days[1].Meals[0].Name = "B"

	r := Score(cp, nil)
	require.Equal(t, 1.0, r.MacroScore)
	require.Equal(t, 1.0, r.VarietyScore)
	require.Equal(t, 1.0, r.ComplianceScore)
	require.Equal(t, 1.0, r.Total)
	require.Equal(t, VerdictPass, r.Verdict)
}

func TestScoreWeightsComponents(t *testing.T) {
	// One of two days on target, all meals identical, one violation.
	cp := compiled([]string{"Same dish"}, []bool{true, false})

	r := Score(cp, []compliance.Violation{{DayNumber: 1}})
	require.InDelta(t, 0.5, r.MacroScore, 0.001)
	require.InDelta(t, 0.5, r.VarietyScore, 0.001)
	require.InDelta(t, 0.75, r.ComplianceScore, 0.001)
	require.InDelta(t, 0.4*0.5+0.3*0.5+0.3*0.75, r.Total, 0.001)
	require.Equal(t, VerdictFail, r.Verdict)
}

func TestScoreWarnBand(t *testing.T) {
	// On-target and compliant but fully repetitive: 0.4 + 0.3*small + 0.3.
	cp := compiled([]string{"Same dish"}, []bool{true, true, true, true})
	r := Score(cp, nil)
	require.InDelta(t, 0.25, r.VarietyScore, 0.001)
	require.Equal(t, VerdictWarn, r.Verdict)
}

func TestScoreWithoutTargetIgnoresMacros(t *testing.T) {
	cp := compiled([]string{"A"}, []bool{false})
	cp.DailyTarget = nil
	r := Score(cp, nil)
	require.Equal(t, 1.0, r.MacroScore)
}

func TestComplianceScoreFloorsAtZero(t *testing.T) {
	vs := make([]compliance.Violation, 6)
	require.Equal(t, 0.0, complianceScore(vs))
}
