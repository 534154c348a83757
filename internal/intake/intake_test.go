package intake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validForm() RawIntakeForm {
	return RawIntakeForm{
		Name: " Ada Lovelace ", Sex: "Female", Age: 31, HeightCm: 168, WeightKg: 62,
		DietStyle: "Vegan", MacroStyle: "High Protein", Goal: "lose",
		Allergies:    []string{" Nuts ", "nuts", "Soy"},
		TrainingDays: []string{"Mon", "Wed"},
		PlanDays:     5,
	}
}

func TestNormalize(t *testing.T) {
	ci, err := Normalize("client-1", validForm())
	require.NoError(t, err)

	require.Equal(t, "client-1", ci.ClientID)
	require.Equal(t, "Ada Lovelace", ci.Name)
	require.Equal(t, "female", ci.Sex)
	require.Equal(t, DietVegan, ci.Diet)
	require.Equal(t, MacroHighProtein, ci.Macro)
	require.Equal(t, GoalCut, ci.Goal)
	require.Equal(t, []string{"nuts", "soy"}, ci.Allergies)
	require.Equal(t, 5, ci.PlanDays)
}

func TestNormalizeDefaults(t *testing.T) {
	form := validForm()
	form.MacroStyle = ""
	form.Goal = ""
	form.PlanDays = 0

	ci, err := Normalize("client-1", form)
	require.NoError(t, err)
	require.Equal(t, MacroBalanced, ci.Macro)
	require.Equal(t, GoalMaintain, ci.Goal)
	require.Equal(t, 7, ci.PlanDays)
}

func TestNormalizeItemizesProblems(t *testing.T) {
	form := validForm()
	form.DietStyle = "fruitarian"
	form.Age = 0
	form.HeightCm = -1

	_, err := Normalize("client-1", form)
	require.Error(t, err)
	require.Contains(t, err.Error(), "fruitarian")
	require.Contains(t, err.Error(), "age")
	require.Contains(t, err.Error(), "height")
}

func TestCheckCompatibility(t *testing.T) {
	ci, err := Normalize("c", validForm())
	require.NoError(t, err)
	require.NoError(t, CheckCompatibility(ci))

	ci.Macro = MacroKeto
	require.ErrorIs(t, CheckCompatibility(ci), ErrIncompatibleConstraints)

	ci.Macro = MacroBalanced
	ci.Allergies = []string{"soy", "legumes", "nuts", "gluten"}
	require.ErrorIs(t, CheckCompatibility(ci), ErrIncompatibleConstraints)
}

func TestMifflinTargets(t *testing.T) {
	ci := &ClientIntake{
		Sex: "female", Age: 30, HeightCm: 170, WeightKg: 60,
		Macro: MacroBalanced, Goal: GoalMaintain,
	}

	mp := MifflinCalculator{}.Targets(ci)
	// 10*60 + 6.25*170 - 5*30 - 161 = 1351.5; sedentary multiplier 1.2.
	require.InDelta(t, 1352, mp.BMR, 1)
	require.InDelta(t, 1352*1.2, mp.DailyKcal, 2)

	// Slot shares sum to the full day.
	var kcal float64
	for _, s := range mp.SlotTargets {
		kcal += s.Kcal
	}
	require.InDelta(t, mp.DailyKcal, kcal, 2)
}

func TestMifflinGoalAndActivityAdjustments(t *testing.T) {
	base := &ClientIntake{Sex: "male", Age: 40, HeightCm: 180, WeightKg: 80, Goal: GoalMaintain}
	maintain := MifflinCalculator{}.Targets(base)

	cut := *base
	cut.Goal = GoalCut
	require.Less(t, MifflinCalculator{}.Targets(&cut).DailyKcal, maintain.DailyKcal)

	bulk := *base
	bulk.Goal = GoalBulk
	require.Greater(t, MifflinCalculator{}.Targets(&bulk).DailyKcal, maintain.DailyKcal)

	active := *base
	active.TrainingDays = []string{"mon", "tue", "wed", "thu", "fri"}
	require.Greater(t, MifflinCalculator{}.Targets(&active).DailyKcal, maintain.DailyKcal)
}

func TestMacroStylesShiftShares(t *testing.T) {
	base := &ClientIntake{Sex: "male", Age: 40, HeightCm: 180, WeightKg: 80}

	balanced := *base
	balanced.Macro = MacroBalanced
	keto := *base
	keto.Macro = MacroKeto

	b := MifflinCalculator{}.Targets(&balanced)
	k := MifflinCalculator{}.Targets(&keto)
	require.Less(t, k.CarbsG, b.CarbsG)
	require.Greater(t, k.FatG, b.FatG)
}
