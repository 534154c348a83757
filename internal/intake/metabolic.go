package intake

import "math"

// SlotTarget is the macro budget for one meal slot.
type SlotTarget struct {
	Slot     string  `json:"slot"`
	Kcal     float64 `json:"kcal"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// MetabolicProfile holds the computed daily and per-slot macro targets.
// Produced once per run and never mutated afterwards.
type MetabolicProfile struct {
	BMR          float64      `json:"bmr"`
	DailyKcal    float64      `json:"daily_kcal"`
	ProteinG     float64      `json:"protein_g"`
	CarbsG       float64      `json:"carbs_g"`
	FatG         float64      `json:"fat_g"`
	SlotTargets  []SlotTarget `json:"slot_targets"`
	TrainingDays int          `json:"training_days"`
}

// TargetsCalculator derives macro targets from a normalized profile. The
// default implementation below is a stand-in; deployments with their own
// metabolic model plug in here.
type TargetsCalculator interface {
	Targets(ci *ClientIntake) *MetabolicProfile
}

// MifflinCalculator computes targets from the Mifflin-St Jeor BMR estimate
// with an activity multiplier derived from the training schedule.
type MifflinCalculator struct{}

// slot share of the daily budget: breakfast, lunch, dinner, snack.
var slotShares = []struct {
	slot  string
	share float64
}{
	{"breakfast", 0.25},
	{"lunch", 0.35},
	{"dinner", 0.30},
	{"snack", 0.10},
}

func (MifflinCalculator) Targets(ci *ClientIntake) *MetabolicProfile {
	bmr := 10*ci.WeightKg + 6.25*ci.HeightCm - 5*float64(ci.Age)
	if ci.Sex == "female" {
		bmr -= 161
	} else {
		bmr += 5
	}

	activity := 1.2 + 0.05*float64(len(ci.TrainingDays))
	if activity > 1.725 {
		activity = 1.725
	}
	daily := bmr * activity

	switch ci.Goal {
	case GoalCut:
		daily *= 0.85
	case GoalBulk:
		daily *= 1.10
	}

	var proteinShare, carbShare, fatShare float64
	switch ci.Macro {
	case MacroHighProtein:
		proteinShare, carbShare, fatShare = 0.35, 0.35, 0.30
	case MacroLowCarb:
		proteinShare, carbShare, fatShare = 0.30, 0.25, 0.45
	case MacroKeto:
		proteinShare, carbShare, fatShare = 0.25, 0.05, 0.70
	default:
		proteinShare, carbShare, fatShare = 0.25, 0.45, 0.30
	}

	mp := &MetabolicProfile{
		BMR:          math.Round(bmr),
		DailyKcal:    math.Round(daily),
		ProteinG:     math.Round(daily * proteinShare / 4),
		CarbsG:       math.Round(daily * carbShare / 4),
		FatG:         math.Round(daily * fatShare / 9),
		TrainingDays: len(ci.TrainingDays),
	}

	for _, s := range slotShares {
		mp.SlotTargets = append(mp.SlotTargets, SlotTarget{
			Slot:     s.slot,
			Kcal:     math.Round(mp.DailyKcal * s.share),
			ProteinG: math.Round(mp.ProteinG * s.share),
			CarbsG:   math.Round(mp.CarbsG * s.share),
			FatG:     math.Round(mp.FatG * s.share),
		})
	}
	return mp
}
