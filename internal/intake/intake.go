package intake

import (
	"errors"
	"fmt"
	"strings"
)

// DietStyle is the user's declared eating pattern.
type DietStyle string

const (
	DietOmnivore      DietStyle = "omnivore"
	DietVegetarian    DietStyle = "vegetarian"
	DietVegan         DietStyle = "vegan"
	DietPescatarian   DietStyle = "pescatarian"
	DietMediterranean DietStyle = "mediterranean"
)

// MacroStyle is the macro split requested for the plan.
type MacroStyle string

const (
	MacroBalanced    MacroStyle = "balanced"
	MacroHighProtein MacroStyle = "high-protein"
	MacroLowCarb     MacroStyle = "low-carb"
	MacroKeto        MacroStyle = "keto"
)

// Goal is the broad direction of the user's nutrition target.
type Goal string

const (
	GoalMaintain Goal = "maintain"
	GoalCut      Goal = "cut"
	GoalBulk     Goal = "bulk"
)

// RawIntakeForm is the payload shape delivered by the external job
// scheduler. All fields arrive as loosely typed form values.
type RawIntakeForm struct {
	Name             string   `json:"name"`
	Sex              string   `json:"sex"`
	Age              int      `json:"age"`
	HeightCm         float64  `json:"height_cm"`
	WeightKg         float64  `json:"weight_kg"`
	DietStyle        string   `json:"diet_style"`
	MacroStyle       string   `json:"macro_style"`
	Goal             string   `json:"goal"`
	Allergies        []string `json:"allergies"`
	Exclusions       []string `json:"exclusions"`
	TrainingDays     []string `json:"training_days"`
	PlanDays         int      `json:"plan_days"`
	PreferredCuisine string   `json:"preferred_cuisine"`
}

// ClientIntake is the normalized, validated profile. Immutable once
// produced; everything downstream reads it and nothing writes it.
type ClientIntake struct {
	ClientID         string
	Name             string
	Sex              string
	Age              int
	HeightCm         float64
	WeightKg         float64
	Diet             DietStyle
	Macro            MacroStyle
	Goal             Goal
	Allergies        []string
	Exclusions       []string
	TrainingDays     []string
	PlanDays         int
	PreferredCuisine string
}

// ErrIncompatibleConstraints marks a profile whose declared constraints
// cannot be satisfied together. The pipeline surfaces it as a normal failed
// result, not as an exception.
var ErrIncompatibleConstraints = errors.New("declared constraints are mutually incompatible")

var dietStyles = map[string]DietStyle{
	"omnivore":      DietOmnivore,
	"vegetarian":    DietVegetarian,
	"vegan":         DietVegan,
	"pescatarian":   DietPescatarian,
	"mediterranean": DietMediterranean,
}

var macroStyles = map[string]MacroStyle{
	"balanced":     MacroBalanced,
	"high-protein": MacroHighProtein,
	"high protein": MacroHighProtein,
	"low-carb":     MacroLowCarb,
	"low carb":     MacroLowCarb,
	"keto":         MacroKeto,
}

var goals = map[string]Goal{
	"maintain": GoalMaintain,
	"cut":      GoalCut,
	"lose":     GoalCut,
	"bulk":     GoalBulk,
	"gain":     GoalBulk,
}

// Normalize converts a raw intake form into a validated ClientIntake.
func Normalize(clientID string, form RawIntakeForm) (*ClientIntake, error) {
	var problems []string

	diet, ok := dietStyles[canon(form.DietStyle)]
	if !ok {
		problems = append(problems, fmt.Sprintf("unknown diet style %q", form.DietStyle))
	}

	macro := MacroBalanced
	if form.MacroStyle != "" {
		macro, ok = macroStyles[canon(form.MacroStyle)]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown macro style %q", form.MacroStyle))
		}
	}

	goal := GoalMaintain
	if form.Goal != "" {
		goal, ok = goals[canon(form.Goal)]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown goal %q", form.Goal))
		}
	}

	if form.Age <= 0 || form.Age > 120 {
		problems = append(problems, fmt.Sprintf("age %d out of range", form.Age))
	}
	if form.HeightCm <= 0 {
		problems = append(problems, "height must be positive")
	}
	if form.WeightKg <= 0 {
		problems = append(problems, "weight must be positive")
	}

	days := form.PlanDays
	if days == 0 {
		days = 7
	}
	if days < 1 || days > 14 {
		problems = append(problems, fmt.Sprintf("plan length %d days unsupported", days))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid intake: %s", strings.Join(problems, "; "))
	}

	return &ClientIntake{
		ClientID:         clientID,
		Name:             strings.TrimSpace(form.Name),
		Sex:              canon(form.Sex),
		Age:              form.Age,
		HeightCm:         form.HeightCm,
		WeightKg:         form.WeightKg,
		Diet:             diet,
		Macro:            macro,
		Goal:             goal,
		Allergies:        canonSet(form.Allergies),
		Exclusions:       canonSet(form.Exclusions),
		TrainingDays:     canonSet(form.TrainingDays),
		PlanDays:         days,
		PreferredCuisine: canon(form.PreferredCuisine),
	}, nil
}

// CheckCompatibility rejects constraint combinations that no plan can
// satisfy, e.g. a plant-only diet with a keto macro split or an allergy set
// so broad a vegan plan has no protein source left.
func CheckCompatibility(ci *ClientIntake) error {
	if ci.Diet == DietVegan && ci.Macro == MacroKeto {
		return fmt.Errorf("%w: vegan diet with keto macros", ErrIncompatibleConstraints)
	}
	if ci.Diet == DietVegan {
		blocked := 0
		for _, a := range ci.Allergies {
			switch a {
			case "soy", "legumes", "nuts", "gluten":
				blocked++
			}
		}
		if blocked >= 4 {
			return fmt.Errorf("%w: vegan diet with no remaining protein sources", ErrIncompatibleConstraints)
		}
	}
	return nil
}

func canon(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// canonSet lowercases, trims and deduplicates, preserving first-seen order.
func canonSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		c := canon(s)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
