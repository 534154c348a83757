// Package compliance scans meal plan drafts against a user's declared
// allergy and diet-style constraints. The scan is a pure function: no
// mutation, no I/O, deterministic for a given draft and intake.
package compliance

import (
	"fmt"
	"strings"

	"nutriplan/internal/intake"
	"nutriplan/internal/plan"
)

// ViolationKind classifies which rule family an ingredient broke.
type ViolationKind string

const (
	KindAllergen ViolationKind = "allergen"
	KindDietary  ViolationKind = "dietary"
)

// Violation records a single ingredient-level conflict. Violations are
// ephemeral: the repair loop consumes them and nothing persists them.
type Violation struct {
	DayNumber      int           `json:"day"`
	MealSlot       plan.MealSlot `json:"slot"`
	IngredientName string        `json:"ingredient"`
	Kind           ViolationKind `json:"kind"`
	Detail         string        `json:"detail"`
}

// allergenTerms maps a declared allergy to the ingredient keywords that
// trigger it.
var allergenTerms = map[string][]string{
	"dairy":     {"milk", "cheese", "butter", "cream", "yogurt", "yoghurt", "whey", "casein", "ghee"},
	"gluten":    {"wheat", "barley", "rye", "bread", "pasta", "flour", "couscous", "seitan", "bulgur"},
	"nuts":      {"almond", "walnut", "cashew", "pecan", "pistachio", "hazelnut", "macadamia", "nut butter", "peanut"},
	"peanuts":   {"peanut"},
	"tree nuts": {"almond", "walnut", "cashew", "pecan", "pistachio", "hazelnut", "macadamia"},
	"soy":       {"soy", "tofu", "tempeh", "edamame", "miso", "tamari"},
	"eggs":      {"egg"},
	"egg":       {"egg"},
	"fish":      {"salmon", "tuna", "cod", "tilapia", "trout", "anchov", "sardine", "halibut"},
	"shellfish": {"shrimp", "prawn", "crab", "lobster", "clam", "mussel", "oyster", "scallop"},
	"sesame":    {"sesame", "tahini"},
	"legumes":   {"lentil", "chickpea", "bean", "pea", "peanut", "soy"},
}

// dietaryTerms maps a diet style to the keywords it forbids.
var dietaryTerms = map[intake.DietStyle][]string{
	intake.DietVegan: {
		"chicken", "beef", "pork", "lamb", "turkey", "duck", "bacon", "ham", "sausage",
		"fish", "salmon", "tuna", "cod", "shrimp", "prawn", "anchov",
		"egg", "milk", "cheese", "butter", "cream", "yogurt", "yoghurt", "honey", "whey", "gelatin",
	},
	intake.DietVegetarian: {
		"chicken", "beef", "pork", "lamb", "turkey", "duck", "bacon", "ham", "sausage",
		"fish", "salmon", "tuna", "cod", "shrimp", "prawn", "anchov", "gelatin",
	},
	intake.DietPescatarian: {
		"chicken", "beef", "pork", "lamb", "turkey", "duck", "bacon", "ham", "sausage", "gelatin",
	},
}

// Scan checks every ingredient of every meal against the intake's allergy
// set and diet style. A single ingredient may yield several violations, one
// per rule it breaks.
func Scan(draft *plan.MealPlanDraft, ci *intake.ClientIntake) []Violation {
	if draft == nil || ci == nil {
		return nil
	}

	var out []Violation
	for _, day := range draft.Days {
		for _, meal := range day.Meals {
			for _, ing := range meal.Ingredients {
				name := strings.ToLower(ing.Name)
				out = append(out, scanIngredient(day.Number, meal.Slot, ing.Name, name, ci)...)
			}
		}
	}
	return out
}

func scanIngredient(day int, slot plan.MealSlot, original, lowered string, ci *intake.ClientIntake) []Violation {
	var out []Violation

	for _, allergy := range ci.Allergies {
		for _, term := range allergenTerms[allergy] {
			if strings.Contains(lowered, term) {
				out = append(out, Violation{
					DayNumber:      day,
					MealSlot:       slot,
					IngredientName: original,
					Kind:           KindAllergen,
					Detail:         fmt.Sprintf("contains %q, conflicts with declared %s allergy", term, allergy),
				})
				break // one violation per allergy rule
			}
		}
	}

	for _, term := range dietaryTerms[ci.Diet] {
		if strings.Contains(lowered, term) {
			out = append(out, Violation{
				DayNumber:      day,
				MealSlot:       slot,
				IngredientName: original,
				Kind:           KindDietary,
				Detail:         fmt.Sprintf("contains %q, not permitted on a %s diet", term, ci.Diet),
			})
			break
		}
	}

	// User-specific exclusions are treated as dietary rules.
	for _, excl := range ci.Exclusions {
		if excl != "" && strings.Contains(lowered, excl) {
			out = append(out, Violation{
				DayNumber:      day,
				MealSlot:       slot,
				IngredientName: original,
				Kind:           KindDietary,
				Detail:         fmt.Sprintf("contains excluded ingredient %q", excl),
			})
			break
		}
	}

	return out
}
