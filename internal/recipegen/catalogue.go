package recipegen

import (
	_ "embed"
	"encoding/json"
	"sync"

	"nutriplan/internal/compliance"
	"nutriplan/internal/intake"
	"nutriplan/internal/plan"
)

//go:embed catalogue.json
var catalogueJSON []byte

// catalogueRecipe is one entry of the static recipe catalogue backing the
// deterministic generation tier.
type catalogueRecipe struct {
	Name        string            `json:"name"`
	Slot        plan.MealSlot     `json:"slot"`
	Cuisine     string            `json:"cuisine"`
	Protein     string            `json:"protein"`
	Diets       []string          `json:"diets"`
	Ingredients []plan.Ingredient `json:"ingredients"`
	Method      string            `json:"method"`
}

// Catalogue is the rule-based generator of last resort. It is pure and
// synchronous and always produces a draft, so the pipeline never stalls
// for lack of an LLM provider.
type Catalogue struct {
	loadOnce sync.Once
	recipes  []catalogueRecipe
}

// NewCatalogue returns the embedded catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{}
}

func (c *Catalogue) load() {
	c.loadOnce.Do(func() {
		var raw struct {
			Recipes []catalogueRecipe `json:"recipes"`
		}
		// The catalogue is compiled in; a decode failure is a programmer
		// error and surfaces as an empty catalogue, which the fallback
		// meals absorb.
		_ = json.Unmarshal(catalogueJSON, &raw)
		c.recipes = raw.Recipes
	})
}

// Generate builds a draft from catalogue recipes that pass the client's
// constraints, cycling per day for variety.
func (c *Catalogue) Generate(ci *intake.ClientIntake, _ *intake.MetabolicProfile) *plan.MealPlanDraft {
	c.load()

	perSlot := map[plan.MealSlot][]catalogueRecipe{}
	for _, r := range c.recipes {
		if c.allowed(r, ci) {
			perSlot[r.Slot] = append(perSlot[r.Slot], r)
		}
	}

	slots := []plan.MealSlot{plan.SlotBreakfast, plan.SlotLunch, plan.SlotDinner, plan.SlotSnack}
	draft := &plan.MealPlanDraft{Notes: "generated from the built-in recipe catalogue"}
	for dayNum := 1; dayNum <= ci.PlanDays; dayNum++ {
		day := plan.Day{Number: dayNum}
		for _, slot := range slots {
			pool := perSlot[slot]
			var meal plan.Meal
			if len(pool) == 0 {
				meal = fallbackMeal(slot)
			} else {
				r := pool[(dayNum-1)%len(pool)]
				meal = plan.Meal{
					Slot:        slot,
					Name:        r.Name,
					Cuisine:     r.Cuisine,
					Protein:     r.Protein,
					Ingredients: append([]plan.Ingredient(nil), r.Ingredients...),
					Method:      r.Method,
				}
			}
			day.Meals = append(day.Meals, meal)
		}
		draft.Days = append(draft.Days, day)
	}
	return draft
}

// allowed filters a recipe through the same gate the final draft must
// pass, so catalogue output is compliant by construction.
func (c *Catalogue) allowed(r catalogueRecipe, ci *intake.ClientIntake) bool {
	dietOK := false
	for _, d := range r.Diets {
		if d == string(ci.Diet) {
			dietOK = true
			break
		}
	}
	if !dietOK {
		return false
	}

	probe := &plan.MealPlanDraft{Days: []plan.Day{{Number: 1, Meals: []plan.Meal{{
		Slot:        r.Slot,
		Name:        r.Name,
		Ingredients: r.Ingredients,
	}}}}}
	return len(compliance.Scan(probe, ci)) == 0
}

// fallbackMeal is a minimal, allergen-free plant meal used when filtering
// empties a slot's recipe pool.
func fallbackMeal(slot plan.MealSlot) plan.Meal {
	switch slot {
	case plan.SlotBreakfast:
		return plan.Meal{
			Slot: slot, Name: "Banana rice porridge", Cuisine: "plain", Protein: "rice",
			Ingredients: []plan.Ingredient{
				{Name: "white rice", Quantity: 60, Unit: "g"},
				{Name: "banana", Quantity: 100, Unit: "g"},
			},
			Method: "Simmer rice until soft, top with sliced banana.",
		}
	case plan.SlotSnack:
		return plan.Meal{
			Slot: slot, Name: "Fruit plate", Cuisine: "plain", Protein: "fruit",
			Ingredients: []plan.Ingredient{
				{Name: "apple", Quantity: 150, Unit: "g"},
				{Name: "banana", Quantity: 100, Unit: "g"},
			},
			Method: "Slice and serve.",
		}
	default:
		return plan.Meal{
			Slot: slot, Name: "Rice and roast vegetables", Cuisine: "plain", Protein: "rice",
			Ingredients: []plan.Ingredient{
				{Name: "white rice", Quantity: 120, Unit: "g"},
				{Name: "broccoli", Quantity: 120, Unit: "g"},
				{Name: "carrot", Quantity: 80, Unit: "g"},
				{Name: "olive oil", Quantity: 10, Unit: "g"},
			},
			Method: "Roast vegetables with oil, serve over rice.",
		}
	}
}
