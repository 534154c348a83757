package compliance

import (
	"testing"

	"nutriplan/internal/intake"
	"nutriplan/internal/plan"
)

func draftWith(day int, slot plan.MealSlot, ingredients ...string) *plan.MealPlanDraft {
	meal := plan.Meal{Slot: slot, Name: "test meal"}
	for _, ing := range ingredients {
		meal.Ingredients = append(meal.Ingredients, plan.Ingredient{Name: ing, Quantity: 100, Unit: "g"})
	}
	return &plan.MealPlanDraft{Days: []plan.Day{{Number: day, Meals: []plan.Meal{meal}}}}
}

func TestScanAllergen(t *testing.T) {
	ci := &intake.ClientIntake{Diet: intake.DietOmnivore, Allergies: []string{"nuts"}}
	got := Scan(draftWith(2, plan.SlotLunch, "almond butter", "rice"), ci)

	if len(got) != 1 {
		t.Fatalf("Expected 1 violation, got %d: %+v", len(got), got)
	}
	v := got[0]
	if v.Kind != KindAllergen || v.DayNumber != 2 || v.MealSlot != plan.SlotLunch {
		t.Errorf("Unexpected violation %+v", v)
	}
	if v.IngredientName != "almond butter" {
		t.Errorf("Expected the original ingredient name, got %q", v.IngredientName)
	}
}

func TestScanDietary(t *testing.T) {
	ci := &intake.ClientIntake{Diet: intake.DietVegan}
	got := Scan(draftWith(1, plan.SlotDinner, "grilled chicken breast"), ci)

	if len(got) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(got))
	}
	if got[0].Kind != KindDietary {
		t.Errorf("Expected dietary kind, got %s", got[0].Kind)
	}
}

// A vegan with a soy allergy eating tofu: tofu is vegan-safe, so only the
// allergen rule fires.
func TestScanVeganSoyTofu(t *testing.T) {
	ci := &intake.ClientIntake{Diet: intake.DietVegan, Allergies: []string{"soy"}}
	got := Scan(draftWith(1, plan.SlotBreakfast, "tofu scramble"), ci)

	if len(got) != 1 {
		t.Fatalf("Expected exactly 1 violation, got %d: %+v", len(got), got)
	}
	if got[0].Kind != KindAllergen {
		t.Errorf("Expected allergen violation, got %s", got[0].Kind)
	}
}

func TestScanMultipleRulesOneIngredient(t *testing.T) {
	ci := &intake.ClientIntake{Diet: intake.DietVegan, Allergies: []string{"dairy"}}
	got := Scan(draftWith(3, plan.SlotSnack, "cheese omelette"), ci)

	// Dairy allergen and vegan dietary both fire on "cheese".
	if len(got) != 2 {
		t.Fatalf("Expected 2 violations, got %d: %+v", len(got), got)
	}
	kinds := map[ViolationKind]bool{}
	for _, v := range got {
		kinds[v.Kind] = true
	}
	if !kinds[KindAllergen] || !kinds[KindDietary] {
		t.Errorf("Expected one violation of each kind, got %+v", got)
	}
}

func TestScanExclusions(t *testing.T) {
	ci := &intake.ClientIntake{Diet: intake.DietOmnivore, Exclusions: []string{"cilantro"}}
	got := Scan(draftWith(1, plan.SlotLunch, "cilantro lime rice"), ci)

	if len(got) != 1 || got[0].Kind != KindDietary {
		t.Fatalf("Expected an exclusion violation, got %+v", got)
	}
}

func TestScanCleanDraft(t *testing.T) {
	ci := &intake.ClientIntake{Diet: intake.DietVegan, Allergies: []string{"nuts"}}
	got := Scan(draftWith(1, plan.SlotDinner, "lentils", "brown rice", "broccoli"), ci)
	if len(got) != 0 {
		t.Fatalf("Expected no violations, got %+v", got)
	}
}

func TestScanDeterministic(t *testing.T) {
	ci := &intake.ClientIntake{Diet: intake.DietVegetarian, Allergies: []string{"fish", "shellfish"}}
	d := draftWith(1, plan.SlotDinner, "shrimp pad thai", "salmon")
	a := Scan(d, ci)
	b := Scan(d, ci)
	if len(a) != len(b) {
		t.Fatalf("Scan must be deterministic: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("Violation %d differs between runs", i)
		}
	}
}
