package recipegen

import (
	"encoding/json"
	"fmt"

	"nutriplan/internal/plan"
)

// SchemaValidationError marks an LLM reply that did not conform to the
// expected draft schema. It is a parse failure, not a pipeline failure: the
// caller selects the next fallback tier.
type SchemaValidationError struct {
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("draft failed schema validation: %s", e.Reason)
}

var validSlots = map[plan.MealSlot]bool{
	plan.SlotBreakfast: true,
	plan.SlotLunch:     true,
	plan.SlotDinner:    true,
	plan.SlotSnack:     true,
}

// parseDraft unmarshals and validates a structured draft reply. Validation
// is deliberately separate from generation: any structural defect yields a
// SchemaValidationError and never a partially trusted draft.
func parseDraft(raw string) (*plan.MealPlanDraft, error) {
	var draft plan.MealPlanDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, &SchemaValidationError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func validateDraft(d *plan.MealPlanDraft) error {
	if len(d.Days) == 0 {
		return &SchemaValidationError{Reason: "draft has no days"}
	}
	for _, day := range d.Days {
		if day.Number <= 0 {
			return &SchemaValidationError{Reason: fmt.Sprintf("day number %d is not positive", day.Number)}
		}
		if len(day.Meals) == 0 {
			return &SchemaValidationError{Reason: fmt.Sprintf("day %d has no meals", day.Number)}
		}
		for _, meal := range day.Meals {
			if !validSlots[meal.Slot] {
				return &SchemaValidationError{Reason: fmt.Sprintf("day %d has unknown slot %q", day.Number, meal.Slot)}
			}
			if meal.Name == "" {
				return &SchemaValidationError{Reason: fmt.Sprintf("day %d %s meal has no name", day.Number, meal.Slot)}
			}
			if len(meal.Ingredients) == 0 {
				return &SchemaValidationError{Reason: fmt.Sprintf("day %d %s meal %q has no ingredients", day.Number, meal.Slot, meal.Name)}
			}
			for _, ing := range meal.Ingredients {
				if ing.Name == "" {
					return &SchemaValidationError{Reason: fmt.Sprintf("day %d %s meal has an unnamed ingredient", day.Number, meal.Slot)}
				}
				if ing.Quantity <= 0 {
					return &SchemaValidationError{Reason: fmt.Sprintf("ingredient %q has non-positive quantity", ing.Name)}
				}
			}
		}
	}
	return nil
}
