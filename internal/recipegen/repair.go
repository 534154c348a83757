package recipegen

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"nutriplan/internal/compliance"
	"nutriplan/internal/intake"
	"nutriplan/internal/plan"
	"nutriplan/internal/shared"
)

// RepairViolations runs the bounded compliance-repair loop. Each iteration
// issues one targeted LLM call replacing only the flagged {day, slot}
// meals, then re-scans. The loop is an explicit countdown, never
// recursion, and issues at most maxRetries+1 LLM calls. Residual
// violations are returned, not raised: a best-effort draft always comes
// back, and a failed repair attempt leaves the draft untouched.
func (a *Agent) RepairViolations(
	ctx context.Context,
	draft *plan.MealPlanDraft,
	violations []compliance.Violation,
	ci *intake.ClientIntake,
	maxRetries int,
) (*plan.MealPlanDraft, []compliance.Violation, []shared.AgentMeta) {
	var metas []shared.AgentMeta
	current := draft
	remaining := violations

	if a.repairGen == nil {
		return current, remaining, metas
	}

	for calls := 0; calls <= maxRetries && len(remaining) > 0; calls++ {
		patched, meta, err := a.repairOnce(ctx, current, remaining, ci)
		metas = append(metas, meta)
		if err != nil {
			// Fail open: a broken repair attempt must never lose the
			// draft we already have.
			a.logger.Warn("repair attempt failed, keeping draft unmodified",
				zap.Int("attempt", calls+1), zap.Error(err))
			continue
		}
		current = patched
		remaining = compliance.Scan(current, ci)
	}

	if len(remaining) > 0 {
		a.logger.Warn("residual compliance violations after repair loop",
			zap.Int("count", len(remaining)))
	}
	return current, remaining, metas
}

type mealReplacement struct {
	Day  int           `json:"day"`
	Slot plan.MealSlot `json:"slot"`
	Meal plan.Meal     `json:"meal"`
}

// repairOnce issues one targeted repair call and patches the flagged meals
// into a copy of the draft. Meals the call did not flag are carried over
// unchanged.
func (a *Agent) repairOnce(ctx context.Context, draft *plan.MealPlanDraft, violations []compliance.Violation, ci *intake.ClientIntake) (*plan.MealPlanDraft, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: "PlanRepair"}

	flaggedSet := flaggedMeals(violations)
	data := repairPromptData{
		profilePromptData: profileData(ci, nil),
		Flagged:           flaggedDetails(draft, violations),
	}
	data.UsedProteins, data.UsedCuisines = varietyHints(draft, flaggedSet)

	prompt, err := renderPrompt("repair", repairPrompt, data)
	if err != nil {
		return nil, meta, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.round1Timeout)
	defer cancel()

	resp, err := a.repairGen.GenerateContent(callCtx, prompt)
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return nil, meta, fmt.Errorf("repair call failed: %w", err)
	}

	var raw struct {
		Meals []mealReplacement `json:"meals"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
		return nil, meta, &SchemaValidationError{Reason: fmt.Sprintf("repair reply is not valid JSON: %v", err)}
	}
	if len(raw.Meals) == 0 {
		return nil, meta, &SchemaValidationError{Reason: "repair reply contains no meals"}
	}

	patched := patchDraft(draft, raw.Meals, flaggedSet)
	return patched, meta, nil
}

type mealKey struct {
	day  int
	slot plan.MealSlot
}

func flaggedMeals(violations []compliance.Violation) map[mealKey]bool {
	set := make(map[mealKey]bool, len(violations))
	for _, v := range violations {
		set[mealKey{day: v.DayNumber, slot: v.MealSlot}] = true
	}
	return set
}

func flaggedDetails(draft *plan.MealPlanDraft, violations []compliance.Violation) []flaggedMealData {
	byKey := make(map[mealKey]*flaggedMealData)
	var order []mealKey
	for _, v := range violations {
		k := mealKey{day: v.DayNumber, slot: v.MealSlot}
		fd, ok := byKey[k]
		if !ok {
			name := ""
			if m := draft.Meal(v.DayNumber, v.MealSlot); m != nil {
				name = m.Name
			}
			fd = &flaggedMealData{Day: v.DayNumber, Slot: string(v.MealSlot), MealName: name}
			byKey[k] = fd
			order = append(order, k)
		}
		if fd.Detail != "" {
			fd.Detail += "; "
		}
		fd.Detail += v.Detail
	}

	out := make([]flaggedMealData, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}

// varietyHints collects the proteins and cuisines already used by meals
// that are not being replaced, as soft hints for the repair call.
func varietyHints(draft *plan.MealPlanDraft, flagged map[mealKey]bool) (proteins, cuisines []string) {
	pSet := map[string]bool{}
	cSet := map[string]bool{}
	for _, day := range draft.Days {
		for _, meal := range day.Meals {
			if flagged[mealKey{day: day.Number, slot: meal.Slot}] {
				continue
			}
			if meal.Protein != "" {
				pSet[meal.Protein] = true
			}
			if meal.Cuisine != "" {
				cSet[meal.Cuisine] = true
			}
		}
	}
	for p := range pSet {
		proteins = append(proteins, p)
	}
	for c := range cSet {
		cuisines = append(cuisines, c)
	}
	sort.Strings(proteins)
	sort.Strings(cuisines)
	return proteins, cuisines
}

// patchDraft builds a copy of the draft with flagged meals replaced.
// Replacements for meals that were never flagged are ignored; everything
// untouched is carried over as-is.
func patchDraft(draft *plan.MealPlanDraft, replacements []mealReplacement, flagged map[mealKey]bool) *plan.MealPlanDraft {
	byKey := make(map[mealKey]plan.Meal, len(replacements))
	for _, r := range replacements {
		k := mealKey{day: r.Day, slot: r.Slot}
		if !flagged[k] {
			continue
		}
		m := r.Meal
		m.Slot = r.Slot
		byKey[k] = m
	}

	out := &plan.MealPlanDraft{Notes: draft.Notes, Days: make([]plan.Day, len(draft.Days))}
	for i, day := range draft.Days {
		newDay := plan.Day{Number: day.Number, Meals: make([]plan.Meal, len(day.Meals))}
		for j, meal := range day.Meals {
			if repl, ok := byKey[mealKey{day: day.Number, slot: meal.Slot}]; ok {
				newDay.Meals[j] = repl
			} else {
				newDay.Meals[j] = meal
			}
		}
		out.Days[i] = newDay
	}
	return out
}
