package recipegen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nutriplan/internal/intake"
	"nutriplan/internal/llm"
	"nutriplan/internal/plan"
	"nutriplan/internal/resolver"
	"nutriplan/internal/shared"
)

// runResolvedFlow is the preferred tier: Round 1 asks the model for the
// plan's distinct ingredient list, the resolver verifies it, Round 2 asks
// for the full plan with the verified nutrition appended as evidence.
func (a *Agent) runResolvedFlow(ctx context.Context, ci *intake.ClientIntake, mp *intake.MetabolicProfile) (*plan.MealPlanDraft, []shared.AgentMeta, error) {
	names, meta1, err := a.runIngredientRound(ctx, ci, mp)
	metas := []shared.AgentMeta{meta1}
	if err != nil {
		return nil, metas, err
	}

	items := make([]resolver.Item, 0, len(names))
	for _, n := range names {
		items = append(items, resolver.Item{Name: n})
	}
	resolutions := a.res.Resolve(ctx, items)

	draft, meta2, err := a.runPlanRound(ctx, ci, mp, names, resolutions)
	metas = append(metas, meta2)
	if err != nil {
		return nil, metas, err
	}

	anchorNutrition(draft, resolutions)
	return draft, metas, nil
}

// runIngredientRound is Round 1. It runs under the short call timeout and
// with model substitution.
func (a *Agent) runIngredientRound(ctx context.Context, ci *intake.ClientIntake, mp *intake.MetabolicProfile) ([]string, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: "IngredientScout"}

	prompt, err := renderPrompt("ingredients", ingredientPrompt, profileData(ci, mp))
	if err != nil {
		return nil, meta, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.round1Timeout)
	defer cancel()

	resp, err := a.round1Gen.GenerateContent(callCtx, prompt)
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return nil, meta, fmt.Errorf("ingredient round failed: %w", err)
	}

	var raw struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
		return nil, meta, &SchemaValidationError{Reason: fmt.Sprintf("ingredient list is not valid JSON: %v", err)}
	}
	if len(raw.Ingredients) == 0 {
		return nil, meta, &SchemaValidationError{Reason: "ingredient list is empty"}
	}
	return raw.Ingredients, meta, nil
}

// runPlanRound is Round 2: the original profile, the model's own Round-1
// output, and the resolution results as contextual evidence.
func (a *Agent) runPlanRound(ctx context.Context, ci *intake.ClientIntake, mp *intake.MetabolicProfile, names []string, resolutions []resolver.Resolved) (*plan.MealPlanDraft, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: "PlanChef"}

	data := planPromptData{
		profilePromptData:  profileData(ci, mp),
		PlannedIngredients: names,
	}
	for _, r := range resolutions {
		row := resolutionPromptData{Name: r.Name, Resolved: r.Resolved}
		if r.Resolved {
			best := r.Matches[0]
			row.Description = best.Description
			row.FoodID = best.FoodID
			row.Kcal = best.Nutrition.Kcal
			row.ProteinG = best.Nutrition.ProteinG
			row.CarbsG = best.Nutrition.CarbsG
			row.FatG = best.Nutrition.FatG
		}
		data.Resolutions = append(data.Resolutions, row)
	}

	prompt, err := renderPrompt("plan", planPrompt, data)
	if err != nil {
		return nil, meta, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.round2Timeout)
	defer cancel()

	resp, err := a.planGen.GenerateContent(callCtx, prompt)
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return nil, meta, fmt.Errorf("plan round failed: %w", err)
	}

	draft, err := parseDraft(resp.Content)
	if err != nil {
		return nil, meta, err
	}
	return draft, meta, nil
}

// runSingleRound is the fallback tier: one structured call without
// ingredient pre-resolution, wrapped in bounded exponential-backoff retry.
func (a *Agent) runSingleRound(ctx context.Context, ci *intake.ClientIntake, mp *intake.MetabolicProfile) (*plan.MealPlanDraft, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: "PlanChef", Attempts: singleRoundRetries}

	prompt, err := renderPrompt("plan", planPrompt, planPromptData{profilePromptData: profileData(ci, mp)})
	if err != nil {
		return nil, meta, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.round2Timeout)
	defer cancel()

	gen := llm.WithRetry(a.planGen, singleRoundRetries, retryBaseDelay)
	resp, err := gen.GenerateContent(callCtx, prompt)
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return nil, meta, fmt.Errorf("single-round generation failed: %w", err)
	}

	draft, err := parseDraft(resp.Content)
	if err != nil {
		return nil, meta, err
	}
	return draft, meta, nil
}

// anchorNutrition copies verified nutrition onto every ingredient the
// resolver recognized, regardless of whether the model already did.
func anchorNutrition(draft *plan.MealPlanDraft, resolutions []resolver.Resolved) {
	byName := make(map[string]resolver.Match, len(resolutions))
	for _, r := range resolutions {
		if r.Resolved {
			byName[plan.NormalizeName(r.Name)] = r.Matches[0]
		}
	}

	for di := range draft.Days {
		for mi := range draft.Days[di].Meals {
			meal := &draft.Days[di].Meals[mi]
			for ii := range meal.Ingredients {
				ing := &meal.Ingredients[ii]
				match, ok := byName[plan.NormalizeName(ing.Name)]
				if !ok {
					continue
				}
				n := match.Nutrition
				ing.FoodID = match.FoodID
				ing.Nutrition = &n
				ing.Resolved = true
			}
		}
	}
}
