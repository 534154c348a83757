// Package compile turns a generated draft into a verified plan: it fills
// in missing nutrition through the ingredient resolver, totals macros per
// meal and per day, and grades each day against the metabolic targets.
package compile

import (
	"context"
	"math"

	"go.uber.org/zap"

	"nutriplan/internal/intake"
	"nutriplan/internal/plan"
	"nutriplan/internal/resolver"
)

// KcalTolerance is the accepted relative deviation of a day's calories
// from the daily target.
const KcalTolerance = 0.15

// CompiledMeal is one meal with absolute macro totals for its portion
// sizes. Unverified lists the ingredient names that contributed nothing to
// the totals because no nutrition data could be attached to them.
type CompiledMeal struct {
	Slot       plan.MealSlot `json:"slot"`
	Name       string        `json:"name"`
	Totals     plan.Per100g  `json:"totals"`
	Unverified []string      `json:"unverified,omitempty"`
}

// CompiledDay aggregates one day and grades it against the daily target.
type CompiledDay struct {
	Number          int            `json:"day"`
	Meals           []CompiledMeal `json:"meals"`
	Totals          plan.Per100g   `json:"totals"`
	KcalDeviation   float64        `json:"kcal_deviation"`
	WithinTolerance bool           `json:"within_tolerance"`
}

// CompiledPlan is the verified output consumed by scoring and rendering.
type CompiledPlan struct {
	Days        []CompiledDay            `json:"days"`
	DailyTarget *intake.MetabolicProfile `json:"daily_target"`
	Draft       *plan.MealPlanDraft      `json:"draft"`

	// Coverage is the fraction of ingredients whose totals are backed by
	// resolved nutrition data, 0..1.
	Coverage float64 `json:"coverage"`
}

// IngredientResolver is the slice of the resolver the compiler needs.
type IngredientResolver interface {
	Resolve(ctx context.Context, items []resolver.Item) []resolver.Resolved
}

// Compiler computes plan nutrition. The resolver is optional; without one
// only ingredients already carrying nutrition are counted.
type Compiler struct {
	res    IngredientResolver
	logger *zap.Logger
}

func New(res IngredientResolver, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{res: res, logger: logger}
}

// Compile totals the draft. The input draft is not mutated; resolved
// nutrition is attached to the copy embedded in the result.
func (c *Compiler) Compile(ctx context.Context, draft *plan.MealPlanDraft, mp *intake.MetabolicProfile) *CompiledPlan {
	work := cloneDraft(draft)
	c.backfillNutrition(ctx, work)

	out := &CompiledPlan{DailyTarget: mp, Draft: work}
	var verified, total int

	for _, day := range work.Days {
		cd := CompiledDay{Number: day.Number}
		for _, meal := range day.Meals {
			cm := CompiledMeal{Slot: meal.Slot, Name: meal.Name}
			for _, ing := range meal.Ingredients {
				total++
				grams, ok := gramsFor(ing)
				if !ok || ing.Nutrition == nil {
					cm.Unverified = append(cm.Unverified, ing.Name)
					continue
				}
				verified++
				cm.Totals = cm.Totals.Add(ing.Nutrition.Scale(grams))
			}
			cd.Totals = cd.Totals.Add(cm.Totals)
			cd.Meals = append(cd.Meals, cm)
		}
		if mp != nil && mp.DailyKcal > 0 {
			cd.KcalDeviation = math.Abs(cd.Totals.Kcal-mp.DailyKcal) / mp.DailyKcal
			cd.WithinTolerance = cd.KcalDeviation <= KcalTolerance
		}
		out.Days = append(out.Days, cd)
	}

	if total > 0 {
		out.Coverage = float64(verified) / float64(total)
	}
	return out
}

// backfillNutrition resolves every ingredient that arrived without
// nutrition data, in one batched resolver pass.
func (c *Compiler) backfillNutrition(ctx context.Context, draft *plan.MealPlanDraft) {
	if c.res == nil {
		return
	}

	missing := map[string]bool{}
	var items []resolver.Item
	for _, day := range draft.Days {
		for _, meal := range day.Meals {
			for _, ing := range meal.Ingredients {
				key := plan.NormalizeName(ing.Name)
				if key == "" || ing.Nutrition != nil || missing[key] {
					continue
				}
				missing[key] = true
				items = append(items, resolver.Item{Name: ing.Name})
			}
		}
	}
	if len(items) == 0 {
		return
	}

	byName := map[string]resolver.Match{}
	for _, r := range c.res.Resolve(ctx, items) {
		if r.Resolved {
			byName[plan.NormalizeName(r.Name)] = r.Matches[0]
		}
	}
	c.logger.Debug("nutrition backfill",
		zap.Int("requested", len(items)), zap.Int("resolved", len(byName)))

	for di := range draft.Days {
		for mi := range draft.Days[di].Meals {
			meal := &draft.Days[di].Meals[mi]
			for ii := range meal.Ingredients {
				ing := &meal.Ingredients[ii]
				if ing.Nutrition != nil {
					continue
				}
				if m, ok := byName[plan.NormalizeName(ing.Name)]; ok {
					n := m.Nutrition
					ing.FoodID = m.FoodID
					ing.Nutrition = &n
					ing.Resolved = true
				}
			}
		}
	}
}

// gramsFor converts an ingredient quantity to grams. Unknown units cannot
// be totalled and make the ingredient unverified.
func gramsFor(ing plan.Ingredient) (float64, bool) {
	if ing.Quantity <= 0 {
		return 0, false
	}
	switch ing.Unit {
	case "", "g", "gram", "grams", "ml":
		return ing.Quantity, true
	case "kg":
		return ing.Quantity * 1000, true
	default:
		return 0, false
	}
}

func cloneDraft(d *plan.MealPlanDraft) *plan.MealPlanDraft {
	out := &plan.MealPlanDraft{Notes: d.Notes, Days: make([]plan.Day, len(d.Days))}
	for i, day := range d.Days {
		nd := plan.Day{Number: day.Number, Meals: make([]plan.Meal, len(day.Meals))}
		for j, meal := range day.Meals {
			nm := meal
			nm.Ingredients = make([]plan.Ingredient, len(meal.Ingredients))
			for k, ing := range meal.Ingredients {
				ni := ing
				if ing.Nutrition != nil {
					n := *ing.Nutrition
					ni.Nutrition = &n
				}
				nm.Ingredients[k] = ni
			}
			nd.Meals[j] = nm
		}
		out.Days[i] = nd
	}
	return out
}
