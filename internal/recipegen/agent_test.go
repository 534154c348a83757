package recipegen

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutriplan/internal/compliance"
	"nutriplan/internal/intake"
	"nutriplan/internal/llm"
	"nutriplan/internal/plan"
	"nutriplan/internal/resolver"
)

// scriptedGen replays canned responses in order. A response with err set
// fails that call.
type scriptedGen struct {
	responses []scriptedResponse
	calls     int
}

type scriptedResponse struct {
	content string
	err     error
}

func (s *scriptedGen) GenerateContent(_ context.Context, _ string) (llm.ContentResponse, error) {
	if s.calls >= len(s.responses) {
		return llm.ContentResponse{}, llm.Permanent(errNoMoreResponses)
	}
	r := s.responses[s.calls]
	s.calls++
	if r.err != nil {
		return llm.ContentResponse{}, r.err
	}
	return llm.ContentResponse{Content: r.content}, nil
}

var errNoMoreResponses = &SchemaValidationError{Reason: "script exhausted"}

type fakeResolver struct {
	byName map[string]resolver.Match
}

func (f *fakeResolver) Resolve(_ context.Context, items []resolver.Item) []resolver.Resolved {
	out := make([]resolver.Resolved, 0, len(items))
	for _, it := range items {
		r := resolver.Resolved{Name: it.Name}
		if m, ok := f.byName[plan.NormalizeName(it.Name)]; ok {
			r.Resolved = true
			r.Matches = []resolver.Match{m}
		}
		out = append(out, r)
	}
	return out
}

func testIntake(t *testing.T, diet intake.DietStyle, allergies []string) *intake.ClientIntake {
	t.Helper()
	ci, err := intake.Normalize("client-1", intake.RawIntakeForm{
		Name: "Test Client", Sex: "f", Age: 31, HeightCm: 168, WeightKg: 62,
		DietStyle: string(diet), Allergies: allergies, PlanDays: 2,
	})
	require.NoError(t, err)
	return ci
}

const validPlanJSON = `{
  "days": [
    {"day": 1, "meals": [
      {"slot": "breakfast", "name": "Oatmeal", "ingredients": [{"name": "rolled oats", "quantity": 70, "unit": "g"}]},
      {"slot": "lunch", "name": "Chicken rice", "ingredients": [
        {"name": "chicken breast", "quantity": 150, "unit": "g"},
        {"name": "white rice", "quantity": 140, "unit": "g"}
      ]},
      {"slot": "dinner", "name": "Salmon bowl", "ingredients": [{"name": "salmon fillet", "quantity": 150, "unit": "g"}]},
      {"slot": "snack", "name": "Apple", "ingredients": [{"name": "apple", "quantity": 150, "unit": "g"}]}
    ]},
    {"day": 2, "meals": [
      {"slot": "breakfast", "name": "Oatmeal", "ingredients": [{"name": "rolled oats", "quantity": 70, "unit": "g"}]},
      {"slot": "lunch", "name": "Chicken rice", "ingredients": [{"name": "chicken breast", "quantity": 150, "unit": "g"}]},
      {"slot": "dinner", "name": "Salmon bowl", "ingredients": [{"name": "salmon fillet", "quantity": 150, "unit": "g"}]},
      {"slot": "snack", "name": "Apple", "ingredients": [{"name": "apple", "quantity": 150, "unit": "g"}]}
    ]}
  ]
}`

func TestGenerateResolvedFlow(t *testing.T) {
	gen := &scriptedGen{responses: []scriptedResponse{
		{content: `{"ingredients": ["chicken breast", "rolled oats", "salmon fillet"]}`},
		{content: validPlanJSON},
	}}
	res := &fakeResolver{byName: map[string]resolver.Match{
		"chicken breast": {
			SourceName: "local-db", FoodID: "171077", Description: "Chicken breast, raw",
			Provenance: plan.ProvenanceLocalDB,
			Nutrition:  plan.Per100g{Kcal: 120, ProteinG: 22.5, CarbsG: 0, FatG: 2.6},
		},
	}}

	agent := New(gen, nil, res, zap.NewNop())
	ci := testIntake(t, intake.DietOmnivore, nil)

	draft, metas := agent.Generate(context.Background(), ci, nil)
	require.NotNil(t, draft)
	require.Equal(t, 2, gen.calls)

	require.Len(t, metas, 2)
	require.Equal(t, "IngredientScout", metas[0].AgentName)
	require.Equal(t, "PlanChef", metas[1].AgentName)

	// Verified nutrition is anchored onto every occurrence of the
	// resolved ingredient.
	for _, dayNum := range []int{1, 2} {
		meal := draft.Meal(dayNum, plan.SlotLunch)
		require.NotNil(t, meal)
		ing := meal.Ingredients[0]
		require.Equal(t, "chicken breast", ing.Name)
		require.True(t, ing.Resolved)
		require.Equal(t, "171077", ing.FoodID)
		require.NotNil(t, ing.Nutrition)
		require.InDelta(t, 22.5, ing.Nutrition.ProteinG, 0.001)
	}

	// Unresolved ingredients stay unmarked.
	require.False(t, draft.Meal(1, plan.SlotSnack).Ingredients[0].Resolved)
}

func TestGenerateFallsBackToSingleRound(t *testing.T) {
	gen := &scriptedGen{responses: []scriptedResponse{
		{content: `not json at all`}, // ingredient round fails validation
		{content: validPlanJSON},     // single round succeeds
	}}

	agent := New(gen, nil, &fakeResolver{}, zap.NewNop())
	ci := testIntake(t, intake.DietOmnivore, nil)

	draft, metas := agent.Generate(context.Background(), ci, nil)
	require.NotNil(t, draft)
	require.Len(t, draft.Days, 2)
	require.Equal(t, 2, gen.calls)
	require.Equal(t, "PlanChef", metas[len(metas)-1].AgentName)
}

func TestGenerateCatalogueWhenNoModel(t *testing.T) {
	agent := New(nil, nil, nil, zap.NewNop())
	ci := testIntake(t, intake.DietOmnivore, nil)

	draft, metas := agent.Generate(context.Background(), ci, nil)
	require.NotNil(t, draft)
	require.Len(t, metas, 1)
	require.Equal(t, "CatalogueGenerator", metas[0].AgentName)

	require.Len(t, draft.Days, ci.PlanDays)
	for _, day := range draft.Days {
		require.Len(t, day.Meals, 4)
	}
}

func TestGenerateCatalogueAfterAllModelTiersFail(t *testing.T) {
	gen := &scriptedGen{responses: []scriptedResponse{
		{content: `garbage`},
		{content: `also garbage`},
	}}

	agent := New(gen, nil, &fakeResolver{}, zap.NewNop())
	ci := testIntake(t, intake.DietVegan, nil)

	draft, metas := agent.Generate(context.Background(), ci, nil)
	require.NotNil(t, draft)
	require.Equal(t, "CatalogueGenerator", metas[len(metas)-1].AgentName)
	require.Empty(t, compliance.Scan(draft, ci))
}

func TestCatalogueRespectsConstraints(t *testing.T) {
	ci := testIntake(t, intake.DietVegan, []string{"peanuts", "soy"})

	draft := NewCatalogue().Generate(ci, nil)
	require.Len(t, draft.Days, ci.PlanDays)
	require.Empty(t, compliance.Scan(draft, ci))
}

func TestCatalogueVariesAcrossDays(t *testing.T) {
	ci, err := intake.Normalize("client-2", intake.RawIntakeForm{
		Name: "Test", Sex: "m", Age: 40, HeightCm: 180, WeightKg: 80,
		DietStyle: "omnivore", PlanDays: 3,
	})
	require.NoError(t, err)

	draft := NewCatalogue().Generate(ci, nil)
	require.Len(t, draft.Days, 3)

	d1 := draft.Meal(1, plan.SlotDinner)
	d2 := draft.Meal(2, plan.SlotDinner)
	require.NotNil(t, d1)
	require.NotNil(t, d2)
	require.NotEqual(t, d1.Name, d2.Name)
}

func TestParseDraftRejectsInvalidShapes(t *testing.T) {
	cases := map[string]string{
		"empty days":        `{"days": []}`,
		"no meals":          `{"days": [{"day": 1, "meals": []}]}`,
		"bad slot":          `{"days": [{"day": 1, "meals": [{"slot": "brunch", "name": "X", "ingredients": [{"name": "rice", "quantity": 100}]}]}]}`,
		"zero quantity":     `{"days": [{"day": 1, "meals": [{"slot": "lunch", "name": "X", "ingredients": [{"name": "rice", "quantity": 0}]}]}]}`,
		"missing meal name": `{"days": [{"day": 1, "meals": [{"slot": "lunch", "name": "", "ingredients": [{"name": "rice", "quantity": 100}]}]}]}`,
		"day zero":          `{"days": [{"day": 0, "meals": [{"slot": "lunch", "name": "X", "ingredients": [{"name": "rice", "quantity": 100}]}]}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseDraft(payload)
			var schemaErr *SchemaValidationError
			require.ErrorAs(t, err, &schemaErr)
		})
	}

	draft, err := parseDraft(validPlanJSON)
	require.NoError(t, err)
	require.Len(t, draft.Days, 2)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
