package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIngredientNamesDeduplicates(t *testing.T) {
	draft := &MealPlanDraft{Days: []Day{
		{Number: 1, Meals: []Meal{
			{Slot: SlotBreakfast, Name: "A", Ingredients: []Ingredient{
				{Name: "Rolled Oats", Quantity: 70},
				{Name: "banana", Quantity: 100},
			}},
			{Slot: SlotLunch, Name: "B", Ingredients: []Ingredient{
				{Name: "rolled oats ", Quantity: 40},
				{Name: "  "},
			}},
		}},
	}}

	names := draft.IngredientNames()
	require.Equal(t, []string{"Rolled Oats", "banana"}, names)
}

func TestMealLookup(t *testing.T) {
	draft := &MealPlanDraft{Days: []Day{
		{Number: 2, Meals: []Meal{{Slot: SlotDinner, Name: "Stew"}}},
	}}

	require.Equal(t, "Stew", draft.Meal(2, SlotDinner).Name)
	require.Nil(t, draft.Meal(1, SlotDinner))
	require.Nil(t, draft.Meal(2, SlotLunch))
}

func TestPer100gScaleAndAdd(t *testing.T) {
	n := Per100g{Kcal: 100, ProteinG: 10, CarbsG: 20, FatG: 5}

	scaled := n.Scale(250)
	require.InDelta(t, 250, scaled.Kcal, 0.001)
	require.InDelta(t, 25, scaled.ProteinG, 0.001)

	sum := scaled.Add(n)
	require.InDelta(t, 350, sum.Kcal, 0.001)
	require.InDelta(t, 12.5, sum.FatG, 0.001)
}

func TestProvenanceRank(t *testing.T) {
	require.Less(t, ProvenanceAlias.Rank(), ProvenanceLocalDB.Rank())
	require.Less(t, ProvenanceLocalDB.Rank(), ProvenanceRemotePrimary.Rank())
	require.Less(t, ProvenanceRemotePrimary.Rank(), ProvenanceRemoteSecondary.Rank())
	require.Equal(t, 4, Provenance("bogus").Rank())
}
