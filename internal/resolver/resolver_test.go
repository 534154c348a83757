package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nutriplan/internal/alias"
	"nutriplan/internal/foods"
	"nutriplan/internal/plan"
)

// fakeProvider counts searches per normalized name and serves canned
// candidates.
type fakeProvider struct {
	name       string
	provenance plan.Provenance
	candidates map[string][]foods.Candidate
	err        error

	mu       sync.Mutex
	searches map[string]int
}

func newFakeProvider(name string, prov plan.Provenance) *fakeProvider {
	return &fakeProvider{
		name:       name,
		provenance: prov,
		candidates: make(map[string][]foods.Candidate),
		searches:   make(map[string]int),
	}
}

func (f *fakeProvider) Name() string                { return f.name }
func (f *fakeProvider) Provenance() plan.Provenance { return f.provenance }

func (f *fakeProvider) Search(ctx context.Context, name string) ([]foods.Candidate, error) {
	key := plan.NormalizeName(name)
	f.mu.Lock()
	f.searches[key]++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates[key], nil
}

func (f *fakeProvider) Food(ctx context.Context, id string) (*plan.Per100g, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) searchCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches[plan.NormalizeName(name)]
}

func candidate(id, desc string, kcal float64) foods.Candidate {
	return foods.Candidate{FoodID: id, Description: desc, Nutrition: &plan.Per100g{Kcal: kcal}}
}

func TestResolveEmptyInput(t *testing.T) {
	r := New(nil, nil, nil)
	got := r.Resolve(context.Background(), nil)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestResolveDeduplicatesByNormalizedName(t *testing.T) {
	p := newFakeProvider("local", plan.ProvenanceLocalDB)
	p.candidates["chicken breast"] = []foods.Candidate{candidate("1", "Chicken breast", 165)}

	r := New(nil, []foods.Provider{p}, nil)
	got := r.Resolve(context.Background(), []Item{
		{Name: "Chicken Breast"},
		{Name: "chicken breast"},
		{Name: "CHICKEN BREAST"},
	})

	require.Len(t, got, 3)
	require.Equal(t, 1, p.searchCount("chicken breast"), "one search per distinct name")
	for i, res := range got {
		require.True(t, res.Resolved, "entry %d", i)
		require.Len(t, res.Matches, 1)
		require.Equal(t, "1", res.Matches[0].FoodID)
	}
	// Original casing is preserved per position.
	require.Equal(t, "Chicken Breast", got[0].Name)
	require.Equal(t, "CHICKEN BREAST", got[2].Name)
}

func TestResolveCapsInput(t *testing.T) {
	p := newFakeProvider("local", plan.ProvenanceLocalDB)
	r := New(nil, []foods.Provider{p}, nil)

	items := make([]Item, 75)
	for i := range items {
		items[i] = Item{Name: fmt.Sprintf("ingredient %d", i)}
	}
	got := r.Resolve(context.Background(), items)
	require.Len(t, got, MaxItems)
}

func TestResolveCascadeShortCircuits(t *testing.T) {
	first := newFakeProvider("local", plan.ProvenanceLocalDB)
	first.candidates["oats"] = []foods.Candidate{candidate("1", "Oats", 379)}
	second := newFakeProvider("fdc", plan.ProvenanceRemotePrimary)

	r := New(nil, []foods.Provider{first, second}, nil)
	got := r.Resolve(context.Background(), []Item{{Name: "oats"}})

	require.True(t, got[0].Resolved)
	require.Equal(t, plan.ProvenanceLocalDB, got[0].Matches[0].Provenance)
	require.Equal(t, 0, second.searchCount("oats"), "later providers must not run after a hit")
}

func TestResolveCascadeReachesThirdProvider(t *testing.T) {
	first := newFakeProvider("local", plan.ProvenanceLocalDB)
	second := newFakeProvider("fdc", plan.ProvenanceRemotePrimary)
	second.err = errors.New("network down")
	third := newFakeProvider("branded", plan.ProvenanceRemoteSecondary)
	third.candidates["protein bar"] = []foods.Candidate{
		candidate("b1", "Protein Bar A", 400),
		candidate("b2", "Protein Bar B", 410),
		candidate("b3", "Protein Bar C", 390),
		candidate("b4", "Protein Bar D", 380),
	}

	r := New(nil, []foods.Provider{first, second, third}, nil)
	got := r.Resolve(context.Background(), []Item{{Name: "Protein Bar"}})

	require.True(t, got[0].Resolved)
	require.Len(t, got[0].Matches, MaxMatches, "at most 3 matches retained")
	for _, m := range got[0].Matches {
		require.Equal(t, plan.ProvenanceRemoteSecondary, m.Provenance)
	}
	// The earlier providers were consulted, not skipped.
	require.Equal(t, 1, first.searchCount("protein bar"))
	require.Equal(t, 1, second.searchCount("protein bar"))
}

func TestResolveAllProvidersFail(t *testing.T) {
	p := newFakeProvider("fdc", plan.ProvenanceRemotePrimary)
	p.err = errors.New("timeout")

	r := New(nil, []foods.Provider{p}, nil)
	got := r.Resolve(context.Background(), []Item{{Name: "mystery"}})

	require.Len(t, got, 1)
	require.False(t, got[0].Resolved)
	require.Empty(t, got[0].Matches)
	require.Equal(t, "mystery", got[0].Name)
}

func TestResolveAliasHitSkipsProviders(t *testing.T) {
	cache := alias.New(func() ([]alias.Entry, error) {
		return []alias.Entry{{
			Alias:         "tofu",
			CanonicalName: "Firm tofu",
			FoodID:        "172476",
			Nutrition:     &plan.Per100g{Kcal: 144, ProteinG: 17},
			Priority:      100,
		}}, nil
	})
	p := newFakeProvider("local", plan.ProvenanceLocalDB)

	r := New(cache, []foods.Provider{p}, nil)
	got := r.Resolve(context.Background(), []Item{{Name: "Tofu"}})

	require.True(t, got[0].Resolved)
	require.Equal(t, plan.ProvenanceAlias, got[0].Matches[0].Provenance)
	require.Equal(t, 0, p.searchCount("tofu"))
}

func TestResolveAliasWithoutNutritionCanonicalizesSearch(t *testing.T) {
	cache := alias.New(func() ([]alias.Entry, error) {
		return []alias.Entry{{Alias: "chook", CanonicalName: "chicken breast", Priority: 10}}, nil
	})
	p := newFakeProvider("local", plan.ProvenanceLocalDB)
	p.candidates["chicken breast"] = []foods.Candidate{candidate("1", "Chicken breast", 165)}

	r := New(cache, []foods.Provider{p}, nil)
	got := r.Resolve(context.Background(), []Item{{Name: "chook"}})

	require.True(t, got[0].Resolved)
	require.Equal(t, "local", got[0].Matches[0].SourceName)
	require.Equal(t, 1, p.searchCount("chicken breast"))
}
