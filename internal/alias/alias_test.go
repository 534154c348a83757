package alias

import (
	"testing"

	"nutriplan/internal/plan"
)

func testCache(entries []Entry) *Cache {
	return New(func() ([]Entry, error) { return entries, nil })
}

func TestExactMatch(t *testing.T) {
	c := testCache([]Entry{
		{Alias: "Chicken Breast", CanonicalName: "Chicken breast", Priority: 100},
	})
	e, ok := c.Get("chicken breast")
	if !ok {
		t.Fatal("Expected a hit for exact lowercase match")
	}
	if e.CanonicalName != "Chicken breast" {
		t.Errorf("Unexpected canonical name %q", e.CanonicalName)
	}
}

func TestTokenSetAbsorbsReordering(t *testing.T) {
	c := testCache([]Entry{
		{Alias: "chicken breast", CanonicalName: "Chicken breast", Priority: 100},
	})
	if _, ok := c.Get("breast chicken"); !ok {
		t.Error("Expected token-set match for reordered words")
	}
}

func TestPrefixStripping(t *testing.T) {
	c := testCache([]Entry{
		{Alias: "spinach", CanonicalName: "Spinach", Priority: 100},
	})
	for _, name := range []string{"fresh spinach", "frozen chopped spinach"} {
		if _, ok := c.Get(name); !ok {
			t.Errorf("Expected prefix-stripped match for %q", name)
		}
	}
}

func TestRightTruncation(t *testing.T) {
	c := testCache([]Entry{
		{Alias: "grilled chicken", CanonicalName: "Chicken breast", Priority: 100},
	})
	if _, ok := c.Get("grilled chicken thigh fillet"); !ok {
		t.Error("Expected right-truncation to fall back to the category")
	}
}

func TestSingularization(t *testing.T) {
	c := testCache([]Entry{
		{Alias: "carrot", CanonicalName: "Carrot", Priority: 100},
	})
	if _, ok := c.Get("carrots"); !ok {
		t.Error("Expected singularized match")
	}
	// Double-s words must not be singularized.
	c2 := testCache([]Entry{
		{Alias: "swis", CanonicalName: "nope", Priority: 1},
	})
	if _, ok := c2.Get("swiss"); ok {
		t.Error("Double-s word should not be singularized")
	}
}

func TestSpecificityBeatsLeniency(t *testing.T) {
	c := testCache([]Entry{
		{Alias: "chicken", CanonicalName: "Generic chicken", Priority: 40},
		{Alias: "chicken breast", CanonicalName: "Chicken breast", Priority: 100},
	})
	e, ok := c.Get("chicken breast")
	if !ok || e.CanonicalName != "Chicken breast" {
		t.Fatalf("Exact match must win over truncation, got %+v", e)
	}
}

func TestPriorityWinsOnCollision(t *testing.T) {
	c := testCache([]Entry{
		{Alias: "rice", CanonicalName: "low", Priority: 10},
		{Alias: "rice", CanonicalName: "high", Priority: 90},
	})
	e, ok := c.Get("rice")
	if !ok || e.CanonicalName != "high" {
		t.Fatalf("Higher priority row must win, got %+v", e)
	}
}

func TestTieKeepsFirstSeen(t *testing.T) {
	c := testCache([]Entry{
		{Alias: "oats", CanonicalName: "first", Priority: 50},
		{Alias: "oats", CanonicalName: "second", Priority: 50},
	})
	e, ok := c.Get("oats")
	if !ok || e.CanonicalName != "first" {
		t.Fatalf("Equal priority must keep the first-seen row, got %+v", e)
	}
}

func TestMissReturnsFalse(t *testing.T) {
	c := testCache(nil)
	if _, ok := c.Get("dragonfruit"); ok {
		t.Error("Expected a miss on an empty table")
	}
	if _, ok := c.Get("   "); ok {
		t.Error("Expected a miss on blank input")
	}
}

func TestEmbeddedTableLoads(t *testing.T) {
	c := NewEmbedded()
	if c.Len() == 0 {
		t.Fatal("Embedded alias table should not be empty")
	}
	e, ok := c.Get("CHICKEN BREAST")
	if !ok {
		t.Fatal("Expected embedded table to know chicken breast")
	}
	if e.Nutrition == nil || e.Nutrition.ProteinG == 0 {
		t.Errorf("Expected nutrition on embedded row, got %+v", e.Nutrition)
	}
	var _ *plan.Per100g = e.Nutrition
}
