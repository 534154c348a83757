package plan

// Provenance identifies which data source produced a nutrition match.
type Provenance string

const (
	ProvenanceAlias           Provenance = "alias"
	ProvenanceLocalDB         Provenance = "local-db"
	ProvenanceRemotePrimary   Provenance = "remote-primary"
	ProvenanceRemoteSecondary Provenance = "remote-secondary"
)

// providerRank orders provenances by trust, lowest rank first.
var providerRank = map[Provenance]int{
	ProvenanceAlias:           0,
	ProvenanceLocalDB:         1,
	ProvenanceRemotePrimary:   2,
	ProvenanceRemoteSecondary: 3,
}

// Rank returns the cascade priority of a provenance. Unknown provenances
// sort last.
func (p Provenance) Rank() int {
	if r, ok := providerRank[p]; ok {
		return r
	}
	return len(providerRank)
}

// Per100g is a food's macro vector normalized to a 100 gram reference
// quantity.
type Per100g struct {
	Kcal     float64 `json:"kcal"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Scale returns the vector scaled to the given gram amount.
func (n Per100g) Scale(grams float64) Per100g {
	f := grams / 100.0
	return Per100g{
		Kcal:     n.Kcal * f,
		ProteinG: n.ProteinG * f,
		CarbsG:   n.CarbsG * f,
		FatG:     n.FatG * f,
	}
}

// Add returns the component-wise sum of two vectors.
func (n Per100g) Add(o Per100g) Per100g {
	return Per100g{
		Kcal:     n.Kcal + o.Kcal,
		ProteinG: n.ProteinG + o.ProteinG,
		CarbsG:   n.CarbsG + o.CarbsG,
		FatG:     n.FatG + o.FatG,
	}
}

// Ingredient is a single line item of a meal. FoodID and Nutrition are
// populated only when the ingredient has been resolved against a food
// source; each ingredient carries its own resolved state independently of
// its siblings.
type Ingredient struct {
	Name      string   `json:"name"`
	Quantity  float64  `json:"quantity"`
	Unit      string   `json:"unit"`
	FoodID    string   `json:"food_id,omitempty"`
	Nutrition *Per100g `json:"per_100g,omitempty"`
	Resolved  bool     `json:"resolved"`
}

// MealSlot names a position in a day's schedule.
type MealSlot string

const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
	SlotDinner    MealSlot = "dinner"
	SlotSnack     MealSlot = "snack"
)

// Meal is one planned dish. The regeneration loop replaces whole Meal
// entries, never individual fields.
type Meal struct {
	Slot        MealSlot     `json:"slot"`
	Name        string       `json:"name"`
	Cuisine     string       `json:"cuisine,omitempty"`
	Protein     string       `json:"protein,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Method      string       `json:"method,omitempty"`
}

// Day holds the ordered meals of a single plan day, 1-based.
type Day struct {
	Number int    `json:"day"`
	Meals  []Meal `json:"meals"`
}

// MealPlanDraft is the generator output before nutrition verification.
type MealPlanDraft struct {
	Days  []Day  `json:"days"`
	Notes string `json:"notes,omitempty"`
}

// Meal returns the meal at the given day number and slot, or nil.
func (d *MealPlanDraft) Meal(dayNumber int, slot MealSlot) *Meal {
	for i := range d.Days {
		if d.Days[i].Number != dayNumber {
			continue
		}
		for j := range d.Days[i].Meals {
			if d.Days[i].Meals[j].Slot == slot {
				return &d.Days[i].Meals[j]
			}
		}
	}
	return nil
}

// IngredientNames returns every ingredient name in the draft, deduplicated
// by lowercase key, in first-seen order.
func (d *MealPlanDraft) IngredientNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, day := range d.Days {
		for _, meal := range day.Meals {
			for _, ing := range meal.Ingredients {
				key := normalizeName(ing.Name)
				if key == "" {
					continue
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				names = append(names, ing.Name)
			}
		}
	}
	return names
}
