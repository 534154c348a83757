package recipegen

import (
	"bytes"
	_ "embed"
	"text/template"

	"nutriplan/internal/intake"
)

//go:embed ingredient_prompt.md
var ingredientPrompt string

//go:embed plan_prompt.md
var planPrompt string

//go:embed repair_prompt.md
var repairPrompt string

// profilePromptData is the client context shared by every prompt.
type profilePromptData struct {
	PlanDays   int
	Diet       string
	Allergies  []string
	Exclusions []string
	Cuisine    string
	DailyKcal  float64
	ProteinG   float64
	CarbsG     float64
	FatG       float64
}

func profileData(ci *intake.ClientIntake, mp *intake.MetabolicProfile) profilePromptData {
	d := profilePromptData{
		PlanDays:   ci.PlanDays,
		Diet:       string(ci.Diet),
		Allergies:  ci.Allergies,
		Exclusions: ci.Exclusions,
		Cuisine:    ci.PreferredCuisine,
	}
	if mp != nil {
		d.DailyKcal = mp.DailyKcal
		d.ProteinG = mp.ProteinG
		d.CarbsG = mp.CarbsG
		d.FatG = mp.FatG
	}
	return d
}

// resolutionPromptData is one resolver outcome flattened for the template.
type resolutionPromptData struct {
	Name        string
	Resolved    bool
	Description string
	FoodID      string
	Kcal        float64
	ProteinG    float64
	CarbsG      float64
	FatG        float64
}

type planPromptData struct {
	profilePromptData
	PlannedIngredients []string
	Resolutions        []resolutionPromptData
}

type flaggedMealData struct {
	Day      int
	Slot     string
	MealName string
	Detail   string
}

type repairPromptData struct {
	profilePromptData
	Flagged      []flaggedMealData
	UsedProteins []string
	UsedCuisines []string
}

func renderPrompt(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
