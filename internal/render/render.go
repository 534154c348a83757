// Package render produces the client-facing deliverables of a finished
// run: a summary page, the day-by-slot meal grid, an aggregated grocery
// list, and a PDF export.
package render

import (
	"bytes"
	"embed"
	"html/template"
	"sort"

	"go.uber.org/zap"

	"nutriplan/internal/compile"
	"nutriplan/internal/intake"
	"nutriplan/internal/plan"
	"nutriplan/internal/qa"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Deliverables holds every artifact of a run. PDF may be empty when the
// export failed; HTML deliverables are always present on success.
type Deliverables struct {
	SummaryHTML []byte
	GridHTML    []byte
	GroceryHTML []byte
	PDF         []byte
}

// Renderer renders deliverables from a compiled plan.
type Renderer struct {
	tmpl   *template.Template
	logger *zap.Logger
}

func New(logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, logger: logger}, nil
}

type summaryData struct {
	ClientName string
	Diet       string
	Cuisine    string
	Target     *intake.MetabolicProfile
	Verdict    qa.Verdict
	Score      float64
	Days       []compile.CompiledDay
}

type gridCell struct {
	Name        string
	Ingredients []plan.Ingredient
	Method      string
}

type gridRow struct {
	Day   int
	Cells []gridCell
}

type gridData struct {
	Slots []plan.MealSlot
	Rows  []gridRow
}

type groceryItem struct {
	Name     string
	Quantity float64
	Unit     string
}

var gridSlots = []plan.MealSlot{plan.SlotBreakfast, plan.SlotLunch, plan.SlotDinner, plan.SlotSnack}

// Render builds all deliverables. A PDF export failure is downgraded to a
// warning and an empty PDF; HTML failures are real errors.
func (r *Renderer) Render(ci *intake.ClientIntake, cp *compile.CompiledPlan, report qa.Report) (*Deliverables, error) {
	out := &Deliverables{}

	summary, err := r.execute("summary.html.tmpl", summaryData{
		ClientName: ci.Name,
		Diet:       string(ci.Diet),
		Cuisine:    ci.PreferredCuisine,
		Target:     cp.DailyTarget,
		Verdict:    report.Verdict,
		Score:      report.Total,
		Days:       cp.Days,
	})
	if err != nil {
		return nil, err
	}
	out.SummaryHTML = summary

	grid, err := r.execute("grid.html.tmpl", buildGrid(cp.Draft))
	if err != nil {
		return nil, err
	}
	out.GridHTML = grid

	grocery, err := r.execute("grocery.html.tmpl", struct{ Items []groceryItem }{aggregateGrocery(cp.Draft)})
	if err != nil {
		return nil, err
	}
	out.GroceryHTML = grocery

	out.PDF = r.renderPDF(ci, cp, report)
	return out, nil
}

func (r *Renderer) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildGrid(draft *plan.MealPlanDraft) gridData {
	data := gridData{Slots: gridSlots}
	if draft == nil {
		return data
	}
	for _, day := range draft.Days {
		row := gridRow{Day: day.Number}
		for _, slot := range gridSlots {
			cell := gridCell{}
			for _, meal := range day.Meals {
				if meal.Slot == slot {
					cell = gridCell{Name: meal.Name, Ingredients: meal.Ingredients, Method: meal.Method}
					break
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

// aggregateGrocery sums ingredient quantities across the whole plan,
// keyed by normalized name and unit, sorted by name.
func aggregateGrocery(draft *plan.MealPlanDraft) []groceryItem {
	if draft == nil {
		return nil
	}
	type key struct {
		name string
		unit string
	}
	totals := map[key]*groceryItem{}
	var order []key
	for _, day := range draft.Days {
		for _, meal := range day.Meals {
			for _, ing := range meal.Ingredients {
				k := key{name: plan.NormalizeName(ing.Name), unit: ing.Unit}
				if k.name == "" {
					continue
				}
				item, ok := totals[k]
				if !ok {
					item = &groceryItem{Name: k.name, Unit: ing.Unit}
					totals[k] = item
					order = append(order, k)
				}
				item.Quantity += ing.Quantity
			}
		}
	}
	items := make([]groceryItem, 0, len(order))
	for _, k := range order {
		items = append(items, *totals[k])
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
