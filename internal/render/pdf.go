package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"nutriplan/internal/compile"
	"nutriplan/internal/intake"
	"nutriplan/internal/qa"
)

// renderPDF exports the plan as a PDF. The export is strictly best
// effort: any failure, including a panic inside the PDF library, yields an
// empty byte slice and a warning, never a failed run.
func (r *Renderer) renderPDF(ci *intake.ClientIntake, cp *compile.CompiledPlan, report qa.Report) (out []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("pdf export panicked, delivering without pdf", zap.Any("panic", rec))
			out = []byte{}
		}
	}()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Meal plan for %s", ci.Name), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Meal plan for %s", ci.Name), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Diet: %s", ci.Diet), "", 1, "L", false, 0, "")
	if cp.DailyTarget != nil {
		pdf.CellFormat(0, 7, fmt.Sprintf("Daily target: %.0f kcal (P %.0fg / C %.0fg / F %.0fg)",
			cp.DailyTarget.DailyKcal, cp.DailyTarget.ProteinG, cp.DailyTarget.CarbsG, cp.DailyTarget.FatG),
			"", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 7, fmt.Sprintf("Quality check: %s (%.2f)", report.Verdict, report.Total), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	if cp.Draft != nil {
		for _, day := range cp.Draft.Days {
			pdf.SetFont("Helvetica", "B", 13)
			pdf.CellFormat(0, 8, fmt.Sprintf("Day %d", day.Number), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			for _, meal := range day.Meals {
				pdf.CellFormat(0, 6, fmt.Sprintf("%s: %s", meal.Slot, meal.Name), "", 1, "L", false, 0, "")
				for _, ing := range meal.Ingredients {
					pdf.CellFormat(0, 5, fmt.Sprintf("  - %s (%.0f%s)", ing.Name, ing.Quantity, ing.Unit), "", 1, "L", false, 0, "")
				}
			}
			pdf.Ln(2)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Warn("pdf export failed, delivering without pdf", zap.Error(err))
		return []byte{}
	}
	return buf.Bytes()
}
