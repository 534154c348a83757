package alias

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"nutriplan/internal/plan"
)

//go:embed aliases.csv
var aliasCSV string

// loadEmbedded parses the compiled-in alias table. Columns:
// alias,canonical,food_id,kcal,protein_g,carbs_g,fat_g,priority
// The nutrition columns may be empty for rows that only map a name.
func loadEmbedded() ([]Entry, error) {
	r := csv.NewReader(strings.NewReader(aliasCSV))
	r.FieldsPerRecord = 8
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse alias table: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		if i == 0 && rec[0] == "alias" {
			continue
		}
		e := Entry{
			Alias:         rec[0],
			CanonicalName: rec[1],
			FoodID:        rec[2],
		}
		if rec[3] != "" {
			var n plan.Per100g
			if n.Kcal, err = strconv.ParseFloat(rec[3], 64); err != nil {
				return nil, fmt.Errorf("alias table row %d: bad kcal %q", i+1, rec[3])
			}
			n.ProteinG, _ = strconv.ParseFloat(rec[4], 64)
			n.CarbsG, _ = strconv.ParseFloat(rec[5], 64)
			n.FatG, _ = strconv.ParseFloat(rec[6], 64)
			e.Nutrition = &n
		}
		if rec[7] != "" {
			e.Priority, _ = strconv.Atoi(rec[7])
		}
		entries = append(entries, e)
	}
	return entries, nil
}
