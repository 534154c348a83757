// Package foods contains the independent food-nutrition data sources the
// resolver cascades through: a local SQLite database, the USDA FoodData
// Central API and a branded-food API guarded by a circuit breaker.
package foods

import (
	"context"

	"nutriplan/internal/plan"
)

// Candidate is one possible match for an ingredient name. Nutrition may be
// nil when the source's search endpoint does not include it; Food fills it
// in on demand.
type Candidate struct {
	FoodID      string
	Description string
	Nutrition   *plan.Per100g
}

// Provider is a single food data source. Implementations convert their own
// transport errors into ordinary Go errors; the resolver decides whether an
// error ends the cascade (it never does) or just moves to the next source.
type Provider interface {
	Name() string
	Provenance() plan.Provenance
	Search(ctx context.Context, name string) ([]Candidate, error)
	Food(ctx context.Context, id string) (*plan.Per100g, error)
}
