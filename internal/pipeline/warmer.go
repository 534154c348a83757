package pipeline

import (
	"context"

	"go.uber.org/zap"

	"nutriplan/internal/foods"
	"nutriplan/internal/intake"
)

// staple queries used to pre-populate food-search caches before the
// generated plan needs them. Single words, since real ingredient names are
// unknown until generation finishes.
var stapleQueries = []string{
	"rice", "oats", "chicken", "salmon", "egg", "lentils", "chickpeas",
	"tofu", "broccoli", "spinach", "banana", "apple", "yogurt", "almonds",
}

// CacheWarmer fires best-effort searches against cached providers so the
// resolver finds warm caches after generation. It has no result: errors
// are swallowed and the orchestrator cancels it the moment generation
// resolves.
type CacheWarmer struct {
	providers []foods.Provider
	logger    *zap.Logger
}

func NewCacheWarmer(providers []foods.Provider, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{providers: providers, logger: logger}
}

// Warm issues staple queries filtered by the client's constraints until
// the context is cancelled.
func (w *CacheWarmer) Warm(ctx context.Context, ci *intake.ClientIntake) {
	queries := warmQueries(ci)
	for _, q := range queries {
		for _, p := range w.providers {
			if ctx.Err() != nil {
				return
			}
			if _, err := p.Search(ctx, q); err != nil {
				w.logger.Debug("cache warm query failed",
					zap.String("provider", p.Name()), zap.String("query", q), zap.Error(err))
			}
		}
	}
}

// warmQueries drops staples the client cannot eat; warming those would
// only cache results the resolver will never ask for.
func warmQueries(ci *intake.ClientIntake) []string {
	blocked := map[string]bool{}
	if ci != nil {
		switch ci.Diet {
		case intake.DietVegan:
			blocked["chicken"] = true
			blocked["salmon"] = true
			blocked["egg"] = true
			blocked["yogurt"] = true
		case intake.DietVegetarian:
			blocked["chicken"] = true
			blocked["salmon"] = true
		case intake.DietPescatarian:
			blocked["chicken"] = true
		}
		for _, a := range ci.Allergies {
			switch a {
			case "nuts", "tree nuts":
				blocked["almonds"] = true
			case "eggs":
				blocked["egg"] = true
			case "dairy":
				blocked["yogurt"] = true
			case "soy":
				blocked["tofu"] = true
			case "legumes":
				blocked["lentils"] = true
				blocked["chickpeas"] = true
			case "fish":
				blocked["salmon"] = true
			}
		}
	}

	out := make([]string, 0, len(stapleQueries))
	for _, q := range stapleQueries {
		if !blocked[q] {
			out = append(out, q)
		}
	}
	return out
}
