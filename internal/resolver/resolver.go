// Package resolver turns ingredient names into nutrition matches by
// cascading through the configured food sources in strict priority order:
// alias cache, local database, remote primary, remote secondary.
package resolver

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nutriplan/internal/alias"
	"nutriplan/internal/foods"
	"nutriplan/internal/plan"
)

// MaxItems caps one resolve call; excess items are dropped, not rejected.
const MaxItems = 60

// MaxMatches is the most matches retained per ingredient.
const MaxMatches = 3

// maxConcurrentNames bounds provider fan-out across distinct names.
const maxConcurrentNames = 4

// Item is one ingredient name to resolve, with optional free-text context
// ("marinade", "for garnish") that sources may use for relevance.
type Item struct {
	Name    string
	Context string
}

// Match is a single nutrition match with its provenance so consumers can
// weight trust.
type Match struct {
	SourceName  string          `json:"source_name"`
	FoodID      string          `json:"food_id,omitempty"`
	Description string          `json:"description"`
	Provenance  plan.Provenance `json:"provenance"`
	Nutrition   plan.Per100g    `json:"per_100g"`
}

// Resolved is the outcome for one input item. Name is the original input
// string, untouched, so results trace back to the draft.
type Resolved struct {
	Name     string  `json:"name"`
	Resolved bool    `json:"resolved"`
	Matches  []Match `json:"matches,omitempty"`
}

// Resolver fans names out across the available sources. It holds no
// cross-call state and is safe for concurrent use from multiple runs.
type Resolver struct {
	aliases   *alias.Cache
	providers []foods.Provider
	logger    *zap.Logger
}

// New builds a Resolver over the available providers, already ordered by
// cascade priority. Nil providers must be filtered out by the caller; a nil
// alias cache disables the alias step.
func New(aliases *alias.Cache, providers []foods.Provider, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{aliases: aliases, providers: providers, logger: logger}
}

// Resolve resolves a list of ingredient names, one output per input in the
// same order. Per-item failures degrade to Resolved=false; the call itself
// never fails.
func (r *Resolver) Resolve(ctx context.Context, items []Item) []Resolved {
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	if len(items) == 0 {
		return []Resolved{}
	}

	// Deduplicate by normalized key so each distinct name hits the
	// sources at most once no matter how often it appears.
	type slot struct {
		item  Item
		index int
	}
	keyIndex := make(map[string]int)
	var distinct []slot
	for _, it := range items {
		key := plan.NormalizeName(it.Name)
		if _, ok := keyIndex[key]; ok {
			continue
		}
		keyIndex[key] = len(distinct)
		distinct = append(distinct, slot{item: it, index: len(distinct)})
	}

	shared := make([]Resolved, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentNames)
	for _, s := range distinct {
		g.Go(func() error {
			shared[s.index] = r.resolveOne(gctx, s.item)
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	out := make([]Resolved, len(items))
	for i, it := range items {
		res := shared[keyIndex[plan.NormalizeName(it.Name)]]
		res.Name = it.Name // preserve the caller's original string
		out[i] = res
	}
	return out
}

// resolveOne runs the cascade for a single name, short-circuiting on the
// first source that yields at least one usable match.
func (r *Resolver) resolveOne(ctx context.Context, it Item) Resolved {
	searchName := it.Name

	if r.aliases != nil {
		if e, ok := r.aliases.Get(it.Name); ok {
			if e.Nutrition != nil {
				return Resolved{
					Resolved: true,
					Matches: []Match{{
						SourceName:  "alias",
						FoodID:      e.FoodID,
						Description: e.CanonicalName,
						Provenance:  plan.ProvenanceAlias,
						Nutrition:   *e.Nutrition,
					}},
				}
			}
			// Alias rows without nutrition still canonicalize the
			// search term for the remaining sources.
			searchName = e.CanonicalName
		}
	}

	for _, p := range r.providers {
		matches := r.searchProvider(ctx, p, it.Name, searchName)
		if len(matches) > 0 {
			return Resolved{Resolved: true, Matches: matches}
		}
	}
	return Resolved{Resolved: false}
}

// searchProvider queries one source and converts its candidates into
// matches. Any error is degraded to an empty result so the cascade moves
// on.
func (r *Resolver) searchProvider(ctx context.Context, p foods.Provider, originalName, searchName string) []Match {
	candidates, err := p.Search(ctx, searchName)
	if err != nil {
		r.logger.Debug("food source search failed",
			zap.String("provider", p.Name()),
			zap.String("ingredient", originalName),
			zap.Error(err))
		return nil
	}

	var matches []Match
	for _, c := range candidates {
		if len(matches) >= MaxMatches {
			break
		}
		n := c.Nutrition
		if n == nil && c.FoodID != "" {
			n, err = p.Food(ctx, c.FoodID)
			if err != nil {
				r.logger.Debug("food fetch failed",
					zap.String("provider", p.Name()),
					zap.String("food_id", c.FoodID),
					zap.Error(err))
				continue
			}
		}
		if n == nil {
			continue
		}
		matches = append(matches, Match{
			SourceName:  p.Name(),
			FoodID:      c.FoodID,
			Description: c.Description,
			Provenance:  p.Provenance(),
			Nutrition:   *n,
		})
	}
	return matches
}
