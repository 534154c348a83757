package foods

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"nutriplan/internal/plan"
)

// Cached decorates a provider with an LRU cache over its search results.
// The cache warmer pre-populates it with simple queries derived
// from the user's profile; later resolver calls for the same names then
// skip the network entirely. Failed searches are never cached.
type Cached struct {
	next  Provider
	cache *lru.Cache[string, []Candidate]
}

// NewCached wraps next with a search cache of the given size.
func NewCached(next Provider, size int) (*Cached, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, []Candidate](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: c}, nil
}

func (c *Cached) Name() string                { return c.next.Name() }
func (c *Cached) Provenance() plan.Provenance { return c.next.Provenance() }

func (c *Cached) Search(ctx context.Context, name string) ([]Candidate, error) {
	key := plan.NormalizeName(name)
	if hit, ok := c.cache.Get(key); ok {
		return hit, nil
	}
	out, err := c.next.Search(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, out)
	return out, nil
}

func (c *Cached) Food(ctx context.Context, id string) (*plan.Per100g, error) {
	return c.next.Food(ctx, id)
}
