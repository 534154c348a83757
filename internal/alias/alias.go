// Package alias provides an in-memory exact and fuzzy ingredient-name
// lookup over a bounded table of known foods. It is the first, cheapest
// step of the resolution cascade.
package alias

import (
	"sort"
	"strings"
	"sync"

	"nutriplan/internal/plan"
)

// Entry is one row of the alias table.
type Entry struct {
	Alias         string
	CanonicalName string
	FoodID        string
	Nutrition     *plan.Per100g
	Priority      int
}

// Cache indexes alias rows for exact and reordered-token lookups. Loading
// happens once, lazily; after that all lookups are read-only and safe for
// concurrent use.
type Cache struct {
	loadOnce sync.Once
	loadErr  error
	source   func() ([]Entry, error)

	exact    map[string]*Entry
	tokenSet map[string]*Entry
}

// Descriptive prefixes that rarely change what a food is.
var descriptivePrefixes = []string{
	"fresh", "dried", "frozen", "cooked", "raw", "organic",
	"chopped", "sliced", "diced", "ground", "whole", "canned",
}

// New creates a Cache over the given row source. Rows must arrive sorted by
// descending priority: on key collisions the first-seen row wins, which
// keeps insertion deterministic.
func New(source func() ([]Entry, error)) *Cache {
	return &Cache{source: source}
}

// NewEmbedded creates a Cache over the alias table compiled into the binary.
func NewEmbedded() *Cache {
	return New(loadEmbedded)
}

func (c *Cache) load() error {
	c.loadOnce.Do(func() {
		rows, err := c.source()
		if err != nil {
			c.loadErr = err
			return
		}
		// Stable sort so equal priorities keep source order.
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Priority > rows[j].Priority })

		c.exact = make(map[string]*Entry, len(rows))
		c.tokenSet = make(map[string]*Entry, len(rows))
		for i := range rows {
			e := &rows[i]
			key := normalize(e.Alias)
			if key == "" {
				continue
			}
			if _, taken := c.exact[key]; !taken {
				c.exact[key] = e
			}
			tk := tokenKey(key)
			if _, taken := c.tokenSet[tk]; !taken {
				c.tokenSet[tk] = e
			}
		}
	})
	return c.loadErr
}

// Get looks a name up through progressively more lenient strategies and
// returns the first hit. Specificity beats leniency: a later strategy runs
// only when every earlier one missed.
func (c *Cache) Get(name string) (*Entry, bool) {
	if err := c.load(); err != nil {
		return nil, false
	}

	key := normalize(name)
	if key == "" {
		return nil, false
	}

	// 1. Exact match.
	if e, ok := c.exact[key]; ok {
		return e, true
	}

	// 2. Token-set match absorbs word reordering.
	if e, ok := c.tokenSet[tokenKey(key)]; ok {
		return e, true
	}

	// 3. Strip descriptive prefixes, then retry both lookups.
	if stripped := stripPrefixes(key); stripped != key {
		if e, ok := c.exact[stripped]; ok {
			return e, true
		}
		if e, ok := c.tokenSet[tokenKey(stripped)]; ok {
			return e, true
		}
	}

	// 4. Progressive right-truncation: most specific wins, fall back to
	// the category ("grilled chicken thigh" -> "grilled chicken").
	words := strings.Fields(key)
	for len(words) > 1 {
		words = words[:len(words)-1]
		if e, ok := c.exact[strings.Join(words, " ")]; ok {
			return e, true
		}
	}

	// 5. Naive singularization.
	if singular := singularize(key); singular != key {
		if e, ok := c.exact[singular]; ok {
			return e, true
		}
	}

	return nil, false
}

// Len reports the number of distinct exact keys, loading if needed.
func (c *Cache) Len() int {
	if err := c.load(); err != nil {
		return 0
	}
	return len(c.exact)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// tokenKey sorts the whitespace-split tokens alphabetically so "breast
// chicken" and "chicken breast" collide.
func tokenKey(normalized string) string {
	tokens := strings.Fields(normalized)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func stripPrefixes(normalized string) string {
	words := strings.Fields(normalized)
	for len(words) > 1 {
		stripped := false
		for _, p := range descriptivePrefixes {
			if words[0] == p {
				words = words[1:]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.Join(words, " ")
}

// singularize drops a trailing "s" from each word of at least 4 characters
// that does not already end in a double-s.
func singularize(normalized string) string {
	words := strings.Fields(normalized)
	for i, w := range words {
		if len(w) >= 4 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			words[i] = w[:len(w)-1]
		}
	}
	return strings.Join(words, " ")
}
