package plan

import "strings"

// normalizeName lowercases and trims an ingredient name so duplicates that
// differ only in casing or surrounding whitespace share one key.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeName is the canonical ingredient de-duplication key used across
// the resolver and the caches.
func NormalizeName(name string) string {
	return normalizeName(name)
}
