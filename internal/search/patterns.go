package search

import "regexp"

// Compiled identifier-shape patterns, reused by exact-term extraction and
// by callers that need to recognize code identifiers versus prose.
var (
	camelCasePattern      = regexp.MustCompile(`^[a-z]+([A-Z][a-z0-9]*)+$`)
	pascalCasePattern     = regexp.MustCompile(`^([A-Z][a-z0-9]*){2,}$`)
	snakeCasePattern      = regexp.MustCompile(`^[a-z]+(_[a-z0-9]+)+$`)
	screamingSnakePattern = regexp.MustCompile(`^[A-Z]+(_[A-Z0-9]+)+$`)
	functionCallPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\([^)]*\)$`)
	quotedPattern         = regexp.MustCompile(`"([^"]+)"`)
	numberPattern         = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
)

// isIdentifierShaped reports whether token looks like a code identifier
// (camelCase, PascalCase, snake_case, or SCREAMING_SNAKE_CASE).
func isIdentifierShaped(token string) bool {
	return camelCasePattern.MatchString(token) ||
		pascalCasePattern.MatchString(token) ||
		snakeCasePattern.MatchString(token) ||
		screamingSnakePattern.MatchString(token)
}

// PatternRegistry is the single source of truth for code-pattern
// vocabulary: a keyword→pattern map used to infer which design/runtime
// patterns a query is about, and a pattern→related-patterns map used to
// broaden that inference. The ranker uses the same registry both to infer
// a query's patterns and to score each candidate's pattern_match factor,
// so the two sides share one vocabulary.
type PatternRegistry struct {
	keywordToPattern map[string]string
	relatedPatterns  map[string][]string
}

// NewPatternRegistry builds the registry with its built-in vocabulary.
func NewPatternRegistry() *PatternRegistry {
	return &PatternRegistry{
		keywordToPattern: map[string]string{
			"singleton":    "singleton",
			"once":         "singleton",
			"factory":      "factory",
			"builder":      "builder",
			"build":        "builder",
			"async":        "async",
			"goroutine":    "async",
			"concurrent":   "async",
			"retry":        "retry",
			"backoff":      "retry",
			"circuit":      "circuit_breaker",
			"breaker":      "circuit_breaker",
			"cache":        "cache",
			"memoize":      "cache",
			"observer":     "observer",
			"subscribe":    "observer",
			"middleware":   "middleware",
			"decorator":    "decorator",
			"adapter":      "adapter",
			"wrapper":      "adapter",
			"pool":         "object_pool",
			"worker pool":  "object_pool",
		},
		relatedPatterns: map[string][]string{
			"singleton":       {"factory"},
			"factory":         {"singleton", "builder"},
			"builder":         {"factory"},
			"async":           {"retry", "object_pool"},
			"retry":           {"circuit_breaker", "async"},
			"circuit_breaker": {"retry"},
			"cache":           {"object_pool"},
			"observer":        {"middleware"},
			"middleware":      {"decorator", "observer"},
			"decorator":       {"adapter", "middleware"},
			"adapter":         {"decorator"},
			"object_pool":     {"cache", "async"},
		},
	}
}

// InferPatterns returns the set of pattern names a query text appears to be
// asking about, expanded one hop through the related-patterns map.
func (r *PatternRegistry) InferPatterns(queryLower string) []string {
	found := make(map[string]bool)
	for kw, pattern := range r.keywordToPattern {
		if containsWord(queryLower, kw) {
			found[pattern] = true
			for _, rel := range r.relatedPatterns[pattern] {
				found[rel] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for p := range found {
		out = append(out, p)
	}
	return out
}

// PatternsIn returns how many of the given pattern names appear to be present
// in candidate text (e.g. a code snippet), by simple keyword match against
// the same registry's vocabulary.
func (r *PatternRegistry) PatternsIn(candidateLower string, patterns []string) int {
	present := make(map[string]bool)
	for kw, pattern := range r.keywordToPattern {
		if containsWord(candidateLower, kw) {
			present[pattern] = true
		}
	}
	count := 0
	for _, p := range patterns {
		if present[p] {
			count++
		}
	}
	return count
}
