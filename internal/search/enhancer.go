package search

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

const (
	maxVariants   = 10
	maxExactTerms = 16
	minIdentLen   = 3
)

var verbSynonyms = map[string][]string{
	"create":    {"implement", "build"},
	"implement": {"create", "build"},
	"build":     {"create", "implement"},
}

var functionCallRefPattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\([^)]*\)`)

// Enhancer implements the Query Enhancer: deterministic intent
// classification plus lexical variant generation and exact-term
// extraction. No ML model is used.
type Enhancer struct {
	classifier *IntentClassifier
}

// NewEnhancer creates an Enhancer with the default intent classifier.
func NewEnhancer() *Enhancer {
	return &Enhancer{classifier: NewIntentClassifier()}
}

// Enhance classifies query (honoring hint) and produces up to 10 lexical
// variants and up to 16 exact-match terms.
func (e *Enhancer) Enhance(query string, hint model.Intent) model.EnhancedQuery {
	intent := e.classifier.Classify(query, hint)
	return model.EnhancedQuery{
		Original:   query,
		Intent:     intent,
		Variants:   e.GenerateVariants(query),
		ExactTerms: e.ExtractExactTerms(query),
	}
}

// GenerateVariants produces up to 10 rewrites of query: verb-synonym
// substitution, plural/singular noun toggling, and a "how to X" template.
// The original query is always variants[0]; duplicates are removed
// case-insensitively.
func (e *Enhancer) GenerateVariants(query string) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}

	seen := map[string]bool{strings.ToLower(trimmed): true}
	variants := []string{trimmed}

	words := strings.Fields(trimmed)

	add := func(v string) {
		if len(variants) >= maxVariants {
			return
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if seen[key] {
			return
		}
		seen[key] = true
		variants = append(variants, v)
	}

	// Verb synonym substitution: replace each occurrence of a known verb
	// with each of its synonyms, one variant per substitution.
	for i, w := range words {
		lower := strings.ToLower(w)
		for _, syn := range verbSynonyms[lower] {
			rewritten := make([]string, len(words))
			copy(rewritten, words)
			rewritten[i] = syn
			add(strings.Join(rewritten, " "))
		}
	}

	// Noun plural/singular toggling on the final word, a common noun
	// position in short queries ("middleware" / "middlewares").
	if len(words) > 0 {
		last := words[len(words)-1]
		if alt := togglePluralSingular(last); alt != "" {
			rewritten := append(append([]string{}, words[:len(words)-1]...), alt)
			add(strings.Join(rewritten, " "))
		}
	}

	// "how to X" template, only added when the query doesn't already start
	// with "how".
	lowerTrimmed := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowerTrimmed, "how") {
		add("how to " + trimmed)
	}

	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	return variants
}

// togglePluralSingular toggles a simple English plural/singular noun.
func togglePluralSingular(word string) string {
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "ies") && len(lower) > 3:
		return word[:len(word)-3] + "y"
	case (strings.HasSuffix(lower, "sses") || strings.HasSuffix(lower, "xes") ||
		strings.HasSuffix(lower, "shes")) && len(lower) > 3:
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") && len(lower) > 1:
		return word[:len(word)-1]
	case len(lower) > 0:
		return word + "s"
	}
	return ""
}

// ExtractExactTerms extracts literal, high-precision terms from query:
// quoted phrases, integers/decimals, camelCase/snake_case identifiers of
// at least 3 characters, and name(...) function-call references.
// Duplicates are dropped, preserving first occurrence; result is capped at
// 16 terms.
func (e *Enhancer) ExtractExactTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || len(terms) >= maxExactTerms {
			return
		}
		if seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	for _, m := range quotedPattern.FindAllStringSubmatch(query, -1) {
		add(m[1])
	}
	for _, m := range numberPattern.FindAllString(query, -1) {
		add(m)
	}
	// Function-call references are matched against the raw query first,
	// since rawWords() below splits on the parentheses that identify them.
	for _, m := range functionCallRefPattern.FindAllString(query, -1) {
		add(m)
	}

	for _, token := range rawWords(query) {
		if len(token) >= minIdentLen && isIdentifierShaped(token) {
			add(token)
		}
	}

	return terms
}

// rawWords splits query on non-identifier characters, keeping each word
// intact (including internal underscores) so identifier-shape checks see
// whole names like MAX_RETRY_COUNT rather than camelCase/snake_case
// fragments.
func rawWords(query string) []string {
	var words []string
	var current strings.Builder

	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

// tokenize splits a query into terms, then splits each on camelCase/
// snake_case boundaries. Used by callers that want BM25-style subword
// matching rather than whole-identifier exact terms.
func tokenize(query string) []string {
	var result []string
	for _, word := range rawWords(query) {
		result = append(result, splitCamelSnake(word)...)
	}
	return result
}

// splitCamelSnake splits a token on camelCase and snake_case boundaries.
func splitCamelSnake(token string) []string {
	if strings.Contains(token, "_") {
		parts := strings.Split(token, "_")
		var result []string
		for _, p := range parts {
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}

	var parts []string
	var current strings.Builder
	for i, r := range token {
		if i > 0 && unicode.IsUpper(r) && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
