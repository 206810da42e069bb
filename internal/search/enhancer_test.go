package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

func TestEnhancer_Enhance_SetsIntentAndVariants(t *testing.T) {
	e := NewEnhancer()
	eq := e.Enhance("fix the retry backoff bug", "")

	assert.Equal(t, model.IntentDebug, eq.Intent)
	require.NotEmpty(t, eq.Variants)
	assert.Equal(t, "fix the retry backoff bug", eq.Variants[0])
}

func TestEnhancer_Enhance_HintOverridesClassifier(t *testing.T) {
	e := NewEnhancer()
	eq := e.Enhance("fix the retry backoff bug", model.IntentRefactor)
	assert.Equal(t, model.IntentRefactor, eq.Intent)
}

func TestEnhancer_GenerateVariants_EmptyQuery(t *testing.T) {
	e := NewEnhancer()
	assert.Nil(t, e.GenerateVariants("   "))
}

func TestEnhancer_GenerateVariants_OriginalIsFirst(t *testing.T) {
	e := NewEnhancer()
	variants := e.GenerateVariants("create a new middleware")
	require.NotEmpty(t, variants)
	assert.Equal(t, "create a new middleware", variants[0])
}

func TestEnhancer_GenerateVariants_VerbSynonymSubstitution(t *testing.T) {
	e := NewEnhancer()
	variants := e.GenerateVariants("create a cache layer")

	found := false
	for _, v := range variants {
		if strings.Contains(v, "implement") || strings.Contains(v, "build") {
			found = true
		}
	}
	assert.True(t, found, "expected a verb-synonym variant, got %v", variants)
}

func TestEnhancer_GenerateVariants_HowToTemplate(t *testing.T) {
	e := NewEnhancer()
	variants := e.GenerateVariants("add a rate limiter")

	found := false
	for _, v := range variants {
		if strings.HasPrefix(strings.ToLower(v), "how to") {
			found = true
		}
	}
	assert.True(t, found, "expected a how-to variant, got %v", variants)
}

func TestEnhancer_GenerateVariants_NoHowToForQuestions(t *testing.T) {
	e := NewEnhancer()
	variants := e.GenerateVariants("how does the cache work")

	for _, v := range variants {
		assert.False(t, strings.HasPrefix(strings.ToLower(v), "how to how"))
	}
}

func TestEnhancer_GenerateVariants_CappedAtTen(t *testing.T) {
	e := NewEnhancer()
	variants := e.GenerateVariants("create build implement new pools")
	assert.LessOrEqual(t, len(variants), maxVariants)
}

func TestEnhancer_GenerateVariants_NoDuplicates(t *testing.T) {
	e := NewEnhancer()
	variants := e.GenerateVariants("create a cache")

	seen := make(map[string]bool)
	for _, v := range variants {
		key := strings.ToLower(v)
		assert.False(t, seen[key], "duplicate variant: %s", v)
		seen[key] = true
	}
}

func TestTogglePluralSingular(t *testing.T) {
	assert.Equal(t, "cache", togglePluralSingular("caches"))
	assert.Equal(t, "policy", togglePluralSingular("policies"))
	assert.Equal(t, "middlewares", togglePluralSingular("middleware"))
	assert.Equal(t, "query", togglePluralSingular("queries"))
}

func TestEnhancer_ExtractExactTerms_QuotedPhrase(t *testing.T) {
	e := NewEnhancer()
	terms := e.ExtractExactTerms(`find the "rate limiter" implementation`)
	assert.Contains(t, terms, "rate limiter")
}

func TestEnhancer_ExtractExactTerms_Numbers(t *testing.T) {
	e := NewEnhancer()
	terms := e.ExtractExactTerms("timeout after 30 seconds or 0.5 backoff")
	assert.Contains(t, terms, "30")
	assert.Contains(t, terms, "0.5")
}

func TestEnhancer_ExtractExactTerms_FunctionCall(t *testing.T) {
	e := NewEnhancer()
	terms := e.ExtractExactTerms("where is computeRetryDelay(attempt) called from")
	assert.Contains(t, terms, "computeRetryDelay(attempt)")
}

func TestEnhancer_ExtractExactTerms_Identifiers(t *testing.T) {
	e := NewEnhancer()
	terms := e.ExtractExactTerms("the getUserById helper and MAX_RETRY_COUNT constant")
	assert.Contains(t, terms, "getUserById")
	assert.Contains(t, terms, "MAX_RETRY_COUNT")
}

func TestEnhancer_ExtractExactTerms_ShortWordsExcluded(t *testing.T) {
	e := NewEnhancer()
	terms := e.ExtractExactTerms("go to the db")
	for _, term := range terms {
		assert.GreaterOrEqual(t, len(term), minIdentLen)
	}
}

func TestEnhancer_ExtractExactTerms_CappedAtSixteen(t *testing.T) {
	e := NewEnhancer()
	q := `1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19 20`
	terms := e.ExtractExactTerms(q)
	assert.LessOrEqual(t, len(terms), maxExactTerms)
}

func TestEnhancer_ExtractExactTerms_NoDuplicates(t *testing.T) {
	e := NewEnhancer()
	terms := e.ExtractExactTerms("getUserById calls getUserById again")

	seen := make(map[string]bool)
	for _, term := range terms {
		assert.False(t, seen[term], "duplicate term: %s", term)
		seen[term] = true
	}
}

func TestTokenize_CamelAndSnakeCase(t *testing.T) {
	assert.Equal(t, []string{"get", "User", "By", "Id"}, tokenize("getUserById"))
	assert.Equal(t, []string{"max", "retry", "count"}, tokenize("max_retry_count"))
}

func TestSplitCamelSnake_PreservesPlainWord(t *testing.T) {
	assert.Equal(t, []string{"cache"}, splitCamelSnake("cache"))
}
