package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsIdentifierShaped(t *testing.T) {
	assert.True(t, isIdentifierShaped("getUserById"))
	assert.True(t, isIdentifierShaped("HTTPClient"))
	assert.True(t, isIdentifierShaped("max_retry_count"))
	assert.True(t, isIdentifierShaped("MAX_RETRY_COUNT"))
	assert.False(t, isIdentifierShaped("hello"))
	assert.False(t, isIdentifierShaped("the"))
}

func TestPatternRegistry_InferPatterns(t *testing.T) {
	r := NewPatternRegistry()

	got := r.InferPatterns("how do i add retry with backoff here")
	assert.Contains(t, got, "retry")
	// retry's related pattern set includes circuit_breaker and async.
	assert.Contains(t, got, "circuit_breaker")
	assert.Contains(t, got, "async")
}

func TestPatternRegistry_InferPatterns_NoMatch(t *testing.T) {
	r := NewPatternRegistry()
	got := r.InferPatterns("list all files in the repository")
	assert.Empty(t, got)
}

func TestPatternRegistry_PatternsIn(t *testing.T) {
	r := NewPatternRegistry()
	patterns := []string{"singleton", "cache"}

	count := r.PatternsIn("a lazily initialized cache using sync.once", patterns)
	assert.Equal(t, 2, count)
}

func TestPatternRegistry_PatternsIn_PartialMatch(t *testing.T) {
	r := NewPatternRegistry()
	patterns := []string{"singleton", "cache"}

	count := r.PatternsIn("a simple memoize wrapper", patterns)
	assert.Equal(t, 1, count)
}
