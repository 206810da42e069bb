package hybrid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeExactTerms_ClampsAndDropsNonPrintable(t *testing.T) {
	terms := sanitizeExactTerms([]string{"hello\x00world", strings.Repeat("x", 300)})
	assert.Equal(t, "helloworld", terms[0])
	assert.Len(t, terms[1], maxFieldLen)
}

func TestSanitizeExactTerms_DropsEmptyAfterSanitization(t *testing.T) {
	terms := sanitizeExactTerms([]string{"\x01\x02", "ok"})
	assert.Equal(t, []string{"ok"}, terms)
}

func TestBuildExactFilter_JoinsWithOr(t *testing.T) {
	filter := buildExactFilter([]string{"foo", "bar"}, "")
	assert.Contains(t, filter, "search.ismatch('foo'")
	assert.Contains(t, filter, "search.ismatch('bar'")
	assert.Contains(t, filter, " or ")
}

func TestBuildExactFilter_CombinesWithCallerFilter(t *testing.T) {
	filter := buildExactFilter([]string{"foo"}, "language eq 'go'")
	assert.Contains(t, filter, "and")
	assert.Contains(t, filter, "language eq 'go'")
}

func TestBuildExactFilter_NoTermsReturnsCallerFilterUnchanged(t *testing.T) {
	filter := buildExactFilter(nil, "language eq 'go'")
	assert.Equal(t, "language eq 'go'", filter)
}

func TestBuildExactFilter_EscapesSingleQuotes(t *testing.T) {
	filter := buildExactFilter([]string{"o'brien"}, "")
	assert.Contains(t, filter, "o''brien")
}

func TestStripTagsAndClamp_RemovesTagsAndTruncates(t *testing.T) {
	out := stripTagsAndClamp("<em>" + strings.Repeat("a", 250) + "</em>")
	assert.NotContains(t, out, "<")
	assert.NotContains(t, out, ">")
	assert.Len(t, out, maxFieldLen)
}
