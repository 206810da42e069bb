package hybrid

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxFieldLen        = 200
	defaultExactWeight = 0.2
	exactFilterFields  = "content,function_name,class_name,docstring"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// sanitizeExactTerms clamps each term to 200 chars and drops non-printable
// ASCII, discarding terms that are empty after sanitization.
func sanitizeExactTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = clampASCIIPrintable(t, maxFieldLen)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func clampASCIIPrintable(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= maxLen {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// buildExactFilter builds the OData filter fragment matching any sanitized
// exact term against the fixed field list, combined with the caller's
// own filter via "and" when present.
func buildExactFilter(terms []string, callerFilter string) string {
	sanitized := sanitizeExactTerms(terms)
	if len(sanitized) == 0 {
		return callerFilter
	}

	clauses := make([]string, len(sanitized))
	for i, t := range sanitized {
		clauses[i] = fmt.Sprintf("search.ismatch('%s', '%s')", escapeODataLiteral(t), exactFilterFields)
	}
	exactClause := strings.Join(clauses, " or ")

	if callerFilter == "" {
		return exactClause
	}
	return fmt.Sprintf("(%s) and (%s)", exactClause, callerFilter)
}

// escapeODataLiteral escapes single quotes per OData string literal rules.
func escapeODataLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// stripTagsAndClamp removes any HTML/XML tags a semantic highlighter may
// have inserted and clamps the result to 200 chars.
func stripTagsAndClamp(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	if len(s) > maxFieldLen {
		s = s[:maxFieldLen]
	}
	return s
}
