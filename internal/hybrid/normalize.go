package hybrid

import (
	"strconv"
	"time"

	"github.com/aman-cerp/retrieval-core/internal/gateway"
	"github.com/aman-cerp/retrieval-core/internal/model"
)

// normalizeDocument converts one raw gateway.Document hit into a
// model.SearchResult, stripping tags from highlights and clamping
// snippets. rawScore is the stage's own relevance score for the hit
// (search.score or the semantic re-ranker score). Fusion uses it only to
// break ties between equal RRF scores; the searcher then replaces it with
// the fused RRF score.
func normalizeDocument(doc gateway.Document, highlights map[string][]string, rawScore float64) model.SearchResult {
	res := model.SearchResult{
		ID:           stringField(doc, "id"),
		FilePath:     stringField(doc, "file_path"),
		Repository:   stringField(doc, "repository"),
		Language:     stringField(doc, "language"),
		CodeSnippet:  stringField(doc, "content"),
		FunctionName: stringField(doc, "function_name"),
		ClassName:    stringField(doc, "class_name"),
		StartLine:    intField(doc, "start_line"),
		EndLine:      intField(doc, "end_line"),
		RawScore:     rawScore,
		Metadata:     map[string]any{},
	}

	if res.ID == "" {
		res.ID = res.FilePath
	}

	if t := timeField(doc, "modified_at"); !t.IsZero() {
		res.ModifiedAt = t
	}

	// These pass through to the ranker's quality/context factors; absent
	// fields leave the corresponding factor at its documented default.
	if v, ok := doc["imports"]; ok {
		res.Metadata["imports"] = stringSliceField(v)
	}
	if v, ok := doc["identifiers"]; ok {
		res.Metadata["identifiers"] = stringSliceField(v)
	}
	if v, ok := doc["has_docstring"]; ok {
		if b, ok := v.(bool); ok {
			res.Metadata["has_docstring"] = b
		}
	}
	if v, ok := doc["test_coverage"]; ok {
		if f, ok := v.(float64); ok {
			res.Metadata["test_coverage"] = f
		}
	}
	if v, ok := doc["complexity"]; ok {
		if f, ok := v.(float64); ok {
			res.Metadata["complexity"] = f
		}
	}

	for field, snippets := range highlights {
		clamped := make([]string, 0, len(snippets))
		for _, s := range snippets {
			clamped = append(clamped, stripTagsAndClamp(s))
		}
		res.Highlights = append(res.Highlights, model.Highlight{Field: field, Snippets: clamped})
	}

	return res
}

func dedupeKey(r model.SearchResult) string {
	return r.FilePath + "\x00" + strconv.Itoa(r.StartLine)
}

func stringField(doc gateway.Document, key string) string {
	v, ok := doc[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intField(doc gateway.Document, key string) int {
	v, ok := doc[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func stringSliceField(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func timeField(doc gateway.Document, key string) time.Time {
	v, ok := doc[key]
	if !ok {
		return time.Time{}
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
