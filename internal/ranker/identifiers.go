package ranker

import "strings"

// identifierSet extracts the lowercase word-shaped tokens (letters,
// digits, underscores) from text, for Jaccard comparison between a
// candidate and the query or current file.
func identifierSet(text string) map[string]bool {
	set := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() >= 2 {
			set[strings.ToLower(b.String())] = true
		}
		b.Reset()
	}
	for _, r := range text {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return set
}

func metadataStringSet(meta map[string]any, key string) map[string]bool {
	raw, ok := meta[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]string)
	if !ok {
		return nil
	}
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[strings.ToLower(s)] = true
	}
	return set
}

func prefsStringSet(prefs map[string]string, key string) map[string]bool {
	raw, ok := prefs[key]
	if !ok || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	set := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			set[strings.ToLower(p)] = true
		}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|, returning 0 when the union is empty.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
