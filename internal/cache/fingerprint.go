package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

// Fingerprint computes the deterministic cache key for q: a digest over
// normalized query text, intent hint, language, repository, max_results,
// skip, bm25_only, sorted exact_terms, and detail_level. Two queries that
// differ only in exact_terms ordering or incidental whitespace in the
// query text hash to the same fingerprint.
func Fingerprint(q model.Query) string {
	terms := append([]string(nil), q.ExactTerms...)
	sort.Strings(terms)

	parts := []string{
		normalizeText(q.Text),
		string(q.IntentHint),
		q.Language,
		q.Repository,
		fmt.Sprintf("%d", q.MaxResults),
		fmt.Sprintf("%d", q.Skip),
		fmt.Sprintf("%t", q.BM25Only),
		strings.Join(terms, "\x1f"),
		string(q.DetailLevel),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// normalizeText collapses internal whitespace runs and trims, so
// "  find   foo " and "find foo" fingerprint identically.
func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
