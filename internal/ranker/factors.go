package ranker

import (
	"math"
	"path"
	"strings"
	"time"

	"github.com/aman-cerp/retrieval-core/internal/model"
	"github.com/aman-cerp/retrieval-core/internal/search"
)

// batchStats holds the per-batch statistics needed for min-max
// normalization of text_relevance.
type batchStats struct {
	min, max float64
}

func computeBatchStats(candidates []model.SearchResult) batchStats {
	if len(candidates) == 0 {
		return batchStats{}
	}
	stats := batchStats{min: candidates[0].RawScore, max: candidates[0].RawScore}
	for _, c := range candidates[1:] {
		if c.RawScore < stats.min {
			stats.min = c.RawScore
		}
		if c.RawScore > stats.max {
			stats.max = c.RawScore
		}
	}
	return stats
}

// computeFactors derives all eight normalized ranking factors for one
// candidate, given the batch it was ranked alongside and the caller's
// query context.
func computeFactors(c model.SearchResult, q model.Query, qctx model.QueryContext, stats batchStats, patterns []string, registry *search.PatternRegistry) model.RankingFactors {
	return model.RankingFactors{
		TextRelevance:      textRelevance(c, stats),
		SemanticSimilarity: semanticSimilarity(c, q),
		ContextOverlap:     contextOverlap(c, qctx),
		ImportSimilarity:   importSimilarity(c, qctx),
		ProximityScore:     proximityScore(c, qctx),
		RecencyScore:       recencyScore(c),
		QualityScore:       qualityScore(c),
		PatternMatch:       patternMatch(c, patterns, registry),
	}
}

func textRelevance(c model.SearchResult, stats batchStats) model.Factor {
	if math.IsNaN(c.RawScore) || math.IsInf(c.RawScore, 0) {
		// Left unclamped so coerceInvalid neutralizes it and counts the event.
		return model.Factor{Value: c.RawScore, Confidence: 1.0, Source: "text_relevance:minmax"}
	}
	if stats.max == stats.min {
		v := 0.5
		if stats.max != 0 {
			v = 1.0
		}
		return model.Factor{Value: v, Confidence: 0.5, Source: "text_relevance:uniform_batch"}
	}
	v := (c.RawScore - stats.min) / (stats.max - stats.min)
	return model.Factor{Value: clamp01(v), Confidence: 1.0, Source: "text_relevance:minmax"}
}

func semanticSimilarity(c model.SearchResult, q model.Query) model.Factor {
	if v, ok := c.Metadata["semantic_similarity"].(float64); ok {
		return model.Factor{Value: clamp01(v), Confidence: 1.0, Source: "semantic_similarity:vector"}
	}
	qTokens := identifierSet(q.Text)
	cTokens := identifierSet(c.CodeSnippet)
	return model.Factor{Value: jaccard(qTokens, cTokens), Confidence: 0.6, Source: "semantic_similarity:jaccard"}
}

func contextOverlap(c model.SearchResult, qctx model.QueryContext) model.Factor {
	if qctx.CurrentFile == "" {
		return model.Factor{Value: 0, Confidence: 0, Source: "context_overlap:no_context"}
	}
	candidateIDs := metadataStringSet(c.Metadata, "identifiers")
	if candidateIDs == nil {
		candidateIDs = identifierSet(c.CodeSnippet)
	}
	contextIDs := identifierSet(qctx.CurrentFile)
	return model.Factor{Value: jaccard(candidateIDs, contextIDs), Confidence: 0.8, Source: "context_overlap:jaccard"}
}

func importSimilarity(c model.SearchResult, qctx model.QueryContext) model.Factor {
	if qctx.CurrentFile == "" {
		return model.Factor{Value: 0, Confidence: 0, Source: "import_similarity:no_context"}
	}
	candidateImports := metadataStringSet(c.Metadata, "imports")
	if len(candidateImports) == 0 {
		return model.Factor{Value: 0, Confidence: 0, Source: "import_similarity:no_import_data"}
	}
	contextImports := prefsStringSet(qctx.Preferences, "imports")
	if len(contextImports) == 0 {
		return model.Factor{Value: 0, Confidence: 0.3, Source: "import_similarity:no_context_imports"}
	}
	return model.Factor{Value: jaccard(candidateImports, contextImports), Confidence: 0.8, Source: "import_similarity:jaccard"}
}

// proximityScore is monotone decreasing in path distance between the
// candidate's file and the current file, dampened by log(1+d*4)/log(5)
// so a handful of directory hops doesn't dominate the score.
func proximityScore(c model.SearchResult, qctx model.QueryContext) model.Factor {
	if qctx.CurrentFile == "" || c.FilePath == "" {
		return model.Factor{Value: 0, Confidence: 0, Source: "proximity_score:no_context"}
	}
	d := pathDistance(c.FilePath, qctx.CurrentFile)
	if d == 0 {
		return model.Factor{Value: 1.0, Confidence: 1.0, Source: "proximity_score:same_file"}
	}
	damped := math.Log(1+float64(d)*4) / math.Log(5)
	v := clamp01(1.0 - damped)
	return model.Factor{Value: v, Confidence: 0.7, Source: "proximity_score:path_distance"}
}

func pathDistance(a, b string) int {
	da := strings.Split(path.Dir(a), "/")
	db := strings.Split(path.Dir(b), "/")
	i := 0
	for i < len(da) && i < len(db) && da[i] == db[i] {
		i++
	}
	return (len(da) - i) + (len(db) - i)
}

// recencyScore is piecewise-linear in days since modification.
func recencyScore(c model.SearchResult) model.Factor {
	if c.ModifiedAt.IsZero() {
		return model.Factor{Value: 0.5, Confidence: 0, Source: "recency_score:unknown"}
	}
	days := time.Since(c.ModifiedAt).Hours() / 24
	var v float64
	switch {
	case days <= 7:
		v = 1.0
	case days <= 30:
		v = 0.8
	case days <= 90:
		v = 0.5
	case days <= 365:
		v = 0.2
	default:
		v = 0
	}
	return model.Factor{Value: v, Confidence: 1.0, Source: "recency_score:modified_at"}
}

// qualityScore blends test coverage, normalized complexity, and docstring
// presence. Candidates with none of these signals fall back to a neutral
// 0.5 with low confidence.
func qualityScore(c model.SearchResult) model.Factor {
	var (
		total      float64
		haveSignal bool
	)
	if v, ok := c.Metadata["test_coverage"].(float64); ok {
		total += 0.3 * clamp01(v)
		haveSignal = true
	}
	if v, ok := c.Metadata["complexity"].(float64); ok {
		total += 0.2 * clamp01(1-v)
		haveSignal = true
	}
	if v, ok := c.Metadata["has_docstring"].(bool); ok && v {
		total += 0.2
		haveSignal = true
	}
	if !haveSignal {
		return model.Factor{Value: 0.5, Confidence: 0.2, Source: "quality_score:no_signal"}
	}
	return model.Factor{Value: clamp01(total), Confidence: 0.7, Source: "quality_score:blend"}
}

// patternMatch scores the fraction of query-inferred code patterns that
// also appear to be present in the candidate, per the same pattern
// registry's vocabulary.
func patternMatch(c model.SearchResult, patterns []string, registry *search.PatternRegistry) model.Factor {
	if len(patterns) == 0 || registry == nil {
		return model.Factor{Value: 0, Confidence: 0, Source: "pattern_match:no_patterns_inferred"}
	}
	present := registry.PatternsIn(strings.ToLower(c.CodeSnippet), patterns)
	return model.Factor{Value: float64(present) / float64(len(patterns)), Confidence: 0.6, Source: "pattern_match:registry"}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
