// Package ranker implements the contextual multi-factor ranker: eight
// normalized signals blended by a per-intent weight vector, with
// deterministic tie-breaking and human-readable explanations. An
// AdaptiveRanker wraps the base Ranker with feedback-driven weight
// learning and snapshot rollback.
package ranker

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aman-cerp/retrieval-core/internal/model"
	"github.com/aman-cerp/retrieval-core/internal/search"
)

const nanCoerceValue = 0.5

// Ranker scores and orders candidates using the reference per-intent
// weight table.
type Ranker struct {
	patterns *search.PatternRegistry
	weights  map[model.Intent]FactorWeights
	coerced  int64 // count of NaN/Inf factor values coerced this process
}

// New creates a Ranker using the default weight table and pattern
// registry.
func New(patterns *search.PatternRegistry) *Ranker {
	table := make(map[model.Intent]FactorWeights, len(defaultWeightTable))
	for k, v := range defaultWeightTable {
		table[k] = v
	}
	return &Ranker{patterns: patterns, weights: table}
}

// CoercedCount reports how many NaN/Inf factor values have been coerced
// to the neutral default since the ranker was constructed.
func (r *Ranker) CoercedCount() int64 {
	return r.coerced
}

// SetWeights overrides the weight vector used for intent. Callers (the
// AdaptiveRanker) must ensure w.Sum() == 1.0.
func (r *Ranker) SetWeights(intent model.Intent, w FactorWeights) {
	r.weights[intent] = w
}

// Weights returns the weight vector currently in effect for intent.
func (r *Ranker) Weights(intent model.Intent) FactorWeights {
	return r.weightsFor(intent)
}

// Rank scores every candidate against q/qctx using intent's weight
// vector, sorts them by the tie-breaking order, and attaches an
// explanation to each. It mutates and returns the same slice.
func (r *Ranker) Rank(candidates []model.SearchResult, q model.Query, qctx model.QueryContext, intent model.Intent) []model.SearchResult {
	if len(candidates) == 0 {
		return candidates
	}

	weights := r.weightsFor(intent)
	stats := computeBatchStats(candidates)

	var patterns []string
	if r.patterns != nil {
		patterns = r.patterns.InferPatterns(strings.ToLower(q.Text))
	}

	for i := range candidates {
		factors := computeFactors(candidates[i], q, qctx, stats, patterns, r.patterns)
		factors = r.coerceInvalid(factors)
		candidates[i].RankingFactors = factors
		candidates[i].RankedScore = score(factors, weights)
		candidates[i].Explanation = explain(factors, weights)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return lessByTieBreak(candidates[i], candidates[j])
	})

	return candidates
}

func (r *Ranker) weightsFor(intent model.Intent) FactorWeights {
	if w, ok := r.weights[intent]; ok {
		return w
	}
	return WeightFor(intent)
}

// coerceInvalid replaces any NaN/Inf factor value with the neutral
// default and zeroes its confidence, counting the event.
func (r *Ranker) coerceInvalid(f model.RankingFactors) model.RankingFactors {
	coerce := func(factor *model.Factor) {
		if math.IsNaN(factor.Value) || math.IsInf(factor.Value, 0) {
			factor.Value = nanCoerceValue
			factor.Confidence = 0
			r.coerced++
		}
	}
	coerce(&f.TextRelevance)
	coerce(&f.SemanticSimilarity)
	coerce(&f.ContextOverlap)
	coerce(&f.ImportSimilarity)
	coerce(&f.ProximityScore)
	coerce(&f.RecencyScore)
	coerce(&f.QualityScore)
	coerce(&f.PatternMatch)
	return f
}

func score(f model.RankingFactors, w FactorWeights) float64 {
	return w.TextRelevance*f.TextRelevance.Value +
		w.SemanticSimilarity*f.SemanticSimilarity.Value +
		w.ContextOverlap*f.ContextOverlap.Value +
		w.ImportSimilarity*f.ImportSimilarity.Value +
		w.ProximityScore*f.ProximityScore.Value +
		w.RecencyScore*f.RecencyScore.Value +
		w.QualityScore*f.QualityScore.Value +
		w.PatternMatch*f.PatternMatch.Value
}

// lessByTieBreak orders by ranked score desc, then raw score desc, then
// code_snippet length desc, then file_path asc.
func lessByTieBreak(a, b model.SearchResult) bool {
	if a.RankedScore != b.RankedScore {
		return a.RankedScore > b.RankedScore
	}
	if a.RawScore != b.RawScore {
		return a.RawScore > b.RawScore
	}
	if len(a.CodeSnippet) != len(b.CodeSnippet) {
		return len(a.CodeSnippet) > len(b.CodeSnippet)
	}
	return a.FilePath < b.FilePath
}

type contribution struct {
	name  string
	value float64
	weighted float64
}

// explain names the top three weighted contributing factors in a short
// human-readable rationale.
func explain(f model.RankingFactors, w FactorWeights) string {
	values := [8]float64{
		f.TextRelevance.Value, f.SemanticSimilarity.Value, f.ContextOverlap.Value, f.ImportSimilarity.Value,
		f.ProximityScore.Value, f.RecencyScore.Value, f.QualityScore.Value, f.PatternMatch.Value,
	}
	weightSlice := w.asSlice()

	contributions := make([]contribution, 8)
	for i := range contributions {
		contributions[i] = contribution{name: factorNames[i], value: values[i], weighted: values[i] * weightSlice[i]}
	}
	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].weighted > contributions[j].weighted
	})

	top := contributions
	if len(top) > 3 {
		top = top[:3]
	}

	parts := make([]string, 0, len(top))
	for _, c := range top {
		parts = append(parts, fmt.Sprintf("%s=%.2f", c.name, c.value))
	}
	return "ranked primarily on " + strings.Join(parts, ", ")
}
