package ranker

import "github.com/aman-cerp/retrieval-core/internal/model"

// FactorWeights is a weight vector over the eight ranking factors, one
// set per intent. Every vector must sum to 1.0.
type FactorWeights struct {
	TextRelevance      float64
	SemanticSimilarity float64
	ContextOverlap     float64
	ImportSimilarity   float64
	ProximityScore     float64
	RecencyScore       float64
	QualityScore       float64
	PatternMatch       float64
}

// Sum returns the total weight across all eight factors.
func (w FactorWeights) Sum() float64 {
	return w.TextRelevance + w.SemanticSimilarity + w.ContextOverlap + w.ImportSimilarity +
		w.ProximityScore + w.RecencyScore + w.QualityScore + w.PatternMatch
}

// defaultWeightTable is the reference per-intent weight vector. Every row
// sums to exactly 1.0.
var defaultWeightTable = map[model.Intent]FactorWeights{
	model.IntentImplement: {
		TextRelevance: 0.15, SemanticSimilarity: 0.25, ContextOverlap: 0.10, ImportSimilarity: 0.15,
		ProximityScore: 0.05, RecencyScore: 0.05, QualityScore: 0.20, PatternMatch: 0.05,
	},
	model.IntentDebug: {
		TextRelevance: 0.30, SemanticSimilarity: 0.15, ContextOverlap: 0.15, ImportSimilarity: 0.10,
		ProximityScore: 0.10, RecencyScore: 0.10, QualityScore: 0.05, PatternMatch: 0.05,
	},
	model.IntentUnderstand: {
		TextRelevance: 0.25, SemanticSimilarity: 0.30, ContextOverlap: 0.10, ImportSimilarity: 0.10,
		ProximityScore: 0.05, RecencyScore: 0.05, QualityScore: 0.10, PatternMatch: 0.05,
	},
	model.IntentRefactor: {
		TextRelevance: 0.15, SemanticSimilarity: 0.20, ContextOverlap: 0.15, ImportSimilarity: 0.15,
		ProximityScore: 0.10, RecencyScore: 0.05, QualityScore: 0.15, PatternMatch: 0.05,
	},
	model.IntentTest: {
		TextRelevance: 0.25, SemanticSimilarity: 0.15, ContextOverlap: 0.15, ImportSimilarity: 0.10,
		ProximityScore: 0.10, RecencyScore: 0.05, QualityScore: 0.15, PatternMatch: 0.05,
	},
	model.IntentDocument: {
		TextRelevance: 0.30, SemanticSimilarity: 0.25, ContextOverlap: 0.10, ImportSimilarity: 0.05,
		ProximityScore: 0.05, RecencyScore: 0.05, QualityScore: 0.15, PatternMatch: 0.05,
	},
}

// WeightFor returns the reference weight vector for intent, defaulting to
// UNDERSTAND's row for an unrecognized intent.
func WeightFor(intent model.Intent) FactorWeights {
	if w, ok := defaultWeightTable[intent]; ok {
		return w
	}
	return defaultWeightTable[model.IntentUnderstand]
}

func (w FactorWeights) asSlice() [8]float64 {
	return [8]float64{
		w.TextRelevance, w.SemanticSimilarity, w.ContextOverlap, w.ImportSimilarity,
		w.ProximityScore, w.RecencyScore, w.QualityScore, w.PatternMatch,
	}
}

func weightsFromSlice(s [8]float64) FactorWeights {
	return FactorWeights{
		TextRelevance: s[0], SemanticSimilarity: s[1], ContextOverlap: s[2], ImportSimilarity: s[3],
		ProximityScore: s[4], RecencyScore: s[5], QualityScore: s[6], PatternMatch: s[7],
	}
}

var factorNames = [8]string{
	"text_relevance", "semantic_similarity", "context_overlap", "import_similarity",
	"proximity_score", "recency_score", "quality_score", "pattern_match",
}
