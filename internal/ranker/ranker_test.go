package ranker

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/retrieval-core/internal/model"
	"github.com/aman-cerp/retrieval-core/internal/search"
)

func newTestRanker() *Ranker {
	return New(search.NewPatternRegistry())
}

func TestRanker_RankEmptyReturnsEmpty(t *testing.T) {
	r := newTestRanker()
	out := r.Rank(nil, model.Query{}, model.QueryContext{}, model.IntentUnderstand)
	assert.Empty(t, out)
}

func TestRanker_RankSetsRankedScoreAndExplanation(t *testing.T) {
	r := newTestRanker()
	candidates := []model.SearchResult{
		{ID: "1", FilePath: "a.go", CodeSnippet: "func Foo() {}", RawScore: 0.9},
		{ID: "2", FilePath: "b.go", CodeSnippet: "func Bar() {}", RawScore: 0.2},
	}
	out := r.Rank(candidates, model.Query{Text: "implement foo"}, model.QueryContext{}, model.IntentImplement)

	for _, c := range out {
		assert.Greater(t, c.RankedScore, 0.0)
		assert.NotEmpty(t, c.Explanation)
		assert.Contains(t, c.Explanation, "ranked primarily on")
	}
}

func TestRanker_TieBreakByRankedScoreDescending(t *testing.T) {
	r := newTestRanker()
	candidates := []model.SearchResult{
		{ID: "1", FilePath: "a.go", CodeSnippet: "x", RawScore: 0.1},
		{ID: "2", FilePath: "b.go", CodeSnippet: "x", RawScore: 0.9},
	}
	out := r.Rank(candidates, model.Query{Text: "hello"}, model.QueryContext{}, model.IntentUnderstand)
	require.Len(t, out, 2)
	assert.GreaterOrEqual(t, out[0].RankedScore, out[1].RankedScore)
}

func TestRanker_TieBreakFallsBackToRawScoreThenSnippetLengthThenPath(t *testing.T) {
	a := model.SearchResult{FilePath: "b.go", RawScore: 0.5, RankedScore: 1.0, CodeSnippet: "short"}
	b := model.SearchResult{FilePath: "a.go", RawScore: 0.5, RankedScore: 1.0, CodeSnippet: "short"}
	// Equal ranked score, equal raw score, equal snippet length: path breaks tie.
	assert.True(t, lessByTieBreak(b, a))

	c := model.SearchResult{FilePath: "z.go", RawScore: 0.5, RankedScore: 1.0, CodeSnippet: "a longer snippet"}
	// Equal ranked+raw score: longer snippet wins regardless of path.
	assert.True(t, lessByTieBreak(c, a))

	d := model.SearchResult{FilePath: "z.go", RawScore: 0.9, RankedScore: 1.0, CodeSnippet: "short"}
	// Equal ranked score: higher raw score wins regardless of path.
	assert.True(t, lessByTieBreak(d, a))
}

func TestRanker_CoercesNaNFactorsAndCountsEvent(t *testing.T) {
	r := newTestRanker()
	candidates := []model.SearchResult{
		{ID: "1", FilePath: "a.go", CodeSnippet: "x", RawScore: math.NaN()},
	}
	out := r.Rank(candidates, model.Query{Text: "hello"}, model.QueryContext{}, model.IntentUnderstand)
	require.Len(t, out, 1)
	assert.Equal(t, 0.5, out[0].RankingFactors.TextRelevance.Value)
	assert.Equal(t, 0.0, out[0].RankingFactors.TextRelevance.Confidence)
	assert.Equal(t, int64(1), r.CoercedCount())
}

func TestRanker_TextRelevanceMinMaxNormalizes(t *testing.T) {
	candidates := []model.SearchResult{
		{FilePath: "a.go", RawScore: 0.0},
		{FilePath: "b.go", RawScore: 0.5},
		{FilePath: "c.go", RawScore: 1.0},
	}
	stats := computeBatchStats(candidates)
	assert.Equal(t, 0.0, textRelevance(candidates[0], stats).Value)
	assert.Equal(t, 1.0, textRelevance(candidates[2], stats).Value)
	assert.InDelta(t, 0.5, textRelevance(candidates[1], stats).Value, 1e-9)
}

func TestRanker_RecencyScorePiecewiseLinear(t *testing.T) {
	now := time.Now()
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{1 * 24 * time.Hour, 1.0},
		{20 * 24 * time.Hour, 0.8},
		{60 * 24 * time.Hour, 0.5},
		{200 * 24 * time.Hour, 0.2},
		{400 * 24 * time.Hour, 0.0},
	}
	for _, tc := range cases {
		c := model.SearchResult{ModifiedAt: now.Add(-tc.age)}
		assert.Equal(t, tc.want, recencyScore(c).Value)
	}
}

func TestRanker_RecencyScoreUnknownModifiedAtIsNeutral(t *testing.T) {
	f := recencyScore(model.SearchResult{})
	assert.Equal(t, 0.5, f.Value)
	assert.Equal(t, 0.0, f.Confidence)
}

func TestRanker_ContextOverlapZeroWithoutCurrentFile(t *testing.T) {
	f := contextOverlap(model.SearchResult{CodeSnippet: "func Foo"}, model.QueryContext{})
	assert.Equal(t, 0.0, f.Value)
	assert.Equal(t, 0.0, f.Confidence)
}

func TestRanker_ContextOverlapJaccardWithCurrentFile(t *testing.T) {
	f := contextOverlap(
		model.SearchResult{CodeSnippet: "func ParseHeader(req Request) {}"},
		model.QueryContext{CurrentFile: "func ParseHeader(x int) {}"},
	)
	assert.Greater(t, f.Value, 0.0)
}

func TestRanker_ImportSimilarityZeroWithoutContext(t *testing.T) {
	f := importSimilarity(model.SearchResult{}, model.QueryContext{})
	assert.Equal(t, 0.0, f.Value)
}

func TestRanker_QualityScoreNoSignalIsNeutral(t *testing.T) {
	f := qualityScore(model.SearchResult{})
	assert.Equal(t, 0.5, f.Value)
	assert.Equal(t, 0.2, f.Confidence)
}

func TestRanker_QualityScoreBlendsAvailableSignals(t *testing.T) {
	c := model.SearchResult{Metadata: map[string]any{
		"test_coverage": 1.0,
		"has_docstring": true,
	}}
	f := qualityScore(c)
	assert.InDelta(t, 0.5, f.Value, 1e-9) // 0.3*1.0 + 0.2 (docstring)
}

func TestRanker_PatternMatchZeroWithNoPatterns(t *testing.T) {
	f := patternMatch(model.SearchResult{CodeSnippet: "x"}, nil, search.NewPatternRegistry())
	assert.Equal(t, 0.0, f.Value)
}

func TestRanker_ProximityScoreSameFileIsOne(t *testing.T) {
	f := proximityScore(model.SearchResult{FilePath: "pkg/a.go"}, model.QueryContext{CurrentFile: "pkg/a.go"})
	assert.Equal(t, 1.0, f.Value)
}

func TestRanker_ProximityScoreDecreasesWithDistance(t *testing.T) {
	near := proximityScore(model.SearchResult{FilePath: "pkg/a.go"}, model.QueryContext{CurrentFile: "pkg/b.go"})
	far := proximityScore(model.SearchResult{FilePath: "pkg/x/y/z/a.go"}, model.QueryContext{CurrentFile: "pkg/b.go"})
	assert.Greater(t, near.Value, far.Value)
}

func TestRanker_SetWeightsAndWeightsRoundTrip(t *testing.T) {
	r := newTestRanker()
	custom := FactorWeights{TextRelevance: 1.0}
	r.SetWeights(model.IntentImplement, custom)
	assert.Equal(t, custom, r.Weights(model.IntentImplement))
}
