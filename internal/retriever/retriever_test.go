package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/retrieval-core/internal/hybrid"
	"github.com/aman-cerp/retrieval-core/internal/model"
)

type fakeEnhancer struct {
	variants   []string
	exactTerms []string
	intent     model.Intent
}

func (f *fakeEnhancer) Enhance(query string, hint model.Intent) model.EnhancedQuery {
	intent := f.intent
	if hint.Valid() {
		intent = hint
	}
	return model.EnhancedQuery{
		Original:   query,
		Intent:     intent,
		Variants:   f.variants,
		ExactTerms: f.exactTerms,
	}
}

type searchCall struct {
	query string
}

type fakeSearcher struct {
	byQuery map[string][]model.SearchResult
	calls   []searchCall
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, params hybrid.SearchParams) ([]model.SearchResult, []hybrid.StageOutcome, error) {
	f.calls = append(f.calls, searchCall{query: params.Query})
	if f.err != nil {
		return nil, nil, f.err
	}
	results := f.byQuery[params.Query]
	return results, []hybrid.StageOutcome{{Name: "semantic", Ran: true, HitCount: len(results)}}, nil
}

func sr(id, filePath, language, repo string, score float64) model.SearchResult {
	return model.SearchResult{ID: id, FilePath: filePath, Language: language, Repository: repo, RawScore: score}
}

func TestRetriever_UsesUpToThreeVariants(t *testing.T) {
	enh := &fakeEnhancer{variants: []string{"q1", "q2", "q3", "q4"}}
	searcher := &fakeSearcher{byQuery: map[string][]model.SearchResult{
		"q1": {sr("1", "a.go", "go", "r1", 0.9)},
		"q2": {sr("2", "b.go", "go", "r1", 0.8)},
		"q3": {sr("3", "c.go", "go", "r1", 0.7)},
	}}
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{
		Query:      model.Query{Text: "hello", MaxResults: 5},
		MaxResults: 5,
	})
	require.NoError(t, err)
	assert.Len(t, searcher.calls, 3, "at most 3 variants are ever searched")
	assert.Equal(t, 3, result.VariantsUsed)
}

func TestRetriever_FusesOriginalHeavierThanRewrites(t *testing.T) {
	enh := &fakeEnhancer{variants: []string{"original query", "rewrite one"}}
	searcher := &fakeSearcher{byQuery: map[string][]model.SearchResult{
		"original query": {sr("1", "a.go", "go", "r1", 1.0)},
		"rewrite one":    {sr("2", "b.go", "go", "r1", 1.0)},
	}}
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{Query: model.Query{Text: "original query"}, MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	// The candidate sourced only from the heavier-weighted original variant
	// must rank ahead of the one sourced only from the rewrite.
	assert.Equal(t, "a.go", result.Candidates[0].FilePath)
}

func TestRetriever_PostFusionLanguageFilter(t *testing.T) {
	enh := &fakeEnhancer{variants: []string{"q"}}
	searcher := &fakeSearcher{byQuery: map[string][]model.SearchResult{
		"q": {
			sr("1", "a.go", "go", "r1", 0.9),
			sr("2", "b.py", "python", "r1", 0.8),
		},
	}}
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{
		Query:      model.Query{Text: "q", Language: "go"},
		MaxResults: 5,
	})
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "a.go", result.Candidates[0].FilePath)
}

func TestRetriever_PostFusionRepositoryFilter(t *testing.T) {
	enh := &fakeEnhancer{variants: []string{"q"}}
	searcher := &fakeSearcher{byQuery: map[string][]model.SearchResult{
		"q": {
			sr("1", "a.go", "go", "r1", 0.9),
			sr("2", "b.go", "go", "r2", 0.8),
		},
	}}
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{
		Query:      model.Query{Text: "q", Repository: "r1"},
		MaxResults: 5,
	})
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "r1", result.Candidates[0].Repository)
}

func TestRetriever_ReturnsTopMaxResultsTimesTwo(t *testing.T) {
	enh := &fakeEnhancer{variants: []string{"q"}}
	many := make([]model.SearchResult, 20)
	for i := range many {
		many[i] = sr(string(rune('a'+i)), string(rune('a'+i))+".go", "go", "r1", float64(20-i))
	}
	searcher := &fakeSearcher{byQuery: map[string][]model.SearchResult{"q": many}}
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{Query: model.Query{Text: "q"}, MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 6)
}

func TestRetriever_MaxResultsZeroProducesEmptyCandidates(t *testing.T) {
	enh := &fakeEnhancer{variants: []string{"q"}}
	many := make([]model.SearchResult, 5)
	for i := range many {
		many[i] = sr(string(rune('a'+i)), string(rune('a'+i))+".go", "go", "r1", float64(5-i))
	}
	searcher := &fakeSearcher{byQuery: map[string][]model.SearchResult{"q": many}}
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{Query: model.Query{Text: "q"}, MaxResults: 0})
	require.NoError(t, err)
	assert.Empty(t, result.Candidates, "max_results=0 must trim candidates to none")
}

func TestRetriever_NoVariantsProducesEmptyCandidates(t *testing.T) {
	enh := &fakeEnhancer{variants: nil}
	searcher := &fakeSearcher{byQuery: map[string][]model.SearchResult{}}
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{Query: model.Query{Text: "q"}, MaxResults: 5})
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.Equal(t, 0, result.VariantsUsed)
}

func TestRetriever_VariantSearchErrorIsSkippedNotFatal(t *testing.T) {
	enh := &fakeEnhancer{variants: []string{"q1", "q2"}}
	searcher := &fakeSearcher{
		byQuery: map[string][]model.SearchResult{"q2": {sr("1", "a.go", "go", "r1", 0.9)}},
	}
	// q1 returns nothing (simulating an upstream error the hybrid searcher
	// already absorbed); q2 succeeds.
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{Query: model.Query{Text: "q"}, MaxResults: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Candidates)
}

func TestRetriever_VectorUsedReflectsStageOutcomes(t *testing.T) {
	enh := &fakeEnhancer{variants: []string{"q"}}
	searcher := &fakeSearcher{byQuery: map[string][]model.SearchResult{"q": {sr("1", "a.go", "go", "r1", 0.9)}}}
	r := New(enh, searcher)

	result, err := r.Retrieve(context.Background(), Params{Query: model.Query{Text: "q"}, MaxResults: 5})
	require.NoError(t, err)
	assert.False(t, result.VectorUsed)
	assert.Contains(t, result.StagesUsed, "semantic")
}
