// Package retriever implements the multi-stage retriever: it runs the
// enhancer once, fans the hybrid searcher out across up to three query
// variants, fuses their per-variant rankings with reciprocal rank fusion,
// and applies post-fusion language/repository filters before handing
// candidates to the ranker.
package retriever

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aman-cerp/retrieval-core/internal/hybrid"
	"github.com/aman-cerp/retrieval-core/internal/model"
	"github.com/aman-cerp/retrieval-core/internal/search"
)

const (
	maxVariants           = 3
	originalVariantWeight = 1.0
	rewriteVariantWeight  = 0.7
)

// HybridSearcher is the subset of hybrid.Searcher the retriever depends
// on, narrowed so it can be faked in tests.
type HybridSearcher interface {
	Search(ctx context.Context, params hybrid.SearchParams) ([]model.SearchResult, []hybrid.StageOutcome, error)
}

// Enhancer is the subset of search.Enhancer the retriever depends on.
type Enhancer interface {
	Enhance(query string, hint model.Intent) model.EnhancedQuery
}

// Params is one retrieval invocation's input.
type Params struct {
	Query      model.Query
	Weights    hybrid.Weights
	Embedding  []float32
	MaxResults int
}

// Result is the retriever's output, forwarded to the ranker.
type Result struct {
	Candidates   []model.SearchResult
	Enhanced     model.EnhancedQuery
	VariantsUsed int
	StagesUsed   []string
	VectorUsed   bool
}

// Retriever orchestrates the enhancer and the hybrid searcher across
// query variants.
type Retriever struct {
	enhancer Enhancer
	searcher HybridSearcher
	fuser    *search.Fuser
	logger   *slog.Logger
}

// New creates a Retriever bound to the given enhancer and hybrid searcher.
func New(enhancer Enhancer, searcher HybridSearcher) *Retriever {
	return &Retriever{
		enhancer: enhancer,
		searcher: searcher,
		fuser:    search.NewFuser(),
		logger:   slog.Default(),
	}
}

// Retrieve runs the full multi-stage retrieval algorithm. ctx governs the
// overall deadline; when it expires, in-flight variant searches are
// cancelled and the candidates collected from variants that already
// completed are returned instead of an error.
func (r *Retriever) Retrieve(ctx context.Context, params Params) (Result, error) {
	enhanced := r.enhancer.Enhance(params.Query.Text, params.Query.IntentHint)
	if len(enhanced.ExactTerms) == 0 {
		enhanced.ExactTerms = params.Query.ExactTerms
	}

	variants := selectVariants(enhanced.Variants)

	type variantOutcome struct {
		weight  float64
		results []model.SearchResult
		stages  []hybrid.StageOutcome
		err     error
	}

	outcomes := make([]variantOutcome, len(variants))
	g, gctx := errgroup.WithContext(ctx)

	for i, variant := range variants {
		i, variant := i, variant
		weight := rewriteVariantWeight
		if i == 0 {
			weight = originalVariantWeight
		}
		g.Go(func() error {
			results, stages, err := r.searcher.Search(gctx, hybrid.SearchParams{
				Query:        variant,
				Language:     params.Query.Language,
				Repository:   params.Query.Repository,
				TopK:         maxResultsOrDefault(params.MaxResults) * 2,
				Weights:      params.Weights,
				Embedding:    params.Embedding,
				ExactTerms:   enhanced.ExactTerms,
				CallerFilter: "",
			})
			if err != nil {
				r.logger.Warn("retriever variant search failed", slog.String("variant", variant), slog.Any("error", err))
			}
			outcomes[i] = variantOutcome{weight: weight, results: results, stages: stages, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var fusionInputs []search.FusionInput
	byID := make(map[string]model.SearchResult)
	variantsUsed := 0
	stageNames := map[string]bool{}
	vectorUsed := false

	for i, oc := range outcomes {
		if oc.err != nil && len(oc.results) == 0 {
			continue
		}
		variantsUsed++
		hits := make([]search.RankedHit, 0, len(oc.results))
		for _, res := range oc.results {
			id := res.FilePath + "#" + res.ID
			byID[id] = res
			hits = append(hits, search.RankedHit{ID: id, Score: res.RawScore})
		}
		fusionInputs = append(fusionInputs, search.FusionInput{
			Name:   variantName(i),
			Weight: oc.weight,
			Hits:   hits,
		})
		for _, s := range oc.stages {
			if s.Ran {
				stageNames[s.Name] = true
				if s.Name == "vector" {
					vectorUsed = true
				}
			}
		}
	}

	fused := r.fuser.Fuse(fusionInputs)

	candidates := make([]model.SearchResult, 0, len(fused))
	for _, fh := range fused {
		res, ok := byID[fh.ID]
		if !ok {
			continue
		}
		res.RawScore = fh.RRFScore
		candidates = append(candidates, res)
	}

	candidates = applyPostFusionFilters(candidates, params.Query.Language, params.Query.Repository)

	limit := maxResultsOrDefault(params.MaxResults) * 2
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	stages := make([]string, 0, len(stageNames))
	for name := range stageNames {
		stages = append(stages, name)
	}

	return Result{
		Candidates:   candidates,
		Enhanced:     enhanced,
		VariantsUsed: variantsUsed,
		StagesUsed:   stages,
		VectorUsed:   vectorUsed,
	}, nil
}

func selectVariants(variants []string) []string {
	if len(variants) == 0 {
		return nil
	}
	if len(variants) > maxVariants {
		return variants[:maxVariants]
	}
	return variants
}

func variantName(i int) string {
	if i == 0 {
		return "original"
	}
	return "rewrite"
}

// maxResultsOrDefault resolves the caller's requested result count. Zero is
// an explicit request for no results, never an "unspecified" sentinel — a
// well-formed Query's max_results is always >0. A negative value has no
// legitimate meaning, so it falls back to the default page size.
func maxResultsOrDefault(n int) int {
	if n == 0 {
		return 0
	}
	if n < 0 {
		return 10
	}
	return n
}

// applyPostFusionFilters drops candidates that don't match the caller's
// language/repository constraints — a defensive pass since the gateway
// filter string is caller-controlled and the backend schema may omit
// these fields for some documents.
func applyPostFusionFilters(candidates []model.SearchResult, language, repository string) []model.SearchResult {
	if language == "" && repository == "" {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		if language != "" && c.Language != "" && c.Language != language {
			continue
		}
		if repository != "" && c.Repository != "" && c.Repository != repository {
			continue
		}
		out = append(out, c)
	}
	return out
}
