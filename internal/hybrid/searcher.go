package hybrid

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/aman-cerp/retrieval-core/internal/gateway"
	"github.com/aman-cerp/retrieval-core/internal/model"
	"github.com/aman-cerp/retrieval-core/internal/search"
)

const (
	stageSemantic = "semantic"
	stageVector   = "vector"
	stageExact    = "exact"

	defaultStageConcurrency = 8
)

// Searcher runs the semantic, vector, and exact-match passes against a
// gateway and fuses them with reciprocal rank fusion.
type Searcher struct {
	gw       Gateway
	sem      *semaphore.Weighted
	fuser    *search.Fuser
	logger   *slog.Logger
}

// Gateway is the subset of gateway.Gateway the hybrid searcher depends on,
// narrowed so it can be faked in tests without an HTTP server.
type Gateway interface {
	Search(ctx context.Context, req gateway.SearchRequest) (*gateway.SearchResponse, error)
}

// Option configures a Searcher at construction time.
type Option func(*Searcher)

// WithConcurrency overrides the default stage concurrency (8).
func WithConcurrency(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger overrides the default slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) { s.logger = logger }
}

// New creates a Searcher bound to gw.
func New(gw Gateway, opts ...Option) *Searcher {
	s := &Searcher{
		gw:     gw,
		sem:    semaphore.NewWeighted(defaultStageConcurrency),
		fuser:  search.NewFuser(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs up to three parallel stage calls (semantic, vector, exact),
// normalizes hits, fuses them with RRF, deduplicates by (file_path,
// start_line), and truncates to params.TopK. A single stage failure is
// logged and dropped; if every launched stage fails, Search returns an
// empty list and errAllStagesFailed, and each stage's own error is kept
// in its StageOutcome for the caller's diagnostics.
func (s *Searcher) Search(ctx context.Context, params SearchParams) ([]model.SearchResult, []StageOutcome, error) {
	if s.gw == nil {
		return nil, nil, errGatewayUninitialized
	}
	if params.TopK <= 0 {
		params.TopK = 10
	}
	weights := params.Weights.normalized()

	type stageResult struct {
		name    string
		results []model.SearchResult
		err     error
	}

	stages := s.planStages(params, weights)
	outcomes := make([]StageOutcome, 0, len(stages))
	if len(stages) == 0 {
		return nil, outcomes, nil
	}

	resultsCh := make(chan stageResult, len(stages))
	g, gctx := errgroup.WithContext(ctx)

	for _, st := range stages {
		st := st
		g.Go(func() error {
			if err := s.sem.Acquire(gctx, 1); err != nil {
				resultsCh <- stageResult{name: st.name, err: err}
				return nil
			}
			defer s.sem.Release(1)

			hits, err := s.runStage(gctx, st)
			if err != nil {
				s.logger.Warn("hybrid search stage failed", slog.String("stage", st.name), slog.Any("error", err))
			}
			resultsCh <- stageResult{name: st.name, results: hits, err: err}
			return nil
		})
	}

	_ = g.Wait()
	close(resultsCh)

	fusionInputs := make([]search.FusionInput, 0, len(stages))
	byID := make(map[string]model.SearchResult)
	stageWeight := map[string]float64{
		stageSemantic: weights.Semantic,
		stageVector:   weights.Vector,
		stageExact:    weights.Exact,
	}

	allFailed := true
	for sr := range resultsCh {
		outcome := StageOutcome{Name: sr.name, Ran: sr.err == nil, HitCount: len(sr.results), Err: sr.err}
		outcomes = append(outcomes, outcome)
		if sr.err != nil {
			continue
		}
		allFailed = false

		hits := make([]search.RankedHit, 0, len(sr.results))
		for _, r := range sr.results {
			id := dedupeKey(r)
			byID[id] = mergeResult(byID[id], r)
			hits = append(hits, search.RankedHit{ID: id, Score: r.RawScore})
		}
		fusionInputs = append(fusionInputs, search.FusionInput{
			Name:   sr.name,
			Weight: stageWeight[sr.name],
			Hits:   hits,
		})
	}

	if allFailed {
		return nil, outcomes, errAllStagesFailed
	}

	fused := s.fuser.Fuse(fusionInputs)

	out := make([]model.SearchResult, 0, params.TopK)
	for _, fh := range fused {
		res, ok := byID[fh.ID]
		if !ok {
			continue
		}
		res.RawScore = fh.RRFScore
		if fh.Sources[stageExact] {
			if res.Metadata == nil {
				res.Metadata = map[string]any{}
			}
			res.Metadata["exact_boost"] = true
		}
		out = append(out, res)
		if len(out) >= params.TopK {
			break
		}
	}

	return out, outcomes, nil
}

// mergeResult keeps the richer of two normalized records sharing a
// dedupe key — the one with the longer code snippet, since stages may
// return different highlight sets for the same underlying chunk.
func mergeResult(existing, incoming model.SearchResult) model.SearchResult {
	if existing.ID == "" {
		return incoming
	}
	if len(incoming.CodeSnippet) > len(existing.CodeSnippet) {
		merged := incoming
		merged.Highlights = append(append([]model.Highlight{}, existing.Highlights...), incoming.Highlights...)
		return merged
	}
	existing.Highlights = append(existing.Highlights, incoming.Highlights...)
	return existing
}
