// Package pipeline implements the RAG Pipeline: the top-level
// process_query orchestrator wiring the cache, retriever, and ranker
// into a single entry point that never raises — every outcome, success
// or failure, comes back as a fully populated model.Result.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aman-cerp/retrieval-core/internal/cache"
	"github.com/aman-cerp/retrieval-core/internal/errors"
	"github.com/aman-cerp/retrieval-core/internal/hybrid"
	"github.com/aman-cerp/retrieval-core/internal/model"
	"github.com/aman-cerp/retrieval-core/internal/retriever"
)

const defaultDeadline = 10 * time.Second

var errComputeFailed = errors.New(errors.ErrCodeInternal, "pipeline: compute did not produce a cacheable result", nil)

// Retriever is the subset of retriever.Retriever the pipeline depends
// on, narrowed so it can be faked in tests.
type Retriever interface {
	Retrieve(ctx context.Context, params retriever.Params) (retriever.Result, error)
}

// Ranker is the subset common to ranker.Ranker and ranker.AdaptiveRanker.
type Ranker interface {
	Rank(candidates []model.SearchResult, q model.Query, qctx model.QueryContext, intent model.Intent) []model.SearchResult
}

// Cache is the subset of cache.Cache the pipeline depends on.
type Cache interface {
	GetOrCompute(ctx context.Context, fingerprint string, attrs cache.Entry, compute cache.ComputeFunc) (model.Result, bool, error)
	Clear(scope cache.Scope, pattern string) int
	Stats() (hits, misses int64)
}

// Embedder is the external embedding provider collaborator (spec'd
// interface only; no implementation lives in this core).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator synthesizes a natural-language response from ranked results.
// Out of scope for this core; callers may attach one, or leave it nil to
// always omit Result.Response.
type Generator interface {
	Generate(ctx context.Context, query model.Query, results []model.SearchResult) (string, error)
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithDeadline overrides the default 10s retrieval deadline.
func WithDeadline(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.deadline = d
		}
	}
}

// WithEmbedder attaches an embedding provider. When one is attached, every
// computed query fetches an embedding and, if that succeeds, enables the
// vector stage.
func WithEmbedder(e Embedder) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// WithGenerator attaches a response generator.
func WithGenerator(g Generator) Option {
	return func(p *Pipeline) { p.generator = g }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline is the top-level process_query orchestrator.
type Pipeline struct {
	retriever Retriever
	ranker    Ranker
	cache     Cache
	embedder  Embedder
	generator Generator
	deadline  time.Duration
	logger    *slog.Logger
}

// New wires a Pipeline from its three required collaborators.
func New(r Retriever, rk Ranker, c Cache, opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever: r,
		ranker:    rk,
		cache:     c,
		deadline:  defaultDeadline,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessQuery runs the full pipeline algorithm for query: cache lookup,
// deadline-bounded retrieval, ranking, trimming, optional response
// generation, metadata population, and cache write on miss. It never
// returns a Go error — every outcome is reported through the returned
// Result's Success/Error fields.
func (p *Pipeline) ProcessQuery(ctx context.Context, query model.Query, qctx model.QueryContext, generateResponse bool) model.Result {
	start := time.Now()

	if strings.TrimSpace(query.Text) == "" {
		return model.Result{
			Success: false,
			Error:   errors.NewValidationError(errors.ErrCodeQueryEmpty, "query text must not be empty"),
		}
	}

	if query.MaxResults == 0 {
		return model.Result{
			Success: true,
			Results: []model.SearchResult{},
			Metadata: model.ResultMetadata{
				ProcessingTimeMS: time.Since(start).Milliseconds(),
			},
		}
	}

	if query.DisableCache {
		return p.compute(ctx, query, qctx, generateResponse, start)
	}

	fingerprint := cache.Fingerprint(query)
	attrs := cache.Entry{
		Scope:      cache.ScopeSearch,
		Language:   query.Language,
		Repository: query.Repository,
		QueryText:  query.Text,
	}

	result, hit, err := p.cache.GetOrCompute(ctx, fingerprint, attrs, func(computeCtx context.Context) (model.Result, error) {
		r := p.compute(computeCtx, query, qctx, generateResponse, start)
		if !r.Success {
			// Signal the cache not to persist a failed attempt, while still
			// handing the partial result back to this caller.
			return r, errComputeFailed
		}
		return r, nil
	})
	if err != nil && err != errComputeFailed {
		return model.Result{Success: false, Error: err}
	}
	if hit {
		result.Metadata.CacheHit = true
	}
	return result
}

// compute runs steps 2-7 of the pipeline algorithm: deadline-bounded
// retrieval, ranking, trimming, optional generation, and metadata
// population. It always returns a fully populated Result and never a Go
// error; retrieval/ranking failures are reported via Result.Error with
// Success=false and any partial candidates preserved in Results.
func (p *Pipeline) compute(ctx context.Context, query model.Query, qctx model.QueryContext, generateResponse bool, start time.Time) model.Result {
	deadlineCtx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	var embedding []float32
	weights := hybrid.DefaultWeights()
	if p.embedder != nil {
		vec, err := p.embedder.Embed(deadlineCtx, query.Text)
		if err != nil {
			p.logger.Warn("pipeline embedding fetch failed, continuing without vector stage", slog.String("error", err.Error()))
		} else {
			embedding = vec
			weights.Vector = 1.0
		}
	}

	retrieved, err := p.retriever.Retrieve(deadlineCtx, retriever.Params{
		Query:      query,
		Weights:    weights,
		Embedding:  embedding,
		MaxResults: maxResultsOrDefault(query.MaxResults),
	})
	if err != nil {
		return model.Result{
			Success: false,
			Results: retrieved.Candidates,
			Error:   err,
			Metadata: model.ResultMetadata{
				ProcessingTimeMS: time.Since(start).Milliseconds(),
			},
		}
	}

	intent := retrieved.Enhanced.Intent
	ranked := p.ranker.Rank(retrieved.Candidates, query, qctx, intent)

	max := maxResultsOrDefault(query.MaxResults)
	if len(ranked) > max {
		ranked = ranked[:max]
	}

	var response string
	if generateResponse && p.generator != nil {
		generated, genErr := p.generator.Generate(deadlineCtx, query, ranked)
		if genErr != nil {
			p.logger.Warn("pipeline response generation failed", slog.String("error", genErr.Error()))
		} else {
			response = generated
		}
	}

	return model.Result{
		Success:  true,
		Results:  ranked,
		Response: response,
		Metadata: model.ResultMetadata{
			Intent:           intent,
			VariantsUsed:     retrieved.VariantsUsed,
			TotalCandidates:  len(retrieved.Candidates),
			StagesUsed:       retrieved.StagesUsed,
			ProcessingTimeMS: time.Since(start).Milliseconds(),
			ContextUsed:      qctx.CurrentFile != "",
			VectorUsed:       retrieved.VectorUsed,
		},
	}
}

// maxResultsOrDefault resolves the caller's requested result count. Zero is
// an explicit request for no results (ProcessQuery short-circuits on this
// before compute is ever reached), never an "unspecified" sentinel — a
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

// CacheStats reports cumulative cache hit/miss counts.
func (p *Pipeline) CacheStats() (hits, misses int64) {
	return p.cache.Stats()
}

// CacheClear invalidates cached entries matching scope and pattern,
// returning the number removed.
func (p *Pipeline) CacheClear(scope cache.Scope, pattern string) int {
	return p.cache.Clear(scope, pattern)
}
