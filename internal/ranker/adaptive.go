package ranker

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

const (
	defaultAdaptWindow  = 100
	defaultMaxHistory   = 10
	defaultClampStep    = 0.05
	defaultMinWeight    = 0.05
	defaultMaxWeight    = 0.50
	defaultRollbackDrop = 0.10
	recentFactorsSize   = 4096
)

// snapshot is one recorded weight vector plus the feedback metric
// observed while it was in effect, used for rollback.
type snapshot struct {
	weights FactorWeights
	metric  float64
}

type rankedRecord struct {
	factors model.RankingFactors
	intent  model.Intent
}

// AdaptiveOption configures an AdaptiveRanker at construction time.
type AdaptiveOption func(*AdaptiveRanker)

// WithAdaptWindow overrides the default 100-query adaptation window.
func WithAdaptWindow(n int) AdaptiveOption {
	return func(a *AdaptiveRanker) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithMaxHistory overrides the default 10-snapshot rollback history.
func WithMaxHistory(n int) AdaptiveOption {
	return func(a *AdaptiveRanker) {
		if n > 0 {
			a.maxHistory = n
		}
	}
}

// WithRollbackThreshold overrides the default 0.10 metric-regression
// threshold that triggers an automatic rollback.
func WithRollbackThreshold(t float64) AdaptiveOption {
	return func(a *AdaptiveRanker) {
		if t > 0 {
			a.rollbackThreshold = t
		}
	}
}

// AdaptiveRanker wraps a Ranker with per-intent weight learning from
// click/outcome feedback. Every window-th ranked query for an intent
// triggers a re-weighting pass: proposed deltas are clamped per-step,
// clamped to an absolute range, and renormalized to sum to 1. A bounded
// history of prior weight vectors supports rollback when a later
// snapshot's feedback metric regresses beyond a threshold.
type AdaptiveRanker struct {
	mu   sync.Mutex
	base *Ranker

	window            int
	maxHistory        int
	rollbackThreshold float64

	queryCount map[model.Intent]int
	positive   map[model.Intent]int
	windowObs  map[model.Intent][]feedbackObservation
	history    map[model.Intent][]snapshot

	recent *lru.Cache[string, rankedRecord]
}

type feedbackObservation struct {
	factors  model.RankingFactors
	positive bool
}

// NewAdaptive wraps base with weight learning.
func NewAdaptive(base *Ranker, opts ...AdaptiveOption) *AdaptiveRanker {
	cache, _ := lru.New[string, rankedRecord](recentFactorsSize)
	a := &AdaptiveRanker{
		base:              base,
		window:            defaultAdaptWindow,
		maxHistory:        defaultMaxHistory,
		rollbackThreshold: defaultRollbackDrop,
		queryCount:        make(map[model.Intent]int),
		positive:          make(map[model.Intent]int),
		windowObs:         make(map[model.Intent][]feedbackObservation),
		history:           make(map[model.Intent][]snapshot),
		recent:            cache,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Rank delegates to the base Ranker and records each candidate's factors
// for later feedback attribution, keyed by (Query.SessionID, resultID).
func (a *AdaptiveRanker) Rank(candidates []model.SearchResult, q model.Query, qctx model.QueryContext, intent model.Intent) []model.SearchResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	ranked := a.base.Rank(candidates, q, qctx, intent)
	for _, c := range ranked {
		a.recent.Add(recentKey(q.SessionID, c.ID), rankedRecord{factors: c.RankingFactors, intent: intent})
	}

	a.queryCount[intent]++
	if a.queryCount[intent] >= a.window {
		a.adapt(intent)
		a.queryCount[intent] = 0
	}

	return ranked
}

// RecordFeedback attaches one feedback event to its result's recorded
// ranking factors, if still present in the recent-factors cache, and
// accumulates it into the current adaptation window.
func (a *AdaptiveRanker) RecordFeedback(event model.FeedbackEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.recent.Get(recentKey(event.QueryID, event.ResultID))
	if !ok {
		return
	}
	positive := event.Kind == model.FeedbackClick || event.Kind == model.FeedbackOutcomeSuccess || event.Kind == model.FeedbackCopy

	a.windowObs[rec.intent] = append(a.windowObs[rec.intent], feedbackObservation{factors: rec.factors, positive: positive})
	if positive {
		a.positive[rec.intent]++
	}
}

// recentKey correlates a ranked candidate with later feedback. Callers
// are expected to stamp FeedbackEvent.QueryID with the same identifier
// passed as Query.SessionID to Rank for that request.
func recentKey(queryID, resultID string) string {
	return queryID + "\x00" + resultID
}

// adapt recomputes intent's weight vector from the accumulated feedback
// window: the delta for each factor is proportional to how much higher
// that factor's average value was among positive-feedback results versus
// negative ones, clamped to ±0.05 per step, renormalized to sum 1.
func (a *AdaptiveRanker) adapt(intent model.Intent) {
	obs := a.windowObs[intent]
	defer func() {
		a.windowObs[intent] = nil
		a.positive[intent] = 0
	}()

	if len(obs) == 0 {
		return
	}

	current := a.base.Weights(intent)
	metric := a.observedMetric(intent, obs)

	a.history[intent] = append(a.history[intent], snapshot{weights: current, metric: metric})
	if len(a.history[intent]) > a.maxHistory {
		a.history[intent] = a.history[intent][len(a.history[intent])-a.maxHistory:]
	}

	deltas := proposedDeltas(obs)
	next := applyDeltas(current, deltas)
	a.base.SetWeights(intent, next)

	if a.shouldRollback(intent, metric) {
		a.rollback(intent)
	}
}

// observedMetric is the fraction of this window's feedback events that
// were positive — a simple proxy for ranking quality.
func (a *AdaptiveRanker) observedMetric(intent model.Intent, obs []feedbackObservation) float64 {
	if len(obs) == 0 {
		return 0
	}
	pos := 0
	for _, o := range obs {
		if o.positive {
			pos++
		}
	}
	return float64(pos) / float64(len(obs))
}

// shouldRollback reports whether the latest metric has regressed beyond
// the configured threshold relative to the best prior snapshot.
func (a *AdaptiveRanker) shouldRollback(intent model.Intent, metric float64) bool {
	history := a.history[intent]
	if len(history) < 2 {
		return false
	}
	best := history[0].metric
	for _, s := range history[:len(history)-1] {
		if s.metric > best {
			best = s.metric
		}
	}
	return best-metric > a.rollbackThreshold
}

// rollback restores intent's weights to the best-performing prior
// snapshot and truncates history to just before it.
func (a *AdaptiveRanker) rollback(intent model.Intent) {
	history := a.history[intent]
	if len(history) == 0 {
		return
	}
	bestIdx := 0
	for i, s := range history {
		if s.metric > history[bestIdx].metric {
			bestIdx = i
		}
	}
	a.base.SetWeights(intent, history[bestIdx].weights)
	a.history[intent] = history[:bestIdx]
}

// proposedDeltas computes, per factor, clampStep * (avgPositive -
// avgNegative), clamped to ±clampStep.
func proposedDeltas(obs []feedbackObservation) [8]float64 {
	var posSum, negSum [8]float64
	var posN, negN int

	for _, o := range obs {
		values := [8]float64{
			o.factors.TextRelevance.Value, o.factors.SemanticSimilarity.Value, o.factors.ContextOverlap.Value,
			o.factors.ImportSimilarity.Value, o.factors.ProximityScore.Value, o.factors.RecencyScore.Value,
			o.factors.QualityScore.Value, o.factors.PatternMatch.Value,
		}
		if o.positive {
			posN++
			for i, v := range values {
				posSum[i] += v
			}
		} else {
			negN++
			for i, v := range values {
				negSum[i] += v
			}
		}
	}

	var deltas [8]float64
	if posN == 0 || negN == 0 {
		return deltas
	}
	for i := range deltas {
		avgPos := posSum[i] / float64(posN)
		avgNeg := negSum[i] / float64(negN)
		d := defaultClampStep * (avgPos - avgNeg)
		deltas[i] = clampStep(d)
	}
	return deltas
}

func clampStep(d float64) float64 {
	if d > defaultClampStep {
		return defaultClampStep
	}
	if d < -defaultClampStep {
		return -defaultClampStep
	}
	return d
}

// applyDeltas adds deltas to current, clamps each weight to
// [0.05, 0.50], and renormalizes so the vector sums to 1.
func applyDeltas(current FactorWeights, deltas [8]float64) FactorWeights {
	vals := current.asSlice()
	for i := range vals {
		vals[i] += deltas[i]
		if vals[i] < defaultMinWeight {
			vals[i] = defaultMinWeight
		}
		if vals[i] > defaultMaxWeight {
			vals[i] = defaultMaxWeight
		}
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	if total == 0 {
		return current
	}
	for i := range vals {
		vals[i] /= total
	}
	return weightsFromSlice(vals)
}
