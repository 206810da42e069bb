// Package search implements the deterministic, rule-based pieces of query
// understanding shared by the hybrid searcher and the multi-stage
// retriever: reciprocal rank fusion, intent classification, query
// enhancement, and the code-pattern registry.
package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.) and is reused here for both stage-level and
// variant-level fusion.
const DefaultRRFConstant = 60

// RankedHit is a single entry in one named ranking participating in fusion.
type RankedHit struct {
	ID    string
	Score float64
}

// FusionInput is one named, weighted ranking to fuse — a search stage
// (semantic/vector/exact) or a query variant (original/rewrite).
type FusionInput struct {
	Name   string
	Weight float64
	Hits   []RankedHit
}

// FusedHit is the result of combining one or more FusionInputs.
type FusedHit struct {
	ID       string
	RRFScore float64
	// Sources records which named inputs contributed to this hit.
	Sources map[string]bool
	// BestScore is the highest raw Score this ID achieved in any input,
	// used as a tie-break and preserved for callers that want the
	// original stage score.
	BestScore float64
}

// Fuser combines arbitrarily many named rankings via weighted Reciprocal
// Rank Fusion: rrf(d) = Σ_i weight_i · 1/(k + rank_i(d)), summed over every
// input list d appears in.
type Fuser struct {
	K int
}

// NewFuser creates a Fuser with the default smoothing constant.
func NewFuser() *Fuser {
	return &Fuser{K: DefaultRRFConstant}
}

// NewFuserWithK creates a Fuser with a custom k. k<=0 defaults to 60.
func NewFuserWithK(k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{K: k}
}

// Fuse combines the given inputs into a single deterministically sorted
// ranking. Inputs with zero or negative weight are skipped.
func (f *Fuser) Fuse(inputs []FusionInput) []FusedHit {
	scores := make(map[string]*FusedHit)

	for _, in := range inputs {
		if in.Weight <= 0 {
			continue
		}
		for rank, hit := range in.Hits {
			fh := scores[hit.ID]
			if fh == nil {
				fh = &FusedHit{ID: hit.ID, Sources: make(map[string]bool)}
				scores[hit.ID] = fh
			}
			fh.RRFScore += in.Weight / float64(f.K+rank+1)
			fh.Sources[in.Name] = true
			if hit.Score > fh.BestScore {
				fh.BestScore = hit.Score
			}
		}
	}

	results := make([]FusedHit, 0, len(scores))
	for _, fh := range scores {
		results = append(results, *fh)
	}

	sort.Slice(results, func(i, j int) bool {
		return compareFusedHits(results[i], results[j])
	})

	normalize(results)

	return results
}

// compareFusedHits orders by RRF score desc, then by number of contributing
// sources desc, then by best raw score desc, then lexicographically by ID
// for determinism.
func compareFusedHits(a, b FusedHit) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if len(a.Sources) != len(b.Sources) {
		return len(a.Sources) > len(b.Sources)
	}
	if a.BestScore != b.BestScore {
		return a.BestScore > b.BestScore
	}
	return a.ID < b.ID
}

// normalize scales RRF scores to [0,1] using the top result as reference.
// A single-stage fusion therefore reduces to that stage's own ordering.
func normalize(results []FusedHit) {
	if len(results) == 0 {
		return
	}
	max := results[0].RRFScore
	if max == 0 {
		return
	}
	for i := range results {
		results[i].RRFScore /= max
	}
}
