package hybrid

import (
	"context"

	apierrors "github.com/aman-cerp/retrieval-core/internal/errors"
	"github.com/aman-cerp/retrieval-core/internal/gateway"
	"github.com/aman-cerp/retrieval-core/internal/model"
)

var (
	errGatewayUninitialized = apierrors.NewConfigError("hybrid searcher has no gateway configured", nil)
	errAllStagesFailed      = apierrors.NewBackendTransientError(0, "all hybrid search stages failed", nil)
)

const semanticConfigName = "semantic-config"

// plannedStage is one stage call ready to be sent to the gateway.
type plannedStage struct {
	name string
	req  gateway.SearchRequest
}

// planStages builds the set of stage calls to launch per the searcher's
// presence rules: semantic always runs, vector only when weighted and an
// embedding is supplied, exact only when exact terms are present.
func (s *Searcher) planStages(params SearchParams, weights Weights) []plannedStage {
	top := params.TopK * 2
	baseFilter := combineFilters(params)

	var stages []plannedStage

	stages = append(stages, plannedStage{
		name: stageSemantic,
		req: gateway.SearchRequest{
			Search:                params.Query,
			QueryType:             gateway.QueryTypeSemantic,
			SemanticConfiguration: semanticConfigName,
			QueryCaption:          "extractive",
			Filter:                baseFilter,
			Top:                   top,
			HighlightFields:       "content,docstring",
		},
	})

	if weights.Vector > 0 && len(params.Embedding) > 0 {
		stages = append(stages, plannedStage{
			name: stageVector,
			req: gateway.SearchRequest{
				QueryType: gateway.QueryTypeSimple,
				Filter:    baseFilter,
				Top:       top,
				VectorQueries: []gateway.VectorQuery{{
					Kind:   "vector",
					Vector: params.Embedding,
					K:      top,
					Fields: "content_vector",
				}},
			},
		})
	}

	if len(params.ExactTerms) > 0 {
		stages = append(stages, plannedStage{
			name: stageExact,
			req: gateway.SearchRequest{
				QueryType:       gateway.QueryTypeSimple,
				Filter:          buildExactFilter(params.ExactTerms, baseFilter),
				Top:             top,
				HighlightFields: "content,docstring",
			},
		})
	}

	return stages
}

func combineFilters(params SearchParams) string {
	var clauses []string
	if params.Language != "" {
		clauses = append(clauses, "language eq '"+escapeODataLiteral(params.Language)+"'")
	}
	if params.Repository != "" {
		clauses = append(clauses, "repository eq '"+escapeODataLiteral(params.Repository)+"'")
	}
	if params.CallerFilter != "" {
		clauses = append(clauses, "("+params.CallerFilter+")")
	}
	if len(clauses) == 0 {
		return ""
	}
	filter := clauses[0]
	for _, c := range clauses[1:] {
		filter += " and " + c
	}
	return filter
}

func (s *Searcher) runStage(ctx context.Context, st plannedStage) ([]model.SearchResult, error) {
	resp, err := s.gw.Search(ctx, st.req)
	if err != nil {
		return nil, err
	}

	out := make([]model.SearchResult, 0, len(resp.Value))
	for _, doc := range resp.Value {
		score := docScore(doc)
		highlights := docHighlights(doc)
		out = append(out, normalizeDocument(doc, highlights, score))
	}
	return out, nil
}

func docScore(doc gateway.Document) float64 {
	if v, ok := doc["@search.score"]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	if v, ok := doc["@search.rerankerScore"]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

func docHighlights(doc gateway.Document) map[string][]string {
	v, ok := doc["@search.highlights"]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for field, snippetsRaw := range raw {
		list, ok := snippetsRaw.([]any)
		if !ok {
			continue
		}
		snippets := make([]string, 0, len(list))
		for _, sv := range list {
			if s, ok := sv.(string); ok {
				snippets = append(snippets, s)
			}
		}
		out[field] = snippets
	}
	return out
}
