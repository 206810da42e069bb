package gateway

import "github.com/aman-cerp/retrieval-core/internal/model"

// QueryType selects the remote index's query mode.
type QueryType string

const (
	QueryTypeSimple   QueryType = "simple"
	QueryTypeSemantic QueryType = "semantic"
)

// VectorQuery is a single vector search clause.
type VectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
	Fields string    `json:"fields"`
}

// SearchRequest mirrors the remote index's docs/search request body.
type SearchRequest struct {
	Search                string        `json:"search,omitempty"`
	QueryType             QueryType     `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	QueryCaption          string        `json:"queryCaption,omitempty"`
	QueryAnswer           string        `json:"queryAnswer,omitempty"`
	Filter                string        `json:"filter,omitempty"`
	OrderBy               string        `json:"orderby,omitempty"`
	Top                   int           `json:"top,omitempty"`
	Skip                  int           `json:"skip,omitempty"`
	Select                string        `json:"select,omitempty"`
	HighlightFields       string        `json:"highlightFields,omitempty"`
	IncludeTotalCount     bool          `json:"includeTotalCount,omitempty"`
	VectorQueries         []VectorQuery `json:"vectorQueries,omitempty"`
}

// Document is a single raw hit as returned by the remote index, keyed by
// field name. Well-known fields are pulled out by the hybrid searcher when
// normalizing into model.SearchResult.
type Document map[string]any

// SearchResponse is the remote index's docs/search response body.
type SearchResponse struct {
	Value             []Document       `json:"value"`
	Count             *int64           `json:"@odata.count,omitempty"`
	SemanticAnswers   []SemanticAnswer `json:"@search.answers,omitempty"`
}

// SemanticAnswer is an extractive semantic answer attached to a search
// response when queryAnswer is requested.
type SemanticAnswer struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// IndexAction is the per-document operation in an upload_documents batch.
type IndexAction string

const (
	ActionUpload         IndexAction = "upload"
	ActionMergeOrUpload  IndexAction = "mergeOrUpload"
	ActionDelete         IndexAction = "delete"
)

// RunIndexerResult is the outcome of run_indexer.
type RunIndexerResult struct {
	Started   bool
	Completed bool
	TimedOut  bool
	Status    model.IndexerStatus
}
