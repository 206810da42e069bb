// Package model defines the shared domain types that flow through the
// retrieval pipeline: queries, enhanced queries, search results, ranking
// factors, and the cache/feedback records derived from them.
package model

import "time"

// DetailLevel controls how much of a result payload is returned to the
// caller.
type DetailLevel string

const (
	DetailFull    DetailLevel = "full"
	DetailCompact DetailLevel = "compact"
	DetailUltra   DetailLevel = "ultra"
)

// Intent is the fixed set of query intents the classifier assigns.
type Intent string

const (
	IntentImplement Intent = "IMPLEMENT"
	IntentDebug     Intent = "DEBUG"
	IntentUnderstand Intent = "UNDERSTAND"
	IntentRefactor  Intent = "REFACTOR"
	IntentTest      Intent = "TEST"
	IntentDocument  Intent = "DOCUMENT"
)

// Valid reports whether i is one of the six recognized intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentImplement, IntentDebug, IntentUnderstand, IntentRefactor, IntentTest, IntentDocument:
		return true
	default:
		return false
	}
}

// Query is an immutable user request for the duration of its processing.
type Query struct {
	Text          string
	CurrentFile   string
	WorkspaceRoot string
	SessionID     string
	IntentHint    Intent
	Language      string
	Repository    string
	MaxResults    int
	Skip          int
	BM25Only      bool
	ExactTerms    []string
	DetailLevel   DetailLevel
	DisableCache  bool
}

// QueryContext carries caller-supplied context through the pipeline by
// value.
type QueryContext struct {
	CurrentFile   string
	WorkspaceRoot string
	SessionID     string
	Preferences   map[string]string
}

// EnhancedQuery is the Query Enhancer & Intent Classifier's output.
type EnhancedQuery struct {
	Original   string
	Intent     Intent
	Variants   []string
	ExactTerms []string
}

// Highlight is a single highlighted field with its matched snippets.
type Highlight struct {
	Field    string
	Snippets []string
}

// RankingFactors holds the eight normalized per-candidate signals the
// Contextual Ranker computes, each with an associated confidence and
// source tag.
type RankingFactors struct {
	TextRelevance       Factor
	SemanticSimilarity  Factor
	ContextOverlap      Factor
	ImportSimilarity    Factor
	ProximityScore      Factor
	RecencyScore        Factor
	QualityScore        Factor
	PatternMatch        Factor
}

// Factor is a single normalized ranking signal.
type Factor struct {
	Value      float64
	Confidence float64
	Source     string
}

// SearchResult is a ranked candidate code chunk.
type SearchResult struct {
	ID             string
	FilePath       string
	Repository     string
	Language       string
	CodeSnippet    string
	Highlights     []Highlight
	StartLine      int
	EndLine        int
	FunctionName   string
	ClassName      string
	RawScore       float64
	RankedScore    float64
	RankingFactors RankingFactors
	Explanation    string
	Metadata       map[string]any
	ModifiedAt     time.Time
}

// FeedbackEventKind enumerates the kinds of user signal the Feedback
// Collector records.
type FeedbackEventKind string

const (
	FeedbackClick           FeedbackEventKind = "click"
	FeedbackCopy            FeedbackEventKind = "copy"
	FeedbackOutcomeSuccess  FeedbackEventKind = "outcome_success"
	FeedbackOutcomeFailure  FeedbackEventKind = "outcome_failure"
)

// FeedbackEvent is an append-only user signal.
type FeedbackEvent struct {
	Kind      FeedbackEventKind
	QueryID   string
	ResultID  string
	Position  int
	DwellMS   int64
	Intent    Intent
	Timestamp time.Time
}

// IndexerExecutionResult describes a single past indexer run.
type IndexerExecutionResult struct {
	Status         string
	StartTime      time.Time
	EndTime        time.Time
	Errors         []string
	Warnings       []string
	ItemsProcessed int
	ItemsFailed    int
}

// IndexerLimits describes indexer resource ceilings reported by the backend.
type IndexerLimits struct {
	MaxRunTime                         time.Duration
	MaxDocumentExtractionSize          int64
	MaxDocumentContentCharactersToExtract int
}

// IndexerStatus is the polled state of a backend indexer.
type IndexerStatus struct {
	OverallStatus    string
	LastResult       IndexerExecutionResult
	ExecutionHistory []IndexerExecutionResult
	Limits           IndexerLimits
}

// Result is the RAG Pipeline's top-level response.
type Result struct {
	Success  bool
	Results  []SearchResult
	Response string
	Metadata ResultMetadata
	Error    error
}

// ResultMetadata is populated per spec §4.7 step 7.
type ResultMetadata struct {
	Intent            Intent
	VariantsUsed      int
	TotalCandidates   int
	StagesUsed        []string
	ProcessingTimeMS  int64
	ContextUsed       bool
	VectorUsed        bool
	CacheHit          bool
}
