package search

import (
	"strings"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

// intentPriority is the fixed tie-break order used when a query's keyword
// lexicon score ties across intents: DEBUG beats IMPLEMENT beats TEST beats
// REFACTOR beats DOCUMENT beats UNDERSTAND.
var intentPriority = []model.Intent{
	model.IntentDebug,
	model.IntentImplement,
	model.IntentTest,
	model.IntentRefactor,
	model.IntentDocument,
	model.IntentUnderstand,
}

// intentLexicon maps each intent to the keywords that vote for it. Lookups
// are case-insensitive and match whole tokens.
var intentLexicon = map[model.Intent][]string{
	model.IntentImplement: {
		"implement", "create", "write", "build", "add", "new", "make", "generate", "scaffold",
	},
	model.IntentDebug: {
		"error", "bug", "fix", "broken", "fails", "failing", "crash", "panic", "exception", "wrong", "issue",
	},
	model.IntentTest: {
		"test", "tests", "testing", "unit test", "coverage", "assert", "mock", "verify",
	},
	model.IntentRefactor: {
		"refactor", "rename", "cleanup", "simplify", "restructure", "reorganize", "extract", "dedupe",
	},
	model.IntentDocument: {
		"document", "documentation", "docstring", "comment", "readme", "explain in docs",
	},
	model.IntentUnderstand: {
		"how", "why", "what", "understand", "explain", "works", "architecture", "overview",
	},
}

// IntentClassifier assigns one of the six fixed intents to a query using a
// deterministic, weighted keyword lexicon — no ML model is used or required.
type IntentClassifier struct {
	lexicon  map[model.Intent][]string
	priority []model.Intent
}

// NewIntentClassifier creates a classifier using the default lexicon and
// tie-break priority.
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{lexicon: intentLexicon, priority: intentPriority}
}

// Classify returns the intent for query, honoring hint when non-empty and
// valid: caller-provided hints always override the lexicon.
func (c *IntentClassifier) Classify(query string, hint model.Intent) model.Intent {
	if hint.Valid() {
		return hint
	}

	lower := strings.ToLower(query)
	scores := make(map[model.Intent]int, len(c.lexicon))
	for intent, keywords := range c.lexicon {
		for _, kw := range keywords {
			if containsWord(lower, kw) {
				scores[intent]++
			}
		}
	}

	best := model.IntentUnderstand
	bestScore := -1
	for _, intent := range c.priority {
		if s := scores[intent]; s > bestScore {
			bestScore = s
			best = intent
		}
	}
	if bestScore <= 0 {
		return model.IntentUnderstand
	}
	return best
}

// containsWord reports whether phrase appears in text as a whole-word (or
// whole-phrase) match rather than a substring of an unrelated word.
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], phrase)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(phrase)

		leftOK := start == 0 || !isWordChar(rune(text[start-1]))
		rightOK := end == len(text) || !isWordChar(rune(text[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}
