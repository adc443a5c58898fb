package aggregator

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultKeywords mark a question as a counting question
var DefaultKeywords = []string{
	"how many",
	"count",
	"total",
	"number of",
	"сколько",
	"количество",
	"число",
	"всего",
}

// Classifier decides whether a question can be answered by summing counts
type Classifier interface {
	IsSimple(question string) bool
}

// KeywordClassifier matches questions against a keyword list by substring.
// Both sides are NFKC-normalized and lowercased before matching.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier creates a classifier. No keywords means DefaultKeywords.
func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = fold(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &KeywordClassifier{keywords: lowered}
}

// IsSimple reports whether question contains any keyword
func (k *KeywordClassifier) IsSimple(question string) bool {
	q := fold(question)
	for _, kw := range k.keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(question string) bool

func (f ClassifierFunc) IsSimple(question string) bool { return f(question) }
