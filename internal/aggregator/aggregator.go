package aggregator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dshills/chunkwise/internal/completion"
	"github.com/dshills/chunkwise/pkg/types"
)

var (
	ErrNoResults        = errors.New("no chunk results to aggregate")
	ErrCompletionFailed = errors.New("final answer completion failed")
)

// Config controls aggregation. Zero fields take defaults.
type Config struct {
	GroupSize  int
	Classifier Classifier
}

// Aggregator merges per-chunk results into a final answer
type Aggregator struct {
	completer  completion.Completer
	groupSize  int
	classifier Classifier
	logger     *slog.Logger
}

// New creates an Aggregator. A nil logger discards output.
func New(c completion.Completer, cfg Config, logger *slog.Logger) *Aggregator {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = DefaultGroupSize
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewKeywordClassifier()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Aggregator{
		completer:  c,
		groupSize:  cfg.GroupSize,
		classifier: cfg.Classifier,
		logger:     logger,
	}
}

// Aggregate answers question from results, which must be in chunk order.
// Counting questions get an exact in-process total that the model only
// phrases; other questions are synthesized from a digest of summaries.
func (a *Aggregator) Aggregate(ctx context.Context, results []types.ChunkResult, question string) (*types.AggregationOutcome, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	if a.classifier.IsSimple(question) {
		return a.aggregateSimple(ctx, results, question)
	}
	return a.aggregateComplex(ctx, results, question)
}

func (a *Aggregator) aggregateSimple(ctx context.Context, results []types.ChunkResult, question string) (*types.AggregationOutcome, error) {
	total, items := SumResults(results)
	a.logger.Debug("simple aggregation", "parts", len(results), "total", total, "items", len(items))

	answer, err := a.complete(ctx, simplePrompt(len(results), total, len(items), question))
	if err != nil {
		return nil, err
	}

	return &types.AggregationOutcome{
		Answer:     answer,
		Path:       types.PathSimple,
		TotalCount: total,
		Items:      items,
	}, nil
}

func (a *Aggregator) aggregateComplex(ctx context.Context, results []types.ChunkResult, question string) (*types.AggregationOutcome, error) {
	digest, path := BuildDigest(results, a.groupSize)
	a.logger.Debug("synthesis aggregation", "parts", len(results), "path", path, "digest_lines", len(digest))

	var prompt string
	if path == types.PathTwoLevel {
		prompt = groupPrompt(digest, question)
	} else {
		prompt = partsPrompt(digest, question)
	}

	answer, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &types.AggregationOutcome{
		Answer: answer,
		Path:   path,
		Digest: digest,
	}, nil
}

func (a *Aggregator) complete(ctx context.Context, prompt string) (string, error) {
	answer, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	return strings.TrimSpace(answer), nil
}

func simplePrompt(parts, total, items int, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the analysis of %d parts of the data:\n\n", parts)
	fmt.Fprintf(&b, "Total count: %d\n", total)
	if items > 0 {
		fmt.Fprintf(&b, "Items found: %d\n", items)
	}
	fmt.Fprintf(&b, "\nThe question was: %s\n\n", question)
	b.WriteString("Give the user a final answer using the total count above.\n")
	return b.String()
}

func partsPrompt(digest []string, question string) string {
	return fmt.Sprintf(`Based on the analysis results of %d parts of the data, give an overall answer.

RESULTS BY PART:
%s

ORIGINAL QUESTION:
%s

Give a final answer that combines the information from all parts.
`, len(digest), strings.Join(digest, "\n"), question)
}

func groupPrompt(digest []string, question string) string {
	return fmt.Sprintf(`Combine the results from %d groups of data.

RESULTS BY GROUP:
%s

ORIGINAL QUESTION:
%s

Give a final answer.
`, len(digest), strings.Join(digest, "\n"), question)
}
