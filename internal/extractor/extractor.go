package extractor

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dshills/chunkwise/internal/completion"
	"github.com/dshills/chunkwise/pkg/types"
)

const (
	// DefaultMaxRetries is the number of completion attempts per chunk
	DefaultMaxRetries = 2

	// DefaultFallbackSummaryLen caps the raw reply kept as a fallback summary
	DefaultFallbackSummaryLen = 200
)

// Outcome tells how a chunk result was obtained
type Outcome string

const (
	OutcomeParsed   Outcome = "parsed"
	OutcomeRepaired Outcome = "repaired"
	OutcomeFallback Outcome = "fallback"
)

// Extraction is the result of processing one chunk
type Extraction struct {
	Result   types.ChunkResult
	Outcome  Outcome
	Attempts int
	Duration time.Duration

	// Err is the last completion error when the final attempt failed, or the
	// context error when extraction was cancelled
	Err error
}

// Config controls extraction behavior
type Config struct {
	MaxRetries         int
	Limits             RenderLimits
	FallbackSummaryLen int
}

// DefaultConfig returns the default extraction settings
func DefaultConfig() Config {
	return Config{
		MaxRetries:         DefaultMaxRetries,
		Limits:             ChunkLimits(),
		FallbackSummaryLen: DefaultFallbackSummaryLen,
	}
}

// Extractor turns chunks into ChunkResults through a completion service
type Extractor struct {
	completer completion.Completer
	cfg       Config
	logger    *slog.Logger
}

// New creates an Extractor. Zero config fields take defaults; a nil logger
// discards output.
func New(c completion.Completer, cfg Config, logger *slog.Logger) *Extractor {
	d := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	if cfg.Limits == (RenderLimits{}) {
		cfg.Limits = d.Limits
	}
	if cfg.FallbackSummaryLen <= 0 {
		cfg.FallbackSummaryLen = d.FallbackSummaryLen
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Extractor{completer: c, cfg: cfg, logger: logger}
}

// Extract asks the model about one chunk and always returns a usable result.
// Unparseable replies are retried with a stricter prompt; when attempts run
// out the raw reply is salvaged as a fallback.
func (e *Extractor) Extract(ctx context.Context, chunk *types.Chunk, question string, index, total int) Extraction {
	start := time.Now()
	log := e.logger.With("chunk", index+1, "of", total)

	content, err := Render(chunk, e.cfg.Limits)
	if err != nil {
		log.Warn("render chunk", "error", err)
		return e.finish(start, Extraction{Result: emptyResult(), Outcome: OutcomeFallback, Err: err})
	}

	prompt := BuildPrompt(content, question, index, total)
	log.Debug("extracting", "records", chunk.RecordCount, "prompt_len", len(prompt))

	var (
		lastReply string
		lastErr   error
		attempts  int
	)

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return e.finish(start, e.fallback(lastReply, attempts, err))
		}
		attempts = attempt

		callCtx := ctx
		if attempt > 1 {
			// A cached reply for this prompt is the one that just failed
			callCtx = completion.BypassCache(ctx)
		}
		reply, err := e.completer.Complete(callCtx, prompt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return e.finish(start, e.fallback(lastReply, attempts, ctxErr))
			}
			log.Warn("completion failed", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}
		lastReply, lastErr = reply, nil

		result, repaired, ok := parseReply(reply)
		if ok {
			outcome := OutcomeParsed
			if repaired || attempt > 1 {
				outcome = OutcomeRepaired
			}
			log.Debug("extracted", "attempt", attempt, "outcome", outcome, "count", result.Count)
			return e.finish(start, Extraction{Result: result, Outcome: outcome, Attempts: attempt})
		}

		log.Debug("unparseable reply", "attempt", attempt, "reply_len", len(reply))
		prompt = Stricter(prompt)
	}

	log.Warn("falling back to raw reply", "attempts", attempts)
	return e.finish(start, e.fallback(lastReply, attempts, lastErr))
}

func (e *Extractor) fallback(reply string, attempts int, err error) Extraction {
	return Extraction{
		Result:   fallbackResult(reply, e.cfg.FallbackSummaryLen),
		Outcome:  OutcomeFallback,
		Attempts: attempts,
		Err:      err,
	}
}

func (e *Extractor) finish(start time.Time, x Extraction) Extraction {
	x.Duration = time.Since(start)
	return x
}

func emptyResult() types.ChunkResult {
	return types.ChunkResult{Items: []any{}}
}
