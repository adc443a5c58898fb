package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/chunkwise/internal/aggregator"
	"github.com/dshills/chunkwise/internal/chunker"
	"github.com/dshills/chunkwise/internal/completion"
	"github.com/dshills/chunkwise/internal/extractor"
	"github.com/dshills/chunkwise/internal/storage"
	"github.com/dshills/chunkwise/internal/telemetry"
	"github.com/dshills/chunkwise/pkg/types"
)

var (
	// ErrCancelled is returned when the context ends before an answer is ready.
	// It wraps the context error.
	ErrCancelled = errors.New("analysis cancelled")
	// ErrDirectFailed is returned when the single direct-mode completion fails
	ErrDirectFailed = errors.New("direct answer completion failed")
)

// Recorder persists finished and failed runs. storage.Storage satisfies it.
type Recorder interface {
	SaveRun(ctx context.Context, run *storage.Run) error
}

// EventKind identifies a progress event
type EventKind string

const (
	EventPlanned    EventKind = "planned"
	EventChunkDone  EventKind = "chunk_done"
	EventAggregated EventKind = "aggregated"
)

// Event reports analysis progress. Completed never decreases within a run.
type Event struct {
	Kind         EventKind
	State        State
	Mode         Mode
	Completed    int
	Total        int
	Chunk        int // Index of the chunk for EventChunkDone
	Outcome      extractor.Outcome
	LastDuration time.Duration
}

// ProgressFunc receives progress events. Calls are serialized.
type ProgressFunc func(Event)

// Config contains configuration for the analyzer
type Config struct {
	Planner     chunker.PlannerConfig
	Extraction  extractor.Config
	Aggregation aggregator.Config

	Workers     int // Concurrent chunk extractions (default: 1, sequential)
	MaxInFlight int // Global cap on concurrent completion calls (0: no cap)
}

// Analyzer coordinates the analysis pipeline: plan -> split -> extract -> aggregate
type Analyzer struct {
	planner    *chunker.Planner
	splitter   *chunker.Splitter
	extractor  *extractor.Extractor
	aggregator *aggregator.Aggregator
	completer  completion.Completer

	workers  int
	recorder Recorder
	progress ProgressFunc
	logger   *slog.Logger
	inst     *telemetry.Instruments
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithProgress sets the progress sink
func WithProgress(fn ProgressFunc) Option {
	return func(a *Analyzer) { a.progress = fn }
}

// WithRecorder journals every run through r
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// WithInstruments sets the telemetry instruments
func WithInstruments(inst *telemetry.Instruments) Option {
	return func(a *Analyzer) {
		if inst != nil {
			a.inst = inst
		}
	}
}

// New creates a new Analyzer around one shared completer
func New(c completion.Completer, cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.inst == nil {
		inst, err := telemetry.New()
		if err != nil {
			a.logger.Warn("telemetry instruments unavailable", "error", err)
			inst = telemetry.Noop()
		}
		a.inst = inst
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	a.workers = cfg.Workers

	c = completion.Limit(c, cfg.MaxInFlight)
	a.completer = c

	planner := chunker.NewPlanner(cfg.Planner)
	a.planner = planner
	a.splitter = chunker.NewSplitter(planner.Config().MaxChunks)
	a.extractor = extractor.New(c, cfg.Extraction, a.logger)
	a.aggregator = aggregator.New(c, cfg.Aggregation, a.logger)

	return a
}

// Workers returns the number of concurrent chunk extractions
func (a *Analyzer) Workers() int {
	return a.workers
}

// WithWorkers returns a copy of the analyzer that extracts n chunks at a
// time. The copy shares the completer, so MaxInFlight still holds across both.
func (a *Analyzer) WithWorkers(n int) *Analyzer {
	if n <= 0 || n == a.workers {
		return a
	}
	cp := *a
	cp.workers = n
	return &cp
}

// Plan previews the chunking decision for doc without calling the model
func (a *Analyzer) Plan(doc *types.Document) chunker.Plan {
	return a.planner.Plan(doc)
}

// Analyze answers question about doc. Large documents are split and each
// chunk is extracted separately; small ones are answered in one request.
// A cancelled analysis returns ErrCancelled and no partial answer.
func (a *Analyzer) Analyze(ctx context.Context, doc *types.Document, question string) (*Report, error) {
	if strings.TrimSpace(question) == "" {
		return nil, types.ErrEmptyQuestion
	}
	if !doc.Format.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, doc.Format)
	}

	report := &Report{
		RunID:        uuid.NewString(),
		Source:       doc.Source,
		Question:     question,
		Format:       doc.Format,
		State:        StatePlanning,
		TotalRecords: doc.TotalCount,
		Provider:     a.completer.Provider(),
		Model:        a.completer.Model(),
		StartedAt:    time.Now(),
	}
	log := a.logger.With("run", report.RunID, "source", doc.Source)

	ctx, span := a.inst.Tracer.Start(ctx, "pipeline.Analyze", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
		attribute.String("document.format", string(doc.Format)),
		attribute.Int("document.records", doc.TotalCount),
	))
	defer span.End()

	plan := a.planner.Plan(doc)
	report.ChunkSize = plan.ChunkSize

	var err error
	if plan.NeedsChunking {
		report.Mode = ModeChunked
		a.emit(Event{Kind: EventPlanned, State: StatePlanning, Mode: ModeChunked, Total: plan.EstimatedChunks})
		log.Info("analysis started", "mode", ModeChunked, "records", doc.TotalCount,
			"chunk_size", plan.ChunkSize, "chunks", plan.EstimatedChunks, "truncated", plan.Truncated)
		err = a.analyzeChunked(ctx, doc, question, plan, report)
	} else {
		report.Mode = ModeDirect
		a.emit(Event{Kind: EventPlanned, State: StatePlanning, Mode: ModeDirect, Total: 1})
		log.Info("analysis started", "mode", ModeDirect, "records", doc.TotalCount)
		err = a.analyzeDirect(ctx, doc, question, report)
	}

	report.Duration = time.Since(report.StartedAt)
	span.SetAttributes(attribute.String("run.mode", string(report.Mode)))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrCancelled) {
			err = fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		report.State = StateFailed
		report.Err = err
		report.Outcome = nil
		report.Answer = ""

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("analysis failed", "error", err, "duration", report.Duration)

		a.finish(ctx, report)
		return nil, err
	}

	report.State = StateDone
	log.Info("analysis finished", "duration", report.Duration, "chunks", report.Chunks,
		"processed", report.ProcessedRecords, "total", report.TotalRecords)

	a.finish(ctx, report)
	return report, nil
}

func (a *Analyzer) analyzeChunked(ctx context.Context, doc *types.Document, question string, plan chunker.Plan, report *Report) error {
	report.State = StateSplitting
	chunks, err := a.splitter.Split(doc, plan.ChunkSize)
	if err != nil {
		return fmt.Errorf("split document: %w", err)
	}

	report.Fingerprints = make([]string, len(chunks))
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		report.Fingerprints[i] = c.Fingerprint()
	}

	report.Chunks = len(chunks)
	report.ProcessedRecords = chunker.ProcessedRecords(chunks)
	report.Truncated = report.ProcessedRecords < doc.TotalCount

	report.State = StateExtracting
	extractions, err := a.extractAll(ctx, chunks, question)
	if err != nil {
		return err
	}
	report.Extractions = extractions

	report.State = StateAggregating
	ctx, span := a.inst.Tracer.Start(ctx, "pipeline.Aggregate")
	defer span.End()

	outcome, err := a.aggregator.Aggregate(ctx, report.Results(), question)
	a.inst.Completions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", err == nil)))
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("aggregation.path", string(outcome.Path)))

	report.Outcome = outcome
	report.Answer = outcome.Answer
	a.emit(Event{Kind: EventAggregated, State: StateAggregating, Mode: ModeChunked, Completed: len(chunks), Total: len(chunks)})
	return nil
}

// extractAll runs the extractor over every chunk, keeping results in chunk
// order regardless of completion order
func (a *Analyzer) extractAll(ctx context.Context, chunks []*types.Chunk, question string) ([]extractor.Extraction, error) {
	extractions := make([]extractor.Extraction, len(chunks))

	var (
		mu        sync.Mutex // Serializes progress events
		completed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, chunk := range chunks {
		// Cancellation is checked before each chunk starts
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			cctx, span := a.inst.Tracer.Start(gctx, "pipeline.ExtractChunk", trace.WithAttributes(
				attribute.Int("chunk.index", i),
				attribute.Int("chunk.records", chunk.RecordCount),
			))
			x := a.extractor.Extract(cctx, chunk, question, i, len(chunks))
			span.SetAttributes(
				attribute.String("chunk.outcome", string(x.Outcome)),
				attribute.Int("chunk.attempts", x.Attempts),
			)
			span.End()

			if x.Err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			extractions[i] = x
			attrs := metric.WithAttributes(attribute.String("outcome", string(x.Outcome)))
			a.inst.ChunkOutcomes.Add(gctx, 1, attrs)
			a.inst.ChunkDuration.Record(gctx, float64(x.Duration.Milliseconds()), attrs)

			mu.Lock()
			completed++
			a.emit(Event{
				Kind:         EventChunkDone,
				State:        StateExtracting,
				Mode:         ModeChunked,
				Completed:    completed,
				Total:        len(chunks),
				Chunk:        i,
				Outcome:      x.Outcome,
				LastDuration: x.Duration,
			})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	return extractions, nil
}

// analyzeDirect answers a small document with one completion call
func (a *Analyzer) analyzeDirect(ctx context.Context, doc *types.Document, question string, report *Report) error {
	content, err := extractor.RenderDocument(doc, extractor.DirectLimits())
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}

	report.State = StateAggregating
	ctx, span := a.inst.Tracer.Start(ctx, "pipeline.Direct")
	defer span.End()

	answer, err := a.completer.Complete(ctx, extractor.BuildDirectPrompt(content, question))
	a.inst.Completions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", err == nil)))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrDirectFailed, err)
	}

	report.ProcessedRecords = doc.TotalCount
	report.Answer = strings.TrimSpace(answer)
	a.emit(Event{Kind: EventAggregated, State: StateAggregating, Mode: ModeDirect, Completed: 1, Total: 1})
	return nil
}

// finish records metrics and journals the run
func (a *Analyzer) finish(ctx context.Context, report *Report) {
	attrs := metric.WithAttributes(
		attribute.String("mode", string(report.Mode)),
		attribute.String("state", string(report.State)),
	)
	a.inst.Runs.Add(ctx, 1, attrs)
	a.inst.RunDuration.Record(ctx, float64(report.Duration.Milliseconds()), attrs)

	if a.recorder == nil {
		return
	}
	// A cancelled run is still journaled
	if err := a.recorder.SaveRun(context.WithoutCancel(ctx), report.ToRun()); err != nil {
		a.logger.Warn("failed to record run", "run", report.RunID, "error", err)
	}
}

func (a *Analyzer) emit(e Event) {
	if a.progress != nil {
		a.progress(e)
	}
}
