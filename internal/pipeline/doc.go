// Package pipeline coordinates the end-to-end analysis of one document.
//
// The analyzer orchestrates planning, splitting, per-chunk extraction and
// aggregation, managing concurrency, cancellation and progress reporting.
//
// # Basic Usage
//
//	c, _ := completion.NewFromEnv()
//	a := pipeline.New(c, pipeline.Config{Workers: 4})
//
//	report, err := a.Analyze(ctx, doc, "How many errors are there?")
//	fmt.Println(report.Answer)
//
// # Analysis Pipeline
//
// A document above the chunking threshold goes through four stages:
//
//  1. Plan: Choose the chunk size (500 records, 1000 above 50k records)
//  2. Split: Cut records into chunks, capped at 100 chunks
//  3. Extract: Ask the model for {count, items, summary} per chunk
//  4. Aggregate: Sum counts or summarize parts into one answer
//
// Smaller documents skip the chunk stages and are answered with a single
// direct prompt over the whole rendered document.
//
// # Concurrent Extraction
//
// Chunks are extracted by an errgroup worker pool:
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.SetLimit(workers)
//
// Results are written to their chunk's slot, so aggregation always sees
// them in chunk order whatever order they complete in. The default is one
// worker, which processes chunks strictly in sequence. Config.MaxInFlight
// caps concurrent completion calls across the whole analyzer.
//
// # Error Handling
//
// A chunk whose reply cannot be parsed becomes a fallback result and the
// run continues. Only three things fail a run:
//   - An empty question or unsupported format (before any model call)
//   - Cancellation of the context (ErrCancelled, no partial answer)
//   - Failure of the final answer completion
//
// # Progress Tracking
//
// Monitor progress with a callback:
//
//	a := pipeline.New(c, cfg, pipeline.WithProgress(func(e pipeline.Event) {
//	    fmt.Printf("%s: %d/%d\n", e.Kind, e.Completed, e.Total)
//	}))
//
// Events are delivered one at a time and Completed never decreases.
//
// # Run Journal
//
// With WithRecorder every run, including failed and cancelled ones, is
// saved after it ends. storage.Storage satisfies Recorder.
package pipeline
