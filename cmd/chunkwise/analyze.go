package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/chunkwise/internal/extractor"
	"github.com/dshills/chunkwise/internal/loader"
	"github.com/dshills/chunkwise/internal/pipeline"
)

func analyzeCmd() *cobra.Command {
	var (
		question string
		workers  int
		noRecord bool
		asJSON   bool
		maxBytes int64
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Answer a question about a data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("--question is required")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			loaded, err := loader.Load(args[0], maxBytes)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, !noRecord)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			if loaded.SkippedRows > 0 {
				a.logger.Info("skipped blank rows", "count", loaded.SkippedRows)
			}

			analyzer := a.analyzer(pipeline.WithProgress(printProgress))
			if workers > 0 {
				analyzer = analyzer.WithWorkers(workers)
			}

			report, err := analyzer.Analyze(ctx, loaded.Document, question)
			if err != nil {
				return err
			}

			if asJSON {
				return printReportJSON(report)
			}

			fmt.Println(report.Answer)
			printSummary(report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "question to answer (required)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "chunks analyzed concurrently (default from config)")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not save the run to the journal")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", loader.DefaultMaxBytes, "reject files larger than this")

	return cmd
}

func printProgress(e pipeline.Event) {
	switch e.Kind {
	case pipeline.EventPlanned:
		if e.Mode == pipeline.ModeDirect {
			fmt.Fprintln(os.Stderr, "Analyzing file in one request...")
			return
		}
		fmt.Fprintf(os.Stderr, "Analyzing %d chunks...\n", e.Total)
	case pipeline.EventChunkDone:
		fmt.Fprintf(os.Stderr, "  chunk %d/%d done (%s, %.1fs)\n",
			e.Completed, e.Total, e.Outcome, e.LastDuration.Seconds())
	case pipeline.EventAggregated:
		fmt.Fprintln(os.Stderr, "Combining results...")
	}
}

func printSummary(r *pipeline.Report) {
	fmt.Fprintln(os.Stderr)
	if r.Mode == pipeline.ModeDirect {
		fmt.Fprintf(os.Stderr, "%d records answered directly in %.1fs (run %s)\n",
			r.TotalRecords, r.Duration.Seconds(), r.RunID)
		return
	}

	counts := r.OutcomeCounts()
	fmt.Fprintf(os.Stderr, "%d/%d records in %d chunks of %d, %s aggregation, %.1fs (run %s)\n",
		r.ProcessedRecords, r.TotalRecords, r.Chunks, r.ChunkSize, r.Outcome.Path, r.Duration.Seconds(), r.RunID)
	fmt.Fprintf(os.Stderr, "chunks: %d parsed, %d repaired, %d fallback\n",
		counts[extractor.OutcomeParsed], counts[extractor.OutcomeRepaired], counts[extractor.OutcomeFallback])
	if r.Truncated {
		fmt.Fprintf(os.Stderr, "warning: only the first %d of %d records were analyzed\n", r.ProcessedRecords, r.TotalRecords)
	}
}

func printReportJSON(r *pipeline.Report) error {
	chunks := make([]map[string]interface{}, len(r.Extractions))
	for i, x := range r.Extractions {
		chunks[i] = map[string]interface{}{
			"index":       i,
			"result":      x.Result,
			"outcome":     x.Outcome,
			"attempts":    x.Attempts,
			"duration_ms": x.Duration.Milliseconds(),
		}
	}

	out := map[string]interface{}{
		"run_id":            r.RunID,
		"source":            r.Source,
		"question":          r.Question,
		"format":            r.Format,
		"mode":              r.Mode,
		"answer":            r.Answer,
		"chunk_size":        r.ChunkSize,
		"chunks":            r.Chunks,
		"processed_records": r.ProcessedRecords,
		"total_records":     r.TotalRecords,
		"truncated":         r.Truncated,
		"duration_ms":       r.Duration.Milliseconds(),
		"chunk_results":     chunks,
	}
	if r.Outcome != nil {
		out["aggregation"] = r.Outcome.Path
		if r.Outcome.Deterministic() {
			out["total_count"] = r.Outcome.TotalCount
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
