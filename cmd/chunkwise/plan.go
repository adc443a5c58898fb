package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/chunkwise/internal/chunker"
	"github.com/dshills/chunkwise/internal/loader"
	"github.com/dshills/chunkwise/pkg/types"
)

func planCmd() *cobra.Command {
	var maxBytes int64

	cmd := &cobra.Command{
		Use:   "plan FILE",
		Short: "Show how a file would be chunked, without calling the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			loaded, err := loader.Load(args[0], maxBytes)
			if err != nil {
				return err
			}
			doc := loaded.Document

			plan := chunker.NewPlanner(cfg.PlannerConfig()).Plan(doc)

			fmt.Printf("File:     %s (%d bytes)\n", doc.Source, loaded.Bytes)
			fmt.Printf("Format:   %s\n", doc.Format)
			fmt.Printf("Records:  %d\n", doc.TotalCount)
			if doc.Format == types.FormatTable {
				fmt.Printf("Columns:  %s\n", strings.Join(doc.Columns, ", "))
				if loaded.SkippedRows > 0 {
					fmt.Printf("Skipped:  %d blank rows\n", loaded.SkippedRows)
				}
			}

			if plan.NeedsChunking {
				fmt.Printf("Plan:     %d chunks of %d records\n", plan.EstimatedChunks, plan.ChunkSize)
				if plan.Truncated {
					fmt.Printf("Warning:  capped at %d chunks, %d records will not be analyzed\n",
						plan.EstimatedChunks, doc.TotalCount-plan.EstimatedChunks*plan.ChunkSize)
				}
			} else {
				fmt.Printf("Plan:     single request, no chunking\n")
			}

			if questions := loader.SuggestedQuestions(doc.Format); len(questions) > 0 {
				fmt.Printf("\nSuggested questions:\n")
				for _, q := range questions {
					fmt.Printf("  - %s\n", q)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&maxBytes, "max-bytes", loader.DefaultMaxBytes, "reject files larger than this")
	return cmd
}
