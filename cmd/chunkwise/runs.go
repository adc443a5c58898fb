package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/chunkwise/internal/storage"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run journal",
	}

	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsShowCmd())
	cmd.AddCommand(runsDeleteCmd())
	cmd.AddCommand(runsStatsCmd())
	cmd.AddCommand(runsDowngradeCmd())
	return cmd
}

// withStore opens the run journal for the length of fn
func withStore(fn func(ctx context.Context, store storage.Storage) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(context.Background(), store)
}

func runsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store storage.Storage) error {
				runs, err := store.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Println("No runs recorded.")
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTARTED\tSTATE\tMODE\tCHUNKS\tSOURCE\tQUESTION")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
						r.ID, r.StartedAt.Local().Format(time.DateTime), r.State, r.Mode,
						r.Chunks, r.Source, truncate(r.Question, 40))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "maximum number of runs")
	return cmd
}

func runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a run with its per-chunk results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store storage.Storage) error {
				r, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Printf("Run:       %s\n", r.ID)
				fmt.Printf("Source:    %s (%s)\n", r.Source, r.Format)
				fmt.Printf("Question:  %s\n", r.Question)
				fmt.Printf("State:     %s, %s mode\n", r.State, r.Mode)
				fmt.Printf("Model:     %s/%s\n", r.Provider, r.Model)
				fmt.Printf("Started:   %s (%.1fs)\n", r.StartedAt.Local().Format(time.DateTime), r.Duration.Seconds())
				fmt.Printf("Records:   %d/%d", r.ProcessedRecords, r.TotalRecords)
				if r.Truncated {
					fmt.Print(" (truncated)")
				}
				fmt.Println()
				if r.Path != "" {
					fmt.Printf("Aggregate: %s", r.Path)
					if r.TotalCount != nil {
						fmt.Printf(", total count %d", *r.TotalCount)
					}
					fmt.Println()
				}
				if r.Error != "" {
					fmt.Printf("Error:     %s\n", r.Error)
				}
				fmt.Printf("\n%s\n", r.Answer)

				if len(r.Results) > 0 {
					fmt.Println()
					w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "CHUNK\tCOUNT\tITEMS\tOUTCOME\tATTEMPTS\tSUMMARY")
					for _, c := range r.Results {
						fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%d\t%s\n",
							c.ChunkIndex+1, c.Result.Count, len(c.Result.Items), c.Outcome, c.Attempts,
							truncate(c.Result.Summary, 60))
					}
					return w.Flush()
				}
				return nil
			})
		},
	}
}

func runsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a run and its chunk results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store storage.Storage) error {
				if err := store.DeleteRun(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted run %s\n", args[0])
				return nil
			})
		},
	}
}

func runsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the run journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store storage.Storage) error {
				s, err := store.GetStats(ctx)
				if err != nil {
					return err
				}

				fmt.Printf("Runs:            %d (%d failed)\n", s.Runs, s.FailedRuns)
				fmt.Printf("Chunk results:   %d (%d fallback)\n", s.ChunkResults, s.FallbackChunks)
				if !s.LastRunAt.IsZero() {
					fmt.Printf("Last run:        %s\n", s.LastRunAt.Local().Format(time.DateTime))
				}
				fmt.Printf("Database size:   %.2f MB\n", s.DBSizeMB)
				fmt.Printf("Schema version:  %s\n", s.SchemaVersion)
				fmt.Printf("Build mode:      %s\n", s.BuildMode)
				return nil
			})
		},
	}
}

func runsDowngradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "downgrade",
		Short: "Roll back the newest journal schema migration before installing an older chunkwise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			version, err := store.Downgrade(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Schema version is now %s\n", version)
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
