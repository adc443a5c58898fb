package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/chunkwise/internal/completion"
	"github.com/dshills/chunkwise/internal/config"
	"github.com/dshills/chunkwise/internal/pipeline"
	"github.com/dshills/chunkwise/internal/storage"
	"github.com/dshills/chunkwise/internal/telemetry"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath string // overridable via --config flag
	logLevel   string // overridable via --log-level flag
)

func main() {
	root := &cobra.Command{
		Use:   "chunkwise",
		Short: "Ask questions about large CSV, JSON and log files with a local LLM",
		Long: `chunkwise answers natural-language questions about data files that are too
large for a small model's context window. Large files are split into chunks,
each chunk is analyzed separately, and the per-chunk results are merged into
one answer.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./"+config.DefaultFile+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(analyzeCmd())
	root.AddCommand(planCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chunkwise\n")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("Build Mode: %s\n", storage.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		},
	}
}

// app holds the dependencies shared by the commands
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     storage.Storage
	completer completion.Completer
	shutdown  func(context.Context) error
}

// loadConfig reads configuration and builds the stderr logger.
// Logs go to stderr; stdout is reserved for answers and the MCP protocol.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// openStore opens the run journal, creating its directory if needed
func openStore(path string) (*storage.SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// newApp wires storage, the completer and telemetry. withStore=false skips
// the run journal.
func newApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, shutdown: func(context.Context) error { return nil }}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		shutdown, err := telemetry.Init(ctx, "chunkwise", version)
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
		} else {
			a.shutdown = shutdown
			logger.Debug("telemetry enabled")
		}
	}

	completer, err := completion.New(cfg.CompletionConfig())
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("failed to initialize completion provider: %w", err)
	}
	a.completer = completer
	logger.Debug("completion provider ready", "provider", completer.Provider(), "model", completer.Model())

	if withStore {
		store, err := openStore(cfg.Storage.Path)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		a.store = store
	}

	return a, nil
}

// analyzer builds the pipeline around the app's completer
func (a *app) analyzer(opts ...pipeline.Option) *pipeline.Analyzer {
	opts = append([]pipeline.Option{pipeline.WithLogger(a.logger)}, opts...)
	if a.store != nil {
		opts = append(opts, pipeline.WithRecorder(a.store))
	}
	return pipeline.New(a.completer, a.cfg.PipelineConfig(), opts...)
}

func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.completer != nil {
		errs = append(errs, a.completer.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.shutdown(ctx))
	return errors.Join(errs...)
}
