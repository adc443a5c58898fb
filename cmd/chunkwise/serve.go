package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/chunkwise/internal/mcp"
	"github.com/dshills/chunkwise/internal/storage"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Set up graceful shutdown
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			a.logger.Info("chunkwise MCP server starting",
				"version", version,
				"build_mode", storage.BuildMode,
				"driver", storage.DriverName,
				"provider", a.completer.Provider(),
				"model", a.completer.Model())

			server := mcp.NewServer(a.analyzer(), a.store, mcp.WithLogger(a.logger))

			a.logger.Info("MCP server ready, listening on stdio")
			err = server.Serve(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			a.logger.Info("server stopped")
			return nil
		},
	}
}
