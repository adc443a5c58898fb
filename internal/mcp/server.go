package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/chunkwise/internal/loader"
	"github.com/dshills/chunkwise/internal/pipeline"
	"github.com/dshills/chunkwise/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "chunkwise"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	analyzer *pipeline.Analyzer
	lock     pipeline.AnalysisLock
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxBytes sets the file size cap for analyzed files
func WithMaxBytes(n int64) Option {
	return func(s *Server) { s.maxBytes = n }
}

// NewServer creates a new MCP server instance. The analyzer should record
// runs into store so get_run and list_runs can find them.
func NewServer(analyzer *pipeline.Analyzer, store storage.Storage, opts ...Option) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		analyzer: analyzer,
		maxBytes: loader.DefaultMaxBytes,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(analyzeFileTool(), s.handleAnalyzeFile)
	s.mcp.AddTool(planFileTool(), s.handlePlanFile)
	s.mcp.AddTool(getRunTool(), s.handleGetRun)
	s.mcp.AddTool(listRunsTool(), s.handleListRuns)
}
