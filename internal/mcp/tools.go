package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/chunkwise/internal/extractor"
	"github.com/dshills/chunkwise/internal/loader"
	"github.com/dshills/chunkwise/internal/pipeline"
	"github.com/dshills/chunkwise/internal/storage"
	"github.com/dshills/chunkwise/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeFileRejected       = -32001 // File could not be loaded or parsed
	ErrorCodeAnalysisInProgress = -32002 // Another analysis is already running
	ErrorCodeRunNotFound        = -32003 // No recorded run with that ID
	ErrorCodeEmptyQuestion      = -32004 // Question parameter is empty
	ErrorCodeCancelled          = -32005 // Analysis was cancelled
)

const maxWorkers = 16

// handleAnalyzeFile handles the analyze_file tool invocation
func (s *Server) handleAnalyzeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	question, ok := args["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuestion, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	analyzer := s.analyzer
	if _, set := args["workers"]; set {
		workers := getIntDefault(args, "workers", 0)
		if workers < 1 || workers > maxWorkers {
			return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("workers must be between 1 and %d", maxWorkers), map[string]interface{}{
				"param": "workers",
				"value": workers,
			})
		}
		analyzer = analyzer.WithWorkers(workers)
	}

	if !s.lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeAnalysisInProgress, "another analysis is already running", nil)
	}
	defer s.lock.Release()

	loaded, err := loader.Load(path, s.maxBytes)
	if err != nil {
		return nil, newMCPError(ErrorCodeFileRejected, "failed to load file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}

	report, err := analyzer.Analyze(ctx, loaded.Document, question)
	if err != nil {
		code := ErrorCodeInternalError
		if errors.Is(err, pipeline.ErrCancelled) {
			code = ErrorCodeCancelled
		}
		return nil, newMCPError(code, "analysis failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.logger.Info("analysis served", "run", report.RunID, "path", path, "duration", report.Duration)
	return mcp.NewToolResultText(formatJSON(reportResponse(report, loaded))), nil
}

// handlePlanFile handles the plan_file tool invocation
func (s *Server) handlePlanFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	loaded, err := loader.Load(path, s.maxBytes)
	if err != nil {
		return nil, newMCPError(ErrorCodeFileRejected, "failed to load file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}

	doc := loaded.Document
	plan := s.analyzer.Plan(doc)

	response := map[string]interface{}{
		"path":                path,
		"format":              doc.Format,
		"size_bytes":          loaded.Bytes,
		"total_records":       doc.TotalCount,
		"needs_chunking":      plan.NeedsChunking,
		"estimated_chunks":    plan.EstimatedChunks,
		"truncated":           plan.Truncated,
		"suggested_questions": loader.SuggestedQuestions(doc.Format),
	}
	if plan.NeedsChunking {
		response["chunk_size"] = plan.ChunkSize
	}
	if doc.Format == types.FormatTable {
		response["columns"] = doc.Columns
		response["skipped_rows"] = loaded.SkippedRows
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetRun handles the get_run tool invocation
func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	run, err := s.storage.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeRunNotFound, "run not found", map[string]interface{}{
			"id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get run", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := runSummary(run)
	chunks := make([]map[string]interface{}, 0, len(run.Results))
	for _, r := range run.Results {
		chunk := map[string]interface{}{
			"index":       r.ChunkIndex,
			"count":       r.Result.Count,
			"items":       r.Result.Items,
			"summary":     r.Result.Summary,
			"outcome":     r.Outcome,
			"attempts":    r.Attempts,
			"duration_ms": r.Duration.Milliseconds(),
		}
		if r.Error != "" {
			chunk["error"] = r.Error
		}
		if r.ContentHash != "" {
			chunk["content_hash"] = r.ContentHash
		}
		chunks = append(chunks, chunk)
	}
	response["chunk_results"] = chunks

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListRuns handles the list_runs tool invocation
func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	limit := getIntDefault(args, "limit", storage.DefaultListLimit)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	runs, err := s.storage.ListRuns(ctx, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list runs", map[string]interface{}{
			"error": err.Error(),
		})
	}

	summaries := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary(run))
	}

	response := map[string]interface{}{
		"runs":  summaries,
		"count": len(summaries),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// reportResponse formats a finished analysis
func reportResponse(report *pipeline.Report, loaded *loader.Loaded) map[string]interface{} {
	counts := report.OutcomeCounts()

	response := map[string]interface{}{
		"run_id":            report.RunID,
		"answer":            report.Answer,
		"mode":              report.Mode,
		"format":            report.Format,
		"total_records":     report.TotalRecords,
		"processed_records": report.ProcessedRecords,
		"duration_ms":       report.Duration.Milliseconds(),
	}
	if loaded.SkippedRows > 0 {
		response["skipped_rows"] = loaded.SkippedRows
	}

	if report.Mode == pipeline.ModeChunked {
		response["chunk_size"] = report.ChunkSize
		response["chunks"] = report.Chunks
		response["truncated"] = report.Truncated
		response["outcomes"] = map[string]int{
			string(extractor.OutcomeParsed):   counts[extractor.OutcomeParsed],
			string(extractor.OutcomeRepaired): counts[extractor.OutcomeRepaired],
			string(extractor.OutcomeFallback): counts[extractor.OutcomeFallback],
		}
	}

	if report.Outcome != nil {
		response["aggregation"] = report.Outcome.Path
		if report.Outcome.Deterministic() {
			response["total_count"] = report.Outcome.TotalCount
		}
	}

	return response
}

// runSummary formats the stored fields of a run
func runSummary(run *storage.Run) map[string]interface{} {
	summary := map[string]interface{}{
		"id":                run.ID,
		"source":            run.Source,
		"question":          run.Question,
		"format":            run.Format,
		"mode":              run.Mode,
		"state":             run.State,
		"answer":            run.Answer,
		"chunks":            run.Chunks,
		"processed_records": run.ProcessedRecords,
		"total_records":     run.TotalRecords,
		"truncated":         run.Truncated,
		"provider":          run.Provider,
		"model":             run.Model,
		"started_at":        run.StartedAt.Format(time.RFC3339),
		"duration_ms":       run.Duration.Milliseconds(),
	}
	if run.Path != "" {
		summary["aggregation"] = run.Path
	}
	if run.TotalCount != nil {
		summary["total_count"] = *run.TotalCount
	}
	if run.Error != "" {
		summary["error"] = run.Error
	}
	return summary
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a path names a readable regular file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if info.IsDir() {
		return ErrIsDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrIsDirectory     = errors.New("path is a directory")
)
