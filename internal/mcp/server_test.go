package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/chunkwise/internal/completion"
	"github.com/dshills/chunkwise/internal/pipeline"
	"github.com/dshills/chunkwise/internal/storage"
	"github.com/dshills/chunkwise/internal/telemetry"
)

// stubModel answers every chunk with a count of 2 and every final prompt
// with a fixed sentence
func stubModel(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "DATA (part") {
		return `{"count": 2, "items": [], "summary": "two"}`, nil
	}
	return "The answer.", nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	analyzer := pipeline.New(completion.Func(stubModel), pipeline.Config{},
		pipeline.WithRecorder(store),
		pipeline.WithInstruments(telemetry.Noop()))

	return NewServer(analyzer, store)
}

func writeLog(t *testing.T, lines int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "2024-01-01 ERROR event %d\n", i)
	}
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestServer_Initialization(t *testing.T) {
	s := newTestServer(t)

	assert.NotNil(t, s.mcp, "MCP server should be initialized")
	assert.NotNil(t, s.storage, "Storage should be initialized")
	assert.NotNil(t, s.analyzer, "Analyzer should be initialized")
}

func TestHandleAnalyzeFile(t *testing.T) {
	s := newTestServer(t)
	path := writeLog(t, 2500)

	result, err := s.handleAnalyzeFile(context.Background(), callTool("analyze_file", map[string]interface{}{
		"path":     path,
		"question": "How many errors?",
		"workers":  float64(3),
	}))
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, "The answer.", out["answer"])
	assert.Equal(t, "chunked", out["mode"])
	assert.Equal(t, "simple", out["aggregation"])
	assert.Equal(t, float64(10), out["total_count"])
	assert.Equal(t, float64(5), out["chunks"])
	assert.NotEmpty(t, out["run_id"])
	assert.False(t, s.lock.Held())

	// The run is journaled and readable through get_run
	result, err = s.handleGetRun(context.Background(), callTool("get_run", map[string]interface{}{
		"id": out["run_id"],
	}))
	require.NoError(t, err)

	run := decodeResult(t, result)
	assert.Equal(t, "done", run["state"])
	chunks, ok := run["chunk_results"].([]interface{})
	require.True(t, ok)
	assert.Len(t, chunks, 5)
}

func TestHandleAnalyzeFile_DirectMode(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleAnalyzeFile(context.Background(), callTool("analyze_file", map[string]interface{}{
		"path":     writeLog(t, 20),
		"question": "Summarize",
	}))
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, "direct", out["mode"])
	assert.NotContains(t, out, "chunks")
}

func TestHandleAnalyzeFile_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	path := writeLog(t, 5)

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing path", map[string]interface{}{"question": "q"}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"path": "app.log", "question": "q"}, ErrorCodeInvalidParams},
		{"missing file", map[string]interface{}{"path": "/nonexistent/app.log", "question": "q"}, ErrorCodeInvalidParams},
		{"directory", map[string]interface{}{"path": t.TempDir(), "question": "q"}, ErrorCodeInvalidParams},
		{"empty question", map[string]interface{}{"path": path, "question": "  "}, ErrorCodeEmptyQuestion},
		{"too many workers", map[string]interface{}{"path": path, "question": "q", "workers": float64(99)}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleAnalyzeFile(context.Background(), callTool("analyze_file", tt.args))
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestHandleAnalyzeFile_UnsupportedFile(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "data.xml")
	require.NoError(t, os.WriteFile(path, []byte("<a/>"), 0o644))

	_, err := s.handleAnalyzeFile(context.Background(), callTool("analyze_file", map[string]interface{}{
		"path":     path,
		"question": "What is this?",
	}))
	requireMCPError(t, err, ErrorCodeFileRejected)
}

func TestHandleAnalyzeFile_InProgress(t *testing.T) {
	s := newTestServer(t)
	require.True(t, s.lock.TryAcquire())
	defer s.lock.Release()

	_, err := s.handleAnalyzeFile(context.Background(), callTool("analyze_file", map[string]interface{}{
		"path":     writeLog(t, 5),
		"question": "How many errors?",
	}))
	requireMCPError(t, err, ErrorCodeAnalysisInProgress)
}

func TestHandleAnalyzeFile_Cancelled(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.handleAnalyzeFile(ctx, callTool("analyze_file", map[string]interface{}{
		"path":     writeLog(t, 2500),
		"question": "How many errors?",
	}))
	requireMCPError(t, err, ErrorCodeCancelled)
	assert.False(t, s.lock.Held())
}

func TestHandlePlanFile(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handlePlanFile(context.Background(), callTool("plan_file", map[string]interface{}{
		"path": writeLog(t, 2500),
	}))
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, "log-lines", out["format"])
	assert.Equal(t, float64(2500), out["total_records"])
	assert.Equal(t, true, out["needs_chunking"])
	assert.Equal(t, float64(500), out["chunk_size"])
	assert.Equal(t, float64(5), out["estimated_chunks"])
	assert.NotEmpty(t, out["suggested_questions"])
}

func TestHandlePlanFile_CSV(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name;age\nann;30\n;\nbo;41\n"), 0o644))

	result, err := s.handlePlanFile(context.Background(), callTool("plan_file", map[string]interface{}{
		"path": path,
	}))
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, "table", out["format"])
	assert.Equal(t, float64(2), out["total_records"])
	assert.Equal(t, float64(1), out["skipped_rows"])
	assert.Equal(t, []interface{}{"name", "age"}, out["columns"])
	assert.Equal(t, false, out["needs_chunking"])
}

func TestHandleGetRun_NotFound(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleGetRun(context.Background(), callTool("get_run", map[string]interface{}{
		"id": "does-not-exist",
	}))
	requireMCPError(t, err, ErrorCodeRunNotFound)

	_, err = s.handleGetRun(context.Background(), callTool("get_run", map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleListRuns(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		_, err := s.handleAnalyzeFile(context.Background(), callTool("analyze_file", map[string]interface{}{
			"path":     writeLog(t, 10),
			"question": fmt.Sprintf("question %d", i),
		}))
		require.NoError(t, err)
	}

	result, err := s.handleListRuns(context.Background(), callTool("list_runs", map[string]interface{}{
		"limit": float64(2),
	}))
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, float64(2), out["count"])

	_, err = s.handleListRuns(context.Background(), callTool("list_runs", map[string]interface{}{
		"limit": float64(0),
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	result, err = s.handleListRuns(context.Background(), callTool("list_runs", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(3), decodeResult(t, result)["count"])
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeAnalysisInProgress, "busy", nil)
	assert.Equal(t, "MCP error -32002: busy", err.Error())
}
