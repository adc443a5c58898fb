package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// analyzeFileTool returns the tool definition for analyze_file
func analyzeFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_file",
		Description: "Answer a question about a CSV, JSON, log or PDF file, splitting large files into chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a .csv, .json, .log, .txt or .pdf file",
				},
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer about the file contents",
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Chunks analyzed concurrently (1-16); defaults to the server setting",
					"minimum":     1,
					"maximum":     maxWorkers,
				},
			},
			Required: []string{"path", "question"},
		},
	}
}

// planFileTool returns the tool definition for plan_file
func planFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "plan_file",
		Description: "Preview how a file would be chunked, without calling the model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a .csv, .json, .log, .txt or .pdf file",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getRunTool returns the tool definition for get_run
func getRunTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_run",
		Description: "Fetch a recorded analysis run with its per-chunk results",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Run ID returned by analyze_file",
				},
			},
			Required: []string{"id"},
		},
	}
}

// listRunsTool returns the tool definition for list_runs
func listRunsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_runs",
		Description: "List recent analysis runs, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of runs to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}
