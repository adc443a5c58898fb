// Package mcp implements the Model Context Protocol (MCP) server for chunkwise.
//
// The MCP server exposes four tools to AI assistants:
//   - analyze_file: Answer a question about a CSV, JSON or log file
//   - plan_file: Preview the chunking plan for a file
//   - get_run: Fetch a recorded run with its per-chunk results
//   - list_runs: List recent runs
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	chunkwise serve
//
// # Tool: analyze_file
//
//	Request:
//	{
//	  "name": "analyze_file",
//	  "arguments": {
//	    "path": "/var/log/app.log",
//	    "question": "How many errors are there?",
//	    "workers": 4
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "5f0c...",
//	  "answer": "There are 42 errors.",
//	  "mode": "chunked",
//	  "aggregation": "simple",
//	  "total_count": 42,
//	  "chunks": 5,
//	  "chunk_size": 500,
//	  "outcomes": {"parsed": 4, "repaired": 1, "fallback": 0}
//	}
//
// Only one analysis runs at a time. A second analyze_file call while one is
// running fails immediately with code -32002.
//
// # Tool: plan_file
//
// Loads and parses the file, then reports the format, record count, chunk
// size, chunk count and suggested questions. No model call is made.
//
// # Tools: get_run, list_runs
//
// Read the run journal. get_run includes every chunk's count, items,
// summary and outcome; list_runs returns summaries newest first.
//
// # Error Codes
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32001  File could not be loaded
//	-32002  Analysis already in progress
//	-32003  Run not found
//	-32004  Empty question
//	-32005  Analysis cancelled
package mcp
