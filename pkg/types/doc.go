// Package types provides shared type definitions for chunkwise.
//
// This package defines the domain types passed between the planner, splitter,
// extractor, aggregator and pipeline: documents, chunks and results.
//
// # Core Types
//
// Document is a parsed file. Its records are table rows, JSON values or log lines:
//
//	doc := types.NewDocument("access.log", types.FormatLogLines, nil, records)
//	if err := doc.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Chunk is a contiguous, bounded slice of a document's records:
//
//	chunk := &types.Chunk{
//	    Index:       0,
//	    Format:      types.FormatTable,
//	    Columns:     []string{"id", "name"},
//	    Records:     doc.Records[:500],
//	    RecordCount: 500,
//	}
//
// ChunkResult is the partial answer extracted from one chunk, and
// AggregationOutcome is the merged answer for the whole document.
//
// # Ownership
//
// Documents and chunks are read-only once built. Chunks share record storage
// with their document, so callers must not modify either while an analysis runs.
package types
