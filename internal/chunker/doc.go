// Package chunker plans and performs the splitting of large documents into
// bounded chunks that each fit a completion request.
//
// # Basic Usage
//
//	planner := chunker.NewPlanner(chunker.DefaultPlannerConfig())
//	if planner.NeedsChunking(doc) {
//	    size := planner.ChunkSize(doc.TotalCount)
//	    chunks, err := chunker.NewSplitter(100).Split(doc, size)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, chunk := range chunks {
//	        fmt.Printf("chunk %d: %d records from %d\n",
//	            chunk.Index, chunk.RecordCount, chunk.Offset)
//	    }
//	}
//
// # Chunk Sizing
//
// Chunk size is a two-tier step function of the document's record count:
//   - up to 1000 records: no chunking
//   - up to 50 000 records: 500 records per chunk
//   - above 50 000 records: 1000 records per chunk
//
// # Splitting Strategy
//
// Chunks follow the document format:
//   - table: contiguous row ranges, each chunk repeats the column header
//   - json-array: contiguous element ranges
//   - json-object: contiguous key ranges, each chunk lists its keys
//   - log-lines: contiguous line ranges
//   - json-primitive: a single chunk holding the whole value
//
// # Truncation
//
// At most MaxChunks chunks are produced. Records beyond the cap are not an
// error; compare ProcessedRecords(chunks) with doc.TotalCount to detect it.
package chunker
