package chunker

import (
	"errors"
	"fmt"

	"github.com/dshills/chunkwise/pkg/types"
)

// ErrInvalidChunkSize is returned when Split is called with a non-positive size
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Splitter partitions documents into ordered chunks
type Splitter struct {
	maxChunks int
}

// NewSplitter creates a Splitter that keeps at most maxChunks chunks.
// A non-positive maxChunks uses DefaultMaxChunks.
func NewSplitter(maxChunks int) *Splitter {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &Splitter{maxChunks: maxChunks}
}

// MaxChunks returns the chunk cap
func (s *Splitter) MaxChunks() int {
	return s.maxChunks
}

// Split divides doc into contiguous chunks of at most chunkSize records.
// Chunks past the cap are dropped without error; compare ProcessedRecords
// with doc.TotalCount to detect truncation.
func (s *Splitter) Split(doc *types.Document, chunkSize int) ([]*types.Chunk, error) {
	if !doc.Format.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, doc.Format)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	var chunks []*types.Chunk
	switch doc.Format {
	case types.FormatTable:
		chunks = s.splitRanges(doc, chunkSize, func(c *types.Chunk) {
			c.Columns = doc.Columns
		})
	case types.FormatJSONObject:
		chunks = s.splitRanges(doc, chunkSize, func(c *types.Chunk) {
			c.Keys = make([]string, len(c.Records))
			for i, rec := range c.Records {
				c.Keys[i] = rec.Key
			}
		})
	case types.FormatJSONArray, types.FormatLogLines:
		chunks = s.splitRanges(doc, chunkSize, nil)
	case types.FormatJSONPrimitive:
		// No structure to split on
		chunks = []*types.Chunk{{
			Index:       0,
			Format:      doc.Format,
			Records:     doc.Records,
			RecordCount: len(doc.Records),
		}}
	}

	return chunks, nil
}

// splitRanges cuts doc.Records into contiguous ranges, stopping at the chunk cap
func (s *Splitter) splitRanges(doc *types.Document, chunkSize int, decorate func(*types.Chunk)) []*types.Chunk {
	n := len(doc.Records)
	count := (n + chunkSize - 1) / chunkSize
	if count > s.maxChunks {
		count = s.maxChunks
	}

	chunks := make([]*types.Chunk, 0, count)
	for start := 0; start < n && len(chunks) < s.maxChunks; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		chunk := &types.Chunk{
			Index:       len(chunks),
			Format:      doc.Format,
			Records:     doc.Records[start:end:end],
			Offset:      start,
			RecordCount: end - start,
		}
		if decorate != nil {
			decorate(chunk)
		}
		chunks = append(chunks, chunk)
	}

	return chunks
}

// ProcessedRecords returns the number of records covered by chunks
func ProcessedRecords(chunks []*types.Chunk) int {
	total := 0
	for _, c := range chunks {
		total += c.RecordCount
	}
	return total
}
