package pipeline

import (
	"time"

	"github.com/dshills/chunkwise/internal/extractor"
	"github.com/dshills/chunkwise/internal/storage"
	"github.com/dshills/chunkwise/pkg/types"
)

// State is the stage an analysis is in
type State string

const (
	StatePlanning    State = "planning"
	StateSplitting   State = "splitting"
	StateExtracting  State = "extracting"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Mode tells whether a document was answered in chunks or in one request
type Mode string

const (
	ModeChunked Mode = "chunked"
	ModeDirect  Mode = "direct"
)

// Report describes one analysis run
type Report struct {
	RunID    string
	Source   string
	Question string
	Format   types.Format
	State    State
	Mode     Mode

	ChunkSize        int
	Chunks           int
	ProcessedRecords int
	TotalRecords     int
	Truncated        bool

	// Extractions are in chunk order; empty in direct mode
	Extractions []extractor.Extraction

	// Fingerprints hold each chunk's content hash, in chunk order
	Fingerprints []string

	// Outcome is set for chunked runs
	Outcome *types.AggregationOutcome

	// Answer is the final text in both modes
	Answer string

	Provider string
	Model    string

	StartedAt time.Time
	Duration  time.Duration

	// Err is set when State is StateFailed
	Err error
}

// Results returns the chunk results in chunk order
func (r *Report) Results() []types.ChunkResult {
	results := make([]types.ChunkResult, len(r.Extractions))
	for i, x := range r.Extractions {
		results[i] = x.Result
	}
	return results
}

// OutcomeCounts tallies extractions by outcome
func (r *Report) OutcomeCounts() map[extractor.Outcome]int {
	counts := make(map[extractor.Outcome]int, 3)
	for _, x := range r.Extractions {
		counts[x.Outcome]++
	}
	return counts
}

// ToRun converts the report to its stored form
func (r *Report) ToRun() *storage.Run {
	run := &storage.Run{
		ID:               r.RunID,
		Source:           r.Source,
		Question:         r.Question,
		Format:           string(r.Format),
		Mode:             string(r.Mode),
		State:            string(r.State),
		Answer:           r.Answer,
		ChunkSize:        r.ChunkSize,
		Chunks:           r.Chunks,
		ProcessedRecords: r.ProcessedRecords,
		TotalRecords:     r.TotalRecords,
		Truncated:        r.Truncated,
		Provider:         r.Provider,
		Model:            r.Model,
		StartedAt:        r.StartedAt,
		Duration:         r.Duration,
	}

	if r.Err != nil {
		run.Error = r.Err.Error()
	}

	if r.Outcome != nil {
		run.Path = string(r.Outcome.Path)
		if r.Outcome.Deterministic() {
			total := r.Outcome.TotalCount
			run.TotalCount = &total
		}
	}

	for i, x := range r.Extractions {
		rec := storage.ChunkRecordFromResult(i, x.Result, string(x.Outcome), x.Attempts, x.Duration, x.Err)
		if i < len(r.Fingerprints) {
			rec.ContentHash = r.Fingerprints[i]
		}
		run.Results = append(run.Results, rec)
	}

	return run
}
