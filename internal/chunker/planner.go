package chunker

import "github.com/dshills/chunkwise/pkg/types"

const (
	// DefaultChunkThreshold is the record count above which chunking starts
	DefaultChunkThreshold = 1000

	// DefaultBaseChunkSize is the chunk size for documents up to the large-file threshold
	DefaultBaseChunkSize = 500

	// DefaultLargeFileThreshold is the record count above which coarser chunks are used
	DefaultLargeFileThreshold = 50_000

	// DefaultLargeChunkSize is the chunk size for large documents
	DefaultLargeChunkSize = 1000

	// DefaultMaxChunks caps the number of chunks produced per document
	DefaultMaxChunks = 100
)

// PlannerConfig controls the chunk size policy. Zero fields take defaults.
type PlannerConfig struct {
	ChunkThreshold     int
	BaseChunkSize      int
	LargeFileThreshold int
	LargeChunkSize     int
	MaxChunks          int
}

// DefaultPlannerConfig returns the stock policy
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		ChunkThreshold:     DefaultChunkThreshold,
		BaseChunkSize:      DefaultBaseChunkSize,
		LargeFileThreshold: DefaultLargeFileThreshold,
		LargeChunkSize:     DefaultLargeChunkSize,
		MaxChunks:          DefaultMaxChunks,
	}
}

func (c PlannerConfig) withDefaults() PlannerConfig {
	d := DefaultPlannerConfig()
	if c.ChunkThreshold <= 0 {
		c.ChunkThreshold = d.ChunkThreshold
	}
	if c.BaseChunkSize <= 0 {
		c.BaseChunkSize = d.BaseChunkSize
	}
	if c.LargeFileThreshold <= 0 {
		c.LargeFileThreshold = d.LargeFileThreshold
	}
	if c.LargeChunkSize <= 0 {
		c.LargeChunkSize = d.LargeChunkSize
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = d.MaxChunks
	}
	return c
}

// Planner decides whether a document needs chunking and how large chunks are.
// It has no state beyond its configuration.
type Planner struct {
	cfg PlannerConfig
}

// NewPlanner creates a Planner
func NewPlanner(cfg PlannerConfig) *Planner {
	return &Planner{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration
func (p *Planner) Config() PlannerConfig {
	return p.cfg
}

// NeedsChunking reports whether the document exceeds the chunking threshold
func (p *Planner) NeedsChunking(doc *types.Document) bool {
	return doc.TotalCount > p.cfg.ChunkThreshold
}

// ChunkSize picks the chunk size for a document of total records.
// Larger files get coarser chunks to bound the number of completion calls.
func (p *Planner) ChunkSize(total int) int {
	if total > p.cfg.LargeFileThreshold {
		return p.cfg.LargeChunkSize
	}
	return p.cfg.BaseChunkSize
}

// Plan summarizes the work an analysis would do before any completion call
type Plan struct {
	NeedsChunking   bool
	ChunkSize       int
	EstimatedChunks int // After the max-chunk cap
	Truncated       bool
}

// Plan computes the chunking decision for doc
func (p *Planner) Plan(doc *types.Document) Plan {
	if !p.NeedsChunking(doc) {
		return Plan{EstimatedChunks: 1}
	}

	size := p.ChunkSize(doc.TotalCount)
	n := (doc.TotalCount + size - 1) / size
	plan := Plan{NeedsChunking: true, ChunkSize: size, EstimatedChunks: n}
	if n > p.cfg.MaxChunks {
		plan.EstimatedChunks = p.cfg.MaxChunks
		plan.Truncated = true
	}
	return plan
}
