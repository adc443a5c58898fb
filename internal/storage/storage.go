package storage

import (
	"context"
	"time"

	"github.com/dshills/chunkwise/pkg/types"
)

// Storage defines the interface for persisting analysis runs
type Storage interface {
	// Run operations
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Status operations
	GetStats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Run is one finished or failed analysis
type Run struct {
	ID       string
	Source   string
	Question string
	Format   string
	Mode     string // chunked or direct
	State    string // done or failed

	// Aggregation
	Path       string
	Answer     string
	TotalCount *int // Set only when the count was computed in process

	ChunkSize        int
	Chunks           int
	ProcessedRecords int
	TotalRecords     int
	Truncated        bool

	Provider string
	Model    string
	Error    string

	StartedAt time.Time
	Duration  time.Duration
	CreatedAt time.Time

	// Results is filled by GetRun, empty in ListRuns
	Results []*ChunkRecord
}

// ChunkRecord is the stored extraction for one chunk of a run
type ChunkRecord struct {
	RunID      string
	ChunkIndex int
	Result     types.ChunkResult
	Outcome    string
	Attempts   int
	Duration   time.Duration
	Error      string

	// ContentHash fingerprints the chunk's records, empty for old rows
	ContentHash string
}

// Stats summarizes the run journal
type Stats struct {
	Runs           int
	FailedRuns     int
	ChunkResults   int
	FallbackChunks int
	LastRunAt      time.Time
	DBSizeMB       float64
	SchemaVersion  string
	BuildMode      string
}
