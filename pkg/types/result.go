package types

// ChunkResult is the structured partial answer extracted from one chunk
type ChunkResult struct {
	Count   int    `json:"count"`
	Items   []any  `json:"items"`
	Summary string `json:"summary"`
}

// AggregationPath records which merge strategy produced an answer
type AggregationPath string

const (
	PathSimple   AggregationPath = "simple"
	PathComplex  AggregationPath = "complex"
	PathTwoLevel AggregationPath = "two-level"
)

// AggregationOutcome is the final answer for one analysis request
type AggregationOutcome struct {
	Answer string
	Path   AggregationPath

	// Simple path only: exact in-process totals
	TotalCount int
	Items      []any

	// Lines handed to the synthesis prompt (complex and two-level paths)
	Digest []string
}

// Deterministic reports whether TotalCount was computed in process
func (o *AggregationOutcome) Deterministic() bool {
	return o.Path == PathSimple
}
