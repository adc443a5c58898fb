package aggregator

import (
	"fmt"

	"github.com/dshills/chunkwise/pkg/types"
)

// DefaultGroupSize is the result count above which summaries are grouped
const DefaultGroupSize = 10

// SumResults adds up counts and concatenates items in chunk order
func SumResults(results []types.ChunkResult) (total int, items []any) {
	items = []any{}
	for _, r := range results {
		total += r.Count
		items = append(items, r.Items...)
	}
	return total, items
}

// BuildDigest condenses results into lines for the synthesis prompt.
// Up to groupSize results get one line each; beyond that results are folded
// into contiguous groups of groupSize that report only their summed count.
func BuildDigest(results []types.ChunkResult, groupSize int) ([]string, types.AggregationPath) {
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}

	if len(results) <= groupSize {
		lines := make([]string, len(results))
		for i, r := range results {
			summary := r.Summary
			// An empty summary would leave the line blank; show the count instead
			if summary == "" {
				summary = fmt.Sprintf("count=%d", r.Count)
			}
			lines[i] = fmt.Sprintf("Part %d: %s", i+1, summary)
		}
		return lines, types.PathComplex
	}

	groups := (len(results) + groupSize - 1) / groupSize
	lines := make([]string, 0, groups)
	for g := 0; g < groups; g++ {
		start := g * groupSize
		end := min(start+groupSize, len(results))

		total, _ := SumResults(results[start:end])
		lines = append(lines, fmt.Sprintf("Group %d (parts %d-%d): count=%d", g+1, start+1, end, total))
	}
	return lines, types.PathTwoLevel
}
