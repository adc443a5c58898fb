// Package aggregator merges per-chunk results into one final answer.
//
// Counting questions ("how many", "total", "сколько", ...) take the simple
// path: counts are summed and items concatenated in process, so the number in
// the answer is exact, and one completion call only phrases it.
//
// Other questions take the synthesis path. Up to GroupSize results are
// listed one summary per part; more results are folded into groups of
// GroupSize that each report their summed count, keeping the final prompt
// bounded no matter how many chunks were processed.
package aggregator
