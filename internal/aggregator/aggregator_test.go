package aggregator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dshills/chunkwise/internal/completion"
	"github.com/dshills/chunkwise/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder answers every prompt with a fixed reply and keeps the prompts
type recorder struct {
	reply   string
	err     error
	prompts []string
}

func (r *recorder) completer() completion.Completer {
	return completion.Func(func(_ context.Context, prompt string) (string, error) {
		r.prompts = append(r.prompts, prompt)
		return r.reply, r.err
	})
}

func counts(ns ...int) []types.ChunkResult {
	results := make([]types.ChunkResult, len(ns))
	for i, n := range ns {
		results[i] = types.ChunkResult{Count: n, Items: []any{}, Summary: fmt.Sprintf("s%d", i+1)}
	}
	return results
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		question string
		want     bool
	}{
		{"How many ERROR lines are there?", true},
		{"COUNT the users", true},
		{"What is the total revenue?", true},
		{"Number of rows with status=failed", true},
		{"Сколько ошибок в логе?", true},
		{"Какое КОЛИЧЕСТВО записей?", true},
		{"Всего строк?", true},
		{"Summarize the main events", false},
		{"Which error is most frequent?", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsSimple(tt.question))
		})
	}
}

func TestKeywordClassifier_Custom(t *testing.T) {
	c := NewKeywordClassifier("  Wie Viele ", "")
	assert.True(t, c.IsSimple("wie viele Fehler?"))
	assert.False(t, c.IsSimple("how many errors?"))
}

func TestKeywordClassifier_Normalizes(t *testing.T) {
	c := NewKeywordClassifier()
	assert.True(t, c.IsSimple("ＨＯＷ ＭＡＮＹ rows?"))
	assert.True(t, c.IsSimple("Сколько ошибок?"))
}

func TestSumResults(t *testing.T) {
	results := []types.ChunkResult{
		{Count: 5, Items: []any{"a"}},
		{Count: 3, Items: []any{}},
		{Count: 7, Items: []any{"b", "c"}},
	}

	total, items := SumResults(results)
	assert.Equal(t, 15, total)
	assert.Equal(t, []any{"a", "b", "c"}, items)
}

func TestBuildDigest_PerPart(t *testing.T) {
	results := counts(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	results[3].Summary = ""

	lines, path := BuildDigest(results, 10)

	assert.Equal(t, types.PathComplex, path)
	require.Len(t, lines, 10)
	assert.Equal(t, "Part 1: s1", lines[0])
	assert.Equal(t, "Part 4: count=4", lines[3])
	assert.Equal(t, "Part 10: s10", lines[9])
}

func TestBuildDigest_Grouped(t *testing.T) {
	results := counts(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 5)

	lines, path := BuildDigest(results, 10)

	assert.Equal(t, types.PathTwoLevel, path)
	assert.Equal(t, []string{
		"Group 1 (parts 1-10): count=10",
		"Group 2 (parts 11-11): count=5",
	}, lines)
}

func TestBuildDigest_GroupsCoverAllParts(t *testing.T) {
	for n := 11; n <= 100; n++ {
		lines, path := BuildDigest(counts(make([]int, n)...), 10)
		require.Equal(t, types.PathTwoLevel, path)
		require.Len(t, lines, (n+9)/10, "n=%d", n)
	}
}

func TestAggregate_SimplePath(t *testing.T) {
	r := &recorder{reply: "  There are 15 errors.  "}
	a := New(r.completer(), Config{}, nil)

	out, err := a.Aggregate(context.Background(), counts(5, 3, 7), "How many errors?")
	require.NoError(t, err)

	assert.Equal(t, types.PathSimple, out.Path)
	assert.True(t, out.Deterministic())
	assert.Equal(t, 15, out.TotalCount)
	assert.Equal(t, "There are 15 errors.", out.Answer)
	assert.Empty(t, out.Digest)

	require.Len(t, r.prompts, 1)
	assert.Contains(t, r.prompts[0], "Total count: 15")
	assert.NotContains(t, r.prompts[0], "Items found")
}

func TestAggregate_SimplePathMentionsItems(t *testing.T) {
	r := &recorder{reply: "ok"}
	results := []types.ChunkResult{{Count: 1, Items: []any{"x"}}, {Count: 1, Items: []any{"y"}}}

	out, err := New(r.completer(), Config{}, nil).Aggregate(context.Background(), results, "count them")
	require.NoError(t, err)

	assert.Equal(t, []any{"x", "y"}, out.Items)
	assert.Contains(t, r.prompts[0], "Items found: 2")
}

func TestAggregate_ComplexPath(t *testing.T) {
	r := &recorder{reply: "Mostly timeouts."}
	out, err := New(r.completer(), Config{}, nil).Aggregate(context.Background(), counts(1, 2, 3), "What went wrong?")
	require.NoError(t, err)

	assert.Equal(t, types.PathComplex, out.Path)
	assert.False(t, out.Deterministic())
	assert.Equal(t, []string{"Part 1: s1", "Part 2: s2", "Part 3: s3"}, out.Digest)
	assert.Contains(t, r.prompts[0], "Part 2: s2")
	assert.Contains(t, r.prompts[0], "What went wrong?")
}

func TestAggregate_TwoLevelPath(t *testing.T) {
	r := &recorder{reply: "Summary"}
	out, err := New(r.completer(), Config{GroupSize: 2}, nil).Aggregate(context.Background(), counts(1, 2, 3), "Describe the data")
	require.NoError(t, err)

	assert.Equal(t, types.PathTwoLevel, out.Path)
	assert.Equal(t, []string{"Group 1 (parts 1-2): count=3", "Group 2 (parts 3-3): count=3"}, out.Digest)
	assert.Contains(t, r.prompts[0], "Combine the results from 2 groups")
}

func TestAggregate_CustomClassifier(t *testing.T) {
	r := &recorder{reply: "ok"}
	a := New(r.completer(), Config{Classifier: ClassifierFunc(func(string) bool { return true })}, nil)

	out, err := a.Aggregate(context.Background(), counts(2, 2), "Describe")
	require.NoError(t, err)
	assert.Equal(t, types.PathSimple, out.Path)
	assert.Equal(t, 4, out.TotalCount)
}

func TestAggregate_NoResults(t *testing.T) {
	r := &recorder{}
	_, err := New(r.completer(), Config{}, nil).Aggregate(context.Background(), nil, "q")
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Empty(t, r.prompts)
}

func TestAggregate_CompletionFailure(t *testing.T) {
	boom := errors.New("connection refused")
	r := &recorder{err: boom}

	_, err := New(r.completer(), Config{}, nil).Aggregate(context.Background(), counts(1), "how many?")
	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, r.prompts, 1, "no retry")
}
