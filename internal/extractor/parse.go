package extractor

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dshills/chunkwise/pkg/types"
)

var (
	firstNumber  = regexp.MustCompile(`\p{Nd}+`)
	errNullReply = errors.New("reply is null")
)

// stripFences removes Markdown code fences around a model reply
func stripFences(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

// parseReply decodes a model reply into a ChunkResult. repaired is true when
// any field had to be backfilled or coerced, or the JSON had to be cut out
// of surrounding text.
func parseReply(resp string) (result types.ChunkResult, repaired bool, ok bool) {
	text := stripFences(resp)

	fields, err := decodeObject(text)
	if err != nil {
		span, found := braceSpan(text)
		if !found {
			return types.ChunkResult{}, false, false
		}
		fields, err = decodeObject(span)
		if err != nil {
			return types.ChunkResult{}, false, false
		}
		repaired = true
	}

	count, fixed := coerceCount(fields["count"])
	repaired = repaired || fixed

	items, fixed := coerceItems(fields["items"])
	repaired = repaired || fixed

	summary, fixed := coerceSummary(fields["summary"])
	repaired = repaired || fixed

	return types.ChunkResult{Count: count, Items: items, Summary: summary}, repaired, true
}

func decodeObject(text string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errNullReply
	}
	return fields, nil
}

// braceSpan returns the text between the first '{' and the last '}'
func braceSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func coerceCount(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, true
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, true
	}

	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return clampInt(n), true
		}
		return int(n), false
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clampInt(f), true
		}
		return 0, true
	default:
		return 0, true
	}
}

func clampInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func coerceItems(raw json.RawMessage) ([]any, bool) {
	if len(raw) == 0 {
		return []any{}, true
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return []any{}, true
	}
	return items, false
}

func coerceSummary(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		if string(raw) == "null" {
			return "", true
		}
		// Keep non-string summaries as their JSON text
		return string(raw), true
	}
	return s, false
}

// fallbackResult salvages what it can from an unparseable reply: the first
// decimal integer becomes the count and the text itself the summary
func fallbackResult(resp string, summaryLen int) types.ChunkResult {
	text := stripFences(resp)

	count := 0
	if m := firstNumber.FindString(text); m != "" {
		count = parseDigits(m)
	}

	return types.ChunkResult{
		Count:   count,
		Items:   []any{},
		Summary: truncateRunes(text, summaryLen),
	}
}

// parseDigits reads a run of decimal digits from any script, clamping at
// math.MaxInt32 like clampInt
func parseDigits(digits string) int {
	n := 0
	for _, r := range digits {
		n = n*10 + digitValue(r)
		if n > math.MaxInt32 {
			return math.MaxInt32
		}
	}
	return n
}

// digitValue relies on every Unicode Nd range running 0 through 9
// contiguously, so the offset from the start of the range gives the value
func digitValue(r rune) int {
	start := r
	for unicode.IsDigit(start - 1) {
		start--
	}
	return int(r-start) % 10
}
