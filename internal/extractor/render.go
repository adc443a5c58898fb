package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/chunkwise/pkg/types"
)

// RenderLimits caps how much of a chunk reaches the prompt. Zero means no cap.
type RenderLimits struct {
	LogLines     int
	TableRows    int
	JSONElements int
	JSONChars    int
}

// ChunkLimits returns the caps applied to a single chunk
func ChunkLimits() RenderLimits {
	return RenderLimits{
		LogLines:  100,
		TableRows: 50,
		JSONChars: 3000,
	}
}

// DirectLimits returns the caps applied when a small document is sent whole
func DirectLimits() RenderLimits {
	return RenderLimits{
		LogLines:     200,
		JSONElements: 50,
	}
}

// Render formats a chunk's records as prompt text
func Render(c *types.Chunk, lim RenderLimits) (string, error) {
	switch c.Format {
	case types.FormatLogLines:
		return renderLines(c.Records, lim.LogLines), nil
	case types.FormatTable:
		return renderTable(c.Columns, c.Records, lim.TableRows), nil
	case types.FormatJSONArray, types.FormatJSONObject, types.FormatJSONPrimitive:
		raw, err := assembleJSON(c.Format, c.Records, lim.JSONElements)
		if err != nil {
			return "", err
		}
		return indentJSON(raw, lim.JSONChars)
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, c.Format)
	}
}

// RenderDocument formats a whole document for a single direct question,
// prefixed with a short description of its shape
func RenderDocument(doc *types.Document, lim RenderLimits) (string, error) {
	var b strings.Builder

	switch doc.Format {
	case types.FormatLogLines:
		fmt.Fprintf(&b, "Log file (%d lines):\n\n", doc.TotalCount)
		b.WriteString(renderLines(doc.Records, lim.LogLines))
	case types.FormatTable:
		b.WriteString(renderTable(doc.Columns, doc.Records, lim.TableRows))
	case types.FormatJSONArray:
		fmt.Fprintf(&b, "Array of %d elements:\n", doc.TotalCount)
		records := capRecords(doc.Records, lim.JSONElements)
		for i, rec := range records {
			var compact bytes.Buffer
			if err := json.Compact(&compact, rec.Value); err != nil {
				return "", fmt.Errorf("%w: element %d: %v", types.ErrInvalidDocument, i, err)
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, compact.String())
		}
	case types.FormatJSONObject, types.FormatJSONPrimitive:
		raw, err := assembleJSON(doc.Format, doc.Records, 0)
		if err != nil {
			return "", err
		}
		text, err := indentJSON(raw, lim.JSONChars)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, doc.Format)
	}

	return b.String(), nil
}

func capRecords(records []types.Record, limit int) []types.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func renderLines(records []types.Record, limit int) string {
	records = capRecords(records, limit)
	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = rec.Line
	}
	return strings.Join(lines, "\n")
}

func renderTable(columns []string, records []types.Record, limit int) string {
	var b strings.Builder
	b.WriteString("Columns: ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString("\n\n")
	for _, rec := range capRecords(records, limit) {
		b.WriteString(strings.Join(rec.Cells, ", "))
		b.WriteByte('\n')
	}
	return b.String()
}

// assembleJSON rebuilds a JSON value from records, keeping object key order
func assembleJSON(format types.Format, records []types.Record, limit int) ([]byte, error) {
	records = capRecords(records, limit)

	var buf bytes.Buffer
	switch format {
	case types.FormatJSONArray:
		buf.WriteByte('[')
		for i, rec := range records {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(rec.Value)
		}
		buf.WriteByte(']')
	case types.FormatJSONObject:
		buf.WriteByte('{')
		for i, rec := range records {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(rec.Key)
			if err != nil {
				return nil, fmt.Errorf("%w: key %q: %v", types.ErrInvalidDocument, rec.Key, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(rec.Value)
		}
		buf.WriteByte('}')
	default:
		if len(records) != 1 {
			return nil, fmt.Errorf("%w: primitive value needs exactly one record", types.ErrInvalidDocument)
		}
		buf.Write(records[0].Value)
	}
	return buf.Bytes(), nil
}

func indentJSON(raw []byte, maxChars int) (string, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidDocument, err)
	}
	return truncateRunes(out.String(), maxChars), nil
}

// truncateRunes keeps at most n characters of s without splitting a rune.
// n <= 0 keeps everything.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
