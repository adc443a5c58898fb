package loader

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dshills/chunkwise/pkg/types"
)

// DefaultMaxBytes is the default size cap for loaded files (10 MiB)
const DefaultMaxBytes int64 = 10 << 20

// sniffSampleSize is how much of a CSV file is inspected to pick a delimiter
const sniffSampleSize = 1024

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrEmptyFile    = errors.New("file is empty")
	ErrParse        = errors.New("parse failed")
)

// candidateDelimiters are tried in order; ties go to the earlier one
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// Loaded is a parsed document together with facts about its source file
type Loaded struct {
	Document    *types.Document
	Bytes       int64
	SkippedRows int // Blank CSV rows that were dropped
}

// Load reads and parses the file at path. A maxBytes of zero or less
// applies DefaultMaxBytes.
func Load(path string, maxBytes int64) (*Loaded, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %.1f MB exceeds %.1f MB", ErrFileTooLarge,
			float64(info.Size())/(1<<20), float64(maxBytes)/(1<<20))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return Parse(path, data)
}

// Parse picks a parser from the extension of name and parses data
func Parse(name string, data []byte) (*Loaded, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" {
		return finish(parsePDF(name, data))
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrParse, name)
	}
	size := int64(len(data))
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var (
		loaded *Loaded
		err    error
	)
	switch ext {
	case ".csv":
		loaded, err = parseCSV(name, data)
	case ".json":
		loaded, err = parseJSON(name, data)
	case ".log", ".txt":
		loaded = parseLog(name, data)
	default:
		return nil, fmt.Errorf("%w: extension %q", types.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	loaded.Bytes = size
	return finish(loaded, nil)
}

func finish(loaded *Loaded, err error) (*Loaded, error) {
	if err != nil {
		return nil, err
	}
	if err := loaded.Document.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

func parseCSV(name string, data []byte) (*Loaded, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: csv header: %w", ErrParse, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var (
		records []types.Record
		skipped int
	)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv: %w", ErrParse, err)
		}

		// Short rows are padded and long rows cut to the header width
		cells := make([]string, len(header))
		copy(cells, row)

		if blankRow(cells) {
			skipped++
			continue
		}
		records = append(records, types.Record{Cells: cells})
	}

	return &Loaded{
		Document:    types.NewDocument(name, types.FormatTable, header, records),
		SkippedRows: skipped,
	}, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the candidate that appears the same nonzero number
// of times on the most sample lines, preferring higher counts
func sniffDelimiter(data []byte) rune {
	sample := data[:min(len(data), sniffSampleSize)]
	lines := strings.Split(string(sample), "\n")
	if len(lines) > 1 && len(data) > sniffSampleSize {
		lines = lines[:len(lines)-1] // Last line may be cut mid-row
	}

	best, bestScore := ',', -1
	for _, d := range candidateDelimiters {
		first := strings.Count(lines[0], string(d))
		if first == 0 {
			continue
		}
		consistent := 0
		for _, l := range lines {
			if strings.Count(l, string(d)) == first {
				consistent++
			}
		}
		score := consistent*1000 + first
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func parseJSON(name string, data []byte) (*Loaded, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", ErrParse, err)
	}

	var doc *types.Document
	switch tok {
	case json.Delim('['):
		var records []types.Record
		for dec.More() {
			var v json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("%w: invalid JSON: %w", ErrParse, err)
			}
			records = append(records, types.Record{Value: v})
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %w", ErrParse, err)
		}
		doc = types.NewDocument(name, types.FormatJSONArray, nil, records)

	case json.Delim('{'):
		records, err := decodeMembers(dec)
		if err != nil {
			return nil, err
		}
		doc = types.NewDocument(name, types.FormatJSONObject, nil, records)

	default:
		raw := json.RawMessage(bytes.TrimSpace(data))
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: invalid JSON", ErrParse)
		}
		return &Loaded{
			Document: types.NewDocument(name, types.FormatJSONPrimitive, nil, []types.Record{{Value: raw}}),
		}, nil
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: invalid JSON: trailing data after top-level value", ErrParse)
	}

	return &Loaded{Document: doc}, nil
}

// decodeMembers reads object members in document order. A repeated key
// keeps its first position and its last value.
func decodeMembers(dec *json.Decoder) ([]types.Record, error) {
	var records []types.Record
	index := make(map[string]int)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %w", ErrParse, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: invalid JSON: object key %v", ErrParse, tok)
		}

		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %w", ErrParse, err)
		}

		if i, dup := index[key]; dup {
			records[i].Value = v
			continue
		}
		index[key] = len(records)
		records = append(records, types.Record{Key: key, Value: v})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", ErrParse, err)
	}
	return records, nil
}

func parseLog(name string, data []byte) *Loaded {
	return &Loaded{Document: types.NewDocument(name, types.FormatLogLines, nil, lineRecords(string(data)))}
}

// lineRecords keeps each non-empty line, trimmed
func lineRecords(text string) []types.Record {
	var records []types.Record
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		records = append(records, types.Record{Line: line})
	}
	return records
}
