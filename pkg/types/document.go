package types

import (
	"encoding/json"
	"fmt"
)

// Format identifies how a document's records are shaped
type Format string

const (
	FormatTable         Format = "table"
	FormatJSONArray     Format = "json-array"
	FormatJSONObject    Format = "json-object"
	FormatLogLines      Format = "log-lines"
	FormatJSONPrimitive Format = "json-primitive"
)

// Valid reports whether f is one of the recognized formats
func (f Format) Valid() bool {
	switch f {
	case FormatTable, FormatJSONArray, FormatJSONObject, FormatLogLines, FormatJSONPrimitive:
		return true
	default:
		return false
	}
}

// IsJSON reports whether records of this format carry JSON values
func (f Format) IsJSON() bool {
	return f == FormatJSONArray || f == FormatJSONObject || f == FormatJSONPrimitive
}

// Record is one unit of a document: a table row, a JSON element or member, or a log line.
// Only the fields relevant to the document format are set.
type Record struct {
	// Table rows, aligned to Document.Columns
	Cells []string

	// JSON array element, object member value, or primitive root value
	Value json.RawMessage
	// JSON object member key
	Key string

	// Log line
	Line string
}

// Document is a parsed file ready for analysis. It is read-only once built;
// chunks borrow its record storage.
type Document struct {
	Source     string // Display name, usually the file path
	Format     Format
	Columns    []string // Table header
	Records    []Record
	TotalCount int // Record/line count
}

// NewDocument builds a document and derives TotalCount from the records
func NewDocument(source string, format Format, columns []string, records []Record) *Document {
	return &Document{
		Source:     source,
		Format:     format,
		Columns:    columns,
		Records:    records,
		TotalCount: len(records),
	}
}

// Validate checks that the document is internally consistent
func (d *Document) Validate() error {
	if !d.Format.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, d.Format)
	}

	if d.TotalCount < 0 {
		return fmt.Errorf("%w: negative total count", ErrInvalidDocument)
	}

	switch d.Format {
	case FormatTable:
		if len(d.Columns) == 0 && len(d.Records) > 0 {
			return fmt.Errorf("%w: table without columns", ErrInvalidDocument)
		}
		for i, rec := range d.Records {
			if len(rec.Cells) != len(d.Columns) {
				return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidDocument, i, len(rec.Cells), len(d.Columns))
			}
		}
	case FormatJSONObject:
		seen := make(map[string]struct{}, len(d.Records))
		for i, rec := range d.Records {
			if _, dup := seen[rec.Key]; dup {
				return fmt.Errorf("%w: duplicate key %q at %d", ErrInvalidDocument, rec.Key, i)
			}
			seen[rec.Key] = struct{}{}
		}
	case FormatJSONPrimitive:
		if len(d.Records) != 1 {
			return fmt.Errorf("%w: primitive document must hold exactly one value", ErrInvalidDocument)
		}
	}

	return nil
}
