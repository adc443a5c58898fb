package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValid(t *testing.T) {
	tests := []struct {
		format Format
		want   bool
	}{
		{FormatTable, true},
		{FormatJSONArray, true},
		{FormatJSONObject, true},
		{FormatLogLines, true},
		{FormatJSONPrimitive, true},
		{Format("xml"), false},
		{Format(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.format.Valid())
		})
	}
}

func TestNewDocument_TotalCount(t *testing.T) {
	records := []Record{{Line: "a"}, {Line: "b"}, {Line: "c"}}
	doc := NewDocument("app.log", FormatLogLines, nil, records)

	assert.Equal(t, 3, doc.TotalCount)
	assert.NoError(t, doc.Validate())
}

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name:    "unknown format",
			doc:     &Document{Format: "xml"},
			wantErr: ErrUnsupportedFormat,
		},
		{
			name: "table row width mismatch",
			doc: NewDocument("t.csv", FormatTable, []string{"id", "name"}, []Record{
				{Cells: []string{"1", "a"}},
				{Cells: []string{"2"}},
			}),
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "table rows without header",
			doc:     NewDocument("t.csv", FormatTable, nil, []Record{{Cells: []string{"1"}}}),
			wantErr: ErrInvalidDocument,
		},
		{
			name: "duplicate object key",
			doc: NewDocument("o.json", FormatJSONObject, nil, []Record{
				{Key: "a", Value: json.RawMessage(`1`)},
				{Key: "a", Value: json.RawMessage(`2`)},
			}),
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "primitive with two values",
			doc:     NewDocument("p.json", FormatJSONPrimitive, nil, []Record{{Value: json.RawMessage(`1`)}, {Value: json.RawMessage(`2`)}}),
			wantErr: ErrInvalidDocument,
		},
		{
			name: "valid primitive",
			doc:  NewDocument("p.json", FormatJSONPrimitive, nil, []Record{{Value: json.RawMessage(`"x"`)}}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChunkValidate(t *testing.T) {
	valid := &Chunk{
		Index:       0,
		Format:      FormatJSONObject,
		Keys:        []string{"a"},
		Records:     []Record{{Key: "a", Value: json.RawMessage(`1`)}},
		RecordCount: 1,
	}
	require.NoError(t, valid.Validate())

	badCount := *valid
	badCount.RecordCount = 2
	assert.Error(t, badCount.Validate())

	badKeys := *valid
	badKeys.Keys = nil
	assert.Error(t, badKeys.Validate())

	badIndex := *valid
	badIndex.Index = -1
	assert.Error(t, badIndex.Validate())
}

func TestChunkContentHash(t *testing.T) {
	a := &Chunk{Format: FormatLogLines, Records: []Record{{Line: "x"}, {Line: "y"}}, RecordCount: 2}
	b := &Chunk{Format: FormatLogLines, Records: []Record{{Line: "x"}, {Line: "y"}}, RecordCount: 2}
	c := &Chunk{Format: FormatLogLines, Records: []Record{{Line: "xy"}}, RecordCount: 1}

	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestChunkContentHash_FieldBoundaries(t *testing.T) {
	tests := []struct {
		name string
		a, b Record
	}{
		{"key and line", Record{Key: "a", Line: "b"}, Record{Key: "ab"}},
		{"line and value", Record{Line: "1", Value: []byte("2")}, Record{Line: "12"}},
		{"cells", Record{Cells: []string{"a", "b"}}, Record{Cells: []string{"ab"}}},
		{"empty cell", Record{Cells: []string{""}}, Record{Cells: []string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Chunk{Format: FormatTable, Records: []Record{tt.a}, RecordCount: 1}
			b := &Chunk{Format: FormatTable, Records: []Record{tt.b}, RecordCount: 1}
			assert.NotEqual(t, a.ContentHash(), b.ContentHash())
		})
	}
}

func TestAggregationOutcomeDeterministic(t *testing.T) {
	assert.True(t, (&AggregationOutcome{Path: PathSimple}).Deterministic())
	assert.False(t, (&AggregationOutcome{Path: PathComplex}).Deterministic())
	assert.False(t, (&AggregationOutcome{Path: PathTwoLevel}).Deterministic())
}
