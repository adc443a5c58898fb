package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/chunkwise/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		columns  []string
		rows     int
		skipped  int
		firstRow []string
	}{
		{
			name:     "comma",
			content:  "name,age\nalice,30\nbob,41\n",
			columns:  []string{"name", "age"},
			rows:     2,
			firstRow: []string{"alice", "30"},
		},
		{
			name:     "semicolon",
			content:  "name;city;age\nalice;Paris, France;30\nbob;Berlin;41\n",
			columns:  []string{"name", "city", "age"},
			rows:     2,
			firstRow: []string{"alice", "Paris, France", "30"},
		},
		{
			name:     "tab",
			content:  "a\tb\n1\t2\n",
			columns:  []string{"a", "b"},
			rows:     1,
			firstRow: []string{"1", "2"},
		},
		{
			name:     "pipe",
			content:  "a|b|c\n1|2|3\n4|5|6\n",
			columns:  []string{"a", "b", "c"},
			rows:     2,
			firstRow: []string{"1", "2", "3"},
		},
		{
			name:     "blank rows skipped",
			content:  "a,b\n1,2\n , \n,\n3,4\n",
			columns:  []string{"a", "b"},
			rows:     2,
			skipped:  2,
			firstRow: []string{"1", "2"},
		},
		{
			name:     "short row padded",
			content:  "a,b,c\n1,2\n",
			columns:  []string{"a", "b", "c"},
			rows:     1,
			firstRow: []string{"1", "2", ""},
		},
		{
			name:     "byte order mark",
			content:  "\xef\xbb\xbfid,v\n1,x\n",
			columns:  []string{"id", "v"},
			rows:     1,
			firstRow: []string{"1", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, err := Parse("data.csv", []byte(tt.content))
			require.NoError(t, err)

			doc := loaded.Document
			assert.Equal(t, types.FormatTable, doc.Format)
			assert.Equal(t, tt.columns, doc.Columns)
			assert.Equal(t, tt.rows, doc.TotalCount)
			assert.Equal(t, tt.skipped, loaded.SkippedRows)
			require.NotEmpty(t, doc.Records)
			assert.Equal(t, tt.firstRow, doc.Records[0].Cells)
		})
	}
}

func TestParseJSON(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		loaded, err := Parse("x.json", []byte(`[{"id": 1}, 2, "three"]`))
		require.NoError(t, err)

		doc := loaded.Document
		assert.Equal(t, types.FormatJSONArray, doc.Format)
		assert.Equal(t, 3, doc.TotalCount)
		assert.JSONEq(t, `{"id": 1}`, string(doc.Records[0].Value))
		assert.JSONEq(t, `"three"`, string(doc.Records[2].Value))
	})

	t.Run("object keeps key order", func(t *testing.T) {
		loaded, err := Parse("x.json", []byte(`{"zeta": 1, "alpha": {"n": 2}, "mid": [3]}`))
		require.NoError(t, err)

		doc := loaded.Document
		assert.Equal(t, types.FormatJSONObject, doc.Format)
		require.Len(t, doc.Records, 3)
		assert.Equal(t, "zeta", doc.Records[0].Key)
		assert.Equal(t, "alpha", doc.Records[1].Key)
		assert.Equal(t, "mid", doc.Records[2].Key)
		assert.JSONEq(t, `{"n": 2}`, string(doc.Records[1].Value))
	})

	t.Run("duplicate key keeps last value", func(t *testing.T) {
		loaded, err := Parse("x.json", []byte(`{"a": 1, "b": 2, "a": 3}`))
		require.NoError(t, err)

		doc := loaded.Document
		require.Len(t, doc.Records, 2)
		assert.Equal(t, "a", doc.Records[0].Key)
		assert.JSONEq(t, `3`, string(doc.Records[0].Value))
	})

	t.Run("primitive", func(t *testing.T) {
		loaded, err := Parse("x.json", []byte("  42\n"))
		require.NoError(t, err)

		doc := loaded.Document
		assert.Equal(t, types.FormatJSONPrimitive, doc.Format)
		require.Len(t, doc.Records, 1)
		assert.Equal(t, "42", string(doc.Records[0].Value))
	})

	t.Run("empty array", func(t *testing.T) {
		loaded, err := Parse("x.json", []byte(`[]`))
		require.NoError(t, err)
		assert.Zero(t, loaded.Document.TotalCount)
	})

	invalid := []string{`{"a": }`, `[1, 2`, `[1] [2]`, `not json`}
	for _, content := range invalid {
		_, err := Parse("x.json", []byte(content))
		assert.ErrorIs(t, err, ErrParse, content)
	}
}

func TestParseLog(t *testing.T) {
	content := "  first line  \n\n\r\nsecond line\r\n   \nthird"
	for _, name := range []string{"app.log", "notes.TXT"} {
		loaded, err := Parse(name, []byte(content))
		require.NoError(t, err)

		doc := loaded.Document
		assert.Equal(t, types.FormatLogLines, doc.Format)
		require.Equal(t, 3, doc.TotalCount)
		assert.Equal(t, "first line", doc.Records[0].Line)
		assert.Equal(t, "second line", doc.Records[1].Line)
		assert.Equal(t, "third", doc.Records[2].Line)
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("x.xml", []byte("<a/>"))
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)

	_, err = Parse("x.log", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse("x.log", []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "events.log", "one\ntwo\nthree\n")

	loaded, err := Load(path, 0)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Document.Source)
	assert.Equal(t, 3, loaded.Document.TotalCount)
	assert.Equal(t, int64(14), loaded.Bytes)
}

func TestLoad_SizeCap(t *testing.T) {
	path := writeFile(t, "big.log", strings.Repeat("x\n", 100))

	_, err := Load(path, 50)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = Load(path, 200)
	assert.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(t.TempDir(), 0)
	assert.Error(t, err)

	_, err = Load(writeFile(t, "empty.csv", ""), 0)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1;2,5;3\n")))
	assert.Equal(t, ',', sniffDelimiter([]byte("single column\nvalue\n")))
	assert.Equal(t, '\t', sniffDelimiter([]byte("a\tb\n1\t2\n3\t4\n")))
}

func TestSuggestedQuestions(t *testing.T) {
	for _, f := range []types.Format{types.FormatTable, types.FormatJSONArray, types.FormatJSONObject, types.FormatLogLines} {
		assert.Len(t, SuggestedQuestions(f), 4, string(f))
	}
	assert.Nil(t, SuggestedQuestions(types.Format("xml")))
}

func TestParse_PDFRejectsGarbage(t *testing.T) {
	_, err := Parse("report.pdf", []byte{0xff, 0xfe, 'n', 'o', 't', ' ', 'a', ' ', 'p', 'd', 'f'})
	require.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "pdf")
}

func TestLineRecords(t *testing.T) {
	records := lineRecords("  alpha \n\n\tbeta\r\n   \n")
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Line)
	assert.Equal(t, "beta", records[1].Line)
}
