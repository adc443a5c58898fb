package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dshills/chunkwise/pkg/types"
)

// parsePDF extracts the text of every readable page and treats each
// non-empty line as a log record. Pages that fail to decode are skipped.
func parsePDF(name string, data []byte) (loaded *Loaded, err error) {
	// The pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			loaded, err = nil, fmt.Errorf("%w: pdf: %v", ErrParse, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", ErrParse, err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	doc := types.NewDocument(name, types.FormatLogLines, nil, lineRecords(text.String()))
	return &Loaded{Document: doc, Bytes: int64(len(data))}, nil
}
