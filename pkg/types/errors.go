package types

import "errors"

// Domain errors shared across the analysis pipeline
var (
	// ErrUnsupportedFormat is returned when a document format is not recognized.
	// It is fatal: no chunking work starts.
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrEmptyQuestion     = errors.New("question cannot be empty")
)
