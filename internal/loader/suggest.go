package loader

import "github.com/dshills/chunkwise/pkg/types"

// SuggestedQuestions returns example questions suited to a document format
func SuggestedQuestions(format types.Format) []string {
	switch format {
	case types.FormatTable:
		return []string{
			"How many records are in the file?",
			"What are the unique values in each column?",
			"Show statistics for the numeric fields",
			"Are there any duplicates?",
		}
	case types.FormatJSONArray, types.FormatJSONObject, types.FormatJSONPrimitive:
		return []string{
			"What is the structure of the data?",
			"How many top-level objects are there?",
			"Which fields are present in every record?",
			"Summarize the data",
		}
	case types.FormatLogLines:
		return []string{
			"Which error occurs most often?",
			"How many ERROR/WARN/INFO entries are there?",
			"At what time did the most errors happen?",
			"What are the main events in the log?",
		}
	default:
		return nil
	}
}
