// Package loader turns files on disk into documents for analysis.
//
// The parser is chosen by extension: .csv becomes a table (delimiter
// detected among comma, semicolon, tab and pipe), .json becomes an array,
// object or primitive document, and .log or .txt become trimmed non-empty
// lines. Text extracted from .pdf pages is treated like a log. Files larger
// than the size cap or empty files are rejected.
package loader
