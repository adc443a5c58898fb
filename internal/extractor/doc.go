// Package extractor turns one chunk into a structured partial answer by
// prompting a language model for a {count, items, summary} JSON object.
//
// Small models often wrap JSON in prose or code fences, omit fields, or
// ignore the format altogether. Extract handles these in order:
//
//  1. strip Markdown fences and parse the reply as a JSON object
//  2. failing that, parse the outermost {...} span of the reply
//  3. backfill missing fields and coerce a string or fractional count
//  4. retry with a stricter closing instruction while attempts remain
//  5. fall back to the first integer in the reply and its first 200 characters
//
// Extract never returns an error. Callers inspect Extraction.Outcome and
// Extraction.Err to tell a clean answer from a salvaged one.
package extractor
