// Package report renders search results.
//
// This package contains writers for the supported output formats:
//   - CSVWriter: one row per record, creditors and links as JSON cells
//   - JSONWriter: the records as a JSON array, or the full result with
//     FullJSONWriter
//   - MarkdownWriter: a shareable summary with a records table
//   - SimpleWriter: a terminal summary rendered with go-pretty tables
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
