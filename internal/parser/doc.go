// Package parser extracts insolvency records from Citius result pages.
//
// The package is split in two layers:
//
//   - Extractor (markup.go) is the only code that knows the portal's HTML:
//     element ids, CSS classes and postback links. It turns a page body into
//     a Document of plain rows and label/value pairs. The default
//     implementation is built on goquery.
//   - Parser (parser.go) gives those rows meaning: it maps labels to Record
//     fields, reads inline creditors, detects pagination and decides which
//     rows are too incomplete to keep.
//
// When the portal changes its markup only the Extractor needs to change.
package parser
