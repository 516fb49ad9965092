// Package model defines the data structures shared by the Citius scraper.
//
// This package contains the following main types:
//   - SearchCriteria: what the user asked the portal for
//   - Record: one insolvency notice extracted from a result page
//   - Creditor: one claimant listed in a Record's creditor sub-list
//   - PageState: pagination bookkeeping used for loop detection
//   - Diagnostics: non-fatal issues and counters collected during a run
//   - SearchResult: the complete outcome of one run, as exported and stored
//
// Models live in their own package so that the parser, crawler, report and
// database packages can share them without import cycles.
//
// The JSON field names of Record and Creditor are the Portuguese labels used
// by the portal. They are part of the export format and must not change.
package model
