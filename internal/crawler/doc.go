// Package crawler walks the Citius result pages for one search.
//
// # Architecture
//
// The package is built around the Paginator, which drives the portal's
// WebForms flow as a small state machine:
//
//	INIT -> SEARCH -> RESULTS_PAGE(n) -> EXPANDING -> RESULTS_PAGE(n+1) -> DONE
//
// Every request goes through a PageFetcher and every page's continuation
// state is threaded explicitly from one request to the next. Creditor
// lists hidden behind a postback are loaded by an Expander, either one at
// a time (Sequential) or with a bounded worker pool (Pool).
//
// # Termination
//
// A run stops when the last page has no next-page control, when a page
// repeats any reference of the previous page, when the page ceiling is
// reached, or when the context is cancelled. A session-expired response
// restarts the run once from the search form; a second one is fatal.
//
// # Usage
//
//	client := fetch.NewClient(fetch.DefaultURL)
//	p, _ := parser.New(fetch.DefaultURL)
//	paginator := crawler.NewPaginator(client, p)
//	records, diag, err := paginator.Run(ctx, criteria, crawler.Limits{MaxPages: 20})
package crawler
