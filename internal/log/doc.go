// Package log builds the scraper's slog loggers. Every handler is wrapped in
// a SecureHandler that masks portal session material before it is written:
//   - the ASP.NET session cookie and any Cookie/Set-Cookie header
//   - WebForms continuation tokens (__VIEWSTATE, __EVENTVALIDATION)
//   - long base64 blobs, which is what serialized view state looks like
//
// Counts and flags are never masked, so the token lengths logged by
// session.State stay visible.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("form loaded", "viewstate", vs) // viewstate=***REDACTED***
package log
