// Package fetch performs the HTTP exchanges with the Citius portal.
//
// A Client sends one form submission at a time and returns the response
// body together with the session.State extracted from it. It does not keep
// any session of its own: the ASP.NET_SessionId cookie and the hidden
// continuation tokens travel inside the State passed to every call.
//
// Transient failures (connection errors, timeouts, 5xx responses) are
// retried with exponential backoff. A minimum delay separates any two
// consecutive requests, shared by all goroutines using the same Client.
// Expired sessions are reported as *SessionError so that the caller can
// start over instead of retrying.
package fetch
