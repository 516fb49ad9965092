// Package session models the continuation state of the portal's ASP.NET
// WebForms flow.
//
// Every page served by the portal carries hidden fields (__VIEWSTATE,
// __EVENTVALIDATION, __VIEWSTATEGENERATOR, ...) that must be echoed back on
// the next form submission, together with the ASP.NET_SessionId cookie.
// State captures one snapshot of those values. A State is never modified
// after it is built: each response produces a new State, which the caller
// threads into the next request.
package session
