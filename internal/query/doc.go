// Package query turns search criteria into the form payloads the portal
// accepts.
//
// Criteria are validated once, before any network call. Invalid criteria
// produce a *ValidationError, which callers must treat as fatal.
package query
