// Package database provides SQLite-based storage for past search runs.
//
// The SearchDB stores:
//   - One row per run with its criteria, diagnostics and counters
//   - The records of each run, in portal order
//
// Runs are grouped by the criteria fingerprint so that two runs of the same
// query can be compared. The store is a single file opened through
// modernc.org/sqlite, so the binary stays CGO-free.
package database
