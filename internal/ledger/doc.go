// Package ledger persists the outcome of compression jobs in a SQLite
// database under the state directory.
//
// The ledger is append-only: each compression job produces one row, and the
// CLI reads it back for the history command. Recording sessions are not
// persisted; a running monitor keeps them in memory only. Writes retry
// briefly on SQLITE_BUSY so concurrent compress invocations can share the file.
package ledger
