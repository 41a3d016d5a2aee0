// Package history keeps an append-only SQLite ledger of finished jobs.
//
// The ledger is an audit trail for the CLI and the HTTP surface. It is never
// consulted when scheduling: a file's state is the directory it lives in.
package history
