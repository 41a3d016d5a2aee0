// Package daemon coordinates the long-running cymatics process.
//
// It wires configuration, the transcription lifecycle manager, the job state
// machine, the cycle driver, the history ledger and the HTTP server into a
// single lifecycle, with flock-based locking to prevent a second instance
// from driving the same job tree.
//
// Keep orchestration logic here: scheduling rules live in jobs and cycle
// while the daemon focuses on startup, shutdown and high level coordination.
package daemon
