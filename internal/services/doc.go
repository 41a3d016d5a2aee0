// Package services defines shared utilities consumed by the job scheduler,
// the engine adapters and the API surface.
//
// Key responsibilities:
//   - Context helpers that stamp the job filename, cycle pass ID and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (invalid input, engine, transient) without string matching.
//
// Use these helpers when wiring new components so error classification and
// log shape stay uniform across the daemon.
package services
