// Package transcription owns the in-memory speech-to-text engine and its
// lifecycle.
//
// A Manager loads the engine lazily on the first request, serializes every
// request through a single slot, and releases the engine after a configurable
// idle period so the process returns memory while the queue is empty.
package transcription
