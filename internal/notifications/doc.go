// Package notifications publishes job outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// Observer adapts a Service to the job state machine's observer hook so a
// finished transcription can announce itself without the scheduler knowing
// about HTTP.
package notifications
