// Package language normalizes the whisper.language setting.
//
// Operators may write an ISO 639-1 code, an ISO 639-2 code or an English
// word form; the engine only accepts the two-letter code. An empty value
// means the engine detects the language per file.
package language
