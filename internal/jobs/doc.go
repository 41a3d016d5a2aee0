// Package jobs implements the filesystem job state machine.
//
// A job is a media file and its state is the directory it lives in:
// incoming, processing, completed or failed. Rename is the only transition
// primitive, so a restart can always recover by rolling processing back into
// incoming. The Machine discovers candidates, debounces them through a
// stability detector, runs them through the transcription manager one at a
// time and writes the result artifacts beside the finished media.
package jobs
