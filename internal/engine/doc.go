// Package engine defines the speech-to-text boundary used by the transcription
// lifecycle manager, along with the result document written next to completed
// jobs.
//
// Two loaders are provided: SherpaLoader runs Whisper ONNX models through
// sherpa-onnx with ffmpeg decoding, and MockLoader returns a fixed transcript
// for development and tests.
package engine
