package deps

import (
	"os/exec"
	"strings"
)

// ResolveFFmpegPath returns the ffmpeg binary the engine should execute. An
// explicit override wins; otherwise PATH is searched and the bare name is
// returned when nothing is found so error messages stay readable.
func ResolveFFmpegPath(override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	if resolved, err := exec.LookPath("ffmpeg"); err == nil {
		return resolved
	}
	return "ffmpeg"
}

// FFmpegRequirement describes the decoder the Whisper engine pipes audio
// through, honoring whisper.ffmpeg_binary when set.
func FFmpegRequirement(override string) Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     ResolveFFmpegPath(override),
		Description: "Decodes media to 16 kHz mono PCM for the engine",
	}
}
