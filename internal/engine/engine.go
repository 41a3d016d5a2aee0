package engine

import (
	"context"
	"time"
)

const (
	// Device is reported in result metadata; inference runs on the CPU.
	Device = "cpu"
	// ComputeType is reported in result metadata.
	ComputeType = "float32"
	// DefaultLanguage is recorded when neither the model nor the config names one.
	DefaultLanguage = "ja"
	// IDLength is the number of SHA-256 hex characters used as a result ID.
	IDLength = 16
)

// Loader produces a ready Model. Loading is expected to be slow and is never
// called twice concurrently by the lifecycle manager.
type Loader interface {
	Load(ctx context.Context, modelID string) (Model, error)
}

// Model is a loaded engine instance.
type Model interface {
	Transcribe(ctx context.Context, path string) (*Transcript, error)
	Close() error
}

// Transcript is the raw engine output before it is stamped with identity and
// metadata.
type Transcript struct {
	Text     string
	Language string
	Segments []Segment
}

// Segment is one timed span of recognized text.
type Segment struct {
	ID               int     `json:"id"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Tokens           []int   `json:"tokens"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
}

// Meta describes how a result was produced. Duration is the wall-clock
// inference time in seconds.
type Meta struct {
	Model       string  `json:"model"`
	Device      string  `json:"device"`
	ComputeType string  `json:"compute_type"`
	Duration    float64 `json:"duration"`
	Language    string  `json:"language"`
}

// Result is the document persisted as <stem>.json.
type Result struct {
	ID       string    `json:"id"`
	Meta     Meta      `json:"meta"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// NewResult stamps a transcript with its file-derived ID and metadata.
// fallbackLanguage is used when the transcript does not carry one.
func NewResult(id, model string, tr *Transcript, elapsed time.Duration, fallbackLanguage string) *Result {
	if tr == nil {
		tr = &Transcript{}
	}
	lang := tr.Language
	if lang == "" {
		lang = fallbackLanguage
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	segments := tr.Segments
	if segments == nil {
		segments = []Segment{}
	}
	for i := range segments {
		if segments[i].Tokens == nil {
			segments[i].Tokens = []int{}
		}
	}
	return &Result{
		ID: id,
		Meta: Meta{
			Model:       model,
			Device:      Device,
			ComputeType: ComputeType,
			Duration:    elapsed.Seconds(),
			Language:    lang,
		},
		Text:     tr.Text,
		Segments: segments,
	}
}
