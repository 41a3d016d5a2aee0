package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"
)

// MockLoader returns models that produce a fixed transcript without touching
// the audio. LoadDelay and TranscribeDelay simulate slow engines.
type MockLoader struct {
	LoadDelay       time.Duration
	TranscribeDelay time.Duration

	loads atomic.Int64
}

// Loads reports how many models have been loaded.
func (l *MockLoader) Loads() int64 {
	return l.loads.Load()
}

func (l *MockLoader) Load(ctx context.Context, modelID string) (Model, error) {
	if err := sleepContext(ctx, l.LoadDelay); err != nil {
		return nil, err
	}
	l.loads.Add(1)
	return &mockModel{delay: l.TranscribeDelay}, nil
}

type mockModel struct {
	delay time.Duration
}

func (m *mockModel) Transcribe(ctx context.Context, path string) (*Transcript, error) {
	if err := sleepContext(ctx, m.delay); err != nil {
		return nil, err
	}
	text := fmt.Sprintf("[mock] Transcription of %s", filepath.Base(path))
	return &Transcript{
		Text:     text,
		Language: "en",
		Segments: []Segment{{ID: 0, Start: 0, End: 1, Text: text}},
	}, nil
}

func (m *mockModel) Close() error { return nil }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
