package engine

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewResultFillsMetadata(t *testing.T) {
	tr := &Transcript{Text: "hello", Segments: []Segment{{ID: 0, Start: 0, End: 1, Text: "hello"}}}
	res := NewResult("abcdef0123456789", "medium", tr, 1500*time.Millisecond, "")

	if res.ID != "abcdef0123456789" || res.Text != "hello" {
		t.Fatalf("unexpected result identity: %+v", res)
	}
	if res.Meta.Device != "cpu" || res.Meta.ComputeType != "float32" || res.Meta.Model != "medium" {
		t.Fatalf("unexpected meta: %+v", res.Meta)
	}
	if res.Meta.Duration != 1.5 {
		t.Fatalf("duration = %v, want 1.5", res.Meta.Duration)
	}
	if res.Meta.Language != DefaultLanguage {
		t.Fatalf("language = %q, want default %q", res.Meta.Language, DefaultLanguage)
	}
	if res.Segments[0].Tokens == nil {
		t.Fatal("expected tokens to be an empty list, not nil")
	}
}

func TestNewResultLanguagePrecedence(t *testing.T) {
	if got := NewResult("id", "m", &Transcript{Language: "en"}, 0, "de").Meta.Language; got != "en" {
		t.Fatalf("transcript language should win, got %q", got)
	}
	if got := NewResult("id", "m", &Transcript{}, 0, "de").Meta.Language; got != "de" {
		t.Fatalf("fallback language should apply, got %q", got)
	}
	if got := NewResult("id", "m", nil, 0, "").Segments; got == nil || len(got) != 0 {
		t.Fatalf("expected empty segments for nil transcript, got %v", got)
	}
}

func TestMockLoaderTranscript(t *testing.T) {
	loader := &MockLoader{}
	model, err := loader.Load(context.Background(), "mock")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer model.Close()

	tr, err := model.Transcribe(context.Background(), "/data/processing/talk.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "[mock] Transcription of talk.mp3" {
		t.Fatalf("unexpected text %q", tr.Text)
	}
	if len(tr.Segments) != 1 || tr.Segments[0].End != 1 {
		t.Fatalf("unexpected segments %+v", tr.Segments)
	}
	if loader.Loads() != 1 {
		t.Fatalf("Loads = %d, want 1", loader.Loads())
	}
}

func TestMockLoaderHonoursContext(t *testing.T) {
	loader := &MockLoader{LoadDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := loader.Load(ctx, "mock"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPCMToFloat32(t *testing.T) {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:], uint16(0))
	binary.LittleEndian.PutUint16(data[2:], uint16(16384))
	minusHalf := int16(-16384)
	binary.LittleEndian.PutUint16(data[4:], uint16(minusHalf))

	got := pcmToFloat32(data)
	want := []float32{0, 0.5, -0.5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseTokenTable(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(" hello"))
	input := strings.Join([]string{
		"<|endoftext|> 50257",
		encoded + " 31373",
		"garbage",
		"",
	}, "\n")
	vocab, err := parseTokenTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseTokenTable: %v", err)
	}
	if vocab["<|endoftext|>"] != 50257 {
		t.Fatalf("missing plain symbol: %v", vocab)
	}
	if vocab[" hello"] != 31373 {
		t.Fatalf("missing decoded symbol: %v", vocab)
	}
	if ids := tokenIDs(vocab, []string{" hello", "unknown"}); len(ids) != 1 || ids[0] != 31373 {
		t.Fatalf("tokenIDs = %v", ids)
	}
}

func TestLocateModelFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := LocateModelFiles(dir); err == nil || !strings.Contains(err.Error(), "encoder, decoder, tokens") {
		t.Fatalf("expected all files reported missing, got %v", err)
	}

	for _, name := range []string{"medium-encoder.int8.onnx", "decoder.onnx", "medium-decoder.int8.onnx", "medium-tokens.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := LocateModelFiles(dir)
	if err != nil {
		t.Fatalf("LocateModelFiles: %v", err)
	}
	if filepath.Base(files.Encoder) != "medium-encoder.int8.onnx" {
		t.Fatalf("unexpected encoder %q", files.Encoder)
	}
	if filepath.Base(files.Decoder) != "decoder.onnx" {
		t.Fatalf("exact names should win over prefixed ones, got %q", files.Decoder)
	}
	if filepath.Base(files.Tokens) != "medium-tokens.txt" {
		t.Fatalf("unexpected tokens %q", files.Tokens)
	}
}
