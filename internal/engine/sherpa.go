package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"cymatics/internal/logging"
)

const (
	sampleRate   = 16000
	featureDim   = 80
	chunkSeconds = 30
)

var (
	encoderCandidates = []string{
		"encoder.int8.onnx",
		"encoder.onnx",
	}
	decoderCandidates = []string{
		"decoder.int8.onnx",
		"decoder.onnx",
	}
	tokensCandidates = []string{
		"tokens.txt",
	}
)

// ModelFiles lists the files a Whisper ONNX model directory must provide.
type ModelFiles struct {
	Encoder string
	Decoder string
	Tokens  string
}

// LocateModelFiles finds encoder, decoder and token files in dir. Files named
// with a model prefix (for example "medium-encoder.int8.onnx") are accepted.
func LocateModelFiles(dir string) (ModelFiles, error) {
	var files ModelFiles
	files.Encoder = findModelFile(dir, encoderCandidates)
	files.Decoder = findModelFile(dir, decoderCandidates)
	files.Tokens = findModelFile(dir, tokensCandidates)

	var missing []string
	if files.Encoder == "" {
		missing = append(missing, "encoder")
	}
	if files.Decoder == "" {
		missing = append(missing, "decoder")
	}
	if files.Tokens == "" {
		missing = append(missing, "tokens")
	}
	if len(missing) > 0 {
		return files, fmt.Errorf("model directory %s is missing %s", dir, strings.Join(missing, ", "))
	}
	return files, nil
}

func findModelFile(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	for _, candidate := range candidates {
		matches, _ := filepath.Glob(filepath.Join(dir, "*-"+candidate))
		if len(matches) > 0 {
			return matches[0]
		}
	}
	return ""
}

// SherpaLoader loads Whisper models from ModelsDir/<modelID> using sherpa-onnx.
type SherpaLoader struct {
	ModelsDir  string
	Language   string
	NumThreads int
	FFmpeg     string
	Logger     *slog.Logger
}

func (l *SherpaLoader) Load(ctx context.Context, modelID string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(l.ModelsDir, modelID)
	files, err := LocateModelFiles(dir)
	if err != nil {
		return nil, err
	}
	vocab, err := readTokenTable(files.Tokens)
	if err != nil {
		return nil, err
	}

	threads := l.NumThreads
	if threads <= 0 {
		threads = 1
	}
	cfg := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: sampleRate,
			FeatureDim: featureDim,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Whisper: sherpa.OfflineWhisperModelConfig{
				Encoder:  files.Encoder,
				Decoder:  files.Decoder,
				Language: l.Language,
				Task:     "transcribe",
			},
			Tokens:     files.Tokens,
			NumThreads: threads,
			Provider:   Device,
		},
		DecodingMethod: "greedy_search",
	}

	recognizer := sherpa.NewOfflineRecognizer(&cfg)
	if recognizer == nil {
		return nil, fmt.Errorf("create whisper recognizer from %s", dir)
	}

	logger := logging.NewComponentLogger(l.Logger, "engine")
	logger.Debug("whisper recognizer created",
		logging.String("model_dir", dir),
		logging.String("encoder", filepath.Base(files.Encoder)),
		logging.Int("threads", threads),
	)

	ffmpeg := strings.TrimSpace(l.FFmpeg)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &sherpaModel{
		recognizer: recognizer,
		vocab:      vocab,
		language:   l.Language,
		ffmpeg:     ffmpeg,
	}, nil
}

type sherpaModel struct {
	recognizer *sherpa.OfflineRecognizer
	vocab      map[string]int
	language   string
	ffmpeg     string
}

func (m *sherpaModel) Transcribe(ctx context.Context, path string) (*Transcript, error) {
	if m.recognizer == nil {
		return nil, errors.New("whisper recognizer is closed")
	}

	cmd := exec.CommandContext(ctx, m.ffmpeg,
		"-nostdin",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	reader := bufio.NewReader(stdout)
	buffer := make([]byte, sampleRate*chunkSeconds*2)
	var (
		segments []Segment
		text     strings.Builder
		offset   float64
		readErr  error
	)
	for {
		n, err := io.ReadFull(reader, buffer)
		if n > 0 {
			samples := pcmToFloat32(buffer[:n])
			span := float64(len(samples)) / sampleRate
			if seg, ok := m.decodeChunk(samples, len(segments), offset, span); ok {
				segments = append(segments, seg)
				text.WriteString(seg.Text)
			}
			offset += span
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
	}
	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if waitErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = waitErr.Error()
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %s", detail)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read decoded audio: %w", readErr)
	}

	for i := range segments {
		segments[i].Text = strings.TrimSpace(segments[i].Text)
	}
	return &Transcript{
		Text:     strings.TrimSpace(text.String()),
		Language: m.language,
		Segments: segments,
	}, nil
}

func (m *sherpaModel) decodeChunk(samples []float32, id int, start, span float64) (Segment, bool) {
	if len(samples) == 0 {
		return Segment{}, false
	}
	stream := sherpa.NewOfflineStream(m.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(sampleRate, samples)
	m.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return Segment{}, false
	}
	return Segment{
		ID:     id,
		Start:  start,
		End:    start + span,
		Text:   result.Text,
		Tokens: tokenIDs(m.vocab, result.Tokens),
	}, true
}

func (m *sherpaModel) Close() error {
	if m.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(m.recognizer)
		m.recognizer = nil
	}
	return nil
}

// pcmToFloat32 converts signed 16-bit little-endian samples to [-1, 1).
func pcmToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// readTokenTable parses a sherpa tokens file ("<symbol> <id>" per line).
// Whisper symbols are stored base64-encoded; both forms are indexed.
func readTokenTable(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tokens: %w", err)
	}
	defer f.Close()
	return parseTokenTable(f)
}

func parseTokenTable(r io.Reader) (map[string]int, error) {
	vocab := make(map[string]int)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		idx := strings.LastIndexByte(line, ' ')
		if idx <= 0 {
			continue
		}
		id, err := strconv.Atoi(line[idx+1:])
		if err != nil {
			continue
		}
		symbol := line[:idx]
		if _, exists := vocab[symbol]; !exists {
			vocab[symbol] = id
		}
		if decoded, err := base64.StdEncoding.DecodeString(symbol); err == nil {
			if _, exists := vocab[string(decoded)]; !exists {
				vocab[string(decoded)] = id
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	return vocab, nil
}

func tokenIDs(vocab map[string]int, tokens []string) []int {
	ids := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		if id, ok := vocab[tok]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
