package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voicetransor/internal/domain"
)

// fakeRunner simulates command execution order and outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

func probeJSON(duration string) string {
	return fmt.Sprintf(`{"format":{"format_name":"wav","duration":%q,"bit_rate":"256000","size":"1920000"},`+
		`"streams":[{"codec_type":"audio","codec_name":"pcm_s16le","sample_rate":"16000","channels":1}]}`, duration)
}

// toolRunner answers ffprobe, writes the ffmpeg output file and produces one
// whisper segment per chunk.
func toolRunner(t *testing.T, duration string, calls *[]string) *fakeRunner {
	return &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			*calls = append(*calls, name)
			switch name {
			case "ffprobe":
				return commandResult{Stdout: probeJSON(duration)}, nil
			case "ffmpeg":
				mustWriteFile(t, args[len(args)-1], "wav")
				return commandResult{}, nil
			case "whisper":
				base := argValue(args, "-of")
				mustWriteFile(t, base+".json", `{"transcription":[`+
					`{"offsets":{"from":0,"to":4000},"text":" hello "},`+
					`{"offsets":{"from":4000,"to":4000},"text":"   "},`+
					`{"offsets":{"from":5000,"to":99000},"text":"world"}]}`)
				return commandResult{}, nil
			default:
				t.Fatalf("unexpected command %q", name)
				return commandResult{}, nil
			}
		},
	}
}

func testTools() Tools {
	return Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe", Whisper: "whisper"}
}

func testRequest(t *testing.T) domain.TranscriptionRequest {
	t.Helper()
	root := t.TempDir()
	audio := filepath.Join(root, "lecture.mp3")
	model := filepath.Join(root, "ggml-base.bin")
	mustWriteFile(t, audio, "audio")
	mustWriteFile(t, model, "model")
	return domain.TranscriptionRequest{
		AudioPath:    audio,
		ModelPath:    model,
		Model:        "base",
		Language:     "auto",
		ChunkSeconds: 10,
	}
}

// TestEngineTranscribeChunksWholeFile emits one unit per chunk with absolute times.
func TestEngineTranscribeChunksWholeFile(t *testing.T) {
	var calls []string
	engine := NewEngineForTests(testTools(), toolRunner(t, "25.0", &calls), nil)

	var units []domain.TranscriptionUnit
	err := engine.Transcribe(context.Background(), testRequest(t), func(unit domain.TranscriptionUnit) error {
		units = append(units, unit)
		return nil
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if len(units) != 3 {
		t.Fatalf("units = %d, want 3", len(units))
	}
	wantOffsets := []float64{10, 20, 25}
	for i, unit := range units {
		if unit.OffsetSeconds != wantOffsets[i] || unit.DurationSeconds != 25 {
			t.Fatalf("unit %d = offset %v duration %v", i, unit.OffsetSeconds, unit.DurationSeconds)
		}
	}

	second := units[1].Segments
	if len(second) != 2 {
		t.Fatalf("segments = %+v, want blank text dropped", second)
	}
	if second[0].Start != 10 || second[0].End != 14 || second[0].Text != "hello" {
		t.Fatalf("first segment = %+v", second[0])
	}
	if second[1].End != 20 {
		t.Fatalf("segment end = %v, want clamp to chunk end 20", second[1].End)
	}

	// ffprobe once, then ffmpeg+whisper per chunk.
	if len(calls) != 7 || calls[0] != "ffprobe" {
		t.Fatalf("calls = %v", calls)
	}
}

// TestEngineTranscribeStartsAtResumeOffset never re-cuts audio before the offset.
func TestEngineTranscribeStartsAtResumeOffset(t *testing.T) {
	var calls []string
	var starts []string
	base := toolRunner(t, "60", &calls)
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name == "ffmpeg" {
				starts = append(starts, argValue(args, "-ss"))
			}
			return base.run(ctx, name, args...)
		},
	}
	engine := NewEngineForTests(testTools(), runner, nil)

	req := testRequest(t)
	req.ResumeFrom = 40
	var offsets []float64
	err := engine.Transcribe(context.Background(), req, func(unit domain.TranscriptionUnit) error {
		offsets = append(offsets, unit.OffsetSeconds)
		return nil
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if strings.Join(starts, ",") != "40.000,50.000" {
		t.Fatalf("ffmpeg -ss values = %v", starts)
	}
	if len(offsets) != 2 || offsets[1] != 60 {
		t.Fatalf("offsets = %v", offsets)
	}
}

// TestEngineTranscribeStopsWhenEmitFails propagates the emit error.
func TestEngineTranscribeStopsWhenEmitFails(t *testing.T) {
	var calls []string
	engine := NewEngineForTests(testTools(), toolRunner(t, "60", &calls), nil)

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	err := engine.Transcribe(ctx, testRequest(t), func(unit domain.TranscriptionUnit) error {
		count++
		if count == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if count != 2 {
		t.Fatalf("emit calls = %d, want 2", count)
	}
}

// TestEngineTranscribeWhisperFailureCleansTempDir checks error mapping and cleanup.
func TestEngineTranscribeWhisperFailureCleansTempDir(t *testing.T) {
	var removed []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			switch name {
			case "ffprobe":
				return commandResult{Stdout: probeJSON("30")}, nil
			case "ffmpeg":
				mustWriteFile(t, args[len(args)-1], "wav")
				return commandResult{}, nil
			default:
				return commandResult{Stderr: "loading model\nfailed to load model", ExitCode: 2}, errors.New("exit status 2")
			}
		},
	}
	engine := NewEngineForTests(testTools(), runner, func(path string) error {
		removed = append(removed, path)
		return os.RemoveAll(path)
	})

	err := engine.Transcribe(context.Background(), testRequest(t), func(domain.TranscriptionUnit) error { return nil })

	var engineErr *domain.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("error = %T %v, want *domain.EngineError", err, err)
	}
	if engineErr.Category != StageTranscribe {
		t.Fatalf("category = %q, want %q", engineErr.Category, StageTranscribe)
	}
	if !strings.Contains(engineErr.Message, "failed to load model") {
		t.Fatalf("message = %q", engineErr.Message)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.CommandLog.ExitCode != 2 {
		t.Fatalf("stage error = %+v", stageErr)
	}
	if len(removed) == 0 || !strings.Contains(filepath.Base(removed[len(removed)-1]), "voicetransor-") {
		t.Fatalf("expected temp dir cleanup, removed = %v", removed)
	}
}

// TestEngineTranscribeRequiresModelPath fails before running any command.
func TestEngineTranscribeRequiresModelPath(t *testing.T) {
	called := false
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			called = true
			return commandResult{}, nil
		},
	}
	engine := NewEngineForTests(testTools(), runner, nil)

	req := testRequest(t)
	req.ModelPath = ""
	err := engine.Transcribe(context.Background(), req, func(domain.TranscriptionUnit) error { return nil })
	if err == nil {
		t.Fatal("expected error for missing model path")
	}
	if called {
		t.Fatal("no command should run without a model")
	}
}

// TestProbeParsesMetadata reads duration and the first audio stream.
func TestProbeParsesMetadata(t *testing.T) {
	var calls []string
	engine := NewEngineForTests(testTools(), toolRunner(t, "12.5", &calls), nil)

	info, err := engine.Probe(context.Background(), testRequest(t).AudioPath)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.DurationSeconds != 12.5 || info.SampleRate != 16000 || info.Channels != 1 || info.BitRate != 256000 {
		t.Fatalf("info = %+v", info)
	}
}

// TestProbeRejectsMissingDuration surfaces a probe stage error.
func TestProbeRejectsMissingDuration(t *testing.T) {
	var calls []string
	engine := NewEngineForTests(testTools(), toolRunner(t, "N/A", &calls), nil)

	_, err := engine.Probe(context.Background(), testRequest(t).AudioPath)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageProbe || !errors.Is(err, errNoDuration) {
		t.Fatalf("error = %v", err)
	}
}

// TestBuildFFmpegArgs verifies chunk slicing parameters.
func TestBuildFFmpegArgs(t *testing.T) {
	args := buildFFmpegArgs("in.mp3", "out.wav", 30, 7.25)
	if argValue(args, "-ss") != "30.000" || argValue(args, "-t") != "7.250" {
		t.Fatalf("args = %v", args)
	}
	if argValue(args, "-ar") != "16000" || argValue(args, "-ac") != "1" {
		t.Fatalf("args = %v", args)
	}
	if args[len(args)-1] != "out.wav" {
		t.Fatalf("output path = %q", args[len(args)-1])
	}
}

// TestBuildWhisperArgs covers language and device flags.
func TestBuildWhisperArgs(t *testing.T) {
	auto := buildWhisperArgs("m.bin", "a.wav", "a", "auto", "auto")
	if hasArg(auto, "-l") || hasArg(auto, "-ng") {
		t.Fatalf("auto args = %v", auto)
	}
	if !hasArg(auto, "-oj") {
		t.Fatalf("expected JSON output flag, args = %v", auto)
	}

	fixed := buildWhisperArgs("m.bin", "a.wav", "a", "de", "cpu")
	if argValue(fixed, "-l") != "de" || !hasArg(fixed, "-ng") {
		t.Fatalf("fixed args = %v", fixed)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}
