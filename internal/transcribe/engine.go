// Package transcribe drives ffmpeg and whisper.cpp to turn audio into timed
// segments, one fixed-length chunk at a time.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voicetransor/internal/domain"
)

// DefaultChunkSeconds is the slice length when a request leaves it unset.
const DefaultChunkSeconds = 30

// Tools names the external executables the engine shells out to.
type Tools struct {
	FFmpeg  string
	FFprobe string
	Whisper string
}

// DefaultTools resolves executables from PATH.
func DefaultTools() Tools {
	return Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe", Whisper: "whisper.cpp"}
}

// Engine transcribes audio with whisper.cpp.
type Engine struct {
	tools     Tools
	runner    commandRunner
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	stat      func(name string) (os.FileInfo, error)
	readFile  func(name string) ([]byte, error)
	onLog     func(CommandLog)
}

// NewEngine constructs the production engine with OS dependencies.
func NewEngine(tools Tools, onLog func(CommandLog)) *Engine {
	return &Engine{
		tools:     tools,
		runner:    &execRunner{},
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		stat:      os.Stat,
		readFile:  os.ReadFile,
		onLog:     onLog,
	}
}

// NewEngineForTests constructs an engine with an injectable command runner.
func NewEngineForTests(tools Tools, runner commandRunner, removeAll func(path string) error) *Engine {
	if removeAll == nil {
		removeAll = os.RemoveAll
	}
	return &Engine{
		tools:     tools,
		runner:    runner,
		mkdirTemp: os.MkdirTemp,
		removeAll: removeAll,
		stat:      os.Stat,
		readFile:  os.ReadFile,
	}
}

// Transcribe processes audio from req.ResumeFrom to the end, calling emit
// after every chunk with absolute-time segments.
func (e *Engine) Transcribe(ctx context.Context, req domain.TranscriptionRequest, emit func(domain.TranscriptionUnit) error) error {
	if err := e.transcribe(ctx, req, emit); err != nil {
		return asEngineError(err)
	}
	return nil
}

func (e *Engine) transcribe(ctx context.Context, req domain.TranscriptionRequest, emit func(domain.TranscriptionUnit) error) error {
	if strings.TrimSpace(req.ModelPath) == "" {
		return &StageError{Stage: StageTranscribe, Message: "model path is required"}
	}
	if _, err := e.stat(req.ModelPath); err != nil {
		return &StageError{
			Stage:   StageTranscribe,
			Message: fmt.Sprintf("cannot access model file: %s", req.ModelPath),
			Err:     err,
		}
	}

	info, err := e.Probe(ctx, req.AudioPath)
	if err != nil {
		return err
	}
	duration := info.DurationSeconds
	if duration <= 0 {
		return &StageError{Stage: StageProbe, Message: "audio has no measurable duration"}
	}

	chunk := req.ChunkSeconds
	if chunk <= 0 {
		chunk = DefaultChunkSeconds
	}
	start := req.ResumeFrom
	if start < 0 {
		start = 0
	}
	if start >= duration {
		return nil
	}

	tempDir, err := e.mkdirTemp("", "voicetransor-*")
	if err != nil {
		return &StageError{Stage: StageSlice, Message: "failed to create temporary workspace", Err: err}
	}
	defer func() { _ = e.removeAll(tempDir) }()

	for index := 0; start < duration; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+chunk, duration)
		segments, err := e.transcribeChunk(ctx, req, tempDir, index, start, end-start)
		if err != nil {
			return err
		}

		unit := domain.TranscriptionUnit{
			Segments:        segments,
			OffsetSeconds:   end,
			DurationSeconds: duration,
		}
		if err := emit(unit); err != nil {
			return err
		}
		start = end
	}
	return nil
}

func (e *Engine) transcribeChunk(ctx context.Context, req domain.TranscriptionRequest, tempDir string, index int, start, length float64) ([]domain.Segment, error) {
	wavPath := filepath.Join(tempDir, fmt.Sprintf("chunk-%05d.wav", index))
	ffmpegArgs := buildFFmpegArgs(req.AudioPath, wavPath, start, length)
	log, err := e.run(ctx, e.tools.FFmpeg, ffmpegArgs...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StageError{Stage: StageSlice, Message: "ffmpeg audio slicing failed", CommandLog: log, Err: err}
	}
	if _, err := e.stat(wavPath); err != nil {
		return nil, &StageError{Stage: StageSlice, Message: "ffmpeg completed but chunk file is missing", CommandLog: log, Err: err}
	}

	outBase := strings.TrimSuffix(wavPath, filepath.Ext(wavPath))
	whisperArgs := buildWhisperArgs(req.ModelPath, wavPath, outBase, req.Language, req.Device)
	log, err = e.run(ctx, e.tools.Whisper, whisperArgs...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StageError{Stage: StageTranscribe, Message: "whisper.cpp transcription failed", CommandLog: log, Err: err}
	}

	data, err := e.readFile(outBase + ".json")
	if err != nil {
		return nil, &StageError{Stage: StageParse, Message: "whisper.cpp completed but JSON output is missing", CommandLog: log, Err: err}
	}
	segments, err := parseWhisperJSON(data, start, length)
	if err != nil {
		return nil, &StageError{Stage: StageParse, Message: "cannot parse whisper.cpp output", CommandLog: log, Err: err}
	}

	_ = e.removeAll(wavPath)
	_ = e.removeAll(outBase + ".json")
	return segments, nil
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildFFmpegArgs cuts one chunk into mono 16k PCM WAV.
func buildFFmpegArgs(inputPath, outPath string, start, length float64) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for JSON transcript output.
func buildWhisperArgs(modelPath, audioPath, outBase, language, device string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	if strings.EqualFold(device, "cpu") {
		args = append(args, "-ng")
	}

	return args
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
