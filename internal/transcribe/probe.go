package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNoDuration = errors.New("ffprobe reported no duration")

// MediaInfo is the subset of ffprobe output the application shows and uses.
type MediaInfo struct {
	Path            string  `json:"path"`
	FormatName      string  `json:"formatName"`
	DurationSeconds float64 `json:"durationSeconds"`
	BitRate         int64   `json:"bitRate"`
	SizeBytes       int64   `json:"sizeBytes"`
	Codec           string  `json:"codec,omitempty"`
	SampleRate      int     `json:"sampleRate,omitempty"`
	Channels        int     `json:"channels,omitempty"`
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		Size       string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe reads container and audio stream metadata with ffprobe.
func (e *Engine) Probe(ctx context.Context, path string) (MediaInfo, error) {
	if strings.TrimSpace(path) == "" {
		return MediaInfo{}, &StageError{Stage: StageProbe, Message: "input audio path is required"}
	}
	if _, err := e.stat(path); err != nil {
		return MediaInfo{}, &StageError{
			Stage:   StageProbe,
			Message: fmt.Sprintf("cannot access input audio: %s", path),
			Err:     err,
		}
	}

	args := buildFFprobeArgs(path)
	log, err := e.run(ctx, e.tools.FFprobe, args...)
	if err != nil {
		if ctx.Err() != nil {
			return MediaInfo{}, ctx.Err()
		}
		return MediaInfo{}, &StageError{Stage: StageProbe, Message: "ffprobe failed", CommandLog: log, Err: err}
	}

	info, err := parseFFprobe(path, []byte(log.Stdout))
	if err != nil {
		return MediaInfo{}, &StageError{Stage: StageProbe, Message: "cannot parse ffprobe output", CommandLog: log, Err: err}
	}
	return info, nil
}

func buildFFprobeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		path,
	}
}

func parseFFprobe(path string, data []byte) (MediaInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return MediaInfo{}, err
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || duration <= 0 {
		return MediaInfo{}, errNoDuration
	}

	info := MediaInfo{
		Path:            path,
		FormatName:      out.Format.FormatName,
		DurationSeconds: duration,
	}
	info.BitRate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	info.SizeBytes, _ = strconv.ParseInt(out.Format.Size, 10, 64)

	for _, stream := range out.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		info.Codec = stream.CodecName
		info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
		info.Channels = stream.Channels
		break
	}
	return info, nil
}
