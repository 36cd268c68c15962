package transcribe

import (
	"encoding/json"
	"strings"

	"voicetransor/internal/domain"
)

// whisperOutput mirrors the parts of whisper.cpp -oj output we read.
// Offsets are milliseconds relative to the chunk start.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWhisperJSON converts chunk-relative whisper output into absolute
// segments clamped to [start, start+length].
func parseWhisperJSON(data []byte, start, length float64) ([]domain.Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	limit := start + length
	segments := make([]domain.Segment, 0, len(out.Transcription))
	for _, item := range out.Transcription {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}

		from := min(start+float64(item.Offsets.From)/1000, limit)
		to := min(start+float64(item.Offsets.To)/1000, limit)
		if to < from {
			to = from
		}
		segments = append(segments, domain.Segment{Start: from, End: to, Text: text})
	}
	return segments, nil
}
