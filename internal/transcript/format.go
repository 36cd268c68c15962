// Package transcript renders timed segments as SRT or plain text.
package transcript

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"voicetransor/internal/domain"
)

// minCueSeconds keeps every SRT cue at least one millisecond long.
const minCueSeconds = 0.001

// FormatTimestamp renders seconds as HH:MM:SS,mmm rounded to milliseconds.
func FormatTimestamp(seconds float64) string {
	ms := int64(math.Round(seconds * 1000))
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	ms %= 3_600_000
	m := ms / 60_000
	ms %= 60_000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// SRT renders segments as an SRT document. Cue times are forced monotonic and
// segments without text are skipped.
func SRT(segments []domain.Segment) string {
	var b strings.Builder
	index := 1
	lastEnd := 0.0

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		start, end := seg.Start, seg.End
		if end < start {
			end = start
		}
		if start < lastEnd {
			start = lastEnd
		}
		if end < start+minCueSeconds {
			end = start + minCueSeconds
		}

		if index > 1 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(index))
		b.WriteString("\n")
		b.WriteString(FormatTimestamp(start))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(end))
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("\n")

		lastEnd = end
		index++
	}

	return b.String()
}

// PlainText joins segment texts into one transcript, one segment per line.
func PlainText(segments []domain.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// Render picks SRT or plain text output.
func Render(segments []domain.Segment, withTimestamps bool) string {
	if withTimestamps {
		return SRT(segments)
	}
	return PlainText(segments)
}
