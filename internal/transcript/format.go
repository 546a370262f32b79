// Package transcript renders aligned utterances for display, prompts and tabular export.
package transcript

import (
	"fmt"
	"math"
	"strings"

	"github.com/satriahrh/keynotes/domain/entities"
)

// Format renders one "speaker: text" line per utterance
func Format(utterances []entities.AlignedUtterance) string {
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		lines = append(lines, fmt.Sprintf("%s: %s", u.SpeakerLabel, strings.TrimSpace(u.Text)))
	}
	return strings.Join(lines, "\n")
}

// FormatTimestamp renders a chunk timestamp pair as "HH:MM:SS.mmm - HH:MM:SS.mmm"
func FormatTimestamp(ts [2]float64) string {
	return clock(ts[0]) + " - " + clock(ts[1])
}

func clock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
