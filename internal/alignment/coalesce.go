// Package alignment merges diarization output and speech recognition output
// into a single speaker-labelled transcript.
//
// Both steps are pure functions over their inputs and are safe to call
// concurrently for independent requests.
package alignment

import (
	"github.com/satriahrh/keynotes/domain/entities"
)

// Coalesce collapses consecutive same-speaker tracks into maximal runs.
//
// A run closes when a track with a different speaker label appears; the
// closed segment ends where that track starts, so gaps and overlaps reported
// by the diarizer between speakers disappear. The final run ends at the last
// track's own end.
//
// Tracks must be sorted by start time. An empty input returns ErrEmptyInput.
func Coalesce(tracks []entities.RawDiarizationTrack) ([]entities.SpeakerSegment, error) {
	if len(tracks) == 0 {
		return nil, entities.ErrEmptyInput
	}
	for _, track := range tracks {
		if err := track.Interval.Validate(); err != nil {
			return nil, err
		}
	}

	segments := make([]entities.SpeakerSegment, 0, len(tracks))

	// runStart is the first track of the open run, last is the most recently
	// visited track. The final close must use last, never runStart.
	runStart := tracks[0]
	last := tracks[0]

	for _, track := range tracks[1:] {
		last = track
		if track.SpeakerLabel == runStart.SpeakerLabel {
			continue
		}
		segments = append(segments, entities.SpeakerSegment{
			Interval: entities.TimeInterval{
				Start: runStart.Interval.Start,
				End:   track.Interval.Start,
			},
			SpeakerLabel: runStart.SpeakerLabel,
		})
		runStart = track
	}

	segments = append(segments, entities.SpeakerSegment{
		Interval: entities.TimeInterval{
			Start: runStart.Interval.Start,
			End:   last.Interval.End,
		},
		SpeakerLabel: runStart.SpeakerLabel,
	})

	return segments, nil
}
