package alignment

import (
	"math"
	"strings"

	"github.com/satriahrh/keynotes/domain/entities"
)

// Alignment is the result of aligning speaker segments with transcript chunks
type Alignment struct {
	Utterances []entities.AlignedUtterance
	// Consumed is the number of chunks assigned to a speaker.
	Consumed int
	// Dropped is the number of trailing chunks left over after every
	// segment was processed. They are not part of Utterances.
	Dropped int
}

// Align assigns every transcript chunk to the speaker segment whose end it
// is nearest to, walking both sequences in time order.
//
// For each segment, the remaining chunk whose end timestamp is closest to
// the segment end is located; it and every remaining chunk before it belong
// to that segment's speaker. Ties go to the earliest chunk. Once all chunks
// are consumed the remaining segments produce nothing, and chunks left over
// after the last segment are dropped.
//
// With groupBySpeaker each segment yields one utterance whose text is the
// concatenation of its chunks and whose timestamp spans from its first chunk
// start to its last chunk end. Without it, each chunk becomes its own
// utterance carrying its original timestamp.
func Align(segments []entities.SpeakerSegment, chunks []entities.ASRChunk, groupBySpeaker bool) ([]entities.AlignedUtterance, error) {
	result, err := AlignWithReport(segments, chunks, groupBySpeaker)
	if err != nil {
		return nil, err
	}
	return result.Utterances, nil
}

// AlignWithReport behaves like Align and also reports how many chunks were
// consumed and dropped.
func AlignWithReport(segments []entities.SpeakerSegment, chunks []entities.ASRChunk, groupBySpeaker bool) (Alignment, error) {
	if len(chunks) == 0 {
		return Alignment{Utterances: make([]entities.AlignedUtterance, 0)}, nil
	}
	if len(segments) == 0 {
		return Alignment{}, entities.ErrNoSpeakerData
	}
	for _, segment := range segments {
		if err := segment.Interval.Validate(); err != nil {
			return Alignment{}, err
		}
	}
	for _, chunk := range chunks {
		if err := chunk.Interval().Validate(); err != nil {
			return Alignment{}, err
		}
	}

	utterances := make([]entities.AlignedUtterance, 0, len(segments))

	// cursor is the index of the first chunk not yet assigned
	cursor := 0
	for _, segment := range segments {
		upto := cursor + nearestEnd(chunks[cursor:], segment.Interval.End)
		assigned := chunks[cursor : upto+1]

		if groupBySpeaker {
			var text strings.Builder
			for _, chunk := range assigned {
				text.WriteString(chunk.Text)
			}
			utterances = append(utterances, entities.AlignedUtterance{
				SpeakerLabel: segment.SpeakerLabel,
				Text:         text.String(),
				Timestamp:    [2]float64{assigned[0].Start(), assigned[len(assigned)-1].End()},
			})
		} else {
			for _, chunk := range assigned {
				utterances = append(utterances, entities.AlignedUtterance{
					SpeakerLabel: segment.SpeakerLabel,
					Text:         chunk.Text,
					Timestamp:    chunk.Timestamp,
				})
			}
		}

		cursor = upto + 1
		if cursor == len(chunks) {
			break
		}
	}

	return Alignment{
		Utterances: utterances,
		Consumed:   cursor,
		Dropped:    len(chunks) - cursor,
	}, nil
}

// nearestEnd returns the index of the chunk whose end is closest to target.
// chunks must not be empty. The first minimum wins.
func nearestEnd(chunks []entities.ASRChunk, target float64) int {
	best := 0
	bestDiff := math.Abs(chunks[0].End() - target)
	for i := 1; i < len(chunks); i++ {
		if diff := math.Abs(chunks[i].End() - target); diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return best
}
