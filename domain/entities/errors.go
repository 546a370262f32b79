package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when coalescing receives no diarization tracks
	ErrEmptyInput = errors.New("no diarization tracks to coalesce")

	// ErrNoSpeakerData is returned when aligning transcript chunks without any speaker segments
	ErrNoSpeakerData = errors.New("transcript chunks present but no speaker segments")
)

// InvalidIntervalError reports a TimeInterval whose start is after its end
type InvalidIntervalError struct {
	Interval TimeInterval
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval: start %.3f is after end %.3f", e.Interval.Start, e.Interval.End)
}
