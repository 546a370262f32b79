package entities

// TimeInterval is a contiguous span on the audio timeline, in seconds.
// Diarization and speech recognition outputs share this coordinate space.
type TimeInterval struct {
	Start float64 `json:"start" bson:"start"`
	End   float64 `json:"end" bson:"end"`
}

// Validate checks that the interval does not run backwards
func (t TimeInterval) Validate() error {
	if t.Start > t.End {
		return &InvalidIntervalError{Interval: t}
	}
	return nil
}

// Duration returns the length of the interval in seconds
func (t TimeInterval) Duration() float64 {
	return t.End - t.Start
}

// RawDiarizationTrack is one atomic segment emitted by a diarization model.
// Tracks arrive sorted by Interval.Start.
type RawDiarizationTrack struct {
	Interval     TimeInterval `json:"segment"`
	TrackID      string       `json:"track"`
	SpeakerLabel string       `json:"label"`
}

// SpeakerSegment is a maximal run of same-speaker diarization tracks
type SpeakerSegment struct {
	Interval     TimeInterval `json:"segment" bson:"segment"`
	SpeakerLabel string       `json:"speaker" bson:"speaker"`
}

// ASRChunk is one unit of recognized speech with its [start, end] timestamp
type ASRChunk struct {
	Timestamp [2]float64 `json:"timestamp" bson:"timestamp"`
	Text      string     `json:"text" bson:"text"`
}

// Start returns the chunk start time in seconds
func (c ASRChunk) Start() float64 { return c.Timestamp[0] }

// End returns the chunk end time in seconds
func (c ASRChunk) End() float64 { return c.Timestamp[1] }

// Interval returns the chunk timestamp as a TimeInterval
func (c ASRChunk) Interval() TimeInterval {
	return TimeInterval{Start: c.Timestamp[0], End: c.Timestamp[1]}
}

// AlignedUtterance is a speaker-attributed piece of transcript
type AlignedUtterance struct {
	SpeakerLabel string     `json:"speaker" bson:"speaker"`
	Text         string     `json:"text" bson:"text"`
	Timestamp    [2]float64 `json:"timestamp" bson:"timestamp"`
}

// Transcription is what a speech recognition service returns for one audio input
type Transcription struct {
	Text       string     `json:"text"`
	Chunks     []ASRChunk `json:"chunks"`
	Language   string     `json:"language,omitempty"`
	SampleRate int        `json:"sampling_rate,omitempty"`
}
