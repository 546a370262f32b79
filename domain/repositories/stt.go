package repositories

import (
	"context"

	"github.com/satriahrh/keynotes/domain/entities"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts audio data to timestamped transcript chunks
	Transcribe(ctx context.Context, audioData []byte, config AudioConfig) (*entities.Transcription, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
	// MinSpeakers and MaxSpeakers are hints for diarization, zero means provider default
	MinSpeakers int `json:"min_speakers,omitempty"`
	MaxSpeakers int `json:"max_speakers,omitempty"`
}
