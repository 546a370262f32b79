package repositories

import (
	"context"

	"github.com/satriahrh/keynotes/domain/entities"
)

// Diarizer splits audio into speaker-labelled tracks.
// Implementations return tracks sorted by start time.
type Diarizer interface {
	Diarize(ctx context.Context, audioData []byte, config AudioConfig) ([]entities.RawDiarizationTrack, error)
}

// DiarizingSpeechToText answers transcription and diarization from one recognition pass
type DiarizingSpeechToText interface {
	TranscribeAndDiarize(ctx context.Context, audioData []byte, config AudioConfig) (*entities.Transcription, []entities.RawDiarizationTrack, error)
}
