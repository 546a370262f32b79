package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
)

// MockSpeech is a deterministic SpeechToText and Diarizer for development and tests
type MockSpeech struct {
	logger *zap.Logger
}

var (
	_ repositories.SpeechToText = (*MockSpeech)(nil)
	_ repositories.Diarizer     = (*MockSpeech)(nil)
)

// NewMockSpeech creates a new mock speech service
func NewMockSpeech(logger *zap.Logger) *MockSpeech {
	return &MockSpeech{
		logger: logger,
	}
}

var mockChunks = []entities.ASRChunk{
	{Timestamp: [2]float64{0, 2.5}, Text: " Good morning everyone."},
	{Timestamp: [2]float64{2.5, 5.0}, Text: " Let's get started with the weekly sync."},
	{Timestamp: [2]float64{5.0, 8.5}, Text: " Thanks. The release is on track for Friday."},
	{Timestamp: [2]float64{8.5, 12.0}, Text: " Great, any blockers on the migration?"},
	{Timestamp: [2]float64{12.0, 15.5}, Text: " None so far, the data copy finished last night."},
}

var mockTracks = []entities.RawDiarizationTrack{
	{Interval: entities.TimeInterval{Start: 0, End: 2.8}, TrackID: "A", SpeakerLabel: "SPEAKER_00"},
	{Interval: entities.TimeInterval{Start: 2.9, End: 4.7}, TrackID: "B", SpeakerLabel: "SPEAKER_00"},
	{Interval: entities.TimeInterval{Start: 5.1, End: 8.6}, TrackID: "C", SpeakerLabel: "SPEAKER_01"},
	{Interval: entities.TimeInterval{Start: 8.9, End: 12.4}, TrackID: "D", SpeakerLabel: "SPEAKER_00"},
	{Interval: entities.TimeInterval{Start: 12.6, End: 15.4}, TrackID: "E", SpeakerLabel: "SPEAKER_01"},
}

// Transcribe returns a fixed meeting transcript. Longer audio yields more chunks.
func (s *MockSpeech) Transcribe(ctx context.Context, audioData []byte, config repositories.AudioConfig) (*entities.Transcription, error) {
	s.logger.Info("Processing mock transcription",
		zap.Int("size", len(audioData)),
		zap.String("language", config.Language))

	if len(audioData) == 0 {
		return nil, fmt.Errorf("no audio data received")
	}

	chunks := make([]entities.ASRChunk, mockLength(len(audioData)))
	copy(chunks, mockChunks)

	var text string
	for _, chunk := range chunks {
		text += chunk.Text
	}

	return &entities.Transcription{
		Text:       text,
		Chunks:     chunks,
		Language:   config.Language,
		SampleRate: config.SampleRate,
	}, nil
}

// Diarize returns fixed alternating speaker tracks
func (s *MockSpeech) Diarize(ctx context.Context, audioData []byte, config repositories.AudioConfig) ([]entities.RawDiarizationTrack, error) {
	s.logger.Info("Processing mock diarization", zap.Int("size", len(audioData)))

	if len(audioData) == 0 {
		return nil, fmt.Errorf("no audio data received")
	}

	tracks := make([]entities.RawDiarizationTrack, mockLength(len(audioData)))
	copy(tracks, mockTracks)
	return tracks, nil
}

// mockLength scales the mock output with the audio size
func mockLength(size int) int {
	switch {
	case size > 10000:
		return len(mockChunks)
	case size > 5000:
		return 4
	case size > 1000:
		return 3
	default:
		return 2
	}
}
