package stt

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/alignment"
)

func TestMockSpeechScalesWithAudioSize(t *testing.T) {
	mock := NewMockSpeech(zaptest.NewLogger(t))
	config := repositories.AudioConfig{Language: "en-US", SampleRate: 16000}

	tests := []struct {
		size int
		want int
	}{
		{size: 10, want: 2},
		{size: 2000, want: 3},
		{size: 6000, want: 4},
		{size: 20000, want: len(mockChunks)},
	}

	for _, tt := range tests {
		transcription, err := mock.Transcribe(context.Background(), make([]byte, tt.size), config)
		if err != nil {
			t.Fatalf("Transcribe returned error: %v", err)
		}
		if len(transcription.Chunks) != tt.want {
			t.Errorf("size %d: expected %d chunks, got %d", tt.size, tt.want, len(transcription.Chunks))
		}

		tracks, err := mock.Diarize(context.Background(), make([]byte, tt.size), config)
		if err != nil {
			t.Fatalf("Diarize returned error: %v", err)
		}
		if len(tracks) != tt.want {
			t.Errorf("size %d: expected %d tracks, got %d", tt.size, tt.want, len(tracks))
		}
	}
}

func TestMockSpeechRejectsEmptyAudio(t *testing.T) {
	mock := NewMockSpeech(zaptest.NewLogger(t))

	if _, err := mock.Transcribe(context.Background(), nil, repositories.AudioConfig{}); err == nil {
		t.Error("Expected error for empty audio")
	}
	if _, err := mock.Diarize(context.Background(), nil, repositories.AudioConfig{}); err == nil {
		t.Error("Expected error for empty audio")
	}
}

func TestMockSpeechOutputAligns(t *testing.T) {
	mock := NewMockSpeech(zaptest.NewLogger(t))
	audio := make([]byte, 20000)

	transcription, _ := mock.Transcribe(context.Background(), audio, repositories.AudioConfig{})
	tracks, _ := mock.Diarize(context.Background(), audio, repositories.AudioConfig{})

	segments, err := alignment.Coalesce(tracks)
	if err != nil {
		t.Fatalf("Coalesce returned error: %v", err)
	}
	utterances, err := alignment.Align(segments, transcription.Chunks, true)
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if len(utterances) != len(segments) {
		t.Errorf("Expected one utterance per segment, got %d for %d", len(utterances), len(segments))
	}
}
