// Package transcription wires speech recognition, diarization, alignment and
// summarization into a saga that fills a TranscriptionJob.
package transcription

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/saga"
)

// DefinitionID is the saga definition ID used for transcription jobs
const DefinitionID = "transcription_processing"

// Data keys for the transcription saga
const (
	DataKeyJobID         = "job_id"
	DataKeyJob           = "job"
	DataKeyAudioData     = "audio_data"
	DataKeyAudioConfig   = "audio_config"
	DataKeyTranscription = "transcription"
	DataKeyTracks        = "tracks"
	DataKeySegments      = "segments"
	DataKeyUtterances    = "utterances"
	DataKeyDropped       = "dropped_chunks"
	DataKeySummary       = "summary"
)

// Summarizer produces keynotes from an aligned transcript
type Summarizer interface {
	Summarize(ctx context.Context, utterances []entities.AlignedUtterance) (string, error)
}

// Dependencies are the collaborators the transcription steps call
type Dependencies struct {
	SpeechToText repositories.SpeechToText
	Diarizer     repositories.Diarizer
	// Recognizer, when set, replaces SpeechToText and Diarizer with one combined pass
	Recognizer   repositories.DiarizingSpeechToText
	Summarizer   Summarizer
	Jobs         repositories.JobRepository
	Logger       *zap.Logger
}

// Definition defines the transcription processing saga
type Definition struct {
	deps    Dependencies
	timeout time.Duration
}

// NewDefinition creates a new transcription saga definition
func NewDefinition(deps Dependencies, timeout time.Duration) *Definition {
	return &Definition{
		deps:    deps,
		timeout: timeout,
	}
}

func (d *Definition) ID() string {
	return DefinitionID
}

func (d *Definition) Timeout() time.Duration {
	return d.timeout
}

func (d *Definition) Steps() []saga.Step {
	recognize := NewRecognizeStep(d.deps.SpeechToText, d.deps.Diarizer, d.deps.Logger)
	if d.deps.Recognizer != nil {
		recognize = NewCombinedRecognizeStep(d.deps.Recognizer, d.deps.Logger)
	}

	return []saga.Step{
		NewStartJobStep(d.deps.Jobs, d.deps.Logger),
		recognize,
		NewCoalesceStep(d.deps.Logger),
		NewAlignStep(d.deps.Logger),
		NewSummarizeStep(d.deps.Summarizer, d.deps.Logger),
		NewPersistStep(d.deps.Jobs, d.deps.Logger),
	}
}

// NewSagaData builds the initial data for a job run
func NewSagaData(jobID string, audioData []byte, config repositories.AudioConfig) saga.SagaData {
	return saga.SagaData{
		DataKeyJobID:       jobID,
		DataKeyAudioData:   audioData,
		DataKeyAudioConfig: config,
	}
}
