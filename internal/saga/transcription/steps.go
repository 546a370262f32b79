package transcription

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/alignment"
	"github.com/satriahrh/keynotes/internal/saga"
)

// Step IDs, in execution order
const (
	StepStartJob  saga.StepID = "start_job"
	StepRecognize saga.StepID = "recognize"
	StepCoalesce  saga.StepID = "coalesce"
	StepAlign     saga.StepID = "align"
	StepSummarize saga.StepID = "summarize"
	StepPersist   saga.StepID = "persist"
)

// ErrMissingAudio is returned when a job reaches recognition without audio
var ErrMissingAudio = errors.New("no audio detected")

func fail(err error) saga.StepResult {
	return saga.StepResult{Success: false, Error: err}
}

func jobFrom(data saga.SagaData) (*entities.TranscriptionJob, error) {
	job, ok := data[DataKeyJob].(*entities.TranscriptionJob)
	if !ok || job == nil {
		return nil, fmt.Errorf("missing job in saga data")
	}
	return job, nil
}

// StartJobStep loads the job and marks it running
type StartJobStep struct {
	jobs   repositories.JobRepository
	logger *zap.Logger
}

func NewStartJobStep(jobs repositories.JobRepository, logger *zap.Logger) *StartJobStep {
	return &StartJobStep{
		jobs:   jobs,
		logger: logger,
	}
}

func (s *StartJobStep) ID() saga.StepID {
	return StepStartJob
}

func (s *StartJobStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	jobID, ok := data[DataKeyJobID].(string)
	if !ok || jobID == "" {
		return fail(fmt.Errorf("missing job ID"))
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fail(fmt.Errorf("failed to load job %s: %w", jobID, err))
	}

	job.Start()
	if err := s.jobs.Update(ctx, job); err != nil {
		return fail(fmt.Errorf("failed to mark job running: %w", err))
	}

	data[DataKeyJob] = job
	s.logger.Info("Transcription job started", zap.String("jobID", jobID))

	return saga.StepResult{Success: true, Data: string(job.Status)}
}

// Compensate records the saga failure on the job
func (s *StartJobStep) Compensate(ctx context.Context, data saga.SagaData) error {
	job, err := jobFrom(data)
	if err != nil {
		return err
	}

	cause, _ := data[saga.DataKeyError].(error)
	if cause == nil {
		cause = errors.New("transcription failed")
	}

	job.Fail(cause)
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Info("Transcription job marked failed",
		zap.String("jobID", job.ID),
		zap.String("reason", job.Error))
	return nil
}

// RecognizeStep runs speech recognition and diarization concurrently, or
// through one combined pass when the provider supports it
type RecognizeStep struct {
	stt      repositories.SpeechToText
	diarizer repositories.Diarizer
	combined repositories.DiarizingSpeechToText
	logger   *zap.Logger
}

func NewRecognizeStep(stt repositories.SpeechToText, diarizer repositories.Diarizer, logger *zap.Logger) *RecognizeStep {
	return &RecognizeStep{
		stt:      stt,
		diarizer: diarizer,
		logger:   logger,
	}
}

// NewCombinedRecognizeStep recognizes and diarizes with a single provider call
func NewCombinedRecognizeStep(recognizer repositories.DiarizingSpeechToText, logger *zap.Logger) *RecognizeStep {
	return &RecognizeStep{
		combined: recognizer,
		logger:   logger,
	}
}

func (s *RecognizeStep) ID() saga.StepID {
	return StepRecognize
}

func (s *RecognizeStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	audioData, _ := data[DataKeyAudioData].([]byte)
	if len(audioData) == 0 {
		return fail(ErrMissingAudio)
	}
	config, _ := data[DataKeyAudioConfig].(repositories.AudioConfig)

	transcription, tracks, err := s.recognize(ctx, audioData, config)
	if err != nil {
		return fail(err)
	}

	if transcription == nil {
		transcription = &entities.Transcription{}
	}

	data[DataKeyTranscription] = transcription
	data[DataKeyTracks] = tracks
	// Audio is no longer needed once both services answered
	delete(data, DataKeyAudioData)

	s.logger.Info("Recognition completed",
		zap.Int("chunks", len(transcription.Chunks)),
		zap.Int("tracks", len(tracks)))

	return saga.StepResult{
		Success: true,
		Data:    map[string]int{"chunks": len(transcription.Chunks), "tracks": len(tracks)},
	}
}

func (s *RecognizeStep) recognize(ctx context.Context, audioData []byte, config repositories.AudioConfig) (*entities.Transcription, []entities.RawDiarizationTrack, error) {
	if s.combined != nil {
		transcription, tracks, err := s.combined.TranscribeAndDiarize(ctx, audioData, config)
		if err != nil {
			return nil, nil, fmt.Errorf("speech recognition failed: %w", err)
		}
		return transcription, tracks, nil
	}

	var (
		transcription *entities.Transcription
		tracks        []entities.RawDiarizationTrack
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := s.stt.Transcribe(gctx, audioData, config)
		if err != nil {
			return fmt.Errorf("speech recognition failed: %w", err)
		}
		transcription = result
		return nil
	})
	g.Go(func() error {
		result, err := s.diarizer.Diarize(gctx, audioData, config)
		if err != nil {
			return fmt.Errorf("diarization failed: %w", err)
		}
		tracks = result
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return transcription, tracks, nil
}

func (s *RecognizeStep) Compensate(ctx context.Context, data saga.SagaData) error {
	// No compensation needed for recognition - it's read-only
	return nil
}

// CoalesceStep merges raw diarization tracks into speaker segments
type CoalesceStep struct {
	logger *zap.Logger
}

func NewCoalesceStep(logger *zap.Logger) *CoalesceStep {
	return &CoalesceStep{logger: logger}
}

func (s *CoalesceStep) ID() saga.StepID {
	return StepCoalesce
}

func (s *CoalesceStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	tracks, _ := data[DataKeyTracks].([]entities.RawDiarizationTrack)
	transcription, _ := data[DataKeyTranscription].(*entities.Transcription)

	// No tracks leaves nothing to coalesce. Alignment then yields an empty
	// transcript for silent audio and ErrNoSpeakerData when chunks remain.
	if len(tracks) == 0 {
		data[DataKeySegments] = []entities.SpeakerSegment{}
		chunks := 0
		if transcription != nil {
			chunks = len(transcription.Chunks)
		}
		s.logger.Debug("No speaker tracks to coalesce", zap.Int("chunks", chunks))
		return saga.StepResult{Success: true, Data: 0}
	}

	segments, err := alignment.Coalesce(tracks)
	if err != nil {
		return fail(fmt.Errorf("failed to coalesce speaker tracks: %w", err))
	}

	data[DataKeySegments] = segments
	s.logger.Debug("Speaker tracks coalesced",
		zap.Int("tracks", len(tracks)),
		zap.Int("segments", len(segments)))

	return saga.StepResult{Success: true, Data: len(segments)}
}

func (s *CoalesceStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return nil
}

// AlignStep attributes transcript chunks to speaker segments
type AlignStep struct {
	logger *zap.Logger
}

func NewAlignStep(logger *zap.Logger) *AlignStep {
	return &AlignStep{logger: logger}
}

func (s *AlignStep) ID() saga.StepID {
	return StepAlign
}

func (s *AlignStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	job, err := jobFrom(data)
	if err != nil {
		return fail(err)
	}
	segments, _ := data[DataKeySegments].([]entities.SpeakerSegment)

	var chunks []entities.ASRChunk
	if transcription, ok := data[DataKeyTranscription].(*entities.Transcription); ok && transcription != nil {
		chunks = transcription.Chunks
	}

	result, err := alignment.AlignWithReport(segments, chunks, job.GroupBySpeaker)
	if err != nil {
		return fail(fmt.Errorf("failed to align transcript: %w", err))
	}

	if result.Dropped > 0 {
		s.logger.Warn("Transcript chunks after the last speaker segment were dropped",
			zap.String("jobID", job.ID),
			zap.Int("dropped", result.Dropped),
			zap.Int("consumed", result.Consumed))
	}

	data[DataKeyUtterances] = result.Utterances
	data[DataKeyDropped] = result.Dropped

	return saga.StepResult{
		Success: true,
		Data:    map[string]int{"utterances": len(result.Utterances), "dropped": result.Dropped},
	}
}

func (s *AlignStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return nil
}

// SummarizeStep writes keynotes for keynote jobs and is a no-op otherwise
type SummarizeStep struct {
	summarizer Summarizer
	logger     *zap.Logger
}

func NewSummarizeStep(summarizer Summarizer, logger *zap.Logger) *SummarizeStep {
	return &SummarizeStep{
		summarizer: summarizer,
		logger:     logger,
	}
}

func (s *SummarizeStep) ID() saga.StepID {
	return StepSummarize
}

func (s *SummarizeStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	job, err := jobFrom(data)
	if err != nil {
		return fail(err)
	}
	if job.Task != entities.TaskKeynote {
		return saga.StepResult{Success: true, Data: "skipped"}
	}

	utterances, _ := data[DataKeyUtterances].([]entities.AlignedUtterance)
	summary, err := s.summarizer.Summarize(ctx, utterances)
	if err != nil {
		return fail(fmt.Errorf("failed to summarize transcript: %w", err))
	}

	data[DataKeySummary] = summary
	s.logger.Info("Keynotes generated", zap.String("jobID", job.ID), zap.Int("length", len(summary)))

	return saga.StepResult{Success: true, Data: "generated"}
}

func (s *SummarizeStep) Compensate(ctx context.Context, data saga.SagaData) error {
	delete(data, DataKeySummary)
	return nil
}

// PersistStep stores the aligned transcript and marks the job completed
type PersistStep struct {
	jobs   repositories.JobRepository
	logger *zap.Logger
}

func NewPersistStep(jobs repositories.JobRepository, logger *zap.Logger) *PersistStep {
	return &PersistStep{
		jobs:   jobs,
		logger: logger,
	}
}

func (s *PersistStep) ID() saga.StepID {
	return StepPersist
}

func (s *PersistStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	job, err := jobFrom(data)
	if err != nil {
		return fail(err)
	}

	utterances, _ := data[DataKeyUtterances].([]entities.AlignedUtterance)
	summary, _ := data[DataKeySummary].(string)

	job.Complete(utterances, summary)
	if err := s.jobs.Update(ctx, job); err != nil {
		return fail(fmt.Errorf("failed to store transcript: %w", err))
	}

	s.logger.Info("Transcription job completed",
		zap.String("jobID", job.ID),
		zap.Int("utterances", len(job.Utterances)))

	return saga.StepResult{Success: true, Data: string(job.Status)}
}

func (s *PersistStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return nil
}
