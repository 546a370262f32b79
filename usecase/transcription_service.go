package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain"
	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/export"
	"github.com/satriahrh/keynotes/internal/metrics"
	"github.com/satriahrh/keynotes/internal/saga"
	"github.com/satriahrh/keynotes/internal/saga/transcription"
	"github.com/satriahrh/keynotes/internal/transcript"
)

var (
	// ErrNoAudio is returned when a job is submitted without audio
	ErrNoAudio = transcription.ErrMissingAudio
	// ErrAudioTooLarge is returned when an upload exceeds the configured limit
	ErrAudioTooLarge = errors.New("audio file too large")
	// ErrJobNotFinished is returned when a result is requested before the job completed
	ErrJobNotFinished = errors.New("job has not completed")
)

// ProgressNotifier receives job progress updates, typically the websocket hub
type ProgressNotifier interface {
	Publish(msg *domain.JobProgressMessage)
}

// SubmitRequest is a new transcription job
type SubmitRequest struct {
	AudioName      string
	Audio          []byte
	Task           entities.Task
	GroupBySpeaker bool
	Language       string
}

// ServiceOptions configures a TranscriptionService
type ServiceOptions struct {
	Language       string
	SampleRate     int
	Encoding       string
	MinSpeakers    int
	MaxSpeakers    int
	MaxUploadBytes int64
	JobTimeout     time.Duration
}

// TranscriptionService runs transcription jobs through the transcription saga
type TranscriptionService struct {
	jobs        repositories.JobRepository
	sagaManager *saga.Manager
	notifier    ProgressNotifier
	metrics     *metrics.Metrics
	opts        ServiceOptions
	logger      *zap.Logger
}

// NewTranscriptionService creates a new transcription service and registers the saga definition.
// notifier and m may be nil.
func NewTranscriptionService(
	sagaManager *saga.Manager,
	deps transcription.Dependencies,
	opts ServiceOptions,
	notifier ProgressNotifier,
	m *metrics.Metrics,
) *TranscriptionService {
	service := &TranscriptionService{
		jobs:        deps.Jobs,
		sagaManager: sagaManager,
		notifier:    notifier,
		metrics:     m,
		opts:        opts,
		logger:      deps.Logger,
	}

	sagaManager.RegisterDefinition(transcription.NewDefinition(deps, opts.JobTimeout))

	return service
}

// Submit stores a queued job and starts processing it in the background
func (s *TranscriptionService) Submit(ctx context.Context, req SubmitRequest) (*entities.TranscriptionJob, error) {
	if len(req.Audio) == 0 {
		return nil, ErrNoAudio
	}
	if s.opts.MaxUploadBytes > 0 && int64(len(req.Audio)) > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrAudioTooLarge, len(req.Audio), s.opts.MaxUploadBytes)
	}

	if req.Task == "" {
		req.Task = entities.TaskTranscribe
	}
	language := req.Language
	if language == "" {
		language = s.opts.Language
	}

	job := entities.NewTranscriptionJob(req.AudioName, language, req.Task, req.GroupBySpeaker)
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	audioConfig := repositories.AudioConfig{
		SampleRate:  s.opts.SampleRate,
		Encoding:    s.opts.Encoding,
		Language:    language,
		MinSpeakers: s.opts.MinSpeakers,
		MaxSpeakers: s.opts.MaxSpeakers,
	}
	data := transcription.NewSagaData(job.ID, req.Audio, audioConfig)

	// The saga outlives the request that submitted it
	err := s.sagaManager.StartSagaWithID(context.WithoutCancel(ctx), saga.SagaID(job.ID), transcription.DefinitionID, data)
	if err != nil {
		job.Fail(err)
		if updateErr := s.jobs.Update(ctx, job); updateErr != nil {
			s.logger.Error("Failed to mark unstarted job failed", zap.String("jobID", job.ID), zap.Error(updateErr))
		}
		return nil, fmt.Errorf("failed to start transcription saga: %w", err)
	}

	if s.metrics != nil {
		s.metrics.JobsSubmitted.WithLabelValues(string(job.Task)).Inc()
		s.metrics.UploadBytes.Observe(float64(len(req.Audio)))
	}
	s.publish(&domain.JobProgressMessage{
		Type:      domain.ProgressJobQueued,
		JobID:     job.ID,
		Status:    string(job.Status),
		Timestamp: job.CreatedAt,
	})

	s.logger.Info("Transcription job submitted",
		zap.String("jobID", job.ID),
		zap.String("audio", job.AudioName),
		zap.String("task", string(job.Task)),
		zap.Bool("groupBySpeaker", job.GroupBySpeaker),
		zap.Int("audioSize", len(req.Audio)))

	return job, nil
}

// Get returns a job by ID
func (s *TranscriptionService) Get(ctx context.Context, id string) (*entities.TranscriptionJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// List returns the most recent jobs
func (s *TranscriptionService) List(ctx context.Context, limit int) ([]*entities.TranscriptionJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobs.ListRecent(ctx, limit)
}

// Wait blocks until the job finishes or ctx is done
func (s *TranscriptionService) Wait(ctx context.Context, id string) (*entities.TranscriptionJob, error) {
	_, err := s.sagaManager.Wait(ctx, saga.SagaID(id))
	if err != nil && !errors.Is(err, saga.ErrSagaNotFound) {
		return nil, err
	}
	// Without a saga the job either finished long ago or belongs to another instance
	return s.jobs.GetByID(ctx, id)
}

// Text renders a completed job for display: the keynotes for keynote jobs, the transcript otherwise
func (s *TranscriptionService) Text(ctx context.Context, id string) (string, error) {
	job, err := s.finishedJob(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Task == entities.TaskKeynote {
		return job.Summary, nil
	}
	return transcript.Format(job.Utterances), nil
}

// Export writes a completed job as a spreadsheet
func (s *TranscriptionService) Export(ctx context.Context, id string, w io.Writer) error {
	job, err := s.finishedJob(ctx, id)
	if err != nil {
		return err
	}
	return export.WriteXLSX(w, transcript.Rows(job))
}

func (s *TranscriptionService) finishedJob(ctx context.Context, id string) (*entities.TranscriptionJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != entities.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotFinished, id, job.Status)
	}
	return job, nil
}

// GetSagaStatus returns the processing steps of a job
func (s *TranscriptionService) GetSagaStatus(id string) (*SagaStatusResponse, error) {
	instance, exists := s.sagaManager.GetSaga(saga.SagaID(id))
	if !exists {
		return nil, fmt.Errorf("%w: %s", saga.ErrSagaNotFound, id)
	}

	return &SagaStatusResponse{
		SagaID:      string(instance.ID),
		State:       string(instance.State),
		Steps:       convertStepExecutions(instance.Steps),
		StartedAt:   instance.StartedAt,
		CompletedAt: instance.CompletedAt,
		Error:       instance.Error,
	}, nil
}

// SagaStatusResponse represents the status of a saga
type SagaStatusResponse struct {
	SagaID      string                `json:"saga_id"`
	State       string                `json:"state"`
	Steps       []StepExecutionStatus `json:"steps"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// StepExecutionStatus represents the status of a step execution
type StepExecutionStatus struct {
	ID          string      `json:"id"`
	State       string      `json:"state"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
	Result      interface{} `json:"result,omitempty"`
}

// convertStepExecutions converts saga step executions to response format
func convertStepExecutions(steps []saga.StepExecution) []StepExecutionStatus {
	result := make([]StepExecutionStatus, len(steps))
	for i, step := range steps {
		result[i] = StepExecutionStatus{
			ID:          string(step.ID),
			State:       string(step.State),
			StartedAt:   step.StartedAt,
			CompletedAt: step.CompletedAt,
			Error:       step.Error,
			Result:      step.Result,
		}
	}
	return result
}

// StartEventListener forwards saga events to the notifier and metrics until ctx is done
func (s *TranscriptionService) StartEventListener(ctx context.Context) {
	events, unsubscribe := s.sagaManager.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.Definition == transcription.DefinitionID {
					s.handleSagaEvent(event)
				}
			}
		}
	}()
}

// handleSagaEvent handles saga events for logging, metrics and progress updates
func (s *TranscriptionService) handleSagaEvent(event saga.SagaEvent) {
	jobID := string(event.SagaID)
	msg := &domain.JobProgressMessage{
		JobID:     jobID,
		Step:      string(event.StepID),
		ElapsedMs: event.Duration.Milliseconds(),
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case saga.EventSagaStarted:
		s.logger.Debug("Saga started", zap.String("jobID", jobID))
		return

	case saga.EventStepStarted:
		s.logger.Debug("Step started", zap.String("jobID", jobID), zap.String("stepID", msg.Step))
		msg.Type = domain.ProgressStepStarted
		msg.Status = string(entities.JobStatusRunning)

	case saga.EventStepCompleted:
		s.logger.Debug("Step completed", zap.String("jobID", jobID), zap.String("stepID", msg.Step))
		s.observeStep(msg.Step, true, event.Duration)
		msg.Type = domain.ProgressStepCompleted
		msg.Status = string(entities.JobStatusRunning)
		if event.StepID == transcription.StepAlign {
			msg.Dropped = droppedChunks(event.Data)
			if s.metrics != nil && msg.Dropped > 0 {
				s.metrics.DroppedChunks.Add(float64(msg.Dropped))
			}
		}

	case saga.EventStepFailed:
		eventData, _ := json.Marshal(event)
		s.logger.Warn("Step failed", zap.String("jobID", jobID), zap.String("stepID", msg.Step), zap.ByteString("event", eventData))
		s.observeStep(msg.Step, false, event.Duration)
		msg.Type = domain.ProgressStepFailed
		msg.Status = string(entities.JobStatusRunning)
		if errMsg, ok := event.Data.(string); ok {
			msg.Error = errMsg
		}

	case saga.EventSagaCompleted:
		s.logger.Info("Saga completed", zap.String("jobID", jobID))
		s.finishJob(string(entities.JobStatusCompleted))
		msg.Type = domain.ProgressJobCompleted
		msg.Status = string(entities.JobStatusCompleted)

	case saga.EventSagaCompensated, saga.EventSagaFailed:
		s.logger.Error("Saga failed", zap.String("jobID", jobID), zap.String("type", event.Type))
		s.finishJob(string(entities.JobStatusFailed))
		msg.Type = domain.ProgressJobFailed
		msg.Status = string(entities.JobStatusFailed)
		if errMsg, ok := event.Data.(string); ok {
			msg.Error = errMsg
		}

	default:
		return
	}

	s.publish(msg)
}

func (s *TranscriptionService) observeStep(step string, ok bool, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveStep(step, ok, d)
	}
}

func (s *TranscriptionService) finishJob(status string) {
	if s.metrics != nil {
		s.metrics.JobsFinished.WithLabelValues(status).Inc()
	}
}

func (s *TranscriptionService) publish(msg *domain.JobProgressMessage) {
	if s.notifier != nil {
		s.notifier.Publish(msg)
	}
}

func droppedChunks(data interface{}) int {
	counts, ok := data.(map[string]int)
	if !ok {
		return 0
	}
	return counts["dropped"]
}
