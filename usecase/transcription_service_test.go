package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/keynotes/adapters"
	"github.com/satriahrh/keynotes/adapters/llm"
	"github.com/satriahrh/keynotes/adapters/stt"
	"github.com/satriahrh/keynotes/domain"
	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/metrics"
	"github.com/satriahrh/keynotes/internal/saga"
	"github.com/satriahrh/keynotes/internal/saga/transcription"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*domain.JobProgressMessage
	final    chan *domain.JobProgressMessage
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{final: make(chan *domain.JobProgressMessage, 8)}
}

func (n *recordingNotifier) Publish(msg *domain.JobProgressMessage) {
	n.mu.Lock()
	n.messages = append(n.messages, msg)
	n.mu.Unlock()
	if msg.IsFinal() {
		n.final <- msg
	}
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var types []string
	for _, msg := range n.messages {
		types = append(types, msg.Type)
	}
	return types
}

type serviceHarness struct {
	service  *TranscriptionService
	jobs     *adapters.MemoryJobRepository
	sagas    *saga.Manager
	notifier *recordingNotifier
	metrics  *metrics.Metrics
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	speech := stt.NewMockSpeech(logger)

	h := &serviceHarness{
		jobs:     adapters.NewMemoryJobRepository(),
		sagas:    saga.NewManager(logger),
		notifier: newRecordingNotifier(),
		metrics:  metrics.New(),
	}

	h.service = NewTranscriptionService(h.sagas, transcription.Dependencies{
		SpeechToText: speech,
		Diarizer:     speech,
		Summarizer:   NewSummaryService(llm.NewMockGeminiClient(), logger),
		Jobs:         h.jobs,
		Logger:       logger,
	}, ServiceOptions{
		Language:       "en-US",
		SampleRate:     16000,
		Encoding:       "LINEAR16",
		MaxUploadBytes: 1 << 20,
		JobTimeout:     5 * time.Second,
	}, h.notifier, h.metrics)

	return h
}

func (h *serviceHarness) submitAndWait(t *testing.T, task entities.Task) *entities.TranscriptionJob {
	t.Helper()

	job, err := h.service.Submit(context.Background(), SubmitRequest{
		AudioName:      "sync.wav",
		Audio:          make([]byte, 20000),
		Task:           task,
		GroupBySpeaker: true,
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	finished, err := h.service.Wait(ctx, job.ID)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	return finished
}

func TestSubmitValidation(t *testing.T) {
	h := newServiceHarness(t)

	if _, err := h.service.Submit(context.Background(), SubmitRequest{AudioName: "empty.wav"}); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Expected ErrNoAudio, got %v", err)
	}

	_, err := h.service.Submit(context.Background(), SubmitRequest{Audio: make([]byte, 2<<20)})
	if !errors.Is(err, ErrAudioTooLarge) {
		t.Errorf("Expected ErrAudioTooLarge, got %v", err)
	}

	_, err = h.service.Submit(context.Background(), SubmitRequest{Audio: []byte("x"), Task: "poem"})
	if err == nil {
		t.Error("Expected error for unknown task")
	}

	jobs, _ := h.service.List(context.Background(), 10)
	if len(jobs) != 0 {
		t.Errorf("Rejected submissions should not create jobs, got %d", len(jobs))
	}
}

func TestSubmitTranscribe(t *testing.T) {
	h := newServiceHarness(t)

	job := h.submitAndWait(t, entities.TaskTranscribe)

	if job.Status != entities.JobStatusCompleted {
		t.Fatalf("Expected completed job, got %s (%s)", job.Status, job.Error)
	}
	if job.Language != "en-US" {
		t.Errorf("Expected default language, got %q", job.Language)
	}
	if len(job.Utterances) != 4 {
		t.Fatalf("Expected 4 utterances, got %d", len(job.Utterances))
	}
	if got := job.Speakers(); len(got) != 2 {
		t.Errorf("Expected two speakers, got %v", got)
	}

	text, err := h.service.Text(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Text returned error: %v", err)
	}
	if !strings.HasPrefix(text, "SPEAKER_00: Good morning everyone. Let's get started") {
		t.Errorf("Unexpected transcript text %q", text)
	}
	if lines := strings.Split(text, "\n"); len(lines) != 4 {
		t.Errorf("Expected 4 transcript lines, got %d", len(lines))
	}

	status, err := h.service.GetSagaStatus(job.ID)
	if err != nil {
		t.Fatalf("GetSagaStatus returned error: %v", err)
	}
	if status.State != string(saga.SagaStateCompleted) || len(status.Steps) != 6 {
		t.Errorf("Unexpected saga status %+v", status)
	}
}

func TestSubmitKeynote(t *testing.T) {
	h := newServiceHarness(t)

	job := h.submitAndWait(t, entities.TaskKeynote)

	text, err := h.service.Text(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Text returned error: %v", err)
	}
	if text != job.Summary || !strings.HasPrefix(text, "- SPEAKER_00: Good morning everyone.") {
		t.Errorf("Expected keynotes as text, got %q", text)
	}
}

func TestExport(t *testing.T) {
	h := newServiceHarness(t)
	job := h.submitAndWait(t, entities.TaskTranscribe)

	var buf bytes.Buffer
	if err := h.service.Export(context.Background(), job.ID, &buf); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Failed to open export: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Transcript")
	if err != nil {
		t.Fatalf("GetRows returned error: %v", err)
	}
	if len(rows) != 5 {
		t.Errorf("Expected header plus 4 rows, got %d", len(rows))
	}
	if rows[1][0] != "sync.wav" || rows[4][0] != "sync.wav" {
		t.Error("Expected audio name repeated on every row")
	}
}

func TestResultsRequireCompletedJob(t *testing.T) {
	h := newServiceHarness(t)
	queued := entities.NewTranscriptionJob("later.wav", "en-US", entities.TaskTranscribe, true)
	if err := h.jobs.Create(context.Background(), queued); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := h.service.Text(context.Background(), queued.ID); !errors.Is(err, ErrJobNotFinished) {
		t.Errorf("Expected ErrJobNotFinished, got %v", err)
	}
	if err := h.service.Export(context.Background(), queued.ID, &bytes.Buffer{}); !errors.Is(err, ErrJobNotFinished) {
		t.Errorf("Expected ErrJobNotFinished, got %v", err)
	}
	if _, err := h.service.Text(context.Background(), "missing"); !errors.Is(err, repositories.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func TestEventListenerPublishesProgress(t *testing.T) {
	h := newServiceHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.service.StartEventListener(ctx)

	job, err := h.service.Submit(context.Background(), SubmitRequest{Audio: make([]byte, 20000), GroupBySpeaker: true})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	select {
	case msg := <-h.notifier.final:
		if msg.Type != domain.ProgressJobCompleted || msg.JobID != job.ID {
			t.Errorf("Unexpected final message %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for final progress, got %v", h.notifier.types())
	}

	types := h.notifier.types()
	counts := map[string]int{}
	for _, typ := range types {
		counts[typ]++
	}
	if counts[domain.ProgressJobQueued] != 1 || counts[domain.ProgressStepCompleted] != 6 {
		t.Errorf("Unexpected progress messages %v", types)
	}

	if got := testutil.ToFloat64(h.metrics.JobsFinished.WithLabelValues("completed")); got != 1 {
		t.Errorf("Expected 1 completed job metric, got %v", got)
	}
	if got := testutil.ToFloat64(h.metrics.JobsSubmitted.WithLabelValues("transcribe")); got != 1 {
		t.Errorf("Expected 1 submitted job metric, got %v", got)
	}
}

func TestEventListenerReportsFailure(t *testing.T) {
	h := newServiceHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.service.StartEventListener(ctx)

	job := entities.NewTranscriptionJob("silent.wav", "en-US", entities.TaskKeynote, true)
	if err := h.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	data := transcription.NewSagaData(job.ID, nil, repositories.AudioConfig{})
	if err := h.sagas.StartSagaWithID(context.Background(), saga.SagaID(job.ID), transcription.DefinitionID, data); err != nil {
		t.Fatalf("StartSagaWithID returned error: %v", err)
	}

	select {
	case msg := <-h.notifier.final:
		if msg.Type != domain.ProgressJobFailed || !strings.Contains(msg.Error, "no audio detected") {
			t.Errorf("Unexpected final message %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for failure, got %v", h.notifier.types())
	}

	if got := testutil.ToFloat64(h.metrics.JobsFinished.WithLabelValues("failed")); got != 1 {
		t.Errorf("Expected 1 failed job metric, got %v", got)
	}
}

func TestJobCleanup(t *testing.T) {
	h := newServiceHarness(t)
	job := h.submitAndWait(t, entities.TaskTranscribe)

	cleanup := NewJobCleanupService(h.jobs, h.sagas, time.Minute, zaptest.NewLogger(t))
	cleanup.RunCleanup(time.Now().Add(48 * time.Hour))
	cleanup.Stop()
	cleanup.Stop()

	if _, err := h.jobs.GetByID(context.Background(), job.ID); !errors.Is(err, repositories.ErrJobNotFound) {
		t.Errorf("Expected expired job to be deleted, got %v", err)
	}
	if _, err := h.service.GetSagaStatus(job.ID); err == nil {
		t.Error("Expected finished saga to be pruned")
	}
}
