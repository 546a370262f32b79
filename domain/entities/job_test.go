package entities

import (
	"errors"
	"testing"
	"time"
)

func TestTranscriptionJobCreation(t *testing.T) {
	job := NewTranscriptionJob("meeting.wav", "en-US", TaskKeynote, true)

	if job.ID == "" {
		t.Error("Expected job ID to be generated")
	}

	if job.Status != JobStatusQueued {
		t.Errorf("Expected status %s, got %s", JobStatusQueued, job.Status)
	}

	if len(job.Utterances) != 0 {
		t.Errorf("Expected empty utterances, got %d", len(job.Utterances))
	}

	if !job.GroupBySpeaker {
		t.Error("Expected group by speaker to be kept")
	}

	if job.ExpiresAt.Sub(job.CreatedAt) != jobRetention {
		t.Errorf("Expected retention of %s, got %s", jobRetention, job.ExpiresAt.Sub(job.CreatedAt))
	}
}

func TestTranscriptionJobLifecycle(t *testing.T) {
	job := NewTranscriptionJob("meeting.wav", "en-US", TaskTranscribe, true)

	job.Start()
	if job.Status != JobStatusRunning {
		t.Errorf("Expected status %s, got %s", JobStatusRunning, job.Status)
	}
	if job.IsFinished() {
		t.Error("Running job should not be finished")
	}

	utterances := []AlignedUtterance{
		{SpeakerLabel: "A", Text: "hi there", Timestamp: [2]float64{0, 4.9}},
		{SpeakerLabel: "B", Text: "bye", Timestamp: [2]float64{5, 9}},
		{SpeakerLabel: "A", Text: "ok", Timestamp: [2]float64{9, 10}},
	}
	job.Complete(utterances, "")

	if job.Status != JobStatusCompleted {
		t.Errorf("Expected status %s, got %s", JobStatusCompleted, job.Status)
	}
	if job.CompletedAt == nil {
		t.Fatal("Expected CompletedAt to be set")
	}
	if !job.IsFinished() {
		t.Error("Completed job should be finished")
	}

	speakers := job.Speakers()
	if len(speakers) != 2 || speakers[0] != "A" || speakers[1] != "B" {
		t.Errorf("Expected speakers [A B], got %v", speakers)
	}
}

func TestTranscriptionJobCompleteWithNilUtterances(t *testing.T) {
	job := NewTranscriptionJob("silence.wav", "en-US", TaskTranscribe, false)
	job.Complete(nil, "")

	if job.Utterances == nil {
		t.Error("Expected non-nil utterances so the job serializes as an empty list")
	}
}

func TestTranscriptionJobFail(t *testing.T) {
	job := NewTranscriptionJob("meeting.wav", "en-US", TaskTranscribe, true)
	job.Start()
	job.Fail(ErrEmptyInput)

	if job.Status != JobStatusFailed {
		t.Errorf("Expected status %s, got %s", JobStatusFailed, job.Status)
	}
	if job.Error != ErrEmptyInput.Error() {
		t.Errorf("Expected error %q, got %q", ErrEmptyInput.Error(), job.Error)
	}
	if !job.IsFinished() {
		t.Error("Failed job should be finished")
	}
}

func TestTranscriptionJobExpiration(t *testing.T) {
	job := NewTranscriptionJob("meeting.wav", "en-US", TaskTranscribe, true)

	if job.IsExpired(time.Now()) {
		t.Error("Job should not be expired initially")
	}

	if !job.IsExpired(time.Now().Add(25 * time.Hour)) {
		t.Error("Job should be expired after the retention window")
	}
}

func TestTranscriptionJobValidation(t *testing.T) {
	job := NewTranscriptionJob("meeting.wav", "en-US", TaskTranscribe, true)
	if err := job.Validate(); err != nil {
		t.Errorf("Valid job should not have validation errors, got: %v", err)
	}

	job.Task = Task("translate")
	if err := job.Validate(); err == nil {
		t.Error("Job with unknown task should have validation error")
	}

	job.Task = TaskKeynote
	job.Status = JobStatus("paused")
	if err := job.Validate(); err == nil {
		t.Error("Job with invalid status should have validation error")
	}

	job.Status = JobStatusQueued
	job.ID = ""
	if err := job.Validate(); err == nil {
		t.Error("Job without ID should have validation error")
	}
}

func TestParseTask(t *testing.T) {
	tests := []struct {
		input   string
		want    Task
		wantErr bool
	}{
		{"", TaskTranscribe, false},
		{"transcribe", TaskTranscribe, false},
		{" Keynote ", TaskKeynote, false},
		{"summarize", "", true},
	}

	for _, tt := range tests {
		got, err := ParseTask(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTask(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTask(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTimeIntervalValidate(t *testing.T) {
	if err := (TimeInterval{Start: 1, End: 1}).Validate(); err != nil {
		t.Errorf("Zero-length interval should be valid, got %v", err)
	}

	err := (TimeInterval{Start: 2, End: 1}).Validate()
	var invalid *InvalidIntervalError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidIntervalError, got %v", err)
	}
	if invalid.Interval.Start != 2 || invalid.Interval.End != 1 {
		t.Errorf("Unexpected interval in error: %+v", invalid.Interval)
	}
}
