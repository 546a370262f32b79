package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a transcription job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Task selects what the job produces
type Task string

const (
	// TaskTranscribe produces the speaker-labelled transcript only
	TaskTranscribe Task = "transcribe"
	// TaskKeynote additionally summarizes the transcript
	TaskKeynote Task = "keynote"
)

// ParseTask converts user input into a Task, defaulting to TaskTranscribe
func ParseTask(s string) (Task, error) {
	switch Task(strings.ToLower(strings.TrimSpace(s))) {
	case "", TaskTranscribe:
		return TaskTranscribe, nil
	case TaskKeynote:
		return TaskKeynote, nil
	default:
		return "", errors.New("task must be one of: transcribe, keynote")
	}
}

// jobRetention is how long finished jobs are kept after their last update
const jobRetention = 24 * time.Hour

// TranscriptionJob tracks one audio upload through recognition, alignment and summarization
type TranscriptionJob struct {
	ID             string             `json:"id" bson:"_id"`
	AudioName      string             `json:"audio" bson:"audio"`
	Language       string             `json:"language" bson:"language"`
	Task           Task               `json:"task" bson:"task"`
	GroupBySpeaker bool               `json:"group_by_speaker" bson:"group_by_speaker"`
	Status         JobStatus          `json:"status" bson:"status"`
	Utterances     []AlignedUtterance `json:"utterances" bson:"utterances"`
	Summary        string             `json:"summary,omitempty" bson:"summary,omitempty"`
	Error          string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	ExpiresAt      time.Time          `json:"expires_at" bson:"expires_at"`
}

// NewTranscriptionJob creates a queued job for an uploaded audio file
func NewTranscriptionJob(audioName, language string, task Task, groupBySpeaker bool) *TranscriptionJob {
	now := time.Now()
	return &TranscriptionJob{
		ID:             uuid.New().String(),
		AudioName:      audioName,
		Language:       language,
		Task:           task,
		GroupBySpeaker: groupBySpeaker,
		Status:         JobStatusQueued,
		Utterances:     make([]AlignedUtterance, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(jobRetention),
	}
}

// Start marks the job as running
func (j *TranscriptionJob) Start() {
	j.Status = JobStatusRunning
	j.touch()
}

// Complete stores the aligned transcript and optional summary
func (j *TranscriptionJob) Complete(utterances []AlignedUtterance, summary string) {
	if utterances == nil {
		utterances = make([]AlignedUtterance, 0)
	}
	j.Utterances = utterances
	j.Summary = summary
	j.Status = JobStatusCompleted
	j.Error = ""
	j.finish()
}

// Fail records why the job could not be finished
func (j *TranscriptionJob) Fail(err error) {
	j.Status = JobStatusFailed
	if err != nil {
		j.Error = err.Error()
	}
	j.finish()
}

// IsFinished reports whether the job reached a terminal status
func (j *TranscriptionJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// IsExpired checks if the job is past its retention window
func (j *TranscriptionJob) IsExpired(now time.Time) bool {
	return now.After(j.ExpiresAt)
}

// Speakers returns the distinct speaker labels in order of first appearance
func (j *TranscriptionJob) Speakers() []string {
	seen := make(map[string]bool)
	var speakers []string
	for _, u := range j.Utterances {
		if !seen[u.SpeakerLabel] {
			seen[u.SpeakerLabel] = true
			speakers = append(speakers, u.SpeakerLabel)
		}
	}
	return speakers
}

// Validate validates the job data
func (j *TranscriptionJob) Validate() error {
	if j.ID == "" {
		return errors.New("id is required")
	}

	if j.Task != TaskTranscribe && j.Task != TaskKeynote {
		return errors.New("invalid task")
	}

	switch j.Status {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
	default:
		return errors.New("invalid job status")
	}

	return nil
}

func (j *TranscriptionJob) touch() {
	j.UpdatedAt = time.Now()
	j.ExpiresAt = j.UpdatedAt.Add(jobRetention)
}

func (j *TranscriptionJob) finish() {
	j.touch()
	completed := j.UpdatedAt
	j.CompletedAt = &completed
}
