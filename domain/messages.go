package domain

import "time"

// Progress message types pushed to clients following a job
const (
	ProgressJobQueued     = "job_queued"
	ProgressStepStarted   = "step_started"
	ProgressStepCompleted = "step_completed"
	ProgressStepFailed    = "step_failed"
	ProgressJobCompleted  = "job_completed"
	ProgressJobFailed     = "job_failed"
)

// JobProgressMessage reports a change in a transcription job's processing
type JobProgressMessage struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Step      string    `json:"step,omitempty"`
	Error     string    `json:"error,omitempty"`
	Dropped   int       `json:"dropped_chunks,omitempty"`
	ElapsedMs int64     `json:"elapsed_ms,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsFinal reports whether no further messages will follow for the job
func (m *JobProgressMessage) IsFinal() bool {
	return m.Type == ProgressJobCompleted || m.Type == ProgressJobFailed
}
