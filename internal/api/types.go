package api

import (
	"time"

	"github.com/satriahrh/keynotes/domain/entities"
)

// TokenRequest represents the request payload for client authentication
type TokenRequest struct {
	AccessKey string `json:"access_key" validate:"required"`
	ClientID  string `json:"client_id"`
}

// TokenResponse represents the response payload for client authentication
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// JobListResponse wraps a page of recent jobs
type JobListResponse struct {
	Jobs  []*entities.TranscriptionJob `json:"jobs"`
	Count int                          `json:"count"`
}

// TrackRequest is one raw diarization track in an align request
type TrackRequest struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	TrackID string  `json:"track_id"`
	Speaker string  `json:"speaker"`
}

// ChunkRequest is one timestamped transcript chunk in an align request
type ChunkRequest struct {
	Timestamp [2]float64 `json:"timestamp"`
	Text      string     `json:"text"`
}

// AlignRequest runs coalescing and alignment over caller-provided timelines
type AlignRequest struct {
	Tracks         []TrackRequest `json:"tracks"`
	Chunks         []ChunkRequest `json:"chunks"`
	GroupBySpeaker *bool          `json:"group_by_speaker,omitempty"`
}

// AlignResponse is the result of an align request
type AlignResponse struct {
	Segments      []entities.SpeakerSegment   `json:"segments"`
	Utterances    []entities.AlignedUtterance `json:"utterances"`
	DroppedChunks int                         `json:"dropped_chunks"`
	Text          string                      `json:"text"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
