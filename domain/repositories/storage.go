package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/keynotes/domain/entities"
)

// ErrJobNotFound is returned when a job does not exist or has expired
var ErrJobNotFound = errors.New("transcription job not found")

// JobRepository defines data access methods for transcription jobs
type JobRepository interface {
	Create(ctx context.Context, job *entities.TranscriptionJob) error
	GetByID(ctx context.Context, id string) (*entities.TranscriptionJob, error)
	Update(ctx context.Context, job *entities.TranscriptionJob) error
	// ListRecent returns up to limit jobs, newest first
	ListRecent(ctx context.Context, limit int) ([]*entities.TranscriptionJob, error)
	// DeleteExpired removes jobs whose retention window ended before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
