package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
)

// MemoryJobRepository is an in-memory implementation of JobRepository.
// Jobs are stored as copies so callers cannot mutate stored state.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*entities.TranscriptionJob // id -> job mapping
}

var _ repositories.JobRepository = (*MemoryJobRepository)(nil)

// NewMemoryJobRepository creates a new in-memory job repository
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]*entities.TranscriptionJob),
	}
}

// Create implements JobRepository interface
func (m *MemoryJobRepository) Create(ctx context.Context, job *entities.TranscriptionJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	// Generate ID if not provided
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	if err := job.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return errors.New("job with this ID already exists")
	}

	m.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetByID implements JobRepository interface
func (m *MemoryJobRepository) GetByID(ctx context.Context, id string) (*entities.TranscriptionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists || job.IsExpired(time.Now()) {
		return nil, repositories.ErrJobNotFound
	}

	return cloneJob(job), nil
}

// Update implements JobRepository interface
func (m *MemoryJobRepository) Update(ctx context.Context, job *entities.TranscriptionJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; !exists {
		return repositories.ErrJobNotFound
	}

	m.jobs[job.ID] = cloneJob(job)
	return nil
}

// ListRecent implements JobRepository interface
func (m *MemoryJobRepository) ListRecent(ctx context.Context, limit int) ([]*entities.TranscriptionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	jobs := make([]*entities.TranscriptionJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		if !job.IsExpired(now) {
			jobs = append(jobs, cloneJob(job))
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// DeleteExpired implements JobRepository interface
func (m *MemoryJobRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, job := range m.jobs {
		if job.IsExpired(now) {
			delete(m.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func cloneJob(job *entities.TranscriptionJob) *entities.TranscriptionJob {
	clone := *job
	clone.Utterances = append([]entities.AlignedUtterance(nil), job.Utterances...)
	if clone.Utterances == nil {
		clone.Utterances = make([]entities.AlignedUtterance, 0)
	}
	if job.CompletedAt != nil {
		completed := *job.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}
