package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/saga"
)

// JobCleanupService handles background removal of expired jobs and finished sagas
type JobCleanupService struct {
	jobs        repositories.JobRepository
	sagaManager *saga.Manager
	interval    time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewJobCleanupService creates a new job cleanup service
func NewJobCleanupService(jobs repositories.JobRepository, sagaManager *saga.Manager, interval time.Duration, logger *zap.Logger) *JobCleanupService {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &JobCleanupService{
		jobs:        jobs,
		sagaManager: sagaManager,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *JobCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Job cleanup service started", zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *JobCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info("Job cleanup service stopped")
	})
}

// cleanupLoop runs the cleanup process periodically
func (s *JobCleanupService) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			s.RunCleanup(now)
		}
	}
}

// RunCleanup deletes expired jobs and forgets sagas finished more than one interval before now
func (s *JobCleanupService) RunCleanup(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := s.jobs.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("Failed to delete expired jobs", zap.Error(err))
	}

	pruned := s.sagaManager.Prune(now.Add(-s.interval))

	s.logger.Info("Job cleanup completed",
		zap.Int64("deletedJobs", deleted),
		zap.Int("prunedSagas", pruned))
}
