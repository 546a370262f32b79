package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
)

const jobsCollection = "transcription_jobs"

// JobRepository implements repositories.JobRepository using MongoDB
type JobRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new MongoDB job repository.
// Indexes are created in the background.
func NewJobRepository(db *mongo.Database, logger *zap.Logger) *JobRepository {
	r := &JobRepository{
		collection: db.Collection(jobsCollection),
		logger:     logger,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := r.EnsureIndexes(ctx); err != nil {
			logger.Error("Failed to create job indexes", zap.Error(err))
		} else {
			logger.Info("Job indexes created successfully")
		}
	}()

	return r
}

// EnsureIndexes creates the listing index and the TTL index on expires_at
func (r *JobRepository) EnsureIndexes(ctx context.Context) error {
	createdAtIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}

	statusIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "updated_at", Value: -1},
		},
	}

	// TTL index for automatic cleanup of expired jobs
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		createdAtIndex,
		statusIndex,
		ttlIndex,
	})
	return err
}

// Create stores a new job
func (r *JobRepository) Create(ctx context.Context, job *entities.TranscriptionJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, job); err != nil {
		r.logger.Error("Failed to create job", zap.Error(err), zap.String("jobID", job.ID))
		return fmt.Errorf("failed to create job: %w", err)
	}

	r.logger.Info("Job created", zap.String("jobID", job.ID), zap.String("task", string(job.Task)))
	return nil
}

// GetByID retrieves a job by its ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entities.TranscriptionJob, error) {
	var job entities.TranscriptionJob
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrJobNotFound
		}
		r.logger.Error("Failed to get job by ID", zap.Error(err), zap.String("jobID", id))
		return nil, err
	}

	// The TTL monitor runs once a minute, so expired documents can still be found
	if job.IsExpired(time.Now()) {
		return nil, repositories.ErrJobNotFound
	}

	return &job, nil
}

// Update replaces a stored job
func (r *JobRepository) Update(ctx context.Context, job *entities.TranscriptionJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	if err != nil {
		r.logger.Error("Failed to update job", zap.Error(err), zap.String("jobID", job.ID))
		return err
	}

	if result.MatchedCount == 0 {
		return repositories.ErrJobNotFound
	}

	r.logger.Debug("Job updated", zap.String("jobID", job.ID), zap.String("status", string(job.Status)))
	return nil
}

// ListRecent returns up to limit unexpired jobs, most recent first
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]*entities.TranscriptionJob, error) {
	filter := bson.M{"expires_at": bson.M{"$gt": time.Now()}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}). // Most recent first
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list jobs", zap.Error(err))
		return nil, err
	}
	defer cursor.Close(ctx)

	jobs := make([]*entities.TranscriptionJob, 0, limit)
	for cursor.Next(ctx) {
		var job entities.TranscriptionJob
		if err := cursor.Decode(&job); err != nil {
			r.logger.Error("Failed to decode job", zap.Error(err))
			continue
		}
		jobs = append(jobs, &job)
	}

	if err := cursor.Err(); err != nil {
		r.logger.Error("Cursor error", zap.Error(err))
		return nil, err
	}

	return jobs, nil
}

// DeleteExpired removes jobs whose retention window ended before now
func (r *JobRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		r.logger.Error("Failed to delete expired jobs", zap.Error(err))
		return 0, err
	}

	if result.DeletedCount > 0 {
		r.logger.Info("Deleted expired jobs", zap.Int64("count", result.DeletedCount))
	}
	return result.DeletedCount, nil
}
