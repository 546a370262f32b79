package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
)

// TestJobRepository_Integration tests the MongoDB job repository
// This test requires a running MongoDB instance (skipped if MONGODB_URI is not set)
func TestJobRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	client, err := NewClient(ctx, mongoURI, "keynotes_test", logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)
	defer client.Database.Drop(ctx)

	repo := NewJobRepository(client.Database, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Run("CreateAndGetJob", func(t *testing.T) {
		job := entities.NewTranscriptionJob("meeting.wav", "en-US", entities.TaskTranscribe, true)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}

		retrieved, err := repo.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("Failed to get job: %v", err)
		}
		if retrieved.AudioName != "meeting.wav" {
			t.Errorf("Expected audio meeting.wav, got %s", retrieved.AudioName)
		}
		if retrieved.Status != entities.JobStatusQueued {
			t.Errorf("Expected status %s, got %s", entities.JobStatusQueued, retrieved.Status)
		}
	})

	t.Run("UpdateStoresUtterances", func(t *testing.T) {
		job := entities.NewTranscriptionJob("standup.wav", "en-US", entities.TaskKeynote, true)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}

		utterances := []entities.AlignedUtterance{
			{SpeakerLabel: "SPEAKER_00", Text: " hi there", Timestamp: [2]float64{0, 4.9}},
			{SpeakerLabel: "SPEAKER_01", Text: " bye", Timestamp: [2]float64{5, 9}},
		}
		job.Complete(utterances, "- greeting")
		if err := repo.Update(ctx, job); err != nil {
			t.Fatalf("Failed to update job: %v", err)
		}

		retrieved, err := repo.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("Failed to get job: %v", err)
		}
		if diff := cmp.Diff(utterances, retrieved.Utterances); diff != "" {
			t.Errorf("utterances mismatch (-want +got):\n%s", diff)
		}
		if retrieved.Summary != "- greeting" {
			t.Errorf("Expected summary to be stored, got %q", retrieved.Summary)
		}
	})

	t.Run("UnknownJob", func(t *testing.T) {
		if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, repositories.ErrJobNotFound) {
			t.Errorf("Expected ErrJobNotFound, got %v", err)
		}

		job := entities.NewTranscriptionJob("ghost.wav", "en-US", entities.TaskTranscribe, true)
		if err := repo.Update(ctx, job); !errors.Is(err, repositories.ErrJobNotFound) {
			t.Errorf("Expected ErrJobNotFound on update, got %v", err)
		}
	})

	t.Run("ListAndDeleteExpired", func(t *testing.T) {
		expired := entities.NewTranscriptionJob("old.wav", "en-US", entities.TaskTranscribe, true)
		expired.ExpiresAt = time.Now().Add(-time.Hour)
		if err := repo.Create(ctx, expired); err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}

		jobs, err := repo.ListRecent(ctx, 10)
		if err != nil {
			t.Fatalf("Failed to list jobs: %v", err)
		}
		for _, job := range jobs {
			if job.ID == expired.ID {
				t.Error("Expired job should not be listed")
			}
		}

		deleted, err := repo.DeleteExpired(ctx, time.Now())
		if err != nil {
			t.Fatalf("Failed to delete expired jobs: %v", err)
		}
		if deleted < 1 {
			t.Errorf("Expected at least one deleted job, got %d", deleted)
		}
	})
}
