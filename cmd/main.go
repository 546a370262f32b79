package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/adapters"
	"github.com/satriahrh/keynotes/adapters/llm"
	"github.com/satriahrh/keynotes/adapters/mongo"
	"github.com/satriahrh/keynotes/adapters/stt"
	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/api"
	"github.com/satriahrh/keynotes/internal/auth"
	"github.com/satriahrh/keynotes/internal/config"
	"github.com/satriahrh/keynotes/internal/metrics"
	"github.com/satriahrh/keynotes/internal/saga"
	"github.com/satriahrh/keynotes/internal/saga/transcription"
	"github.com/satriahrh/keynotes/internal/websocket"
	"github.com/satriahrh/keynotes/usecase"
)

// multipartOverhead leaves room for form fields around the audio file
const multipartOverhead = 1 << 20

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { logger.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize adapters
	providers, closeProviders, err := newProviders(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize providers", zap.Error(err))
	}
	defer closeProviders()

	jobs, closeStorage, err := newJobRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer closeStorage()

	m := metrics.New()

	// Initialize WebSocket hub
	hub := websocket.NewHub(m, logger)
	go hub.Run(ctx)

	// Initialize usecase services
	sagaManager := saga.NewManager(logger)
	summaryService := usecase.NewSummaryService(providers.llm, logger)
	transcriptionService := usecase.NewTranscriptionService(sagaManager, transcription.Dependencies{
		SpeechToText: providers.stt,
		Diarizer:     providers.diarizer,
		Recognizer:   providers.recognizer,
		Summarizer:   summaryService,
		Jobs:         jobs,
		Logger:       logger,
	}, usecase.ServiceOptions{
		Language:       cfg.Language,
		SampleRate:     cfg.SampleRate,
		Encoding:       cfg.Encoding,
		MinSpeakers:    cfg.MinSpeakers,
		MaxSpeakers:    cfg.MaxSpeakers,
		MaxUploadBytes: cfg.MaxUploadBytes,
		JobTimeout:     cfg.JobTimeout,
	}, hub, m)
	transcriptionService.StartEventListener(ctx)

	cleanupService := usecase.NewJobCleanupService(jobs, sagaManager, cfg.CleanupEvery, logger)
	cleanupService.Start()
	defer cleanupService.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", cfg.MaxUploadBytes+multipartOverhead)))

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Transcriptions: transcriptionService,
		Hub:            hub,
		Issuer:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Metrics:        m,
		AccessKey:      cfg.AccessKey,
		Logger:         logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("stt", cfg.STTProvider),
		zap.String("diarization", cfg.DiarizationProvider),
		zap.String("llm", cfg.LLMProvider),
		zap.Bool("mongo", cfg.UsesMongo()))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	stop()

	logger.Info("Server exited")
}

type providerSet struct {
	stt        repositories.SpeechToText
	diarizer   repositories.Diarizer
	llm        repositories.LargeLanguageModel
	// recognizer is set when one provider serves both speech and diarization
	recognizer repositories.DiarizingSpeechToText
}

// newProviders builds the speech, diarization and LLM adapters selected in cfg
func newProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*providerSet, func(), error) {
	var (
		set     providerSet
		closers []func()
		google  *stt.GoogleSpeech
		hf      *stt.HuggingFace
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	mock := stt.NewMockSpeech(logger)

	if cfg.STTProvider == config.ProviderGoogle || cfg.DiarizationProvider == config.ProviderGoogle {
		g, err := stt.NewGoogleSpeech(ctx, cfg.GoogleCredentials, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Google speech client: %w", err)
		}
		google = g
		closers = append(closers, func() {
			if err := g.Close(); err != nil {
				logger.Error("Failed to close Google speech client", zap.Error(err))
			}
		})
	}

	if cfg.STTProvider == config.ProviderHuggingFace || cfg.LLMProvider == config.ProviderHuggingFace {
		h, err := stt.NewHuggingFace(stt.HuggingFaceConfig{
			Token:   cfg.HuggingFaceToken,
			BaseURL: cfg.HuggingFaceEndpoint,
		}, logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create HuggingFace client: %w", err)
		}
		hf = h
	}

	switch cfg.STTProvider {
	case config.ProviderGoogle:
		set.stt = google
	case config.ProviderHuggingFace:
		set.stt = hf
	default:
		set.stt = mock
	}

	switch cfg.DiarizationProvider {
	case config.ProviderGoogle:
		set.diarizer = google
	default:
		set.diarizer = mock
	}

	// Google answers both from a single diarized recognition, so the audio is only sent once
	if cfg.STTProvider == config.ProviderGoogle && cfg.DiarizationProvider == config.ProviderGoogle {
		set.recognizer = google
	}

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		set.llm = gemini
	case config.ProviderHuggingFace:
		set.llm = hf
	default:
		set.llm = llm.NewMockGeminiClient()
	}

	return &set, closeAll, nil
}

// newJobRepository returns the Mongo repository when configured, otherwise an in-memory one
func newJobRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.JobRepository, func(), error) {
	if !cfg.UsesMongo() {
		logger.Warn("MONGODB_URI not set, jobs are kept in memory")
		return adapters.NewMemoryJobRepository(), func() {}, nil
	}

	client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return nil, nil, err
	}

	repo := mongo.NewJobRepository(client.Database, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		client.Close(context.Background())
		return nil, nil, fmt.Errorf("failed to create job indexes: %w", err)
	}

	return repo, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(closeCtx)
	}, nil
}
