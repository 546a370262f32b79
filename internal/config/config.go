package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultPort           = "8080"
	defaultEnv            = "production"
	defaultProvider       = "mock"
	defaultLanguage       = "en-US"
	defaultSampleRate     = 16000
	defaultEncoding       = "LINEAR16"
	defaultMaxUploadBytes = 50 << 20 // 50 MiB
	defaultMongoDatabase  = "keynotes"
	defaultJobTimeout     = 10 * time.Minute
	defaultCleanupEvery   = 5 * time.Minute
	defaultTokenTTL       = 24 * time.Hour
)

// Provider names accepted by the *_PROVIDER variables
const (
	ProviderMock        = "mock"
	ProviderGoogle      = "google"
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
)

// Config holds the server configuration.
// Values come from the process environment, optionally seeded from a .env file.
type Config struct {
	Port string
	Env  string

	// AccessKey is exchanged for a JWT at /api/v1/auth/token
	AccessKey string
	JWTSecret string
	TokenTTL  time.Duration

	STTProvider         string
	DiarizationProvider string
	LLMProvider         string

	Language    string
	SampleRate  int
	Encoding    string
	MinSpeakers int
	MaxSpeakers int

	MaxUploadBytes int64
	JobTimeout     time.Duration
	CleanupEvery   time.Duration

	// MongoURI enables the Mongo job repository; empty keeps jobs in memory
	MongoURI      string
	MongoDatabase string

	GeminiAPIKey        string
	GeminiModel         string
	HuggingFaceToken    string
	HuggingFaceEndpoint string
	GoogleCredentials   string
}

// Load reads the .env file if present and builds a Config from the environment
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := FromEnv()
	cfg.applyDefaults(logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables without applying defaults
func FromEnv() *Config {
	cfg := &Config{
		Port:                os.Getenv("PORT"),
		Env:                 os.Getenv("APP_ENV"),
		AccessKey:           os.Getenv("ACCESS_KEY"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		STTProvider:         strings.ToLower(os.Getenv("STT_PROVIDER")),
		DiarizationProvider: strings.ToLower(os.Getenv("DIARIZATION_PROVIDER")),
		LLMProvider:         strings.ToLower(os.Getenv("LLM_PROVIDER")),
		Language:            os.Getenv("SPEECH_LANGUAGE"),
		Encoding:            strings.ToUpper(os.Getenv("SPEECH_ENCODING")),
		MongoURI:            os.Getenv("MONGODB_URI"),
		MongoDatabase:       os.Getenv("MONGODB_DATABASE"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         os.Getenv("GEMINI_MODEL"),
		HuggingFaceToken:    os.Getenv("HF_TOKEN"),
		HuggingFaceEndpoint: os.Getenv("HF_ENDPOINT"),
		GoogleCredentials:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}

	if v := os.Getenv("SPEECH_SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SampleRate = n
		}
	}
	if v := os.Getenv("MIN_SPEAKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinSpeakers = n
		}
	}
	if v := os.Getenv("MAX_SPEAKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSpeakers = n
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.JobTimeout = d
		}
	}
	if v := os.Getenv("CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CleanupEvery = d
		}
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TokenTTL = d
		}
	}

	return cfg
}

func (c *Config) applyDefaults(logger *zap.Logger) {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.Env == "" {
		c.Env = defaultEnv
	}
	if c.STTProvider == "" {
		c.STTProvider = defaultProvider
		logger.Info("Using default speech provider", zap.String("provider", c.STTProvider))
	}
	if c.DiarizationProvider == "" {
		c.DiarizationProvider = defaultProvider
		logger.Info("Using default diarization provider", zap.String("provider", c.DiarizationProvider))
	}
	if c.LLMProvider == "" {
		c.LLMProvider = defaultProvider
		logger.Info("Using default LLM provider", zap.String("provider", c.LLMProvider))
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.SampleRate == 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.Encoding == "" {
		c.Encoding = defaultEncoding
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.CleanupEvery == 0 {
		c.CleanupEvery = defaultCleanupEvery
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = defaultMongoDatabase
	}
	if c.JWTSecret == "" && c.IsDevelopment() {
		c.JWTSecret = "development-secret"
		logger.Warn("JWT_SECRET not set, using development secret")
	}
}

// Validate checks the configuration for missing or inconsistent values
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("ACCESS_KEY environment variable is required")
	}

	switch c.STTProvider {
	case ProviderMock, ProviderGoogle, ProviderHuggingFace:
	default:
		return fmt.Errorf("unsupported STT_PROVIDER %q", c.STTProvider)
	}
	switch c.DiarizationProvider {
	case ProviderMock, ProviderGoogle:
	default:
		return fmt.Errorf("unsupported DIARIZATION_PROVIDER %q", c.DiarizationProvider)
	}
	switch c.LLMProvider {
	case ProviderMock, ProviderGemini, ProviderHuggingFace:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	if (c.STTProvider == ProviderHuggingFace || c.LLMProvider == ProviderHuggingFace) && c.HuggingFaceToken == "" {
		return fmt.Errorf("HF_TOKEN is required for the huggingface provider")
	}
	if c.LLMProvider == ProviderGemini && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required for the gemini LLM provider")
	}

	if c.SampleRate < 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.MinSpeakers < 0 || c.MaxSpeakers < 0 {
		return fmt.Errorf("speaker counts must be positive")
	}
	if c.MaxSpeakers != 0 && c.MinSpeakers > c.MaxSpeakers {
		return fmt.Errorf("MIN_SPEAKERS %d is greater than MAX_SPEAKERS %d", c.MinSpeakers, c.MaxSpeakers)
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("job timeout must be positive, got %s", c.JobTimeout)
	}

	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UsesMongo reports whether jobs are persisted in MongoDB
func (c *Config) UsesMongo() bool {
	return c.MongoURI != ""
}
