package config

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ACCESS_KEY", "secret-key")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("STT_PROVIDER", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("DIARIZATION_PROVIDER", "")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("PORT", "")
	t.Setenv("SPEECH_SAMPLE_RATE", "")
	t.Setenv("JOB_TIMEOUT", "")

	cfg, err := Load(zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Errorf("Expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.STTProvider != ProviderMock {
		t.Errorf("Expected mock speech provider, got %s", cfg.STTProvider)
	}
	if cfg.SampleRate != defaultSampleRate {
		t.Errorf("Expected sample rate %d, got %d", defaultSampleRate, cfg.SampleRate)
	}
	if cfg.JobTimeout != defaultJobTimeout {
		t.Errorf("Expected job timeout %s, got %s", defaultJobTimeout, cfg.JobTimeout)
	}
	if cfg.UsesMongo() {
		t.Error("Expected in-memory storage without MONGODB_URI")
	}
}

func TestFromEnvParsesValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STT_PROVIDER", "HuggingFace")
	t.Setenv("SPEECH_SAMPLE_RATE", "48000")
	t.Setenv("MAX_SPEAKERS", "4")
	t.Setenv("JOB_TIMEOUT", "90s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("SPEECH_ENCODING", "flac")

	cfg := FromEnv()

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.STTProvider != ProviderHuggingFace {
		t.Errorf("Expected provider to be lower-cased, got %s", cfg.STTProvider)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", cfg.SampleRate)
	}
	if cfg.MaxSpeakers != 4 {
		t.Errorf("Expected 4 max speakers, got %d", cfg.MaxSpeakers)
	}
	if cfg.JobTimeout != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %s", cfg.JobTimeout)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Errorf("Expected 1024 upload bytes, got %d", cfg.MaxUploadBytes)
	}
	if cfg.Encoding != "FLAC" {
		t.Errorf("Expected FLAC encoding, got %s", cfg.Encoding)
	}
}

func TestFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SPEECH_SAMPLE_RATE", "fast")
	t.Setenv("JOB_TIMEOUT", "soon")

	cfg := FromEnv()

	if cfg.SampleRate != 0 {
		t.Errorf("Expected malformed sample rate to be ignored, got %d", cfg.SampleRate)
	}
	if cfg.JobTimeout != 0 {
		t.Errorf("Expected malformed timeout to be ignored, got %s", cfg.JobTimeout)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AccessKey:           "key",
			JWTSecret:           "secret",
			STTProvider:         ProviderMock,
			DiarizationProvider: ProviderMock,
			LLMProvider:         ProviderMock,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "missing access key", mutate: func(c *Config) { c.AccessKey = "" }, wantErr: true},
		{name: "unknown stt provider", mutate: func(c *Config) { c.STTProvider = "azure" }, wantErr: true},
		{name: "huggingface without token", mutate: func(c *Config) { c.STTProvider = ProviderHuggingFace }, wantErr: true},
		{name: "huggingface with token", mutate: func(c *Config) {
			c.STTProvider = ProviderHuggingFace
			c.HuggingFaceToken = "hf_token"
		}},
		{name: "huggingface cannot diarize", mutate: func(c *Config) { c.DiarizationProvider = ProviderHuggingFace }, wantErr: true},
		{name: "gemini without key", mutate: func(c *Config) { c.LLMProvider = ProviderGemini }, wantErr: true},
		{name: "speaker range inverted", mutate: func(c *Config) {
			c.MinSpeakers = 5
			c.MaxSpeakers = 2
		}, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.JobTimeout = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDevelopmentSecretFallback(t *testing.T) {
	cfg := &Config{Env: "development", AccessKey: "key"}
	cfg.applyDefaults(zaptest.NewLogger(t))

	if cfg.JWTSecret == "" {
		t.Error("Expected development JWT secret to be set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected development config to validate, got %v", err)
	}
}
