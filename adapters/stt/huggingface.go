package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
)

const (
	defaultHFBaseURL            = "https://api-inference.huggingface.co/models"
	defaultHFTranscriptionModel = "openai/whisper-large-v3"
	defaultHFSummarizationModel = "Falconsai/text_summarization"
	defaultHFMaxAttempts        = 3
	defaultHFRetryDelay         = time.Second
	defaultHFTimeout            = 5 * time.Minute
)

// HuggingFaceConfig holds configuration for the HuggingFace inference adapter
// Required fields:
// - Token: HuggingFace API token
// Optional fields with defaults:
// - BaseURL: inference endpoint root (default: "https://api-inference.huggingface.co/models")
// - TranscriptionModel: speech recognition model (default: "openai/whisper-large-v3")
// - SummarizationModel: summarization model (default: "Falconsai/text_summarization")
// - MaxAttempts: attempts per request including the first (default: 3)
// - RetryDelay: base delay between attempts, grows linearly (default: 1s)
type HuggingFaceConfig struct {
	Token              string
	BaseURL            string
	TranscriptionModel string
	SummarizationModel string
	MaxAttempts        int
	RetryDelay         time.Duration
	HTTPClient         *http.Client
}

// HuggingFace implements SpeechToText with hosted Whisper and LargeLanguageModel with a hosted summarizer
type HuggingFace struct {
	token              string
	baseURL            string
	transcriptionModel string
	summarizationModel string
	maxAttempts        int
	retryDelay         time.Duration
	client             *http.Client
	logger             *zap.Logger
}

var (
	_ repositories.SpeechToText       = (*HuggingFace)(nil)
	_ repositories.LargeLanguageModel = (*HuggingFace)(nil)
)

// errRetryable marks responses worth another attempt, such as a model still loading
var errRetryable = errors.New("retryable inference error")

// ValidateHuggingFaceConfig validates the HuggingFaceConfig
func ValidateHuggingFaceConfig(config HuggingFaceConfig) error {
	if config.Token == "" {
		return fmt.Errorf("huggingface token is required")
	}
	if config.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be positive, got %d", config.MaxAttempts)
	}
	if config.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be positive, got %s", config.RetryDelay)
	}
	return nil
}

// NewHuggingFace creates a new HuggingFace inference adapter
func NewHuggingFace(config HuggingFaceConfig, logger *zap.Logger) (*HuggingFace, error) {
	if err := ValidateHuggingFaceConfig(config); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultHFBaseURL
		logger.Info("Using default API base URL", zap.String("baseURL", baseURL))
	}

	transcriptionModel := config.TranscriptionModel
	if transcriptionModel == "" {
		transcriptionModel = defaultHFTranscriptionModel
		logger.Info("Using default transcription model", zap.String("model", transcriptionModel))
	}

	summarizationModel := config.SummarizationModel
	if summarizationModel == "" {
		summarizationModel = defaultHFSummarizationModel
		logger.Info("Using default summarization model", zap.String("model", summarizationModel))
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultHFMaxAttempts
	}

	retryDelay := config.RetryDelay
	if retryDelay == 0 {
		retryDelay = defaultHFRetryDelay
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHFTimeout}
	}

	return &HuggingFace{
		token:              config.Token,
		baseURL:            baseURL,
		transcriptionModel: transcriptionModel,
		summarizationModel: summarizationModel,
		maxAttempts:        maxAttempts,
		retryDelay:         retryDelay,
		client:             client,
		logger:             logger,
	}, nil
}

type whisperRequest struct {
	Inputs     string            `json:"inputs"`
	Parameters whisperParameters `json:"parameters"`
}

type whisperParameters struct {
	ReturnTimestamps bool `json:"return_timestamps"`
}

type whisperResponse struct {
	Text   string         `json:"text"`
	Chunks []whisperChunk `json:"chunks"`
}

// whisperChunk timestamps may carry a null end for the final chunk
type whisperChunk struct {
	Timestamp [2]*float64 `json:"timestamp"`
	Text      string      `json:"text"`
}

// Transcribe sends the audio to the hosted Whisper model with chunk timestamps enabled
func (h *HuggingFace) Transcribe(ctx context.Context, audioData []byte, config repositories.AudioConfig) (*entities.Transcription, error) {
	if len(audioData) == 0 {
		return nil, fmt.Errorf("no audio data received")
	}

	body, err := json.Marshal(whisperRequest{
		Inputs:     base64.StdEncoding.EncodeToString(audioData),
		Parameters: whisperParameters{ReturnTimestamps: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := h.post(ctx, h.transcriptionModel, body)
	if err != nil {
		return nil, err
	}

	var resp whisperResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode transcription: %w", err)
	}

	chunks := whisperChunks(resp.Chunks)

	h.logger.Info("HuggingFace transcription finished",
		zap.String("model", h.transcriptionModel),
		zap.Int("chunks", len(chunks)))

	return &entities.Transcription{
		Text:       resp.Text,
		Chunks:     chunks,
		Language:   config.Language,
		SampleRate: config.SampleRate,
	}, nil
}

func whisperChunks(in []whisperChunk) []entities.ASRChunk {
	chunks := make([]entities.ASRChunk, 0, len(in))
	for _, c := range in {
		var start, end float64
		if c.Timestamp[0] != nil {
			start = *c.Timestamp[0]
		}
		end = start
		if c.Timestamp[1] != nil {
			end = *c.Timestamp[1]
		}
		chunks = append(chunks, entities.ASRChunk{
			Timestamp: [2]float64{start, end},
			Text:      c.Text,
		})
	}
	return chunks
}

type summarizationRequest struct {
	Inputs string `json:"inputs"`
}

type summarizationResult struct {
	SummaryText string `json:"summary_text"`
}

// Generate summarizes the prompt with the hosted summarization model
func (h *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	body, err := json.Marshal(summarizationRequest{Inputs: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := h.post(ctx, h.summarizationModel, body)
	if err != nil {
		return "", err
	}

	var results []summarizationResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return "", fmt.Errorf("failed to decode summary: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no summary generated")
	}

	return results[0].SummaryText, nil
}

// post calls a model endpoint with bounded retries and linear backoff
func (h *HuggingFace) post(ctx context.Context, model string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", h.baseURL, model)

	var lastErr error
	for attempt := 0; attempt < h.maxAttempts; attempt++ {
		raw, err := h.do(ctx, url, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !errors.Is(err, errRetryable) {
			return nil, err
		}

		h.logger.Warn("Inference request failed, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < h.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * h.retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("inference request failed after %d attempts: %w", h.maxAttempts, lastErr)
}

func (h *HuggingFace) do(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", errRetryable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return raw, nil
	case resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d: %s", errRetryable, resp.StatusCode, string(raw))
	default:
		return nil, fmt.Errorf("inference API returned status %d: %s", resp.StatusCode, string(raw))
	}
}
