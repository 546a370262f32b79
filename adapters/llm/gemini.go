package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/keynotes/domain/repositories"
)

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeoutSeconds  int
	maxAttempts     int
	retryDelay      time.Duration
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiLLM(client, config, logger), nil
}

func newGeminiLLM(client *genai.Client, config GeminiConfig, logger *zap.Logger) *GeminiLLM {
	// Apply defaults where needed
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	topP := config.TopP
	if topP == 0 {
		topP = float32(defaultTopP)
		logger.Info("Using default topP", zap.Float32("topP", topP))
	}

	topK := config.TopK
	if topK == 0 {
		topK = float32(defaultTopK)
		logger.Info("Using default topK", zap.Float32("topK", topK))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", timeoutSeconds))
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &GeminiLLM{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		topK:            topK,
		maxOutputTokens: maxOutputTokens,
		timeoutSeconds:  timeoutSeconds,
		maxAttempts:     maxAttempts,
		retryDelay:      time.Second,
	}
}

// Generate sends the prompt with the keynote instruction and returns the reply text
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := g.contentConfig()

	// Add retry logic
	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		response, err = g.generateOnce(ctx, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < g.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * g.retryDelay):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := responseText(response)
	if text == "" {
		return "", fmt.Errorf("no content generated")
	}

	g.logger.Info("Gemini content generated",
		zap.String("model", g.model),
		zap.Int("promptLength", len(prompt)),
		zap.Int("responseLength", len(text)))

	return text, nil
}

func (g *GeminiLLM) generateOnce(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.timeoutSeconds)*time.Second)
	defer cancel()

	return g.client.Models.GenerateContent(ctx, g.model, contents, config)
}

func (g *GeminiLLM) contentConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(keynoteInstruction, genai.RoleUser),
		SafetySettings:    safetySettings,
		Temperature:       genai.Ptr(g.temperature),
		TopP:              genai.Ptr(g.topP),
		TopK:              genai.Ptr(g.topK),
		MaxOutputTokens:   int32(g.maxOutputTokens),
	}
}

// responseText concatenates the text parts of the first candidate
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}
	candidate := response.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(text.String())
}
