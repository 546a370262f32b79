package llm

import (
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.3
	defaultTopP           = 0.95
	defaultTopK           = 40
	defaultMaxTokens      = 1024
	defaultTimeoutSeconds = 60
	defaultMaxAttempts    = 3
)

// GeminiConfig holds configuration for the Gemini adapter
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model: model name (default: "gemini-2.0-flash")
// - Temperature, TopP: sampling values between 0 and 1
// - TopK, MaxOutputTokens: positive limits
// - TimeoutSeconds: per attempt timeout (default: 60)
// - MaxAttempts: attempts including the first (default: 3)
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
	MaxAttempts     int
}

// keynoteInstruction is sent as the system instruction of every request
const keynoteInstruction = `You write meeting keynotes.
Given a transcript where each line is "speaker: text", produce a short list of the key points,
decisions and action items. Mention speakers by their label when it matters. Do not invent facts.`

var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	// Validate temperature is in the valid range
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	// Validate topP is in the valid range
	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	if config.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be positive, got %d", config.MaxAttempts)
	}

	return nil
}
