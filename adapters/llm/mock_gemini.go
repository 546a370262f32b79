package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/keynotes/domain/repositories"
)

// MockGeminiClient is a deterministic LargeLanguageModel for development and tests
type MockGeminiClient struct{}

// NewMockGeminiClient creates a new mock Gemini client
func NewMockGeminiClient() repositories.LargeLanguageModel {
	return &MockGeminiClient{}
}

// Generate returns the first transcript lines of the prompt as bullet points
func (g *MockGeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	var notes []string
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		speaker, text, found := strings.Cut(line, ": ")
		if !found || speaker == "" || text == "" {
			continue
		}
		notes = append(notes, "- "+line)
		if len(notes) == 3 {
			break
		}
	}

	if len(notes) == 0 {
		return "- No key points found.", nil
	}
	return strings.Join(notes, "\n"), nil
}
