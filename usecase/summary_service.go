package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/transcript"
)

// ErrNothingToSummarize is returned when the transcript has no text
var ErrNothingToSummarize = errors.New("transcript is empty, nothing to summarize")

const keynotePrompt = `Extract the key notes of the following conversation.
Answer with a short bulleted list, one point per line, in the language of the conversation.

`

// SummaryService turns an aligned transcript into keynotes
type SummaryService struct {
	llm    repositories.LargeLanguageModel
	logger *zap.Logger
}

// NewSummaryService creates a new summary service
func NewSummaryService(llm repositories.LargeLanguageModel, logger *zap.Logger) *SummaryService {
	return &SummaryService{
		llm:    llm,
		logger: logger,
	}
}

// Summarize builds the keynote prompt from the transcript and asks the LLM for keynotes
func (s *SummaryService) Summarize(ctx context.Context, utterances []entities.AlignedUtterance) (string, error) {
	text := transcript.Format(utterances)
	if strings.TrimSpace(text) == "" {
		return "", ErrNothingToSummarize
	}

	s.logger.Debug("Requesting keynotes",
		zap.Int("utterances", len(utterances)),
		zap.Int("promptLength", len(keynotePrompt)+len(text)))

	summary, err := s.llm.Generate(ctx, keynotePrompt+text)
	if err != nil {
		return "", fmt.Errorf("failed to generate keynotes: %w", err)
	}

	return strings.TrimSpace(summary), nil
}
