package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/keynotes/adapters/llm"
	"github.com/satriahrh/keynotes/domain/entities"
)

type recordingLLM struct {
	prompt string
	reply  string
	err    error
}

func (r *recordingLLM) Generate(ctx context.Context, prompt string) (string, error) {
	r.prompt = prompt
	return r.reply, r.err
}

func TestSummaryServiceBuildsPrompt(t *testing.T) {
	model := &recordingLLM{reply: "  - greeting\n"}
	svc := NewSummaryService(model, zaptest.NewLogger(t))

	summary, err := svc.Summarize(context.Background(), []entities.AlignedUtterance{
		{SpeakerLabel: "A", Text: "hi there "},
		{SpeakerLabel: "B", Text: "bye"},
	})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary != "- greeting" {
		t.Errorf("Expected trimmed summary, got %q", summary)
	}
	if !strings.HasSuffix(model.prompt, "A: hi there\nB: bye") {
		t.Errorf("Expected transcript at the end of the prompt, got %q", model.prompt)
	}
}

func TestSummaryServiceEmptyTranscript(t *testing.T) {
	model := &recordingLLM{}
	svc := NewSummaryService(model, zaptest.NewLogger(t))

	if _, err := svc.Summarize(context.Background(), nil); !errors.Is(err, ErrNothingToSummarize) {
		t.Errorf("Expected ErrNothingToSummarize, got %v", err)
	}
	if model.prompt != "" {
		t.Error("LLM should not be called for an empty transcript")
	}
}

func TestSummaryServiceLLMError(t *testing.T) {
	cause := errors.New("quota")
	svc := NewSummaryService(&recordingLLM{err: cause}, zaptest.NewLogger(t))

	_, err := svc.Summarize(context.Background(), []entities.AlignedUtterance{{SpeakerLabel: "A", Text: "hello"}})
	if !errors.Is(err, cause) {
		t.Errorf("Expected wrapped LLM error, got %v", err)
	}
}

func TestSummaryServiceWithMockModel(t *testing.T) {
	svc := NewSummaryService(llm.NewMockGeminiClient(), zaptest.NewLogger(t))

	summary, err := svc.Summarize(context.Background(), []entities.AlignedUtterance{
		{SpeakerLabel: "SPEAKER_00", Text: "Let's ship on Friday."},
		{SpeakerLabel: "SPEAKER_01", Text: "Agreed."},
	})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}

	want := "- SPEAKER_00: Let's ship on Friday.\n- SPEAKER_01: Agreed."
	if summary != want {
		t.Errorf("Summarize() = %q, want %q", summary, want)
	}
}
