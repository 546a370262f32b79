package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiLLM {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-api-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	if err != nil {
		t.Fatalf("Failed to create genai client: %v", err)
	}

	g := newGeminiLLM(client, GeminiConfig{APIKey: "test-api-key"}, zaptest.NewLogger(t))
	g.retryDelay = time.Millisecond
	return g
}

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{name: "valid", config: GeminiConfig{APIKey: "key"}},
		{name: "missing key", config: GeminiConfig{}, wantErr: true},
		{name: "temperature too high", config: GeminiConfig{APIKey: "key", Temperature: 1.5}, wantErr: true},
		{name: "topP negative", config: GeminiConfig{APIKey: "key", TopP: -0.1}, wantErr: true},
		{name: "topK negative", config: GeminiConfig{APIKey: "key", TopK: -1}, wantErr: true},
		{name: "negative attempts", config: GeminiConfig{APIKey: "key", MaxAttempts: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeminiConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewGeminiLLMDefaults(t *testing.T) {
	g := newGeminiLLM(nil, GeminiConfig{APIKey: "key"}, zaptest.NewLogger(t))

	if g.model != defaultModel {
		t.Errorf("Expected default model %s, got %s", defaultModel, g.model)
	}
	if g.maxAttempts != defaultMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", defaultMaxAttempts, g.maxAttempts)
	}
	if g.timeoutSeconds != defaultTimeoutSeconds {
		t.Errorf("Expected timeout %d, got %d", defaultTimeoutSeconds, g.timeoutSeconds)
	}
}

func TestGeminiGenerate(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, defaultModel+":generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "SPEAKER_00: hello") {
			t.Errorf("Prompt missing from request body: %s", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"- Greeting "},{"text":"exchanged"}]}}]}`))
	})

	got, err := g.Generate(context.Background(), "SPEAKER_00: hello")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "- Greeting exchanged" {
		t.Errorf("Unexpected reply %q", got)
	}
}

func TestGeminiGenerateFailsAfterRetries(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
	})

	if _, err := g.Generate(context.Background(), "SPEAKER_00: hello"); err == nil {
		t.Error("Expected error when every attempt fails")
	}
}

func TestGeminiGenerateRejectsEmptyPrompt(t *testing.T) {
	g := newGeminiLLM(nil, GeminiConfig{APIKey: "key"}, zaptest.NewLogger(t))

	if _, err := g.Generate(context.Background(), "  "); err == nil {
		t.Error("Expected error for empty prompt")
	}
}

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Errorf("Expected empty text for nil response, got %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("Expected empty text without candidates, got %q", got)
	}

	response := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText("  key points  ", genai.RoleModel),
		}},
	}
	if got := responseText(response); got != "key points" {
		t.Errorf("Unexpected text %q", got)
	}
}

func TestMockGeminiClient(t *testing.T) {
	mock := NewMockGeminiClient()

	got, err := mock.Generate(context.Background(), "Summarize:\nSPEAKER_00: hi\nSPEAKER_01: hello\nSPEAKER_00: bye\nSPEAKER_01: later")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	want := "- SPEAKER_00: hi\n- SPEAKER_01: hello\n- SPEAKER_00: bye"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	if _, err := mock.Generate(context.Background(), ""); err == nil {
		t.Error("Expected error for empty prompt")
	}
}
