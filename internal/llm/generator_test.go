package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/altwrite/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name       string
	available  bool
	response   *CompletionResponse
	structured *StructuredResponse
	err        error
	calls      int
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) CompleteStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.structured, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

type recordingWaiter struct {
	keys []string
	err  error
}

func (w *recordingWaiter) Wait(ctx context.Context, key string) error {
	w.keys = append(w.keys, key)
	return w.err
}

func TestNewGenerator_DisabledProvider(t *testing.T) {
	generator, err := NewGenerator(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if generator.IsEnabled() {
		t.Error("Expected generator to be disabled")
	}
	if generator.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}

	_, err = generator.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
	_, err = generator.Structured(context.Background(), StructuredRequest{})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	if _, err := NewGenerator(Config{Provider: "bard"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestGenerator_Complete_RateLimitedPerModel(t *testing.T) {
	provider := &MockProvider{name: "mock", response: &CompletionResponse{Text: "ok", Model: "m1"}}
	waiter := &recordingWaiter{}
	generator := NewGeneratorWithProvider(provider, Config{Model: "default-model"}, WithLimiter(waiter))

	if _, err := generator.Complete(context.Background(), CompletionRequest{Model: "m1"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := generator.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	want := []string{"mock/m1", "mock/default-model"}
	if strings.Join(waiter.keys, ",") != strings.Join(want, ",") {
		t.Errorf("Expected limiter keys %v, got %v", want, waiter.keys)
	}
}

func TestGenerator_LimiterErrorSkipsProvider(t *testing.T) {
	provider := &MockProvider{name: "mock", response: &CompletionResponse{Text: "ok"}}
	generator := NewGeneratorWithProvider(provider, Config{}, WithLimiter(&recordingWaiter{err: context.Canceled}))

	_, err := generator.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("Expected no provider calls, got %d", provider.calls)
	}
}

func TestGenerator_PropagatesProviderError(t *testing.T) {
	cause := errors.New("boom")
	generator := NewGeneratorWithProvider(&MockProvider{name: "mock", err: cause}, Config{})

	if _, err := generator.Structured(context.Background(), StructuredRequest{}); !errors.Is(err, cause) {
		t.Errorf("Expected provider error, got %v", err)
	}
}

func TestGenerator_Structured_DecodesQAContent(t *testing.T) {
	provider := &MockProvider{
		name: "mock",
		structured: &StructuredResponse{
			Structured: true,
			Arguments:  []byte(`{"question":"Is the scale logarithmic?","suggested_answer":"Yes"}`),
		},
	}
	generator := NewGeneratorWithProvider(provider, Config{})

	resp, err := generator.Structured(context.Background(), StructuredRequest{Function: SuggestQuestionFunction()})
	if err != nil {
		t.Fatalf("Structured failed: %v", err)
	}

	var qa model.QAContent
	if err := resp.Decode(&qa); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if qa.Question != "Is the scale logarithmic?" || qa.PrimaryAnswer() != "Yes" {
		t.Errorf("Unexpected QA content: %+v", qa)
	}
}

func TestConfigFromModel_ReadsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	config := ConfigFromModel(model.LLMConfig{Provider: "openai", Model: "gpt-4o", Timeout: 9})
	if config.APIKey != "env-key" || config.Model != "gpt-4o" || config.Timeout != 9 {
		t.Errorf("Unexpected config: %+v", config)
	}

	config = ConfigFromModel(model.LLMConfig{Provider: "openai", APIKey: "explicit"})
	if config.APIKey != "explicit" {
		t.Errorf("Expected explicit key to win, got %s", config.APIKey)
	}

	config = ConfigFromModel(model.LLMConfig{Provider: "ollama"})
	if config.BaseURL != "http://ollama:11434" {
		t.Errorf("Expected Ollama base URL from env, got %s", config.BaseURL)
	}
}
