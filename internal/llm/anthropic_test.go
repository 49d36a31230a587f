package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicProvider_Complete_Success(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)

		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "A line chart of rainfall."}],
			"usage": {"input_tokens": 50, "output_tokens": 10}
		}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		SystemPrompt:  "be brief",
		UserPrompt:    "draft",
		PriorMessages: []Message{{Role: RoleSystem, Content: "dropped"}, {Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Text != "A line chart of rainfall." {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 60 {
		t.Errorf("Expected 60 tokens, got %d", resp.TokensUsed)
	}
	if got.System != "be brief" {
		t.Errorf("Expected system prompt in the system field, got %q", got.System)
	}
	if len(got.Messages) != 2 {
		t.Errorf("Expected system turns to be dropped from messages, got %+v", got.Messages)
	}
	if got.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("Expected default model, got %s", got.Model)
	}
}

func TestAnthropicProvider_CompleteStructured_ToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0].Name != SuggestQuestionName {
			t.Errorf("Expected %s tool, got %+v", SuggestQuestionName, req.Tools)
		}
		if req.ToolChoice == nil || req.ToolChoice.Type != "auto" {
			t.Errorf("Expected auto tool choice, got %+v", req.ToolChoice)
		}

		_, _ = w.Write([]byte(`{
			"model": "claude-3-5-haiku-20241022",
			"content": [
				{"type": "text", "text": "Here is a question."},
				{"type": "tool_use", "id": "tu_1", "name": "suggest_question",
				 "input": {"question": "Which unit is used?", "suggested_answer": ["mm"]}}
			],
			"usage": {"input_tokens": 5, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.CompleteStructured(context.Background(), StructuredRequest{
		CompletionRequest: CompletionRequest{UserPrompt: "ask"},
		Function:          SuggestQuestionFunction(),
	})
	if err != nil {
		t.Fatalf("CompleteStructured failed: %v", err)
	}
	if !resp.Structured {
		t.Fatal("Expected structured response")
	}
	if !strings.Contains(string(resp.Arguments), "Which unit is used?") {
		t.Errorf("Unexpected arguments: %s", resp.Arguments)
	}
	if resp.Text != "Here is a question." {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
}

func TestAnthropicProvider_CompleteStructured_TextOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "Nothing else to ask."}]}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.CompleteStructured(context.Background(), StructuredRequest{Function: SuggestQuestionFunction()})
	if err != nil {
		t.Fatalf("CompleteStructured failed: %v", err)
	}
	if resp.Structured {
		t.Error("Expected unstructured response")
	}
}

func TestAnthropicProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "bad-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Complete(context.Background(), CompletionRequest{UserPrompt: "x"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "authentication_error") {
		t.Errorf("Expected API error type in message, got %v", err)
	}
}

func TestAnthropicProvider_Complete_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": []}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.Complete(context.Background(), CompletionRequest{UserPrompt: "x"}); err == nil {
		t.Fatal("Expected error for empty content")
	}
}

func TestAnthropicProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
