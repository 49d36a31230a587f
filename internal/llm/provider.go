package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoStructuredResult is returned when decoding a response that carried no function call
var ErrNoStructuredResult = errors.New("response has no structured result")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates free text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStructured asks for exactly one call of req.Function. A model that
	// answers in plain text instead yields Structured == false.
	CompleteStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Message is one turn of a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest contains the input for a free-text completion
type CompletionRequest struct {
	SystemPrompt string

	// UserPrompt is appended after PriorMessages as the final user turn
	UserPrompt string

	// PriorMessages carries earlier turns for multi-turn continuation
	PriorMessages []Message

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// Conversation returns the prior messages followed by the user prompt
func (r CompletionRequest) Conversation() []Message {
	out := make([]Message, 0, len(r.PriorMessages)+1)
	out = append(out, r.PriorMessages...)
	if r.UserPrompt != "" {
		out = append(out, Message{Role: RoleUser, Content: r.UserPrompt})
	}
	return out
}

// CompletionResponse contains the generated text
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Function describes a callable schema offered to the model
type Function struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// StructuredRequest is a completion that should be answered with one function call
type StructuredRequest struct {
	CompletionRequest

	Function Function

	// Count is how many records the caller wants overall; each round trip returns one
	Count int
}

// StructuredResponse carries either the function arguments or the plain-text answer
type StructuredResponse struct {
	Structured bool
	Arguments  json.RawMessage
	Text       string
	Model      string
	TokensUsed int
}

// Decode unmarshals the function arguments into v
func (r *StructuredResponse) Decode(v any) error {
	if !r.Structured {
		return ErrNoStructuredResult
	}
	if err := json.Unmarshal(r.Arguments, v); err != nil {
		return fmt.Errorf("decode %s arguments: %w", r.Model, err)
	}
	return nil
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Model:       "",
		Timeout:     60,
		MaxTokens:   400,
		Temperature: 0.7,
	}
}

func (c Config) model(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) maxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 400
}
