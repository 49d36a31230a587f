package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrDisabled is returned when generation is requested without a configured provider
var ErrDisabled = errors.New("no LLM provider configured")

// Waiter blocks until a call for key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Generator is the engine's handle on the Generation Service. It applies
// defaults, rate limiting and logging around a Provider.
type Generator struct {
	provider Provider
	config   Config
	limiter  Waiter
	logger   *slog.Logger
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithLimiter rate limits calls per provider/model key
func WithLimiter(w Waiter) GeneratorOption {
	return func(g *Generator) { g.limiter = w }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a generator from configuration. An empty provider name
// yields a disabled generator rather than an error.
func NewGenerator(config Config, opts ...GeneratorOption) (*Generator, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return NewGeneratorWithProvider(provider, config, opts...), nil
}

// NewGeneratorWithProvider wraps an existing provider
func NewGeneratorWithProvider(provider Provider, config Config, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider: provider,
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsEnabled returns true if a provider is configured
func (g *Generator) IsEnabled() bool {
	return g != nil && g.provider != nil
}

// ProviderName returns the configured provider name
func (g *Generator) ProviderName() string {
	if !g.IsEnabled() {
		return ""
	}
	return g.provider.Name()
}

// Complete returns free text for req
func (g *Generator) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if !g.IsEnabled() {
		return nil, ErrDisabled
	}
	if err := g.wait(ctx, req.Model); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	if err != nil {
		g.logger.Warn("completion failed", "provider", g.provider.Name(), "model", req.Model, "error", err)
		return nil, err
	}

	g.logger.Debug("completion generated",
		"provider", g.provider.Name(),
		"model", resp.Model,
		"tokens", resp.TokensUsed,
		"duration", time.Since(start))
	return resp, nil
}

// Structured returns one function-call record for req
func (g *Generator) Structured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	if !g.IsEnabled() {
		return nil, ErrDisabled
	}
	if err := g.wait(ctx, req.Model); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.provider.CompleteStructured(ctx, req)
	if err != nil {
		g.logger.Warn("structured completion failed", "provider", g.provider.Name(), "model", req.Model, "error", err)
		return nil, err
	}

	g.logger.Debug("structured completion generated",
		"provider", g.provider.Name(),
		"model", resp.Model,
		"structured", resp.Structured,
		"duration", time.Since(start))
	return resp, nil
}

func (g *Generator) wait(ctx context.Context, model string) error {
	if g.limiter == nil {
		return nil
	}
	if model == "" {
		model = g.config.Model
	}
	if err := g.limiter.Wait(ctx, g.provider.Name()+"/"+model); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}
