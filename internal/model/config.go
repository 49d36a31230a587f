package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete altwrite configuration
type Config struct {
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Store        StoreConfig       `yaml:"store" mapstructure:"store"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Session      SessionConfig     `yaml:"session" mapstructure:"session"`
	Settings     Settings          `yaml:"settings" mapstructure:"settings"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects and configures the generation provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// StoreConfig points at the persistence service
type StoreConfig struct {
	Backend string        `yaml:"backend" mapstructure:"backend"` // http, memory
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig controls read caching and the draft cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig limits calls to the generation provider
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes the draft worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// SessionConfig holds the host-surface defaults and engine behavior switches
type SessionConfig struct {
	StudySession         bool      `yaml:"study_session" mapstructure:"study_session"`
	StudyCondition       Condition `yaml:"study_condition" mapstructure:"study_condition"`
	AllowMultiplePending bool      `yaml:"allow_multiple_pending" mapstructure:"allow_multiple_pending"`
	MatchByContent       bool      `yaml:"match_by_content" mapstructure:"match_by_content"`
	KeepStaleResponses   bool      `yaml:"keep_stale_responses" mapstructure:"keep_stale_responses"`
	DraftModels          []string  `yaml:"draft_models" mapstructure:"draft_models"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	cacheDir := filepath.Join(os.TempDir(), "altwrite-cache")
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".altwrite", "cache")
	}

	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     30,
			MaxTokens:   400,
			Temperature: 0.7,
		},
		Store: StoreConfig{
			Backend: "http",
			BaseURL: "http://localhost:8000/backendapi/db",
			Timeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: 5 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Session: SessionConfig{
			StudyCondition: ConditionFull,
			DraftModels:    []string{"gpt-4o-mini", "gpt-4o"},
		},
		Settings: DefaultSettings(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
