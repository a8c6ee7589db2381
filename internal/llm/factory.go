package llm

import (
	"fmt"
	"time"
)

// ProviderConfig holds what's needed to construct a completion client.
type ProviderConfig struct {
	Provider string // "openai", "anthropic", "stub", "kimi", "claude-cli", "gemini", "opencode"
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	WorkDir  string // for CLI-based providers
}

// NeedsAPIKey reports whether provider talks to a hosted API.
func NeedsAPIKey(provider string) bool {
	switch provider {
	case "openai", "anthropic":
		return true
	}
	return false
}

// NewFromConfig creates the appropriate Client based on provider name.
func NewFromConfig(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout), nil

	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.Timeout), nil

	case "stub":
		fallback := TextReply("Stub reply: what would finishing this task look like?")
		s := NewStubClient()
		s.Fallback = &fallback
		return s, nil

	case "kimi":
		return NewCLIClient("kimi", []string{"--print", "--final-message-only", "-p"}, cfg.WorkDir, false), nil

	case "claude-cli", "claude-code":
		return NewCLIClient("claude", []string{"-p"}, cfg.WorkDir, false), nil

	case "gemini":
		return NewCLIClient("gemini", nil, cfg.WorkDir, true), nil

	case "opencode":
		return NewCLIClient("opencode", []string{"run"}, cfg.WorkDir, false), nil

	case "":
		return nil, fmt.Errorf("no completion provider configured (set provider in topbot.toml)")

	default:
		return nil, fmt.Errorf("unknown completion provider: %q", cfg.Provider)
	}
}
