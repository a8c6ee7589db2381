package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvAPIKey overrides whatever the secrets file holds.
const EnvAPIKey = "TOPBOT_API_KEY"

// ErrMissingCredential means no API key could be found for the provider.
// Callers treat it as fatal.
var ErrMissingCredential = errors.New("missing API credential")

type Secrets struct {
	OpenAIKey    string `yaml:"openai_key"`
	AnthropicKey string `yaml:"anthropic_key"`
}

// KeyFor returns the key for provider, or "" if none is set.
func (s Secrets) KeyFor(provider string) string {
	switch provider {
	case "openai":
		return strings.TrimSpace(s.OpenAIKey)
	case "anthropic":
		return strings.TrimSpace(s.AnthropicKey)
	}
	return ""
}

// LoadSecrets parses the YAML secrets file.
func LoadSecrets(path string) (Secrets, error) {
	var s Secrets
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse secrets %s: %w", path, err)
	}
	return s, nil
}

// LoadCredential resolves the API key for the configured provider. The
// environment wins over the secrets file. A missing or unreadable file, a
// corrupt file and an empty key all yield ErrMissingCredential.
func (c *Config) LoadCredential() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return v, nil
	}

	path := c.Resolve(c.SecretsFile)
	s, err := LoadSecrets(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s is missing or corrupted: %v", ErrMissingCredential, path, err)
	}
	key := s.KeyFor(c.Provider)
	if key == "" {
		return "", fmt.Errorf("%w: %s has no key for provider %q", ErrMissingCredential, path, c.Provider)
	}
	return key, nil
}

// Redact keeps the last four characters of key.
func Redact(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
