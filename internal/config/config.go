// Package config loads topbot.toml and the API credential.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/HexSleeves/topbot/internal/conversation"
)

const (
	DefaultConfigFile  = "topbot.toml"
	DefaultSecretsFile = "secrets.yaml"
	DefaultLogFile     = "topbot.log"
	DefaultProvider    = "openai"
	DefaultTimeout     = 60
)

type Config struct {
	Provider       string        `toml:"provider"`
	Model          string        `toml:"model"`
	BaseURL        string        `toml:"base_url"`
	BotName        string        `toml:"bot_name"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	SecretsFile    string        `toml:"secrets_file"`
	WorkDir        string        `toml:"work_dir"` // cwd for command-line providers
	Log            LogConfig     `toml:"log"`
	Journal        JournalConfig `toml:"journal"`

	// path the config was read from; relative paths resolve against its dir
	dir string
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type JournalConfig struct {
	Path string `toml:"path"` // empty disables the journal
}

func DefaultConfig() *Config {
	return &Config{
		Provider:       DefaultProvider,
		BotName:        conversation.DefaultBotName,
		TimeoutSeconds: DefaultTimeout,
		SecretsFile:    DefaultSecretsFile,
		Log: LogConfig{
			Level: "info",
			File:  DefaultLogFile,
		},
	}
}

// Load reads path on top of DefaultConfig. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.dir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.BotName == "" {
		c.BotName = d.BotName
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = d.TimeoutSeconds
	}
	if c.SecretsFile == "" {
		c.SecretsFile = d.SecretsFile
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.File == "" {
		c.Log.File = d.Log.File
	}
}

// Save writes the config as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Resolve makes p relative to the config file's directory unless it is
// absolute or empty.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
