package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultLLMBaseURL = "https://openrouter.ai/api/v1"

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Classify ClassifyConfig
	Chat     ChatConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port          int
	AllowedOrigin string
	AdminToken    string
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	BaseURL   string
	APIKey    string
	Model     string // persona disambiguation
	ChatModel string // default for chat pass-through requests without a model
	Timeout   string
}

type ClassifyConfig struct {
	LLMEnabled bool
}

type ChatConfig struct {
	MaxMessages int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			BaseURL:   defaultLLMBaseURL,
			Model:     "anthropic/claude-3.5-haiku",
			ChatModel: "anthropic/claude-sonnet-4",
			Timeout:   "5s",
		},
		Classify: ClassifyConfig{
			LLMEnabled: true,
		},
		Chat: ChatConfig{
			MaxMessages: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, the JSON file at
// $XDG_CONFIG_HOME/folio/config.json and FOLIO_* environment variables,
// in that order. Secrets come from the environment or, failing that, the
// secrets file at $XDG_DATA_HOME/folio/secrets.json.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), newFileSecrets(secretsFilePath()))
}

func loadWith(b ConfigBackend, sec secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	applySecrets(&cfg, sec)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if _, err := c.LLMTimeout(); err != nil {
		return err
	}
	if c.Chat.MaxMessages <= 0 {
		return fmt.Errorf("chat.max_messages must be positive, got %d", c.Chat.MaxMessages)
	}
	return nil
}

// LLMTimeout parses llm.timeout.
func (c Config) LLMTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid llm.timeout %q: want a positive duration such as 5s", c.LLM.Timeout)
	}
	return d, nil
}

// LLMConfigured reports whether an upstream is usable. The hosted default
// needs an API key; any other base URL (a local Ollama or llama.cpp /v1
// endpoint) is taken as configured without one.
func (c Config) LLMConfigured() bool {
	if c.LLM.APIKey != "" {
		return true
	}
	base := strings.TrimRight(c.LLM.BaseURL, "/")
	return base != "" && base != defaultLLMBaseURL
}

func xdgDir(env string, fallback ...string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(append([]string{home}, fallback...)...)
	}
	return dir
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "folio")
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "folio", "config.json")
}

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}
