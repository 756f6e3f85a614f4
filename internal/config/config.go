package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in backend sections.
const (
	ProviderWhisper = "whisper"
	ProviderOllama  = "ollama"
	ProviderPiper   = "piper"
	ProviderOpenAI  = "openai"
)

// Config represents the complete service configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	ASR          ASRConfig          `yaml:"asr"`
	LLM          LLMConfig          `yaml:"llm"`
	TTS          TTSConfig          `yaml:"tts"`
	Conversation ConversationConfig `yaml:"conversation"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// ASRConfig contains speech recognition backend configuration
type ASRConfig struct {
	Provider      string `yaml:"provider"` // "whisper" or "openai"
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LLMConfig contains reply generation backend configuration
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "ollama" or "openai"
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Timeout     int     `yaml:"timeout"` // seconds
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	AutoPull    bool    `yaml:"auto_pull"` // pull the model on startup if missing (ollama only)
}

// TTSConfig contains speech synthesis backend configuration
type TTSConfig struct {
	Provider string `yaml:"provider"` // "piper" or "openai"
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// ConversationConfig contains conversation context policy
type ConversationConfig struct {
	MaxRounds          int    `yaml:"max_rounds"`
	SystemPrompt       string `yaml:"system_prompt"`
	ClarificationReply string `yaml:"clarification_reply"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.ASR.Validate(); err != nil {
		return fmt.Errorf("asr config: %w", err)
	}

	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}

	if err := c.TTS.Validate(); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}

	if err := c.Conversation.Validate(); err != nil {
		return fmt.Errorf("conversation config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates speech recognition configuration
func (a *ASRConfig) Validate() error {
	switch a.Provider {
	case ProviderWhisper:
		if a.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the whisper provider")
		}
	case ProviderOpenAI:
		if a.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for the openai provider")
		}
	default:
		return fmt.Errorf("provider must be 'whisper' or 'openai', got '%s'", a.Provider)
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", a.MaxRetries)
	}

	return nil
}

// Validate validates reply generation configuration
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderOllama:
		if l.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the ollama provider")
		}
		if l.Model == "" {
			return fmt.Errorf("model cannot be empty for the ollama provider")
		}
	case ProviderOpenAI:
		if l.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for the openai provider")
		}
	default:
		return fmt.Errorf("provider must be 'ollama' or 'openai', got '%s'", l.Provider)
	}

	if l.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", l.Timeout)
	}

	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", l.Temperature)
	}

	if l.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative, got %d", l.MaxTokens)
	}

	return nil
}

// Validate validates speech synthesis configuration
func (t *TTSConfig) Validate() error {
	switch t.Provider {
	case ProviderPiper:
		if t.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the piper provider")
		}
	case ProviderOpenAI:
		if t.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for the openai provider")
		}
	default:
		return fmt.Errorf("provider must be 'piper' or 'openai', got '%s'", t.Provider)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	return nil
}

// Validate validates conversation configuration
func (c *ConversationConfig) Validate() error {
	if c.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be at least 1, got %d", c.MaxRounds)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the recognition timeout as a time.Duration
func (a *ASRConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetTimeoutDuration returns the generation timeout as a time.Duration
func (l *LLMConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(l.Timeout) * time.Second
}

// GetTimeoutDuration returns the synthesis timeout as a time.Duration
func (t *TTSConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
