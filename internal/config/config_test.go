package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns a fully valid configuration for mutation in tests.
func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:    8000,
			Address: "0.0.0.0",
		},
		ASR: ASRConfig{
			Provider:      ProviderWhisper,
			Endpoint:      "http://localhost:8001",
			Language:      "en",
			Timeout:       25,
			MaxRetries:    2,
			MaxConcurrent: 4,
		},
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:1b",
			Timeout:     15,
			Temperature: 0.7,
			MaxTokens:   150,
		},
		TTS: TTSConfig{
			Provider: ProviderPiper,
			Endpoint: "http://localhost:8002",
			Timeout:  15,
		},
		Conversation: ConversationConfig{
			MaxRounds: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid http port",
			mutate:      func(c *Config) { c.HTTP.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "empty http address",
			mutate:      func(c *Config) { c.HTTP.Address = "" },
			expectError: true,
			errorMsg:    "address cannot be empty",
		},
		{
			name:        "unknown asr provider",
			mutate:      func(c *Config) { c.ASR.Provider = "kaldi" },
			expectError: true,
			errorMsg:    "provider must be 'whisper' or 'openai'",
		},
		{
			name:        "whisper without endpoint",
			mutate:      func(c *Config) { c.ASR.Endpoint = "" },
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name: "openai asr without api key",
			mutate: func(c *Config) {
				c.ASR.Provider = ProviderOpenAI
				c.ASR.APIKey = ""
			},
			expectError: true,
			errorMsg:    "api_key cannot be empty",
		},
		{
			name:        "zero asr timeout",
			mutate:      func(c *Config) { c.ASR.Timeout = 0 },
			expectError: true,
			errorMsg:    "timeout must be at least 1 second",
		},
		{
			name:        "negative asr retries",
			mutate:      func(c *Config) { c.ASR.MaxRetries = -1 },
			expectError: true,
			errorMsg:    "max_retries cannot be negative",
		},
		{
			name:        "unknown llm provider",
			mutate:      func(c *Config) { c.LLM.Provider = "llamacpp" },
			expectError: true,
			errorMsg:    "provider must be 'ollama' or 'openai'",
		},
		{
			name:        "ollama without model",
			mutate:      func(c *Config) { c.LLM.Model = "" },
			expectError: true,
			errorMsg:    "model cannot be empty",
		},
		{
			name:        "temperature out of range",
			mutate:      func(c *Config) { c.LLM.Temperature = 2.5 },
			expectError: true,
			errorMsg:    "temperature must be between 0 and 2",
		},
		{
			name:        "unknown tts provider",
			mutate:      func(c *Config) { c.TTS.Provider = "espeak" },
			expectError: true,
			errorMsg:    "provider must be 'piper' or 'openai'",
		},
		{
			name:        "piper without endpoint",
			mutate:      func(c *Config) { c.TTS.Endpoint = "" },
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name:        "zero max rounds",
			mutate:      func(c *Config) { c.Conversation.MaxRounds = 0 },
			expectError: true,
			errorMsg:    "max_rounds must be at least 1",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errorMsg:    "format must be 'json' or 'text'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Error("Expected validation error but got none")
					return
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	content := `
http:
  port: 9000
  address: "127.0.0.1"

asr:
  provider: "whisper"
  endpoint: "http://localhost:8001"
  language: "en"
  timeout: 25
  max_retries: 2
  max_concurrent: 4

llm:
  provider: "ollama"
  endpoint: "http://localhost:11434"
  model: "llama3.2:1b"
  timeout: 15
  temperature: 0.7
  max_tokens: 150
  auto_pull: true

tts:
  provider: "piper"
  endpoint: "http://localhost:8002"
  timeout: 15

conversation:
  max_rounds: 5
  system_prompt: "You are a test assistant."

logging:
  level: "debug"
  format: "json"
  output: "stdout"
`

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.Address != "127.0.0.1" {
		t.Errorf("Expected address 127.0.0.1, got %s", cfg.HTTP.Address)
	}
	if cfg.ASR.Provider != ProviderWhisper {
		t.Errorf("Expected whisper provider, got %s", cfg.ASR.Provider)
	}
	if cfg.LLM.Model != "llama3.2:1b" {
		t.Errorf("Expected model llama3.2:1b, got %s", cfg.LLM.Model)
	}
	if !cfg.LLM.AutoPull {
		t.Error("Expected auto_pull to be true")
	}
	if cfg.Conversation.SystemPrompt != "You are a test assistant." {
		t.Errorf("Unexpected system prompt: %q", cfg.Conversation.SystemPrompt)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestConfigLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("http: [not: valid"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestDurationHelpers(t *testing.T) {
	asr := ASRConfig{Timeout: 25}
	if got := asr.GetTimeoutDuration(); got != 25*time.Second {
		t.Errorf("Expected 25s, got %v", got)
	}

	llm := LLMConfig{Timeout: 15}
	if got := llm.GetTimeoutDuration(); got != 15*time.Second {
		t.Errorf("Expected 15s, got %v", got)
	}

	tts := TTSConfig{Timeout: 15}
	if got := tts.GetTimeoutDuration(); got != 15*time.Second {
		t.Errorf("Expected 15s, got %v", got)
	}
}
