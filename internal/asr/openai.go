package asr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skypro1111/voice-gateway/internal/pipeline"
)

// OpenAIConfig contains configuration for the hosted Whisper API client
type OpenAIConfig struct {
	APIKey   string
	Model    string
	Language string
}

// OpenAIClient transcribes audio through the OpenAI Whisper API. It
// satisfies pipeline.Transcriber.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAIClient creates a hosted Whisper API client
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	if config.Language == "" {
		config.Language = "en"
	}

	return &OpenAIClient{
		client:   openai.NewClient(config.APIKey),
		model:    config.Model,
		language: config.Language,
	}, nil
}

// Transcribe sends audio bytes to the Whisper API. The API reports no
// confidence score, so a non-empty transcript is reported with confidence
// 1.0 and an empty one with 0.0.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte) (pipeline.Transcript, error) {
	if len(audio) == 0 {
		return pipeline.Transcript{}, fmt.Errorf("audio submission is empty")
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: "turn.wav",
		Reader:   bytes.NewReader(audio),
		Language: c.language,
	})
	if err != nil {
		return pipeline.Transcript{}, fmt.Errorf("whisper API request failed: %w", err)
	}

	confidence := 1.0
	if strings.TrimSpace(resp.Text) == "" {
		confidence = 0.0
	}

	return pipeline.Transcript{
		Text:       resp.Text,
		Confidence: confidence,
	}, nil
}

// Ping verifies API reachability and credentials
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("whisper API unreachable: %w", err)
	}
	return nil
}
