package tts

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig contains OpenAI speech API client configuration
type OpenAIConfig struct {
	APIKey string
	Model  string
	Voice  string
}

// OpenAIClient synthesizes speech through the OpenAI speech API. It
// satisfies pipeline.Synthesizer.
type OpenAIClient struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

// NewOpenAIClient creates an OpenAI speech API client
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Model == "" {
		config.Model = string(openai.TTSModel1)
	}
	if config.Voice == "" {
		config.Voice = string(openai.VoiceAlloy)
	}

	return &OpenAIClient{
		client: openai.NewClient(config.APIKey),
		model:  openai.SpeechModel(config.Model),
		voice:  openai.SpeechVoice(config.Voice),
	}, nil
}

// Synthesize converts text into WAV audio bytes. Empty input returns empty
// output without calling the API.
func (c *OpenAIClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.model,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("speech API request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech API returned no audio")
	}
	return audio, nil
}

// Ping verifies API reachability and credentials
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("speech API unreachable: %w", err)
	}
	return nil
}
