package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skypro1111/voice-gateway/internal/conversation"
)

// OpenAIConfig contains OpenAI chat completions client configuration
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAIClient generates replies through the OpenAI chat completions API.
// It satisfies pipeline.Responder.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient creates an OpenAI chat completions client
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.Temperature <= 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 150
	}

	return &OpenAIClient{
		client:      openai.NewClient(config.APIKey),
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
	}, nil
}

// Generate sends the prompt window as a chat completion request
func (c *OpenAIClient) Generate(ctx context.Context, window []conversation.Message) (string, error) {
	if len(window) == 0 {
		return "", fmt.Errorf("prompt window cannot be empty")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    convertMessages(window),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return reply, nil
}

// Ping verifies API reachability and credentials
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai API unreachable: %w", err)
	}
	return nil
}

// convertMessages maps conversation roles onto OpenAI chat roles
func convertMessages(window []conversation.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(window))
	for _, msg := range window {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    convertRole(msg.Role),
			Content: msg.Content,
		})
	}
	return messages
}

func convertRole(role conversation.Role) string {
	switch role {
	case conversation.RoleSystem:
		return openai.ChatMessageRoleSystem
	case conversation.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
