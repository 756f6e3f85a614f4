package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skypro1111/voice-gateway/internal/conversation"
)

// OllamaConfig contains Ollama chat client configuration
type OllamaConfig struct {
	Endpoint    string // base URL, e.g. http://localhost:11434
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// OllamaClient generates replies through an Ollama server's chat API. It
// satisfies pipeline.Responder.
type OllamaClient struct {
	config     OllamaConfig
	httpClient *http.Client
}

// chatRequest is the body of POST /api/chat
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// chatResponse is the body of a non-streaming /api/chat reply
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// tagsResponse is the body of GET /api/tags
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient creates a new Ollama chat client
func NewOllamaClient(config OllamaConfig) (*OllamaClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.Temperature <= 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 150
	}

	config.Endpoint = strings.TrimRight(config.Endpoint, "/")

	return &OllamaClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Generate sends the prompt window to the chat API and returns the reply
// text. The window arrives system turn first, oldest conversation turn next.
func (c *OllamaClient) Generate(ctx context.Context, window []conversation.Message) (string, error) {
	if len(window) == 0 {
		return "", fmt.Errorf("prompt window cannot be empty")
	}

	messages := make([]chatMessage, 0, len(window))
	for _, msg := range window {
		messages = append(messages, chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   false,
		Options: chatOptions{
			Temperature: c.config.Temperature,
			NumPredict:  c.config.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	reply := strings.TrimSpace(chatResp.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return reply, nil
}

// Ping checks server reachability and that the configured model is present
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create tags request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama server unhealthy: HTTP %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to parse tags response: %w", err)
	}
	for _, model := range tags.Models {
		if model.Name == c.config.Model {
			return nil
		}
	}
	return fmt.Errorf("model %q not available on ollama server", c.config.Model)
}

// PullModel requests a model download on the Ollama server. Pulls can take
// minutes; callers pass a context with an appropriately long deadline.
func (c *OllamaClient) PullModel(ctx context.Context) error {
	reqBody, err := json.Marshal(map[string]string{"name": c.config.Model})
	if err != nil {
		return fmt.Errorf("failed to encode pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/api/pull", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Model pulls exceed the chat timeout; use a dedicated client bound
	// only by the caller's context.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("pull request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pull failed: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
