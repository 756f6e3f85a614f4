package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skypro1111/voice-gateway/internal/conversation"
)

func testWindow() []conversation.Message {
	return []conversation.Message{
		{Role: conversation.RoleSystem, Content: "You are a test assistant."},
		{Role: conversation.RoleUser, Content: "Hello!"},
	}
}

func TestNewOllamaClientValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      OllamaConfig
		expectError bool
	}{
		{"valid", OllamaConfig{Endpoint: "http://localhost:11434", Model: "llama3.2:1b"}, false},
		{"missing endpoint", OllamaConfig{Model: "llama3.2:1b"}, true},
		{"missing model", OllamaConfig{Endpoint: "http://localhost:11434"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOllamaClient(tt.config)
			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestNewOllamaClientDefaults(t *testing.T) {
	client, err := NewOllamaClient(OllamaConfig{Endpoint: "http://localhost:11434/", Model: "m"})
	if err != nil {
		t.Fatalf("NewOllamaClient failed: %v", err)
	}

	if client.config.Timeout != 15*time.Second {
		t.Errorf("Expected default timeout 15s, got %v", client.config.Timeout)
	}
	if client.config.Temperature != 0.7 {
		t.Errorf("Expected default temperature 0.7, got %f", client.config.Temperature)
	}
	if client.config.MaxTokens != 150 {
		t.Errorf("Expected default max tokens 150, got %d", client.config.MaxTokens)
	}
	if client.config.Endpoint != "http://localhost:11434" {
		t.Errorf("Expected trailing slash stripped, got %s", client.config.Endpoint)
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected non-streaming request")
		}
		if req.Model != "llama3.2:1b" {
			t.Errorf("Expected model llama3.2:1b, got %s", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("Expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("Expected system message first, got %s", req.Messages[0].Role)
		}
		if req.Messages[1].Content != "Hello!" {
			t.Errorf("Expected user message content, got %q", req.Messages[1].Content)
		}
		if req.Options.Temperature != 0.7 {
			t.Errorf("Expected temperature 0.7, got %f", req.Options.Temperature)
		}
		if req.Options.NumPredict != 150 {
			t.Errorf("Expected num_predict 150, got %d", req.Options.NumPredict)
		}

		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "  Hi! Nice to meet you.  "},
			Done:    true,
		})
	}))
	defer server.Close()

	client, _ := NewOllamaClient(OllamaConfig{Endpoint: server.URL, Model: "llama3.2:1b"})

	reply, err := client.Generate(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reply != "Hi! Nice to meet you." {
		t.Errorf("Expected trimmed reply, got %q", reply)
	}
}

func TestGenerateEmptyWindow(t *testing.T) {
	client, _ := NewOllamaClient(OllamaConfig{Endpoint: "http://localhost:11434", Model: "m"})

	if _, err := client.Generate(context.Background(), nil); err == nil {
		t.Error("Expected error for empty window")
	}
}

func TestGenerateEmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "   "},
			Done:    true,
		})
	}))
	defer server.Close()

	client, _ := NewOllamaClient(OllamaConfig{Endpoint: server.URL, Model: "m"})

	if _, err := client.Generate(context.Background(), testWindow()); err == nil {
		t.Error("Expected error for empty model reply")
	}
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewOllamaClient(OllamaConfig{Endpoint: server.URL, Model: "m"})

	_, err := client.Generate(context.Background(), testWindow())
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "HTTP error 500") {
		t.Errorf("Expected HTTP error 500 in message, got %q", err.Error())
	}
}

func TestOllamaPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected path /api/tags, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{
				{"name": "llama3.2:1b"},
				{"name": "qwen2.5:3b"},
			},
		})
	}))
	defer server.Close()

	client, _ := NewOllamaClient(OllamaConfig{Endpoint: server.URL, Model: "llama3.2:1b"})
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Expected ping to succeed, got: %v", err)
	}
}

func TestOllamaPingModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "other-model"}},
		})
	}))
	defer server.Close()

	client, _ := NewOllamaClient(OllamaConfig{Endpoint: server.URL, Model: "llama3.2:1b"})

	err := client.Ping(context.Background())
	if err == nil {
		t.Fatal("Expected error for missing model")
	}
	if !strings.Contains(err.Error(), "not available") {
		t.Errorf("Expected model availability error, got %q", err.Error())
	}
}

func TestPullModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			t.Errorf("Expected path /api/pull, got %s", r.URL.Path)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode pull request: %v", err)
		}
		if req["name"] != "llama3.2:1b" {
			t.Errorf("Expected model name in pull request, got %q", req["name"])
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))
	defer server.Close()

	client, _ := NewOllamaClient(OllamaConfig{Endpoint: server.URL, Model: "llama3.2:1b"})
	if err := client.PullModel(context.Background()); err != nil {
		t.Errorf("PullModel failed: %v", err)
	}
}
