package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewWhisperClientValidation(t *testing.T) {
	if _, err := NewWhisperClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	client, err := NewWhisperClient(Config{Endpoint: "http://localhost:8001/"})
	if err != nil {
		t.Fatalf("NewWhisperClient failed: %v", err)
	}

	// Defaults applied, trailing slash stripped.
	if client.config.Timeout != 25*time.Second {
		t.Errorf("Expected default timeout 25s, got %v", client.config.Timeout)
	}
	if client.config.MaxConcurrent != 4 {
		t.Errorf("Expected default max concurrent 4, got %d", client.config.MaxConcurrent)
	}
	if client.config.Language != "en" {
		t.Errorf("Expected default language en, got %s", client.config.Language)
	}
	if client.config.Endpoint != "http://localhost:8001" {
		t.Errorf("Expected trailing slash stripped, got %s", client.config.Endpoint)
	}
}

func TestTranscribeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("Expected path /transcribe, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}

		file, header, err := r.FormFile("audio_file")
		if err != nil {
			t.Fatalf("Missing audio_file field: %v", err)
		}
		file.Close()
		if header.Filename != "turn.wav" {
			t.Errorf("Expected filename turn.wav, got %s", header.Filename)
		}
		if r.FormValue("language") != "uk" {
			t.Errorf("Expected language uk, got %s", r.FormValue("language"))
		}
		if r.FormValue("request_id") == "" {
			t.Error("Expected non-empty request_id field")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"transcript": "hello world",
			"confidence": 0.87,
			"language":   "uk",
		})
	}))
	defer server.Close()

	client, err := NewWhisperClient(Config{Endpoint: server.URL, Language: "uk"})
	if err != nil {
		t.Fatalf("NewWhisperClient failed: %v", err)
	}

	transcript, err := client.Transcribe(context.Background(), []byte("fake-audio"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "hello world" {
		t.Errorf("Expected transcript %q, got %q", "hello world", transcript.Text)
	}
	if transcript.Confidence != 0.87 {
		t.Errorf("Expected confidence 0.87, got %f", transcript.Confidence)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestTranscribeEmptyTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"transcript": "",
			"confidence": 0.0,
			"message":    "no speech detected",
		})
	}))
	defer server.Close()

	client, _ := NewWhisperClient(Config{Endpoint: server.URL})

	// An empty transcript is a valid result, not an error.
	transcript, err := client.Transcribe(context.Background(), []byte("silence"))
	if err != nil {
		t.Fatalf("Expected no error for empty transcript, got: %v", err)
	}
	if transcript.Text != "" {
		t.Errorf("Expected empty transcript, got %q", transcript.Text)
	}
	if transcript.Confidence != 0.0 {
		t.Errorf("Expected confidence 0.0, got %f", transcript.Confidence)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	client, _ := NewWhisperClient(Config{Endpoint: "http://localhost:8001"})

	if _, err := client.Transcribe(context.Background(), nil); err == nil {
		t.Error("Expected error for empty audio")
	}
}

func TestTranscribeRetriesServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"transcript": "recovered",
			"confidence": 0.8,
		})
	}))
	defer server.Close()

	client, _ := NewWhisperClient(Config{Endpoint: server.URL, MaxRetries: 2})

	transcript, err := client.Transcribe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Expected retry to recover, got: %v", err)
	}
	if transcript.Text != "recovered" {
		t.Errorf("Expected recovered transcript, got %q", transcript.Text)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}

	stats := client.GetStats()
	if stats.TotalRetries != 1 {
		t.Errorf("Expected 1 retry recorded, got %d", stats.TotalRetries)
	}
}

func TestTranscribeDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "Bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client, _ := NewWhisperClient(Config{Endpoint: server.URL, MaxRetries: 3})

	_, err := client.Transcribe(context.Background(), []byte("audio"))
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt for client error, got %d", attempts)
	}
	if !strings.Contains(err.Error(), "HTTP error 400") {
		t.Errorf("Expected HTTP error 400 in message, got %q", err.Error())
	}

	stats := client.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestWhisperPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected path /health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := NewWhisperClient(Config{Endpoint: server.URL})
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Expected healthy ping, got: %v", err)
	}
}

func TestWhisperPingUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := NewWhisperClient(Config{Endpoint: server.URL})
	if err := client.Ping(context.Background()); err == nil {
		t.Error("Expected error for unhealthy service")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"server error", errForTest("HTTP error 503: unavailable"), true},
		{"rate limited", errForTest("HTTP error 429: too many requests"), true},
		{"connection refused", errForTest("dial tcp: connection refused"), true},
		{"client error", errForTest("HTTP error 400: bad request"), false},
		{"parse error", errForTest("failed to parse response JSON"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

type errForTest string

func (e errForTest) Error() string { return string(e) }
