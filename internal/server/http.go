package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/voice-gateway/internal/audio"
	"github.com/skypro1111/voice-gateway/internal/config"
	"github.com/skypro1111/voice-gateway/internal/metrics"
	"github.com/skypro1111/voice-gateway/internal/pipeline"
)

// maxUploadSize bounds multipart audio uploads.
const maxUploadSize = 16 << 20 // 16 MB

// healthPingTimeout bounds each backend probe during a health check.
const healthPingTimeout = 5 * time.Second

// Pinger reports whether a speech backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthTarget is a named backend checked by the health endpoint.
type HealthTarget struct {
	Name   string
	Pinger Pinger
}

// HTTPServer provides the REST API of the voice gateway.
type HTTPServer struct {
	server       *http.Server
	logger       *slog.Logger
	config       *config.Config
	orchestrator *pipeline.Orchestrator
	synthesizer  pipeline.Synthesizer
	metrics      *metrics.Metrics
	backends     []HealthTarget
	extraStats   map[string]func() any
	startTime    time.Time
}

// NewHTTPServer creates the HTTP API server. The extraStats callbacks are
// evaluated on every stats request and merged into the response.
func NewHTTPServer(
	cfg *config.Config,
	logger *slog.Logger,
	orchestrator *pipeline.Orchestrator,
	synthesizer pipeline.Synthesizer,
	backends []HealthTarget,
	m *metrics.Metrics,
	extraStats map[string]func() any,
) *HTTPServer {
	s := &HTTPServer{
		logger:       logger,
		config:       cfg,
		orchestrator: orchestrator,
		synthesizer:  synthesizer,
		metrics:      m,
		backends:     backends,
		extraStats:   extraStats,
		startTime:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.withMetrics("/", s.handleRoot))
	mux.HandleFunc("/api/speech/chat", s.withMetrics("/api/speech/chat", s.handleSpeechChat))
	mux.HandleFunc("/chat/text", s.withMetrics("/chat/text", s.handleTextChat))
	mux.HandleFunc("/api/speech/synthesize", s.withMetrics("/api/speech/synthesize", s.handleSynthesize))
	mux.HandleFunc("/conversation/reset", s.withMetrics("/conversation/reset", s.handleReset))
	mux.HandleFunc("/conversation/history", s.withMetrics("/conversation/history", s.handleHistory))
	mux.HandleFunc("/health", s.withMetrics("/health", s.handleHealth))
	mux.HandleFunc("/config", s.withMetrics("/config", s.handleConfig))
	mux.HandleFunc("/stats", s.withMetrics("/stats", s.handleStats))
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests in the background.
func (s *HTTPServer) Start() error {
	s.logger.Info("Starting HTTP API server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// responseWriter captures the status code for metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// withMetrics wraps a handler with request metrics recording.
func (s *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		duration := time.Since(start)
		if s.metrics != nil {
			status := strconv.Itoa(rw.statusCode)
			s.metrics.RecordHTTPRequest(r.Method, endpoint, status, duration.Seconds())
			if rw.statusCode >= 400 {
				s.metrics.RecordHTTPError(r.Method, endpoint, status)
			}
		}
	}
}

// turnResponse is the JSON body returned by the speech chat endpoint.
// Audio is base64-encoded WAV and omitted when synthesis was skipped
// or degraded to text-only.
type turnResponse struct {
	RequestID      string  `json:"request_id"`
	Transcription  string  `json:"transcription"`
	Response       string  `json:"response"`
	ASRConfidence  float64 `json:"asr_confidence"`
	ProcessingTime float64 `json:"processing_time"`
	Audio          []byte  `json:"audio,omitempty"`
}

// handleSpeechChat runs a full voice turn: multipart audio in,
// transcription plus reply (and synthesized speech when available) out.
func (s *HTTPServer) handleSpeechChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing audio_file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read audio: "+err.Error())
		return
	}
	if len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, "empty audio upload")
		return
	}

	if audio.IsWAV(data) {
		if info, err := audio.Probe(data); err == nil {
			s.logger.Debug("Received audio",
				"filename", header.Filename,
				"size", len(data),
				"sample_rate", info.SampleRate,
				"duration", info.Duration)
		}
	} else {
		s.logger.Debug("Received non-WAV audio", "filename", header.Filename, "size", len(data))
	}

	result, err := s.orchestrator.Process(r.Context(), data)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, turnResponse{
		RequestID:      result.RequestID,
		Transcription:  result.Transcript,
		Response:       result.Reply,
		ASRConfidence:  result.Confidence,
		ProcessingTime: result.Elapsed.Seconds(),
		Audio:          result.Audio,
	})
}

// handleTextChat runs a text-only turn through the responder,
// bypassing speech recognition and synthesis.
func (s *HTTPServer) handleTextChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text cannot be empty")
		return
	}

	result, err := s.orchestrator.ProcessText(r.Context(), req.Text)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"request_id":      result.RequestID,
		"input":           result.Transcript,
		"response":        result.Reply,
		"processing_time": result.Elapsed.Seconds(),
	})
}

// handleSynthesize converts text to speech without touching the conversation.
func (s *HTTPServer) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text cannot be empty")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.TTS.GetTimeoutDuration())
	defer cancel()

	wav, err := s.synthesizer.Synthesize(ctx, req.Text)
	if err != nil {
		s.logger.Error("Synthesis failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="speech.wav"`)
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

// handleReset clears the conversation history.
func (s *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.orchestrator.Reset()
	s.logger.Info("Conversation history cleared")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "conversation history cleared",
	})
}

// handleHistory returns the current conversation turns.
func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	turns := s.orchestrator.History()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_turns": len(turns),
		"turns":       turns,
	})
}

// handleHealth probes each backend and reports overall service health.
// The service is "degraded" rather than unhealthy when a backend is down,
// since text-only operation remains possible.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	components := make(map[string]string, len(s.backends))
	healthy := true
	for _, target := range s.backends {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		err := target.Pinger.Ping(ctx)
		cancel()
		if err != nil {
			components[target.Name] = "unavailable: " + err.Error()
			healthy = false
		} else {
			components[target.Name] = "ok"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
	}

	s.writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
		"uptime":     time.Since(s.startTime).String(),
	})
}

// handleConfig returns the active configuration with secrets omitted.
func (s *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"http": map[string]any{
			"address": s.config.HTTP.Address,
			"port":    s.config.HTTP.Port,
		},
		"asr": map[string]any{
			"provider": s.config.ASR.Provider,
			"endpoint": s.config.ASR.Endpoint,
			"model":    s.config.ASR.Model,
			"language": s.config.ASR.Language,
			"timeout":  s.config.ASR.Timeout,
		},
		"llm": map[string]any{
			"provider":    s.config.LLM.Provider,
			"endpoint":    s.config.LLM.Endpoint,
			"model":       s.config.LLM.Model,
			"timeout":     s.config.LLM.Timeout,
			"temperature": s.config.LLM.Temperature,
			"max_tokens":  s.config.LLM.MaxTokens,
		},
		"tts": map[string]any{
			"provider": s.config.TTS.Provider,
			"endpoint": s.config.TTS.Endpoint,
			"model":    s.config.TTS.Model,
			"voice":    s.config.TTS.Voice,
			"timeout":  s.config.TTS.Timeout,
		},
		"conversation": map[string]any{
			"max_rounds": s.config.Conversation.MaxRounds,
		},
	})
}

// handleStats returns runtime statistics.
func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := s.orchestrator.GetStats()
	body := map[string]any{
		"uptime":              time.Since(s.startTime).String(),
		"turns_processed":     stats.TurnsProcessed,
		"turns_failed":        stats.TurnsFailed,
		"empty_transcripts":   stats.EmptyTranscripts,
		"synthesis_fallbacks": stats.SynthesisFallbacks,
		"avg_turn_time":       stats.AvgTurnTime.String(),
		"conversation_turns":  stats.ConversationTurns,
	}
	for name, fn := range s.extraStats {
		body[name] = fn()
	}

	s.writeJSON(w, http.StatusOK, body)
}

// handleRoot returns a short API description.
func (s *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "voice-gateway",
		"endpoints": map[string]string{
			"POST /api/speech/chat":       "full voice turn: multipart audio_file in, reply text and speech out",
			"POST /chat/text":             "text-only turn through the language model",
			"POST /api/speech/synthesize": "text to speech without conversation state",
			"POST /conversation/reset":    "clear conversation history",
			"GET /conversation/history":   "current conversation turns",
			"GET /health":                 "backend health",
			"GET /config":                 "active configuration",
			"GET /stats":                  "runtime statistics",
			"GET /metrics":                "Prometheus metrics",
		},
	})
}

// writePipelineError maps a turn failure to an HTTP response. Stage
// failures come from backends, so they surface as bad gateway.
func (s *HTTPServer) writePipelineError(w http.ResponseWriter, err error) {
	var stageErr *pipeline.PipelineError
	if errors.As(err, &stageErr) {
		s.logger.Error("Pipeline stage failed", "stage", stageErr.Stage, "error", stageErr.Err)
		s.writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": fmt.Sprintf("%s stage failed", stageErr.Stage),
			"stage": string(stageErr.Stage),
		})
		return
	}
	s.logger.Error("Request failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]any{"error": message})
}
