package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/voice-gateway/internal/asr"
	"github.com/skypro1111/voice-gateway/internal/config"
	"github.com/skypro1111/voice-gateway/internal/conversation"
	"github.com/skypro1111/voice-gateway/internal/llm"
	"github.com/skypro1111/voice-gateway/internal/metrics"
	"github.com/skypro1111/voice-gateway/internal/pipeline"
	"github.com/skypro1111/voice-gateway/internal/server"
	"github.com/skypro1111/voice-gateway/internal/tts"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voice-gateway"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("bind_address", cfg.HTTP.Address),
		slog.String("asr_provider", cfg.ASR.Provider),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("llm_model", cfg.LLM.Model),
		slog.String("tts_provider", cfg.TTS.Provider),
		slog.Int("max_rounds", cfg.Conversation.MaxRounds),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize speech backends
	transcriber, asrTarget, extraStats, err := buildTranscriber(cfg)
	if err != nil {
		logger.Error("Failed to create ASR client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	responder, llmTarget, err := buildResponder(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create LLM client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	synthesizer, ttsTarget, err := buildSynthesizer(cfg)
	if err != nil {
		logger.Error("Failed to create TTS client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize conversation context and pipeline orchestrator
	conv := conversation.NewContext(cfg.Conversation.SystemPrompt, cfg.Conversation.MaxRounds)
	orchestrator, err := pipeline.New(transcriber, responder, synthesizer, conv, logger, appMetrics,
		pipeline.Config{
			TranscribeTimeout:  cfg.ASR.GetTimeoutDuration(),
			RespondTimeout:     cfg.LLM.GetTimeoutDuration(),
			SynthesizeTimeout:  cfg.TTS.GetTimeoutDuration(),
			ClarificationReply: cfg.Conversation.ClarificationReply,
		})
	if err != nil {
		logger.Error("Failed to create pipeline orchestrator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Pipeline orchestrator initialized",
		slog.Duration("asr_timeout", cfg.ASR.GetTimeoutDuration()),
		slog.Duration("llm_timeout", cfg.LLM.GetTimeoutDuration()),
		slog.Duration("tts_timeout", cfg.TTS.GetTimeoutDuration()),
	)

	// Initialize HTTP API server
	backends := []server.HealthTarget{asrTarget, llmTarget, ttsTarget}
	httpServer := server.NewHTTPServer(cfg, logger, orchestrator, synthesizer, backends, appMetrics, extraStats)
	logger.Info("HTTP API server initialized",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := orchestrator.GetStats()
	logger.Info("Final pipeline statistics",
		slog.Uint64("turns_processed", stats.TurnsProcessed),
		slog.Uint64("turns_failed", stats.TurnsFailed),
		slog.Uint64("empty_transcripts", stats.EmptyTranscripts),
		slog.Uint64("synthesis_fallbacks", stats.SynthesisFallbacks),
	)

	logger.Info("Service stopped")
}

// buildTranscriber creates the configured speech recognition client. The
// self-hosted Whisper client also contributes per-request statistics to
// the stats endpoint.
func buildTranscriber(cfg *config.Config) (pipeline.Transcriber, server.HealthTarget, map[string]func() any, error) {
	extraStats := make(map[string]func() any)

	switch cfg.ASR.Provider {
	case config.ProviderWhisper:
		client, err := asr.NewWhisperClient(asr.Config{
			Endpoint:      cfg.ASR.Endpoint,
			APIKey:        cfg.ASR.APIKey,
			Timeout:       cfg.ASR.GetTimeoutDuration(),
			MaxRetries:    cfg.ASR.MaxRetries,
			MaxConcurrent: cfg.ASR.MaxConcurrent,
			Language:      cfg.ASR.Language,
		})
		if err != nil {
			return nil, server.HealthTarget{}, nil, err
		}
		extraStats["asr"] = func() any { return client.GetStats() }
		return client, server.HealthTarget{Name: "asr", Pinger: client}, extraStats, nil

	case config.ProviderOpenAI:
		client, err := asr.NewOpenAIClient(asr.OpenAIConfig{
			APIKey:   cfg.ASR.APIKey,
			Model:    cfg.ASR.Model,
			Language: cfg.ASR.Language,
		})
		if err != nil {
			return nil, server.HealthTarget{}, nil, err
		}
		return client, server.HealthTarget{Name: "asr", Pinger: client}, extraStats, nil

	default:
		return nil, server.HealthTarget{}, nil, fmt.Errorf("unknown ASR provider: %s", cfg.ASR.Provider)
	}
}

// buildResponder creates the configured reply generation client and,
// for Ollama with auto_pull enabled, pulls the model if missing.
func buildResponder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Responder, server.HealthTarget, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOllama:
		client, err := llm.NewOllamaClient(llm.OllamaConfig{
			Endpoint:    cfg.LLM.Endpoint,
			Model:       cfg.LLM.Model,
			Timeout:     cfg.LLM.GetTimeoutDuration(),
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			return nil, server.HealthTarget{}, err
		}
		if cfg.LLM.AutoPull {
			if err := client.Ping(ctx); err != nil {
				logger.Info("Model not available, pulling", slog.String("model", cfg.LLM.Model))
				if err := client.PullModel(ctx); err != nil {
					return nil, server.HealthTarget{}, fmt.Errorf("failed to pull model %s: %w", cfg.LLM.Model, err)
				}
				logger.Info("Model pulled", slog.String("model", cfg.LLM.Model))
			}
		}
		return client, server.HealthTarget{Name: "llm", Pinger: client}, nil

	case config.ProviderOpenAI:
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: float32(cfg.LLM.Temperature),
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			return nil, server.HealthTarget{}, err
		}
		return client, server.HealthTarget{Name: "llm", Pinger: client}, nil

	default:
		return nil, server.HealthTarget{}, fmt.Errorf("unknown LLM provider: %s", cfg.LLM.Provider)
	}
}

// buildSynthesizer creates the configured speech synthesis client.
func buildSynthesizer(cfg *config.Config) (pipeline.Synthesizer, server.HealthTarget, error) {
	switch cfg.TTS.Provider {
	case config.ProviderPiper:
		client, err := tts.NewPiperClient(tts.PiperConfig{
			Endpoint: cfg.TTS.Endpoint,
			Timeout:  cfg.TTS.GetTimeoutDuration(),
		})
		if err != nil {
			return nil, server.HealthTarget{}, err
		}
		return client, server.HealthTarget{Name: "tts", Pinger: client}, nil

	case config.ProviderOpenAI:
		client, err := tts.NewOpenAIClient(tts.OpenAIConfig{
			APIKey: cfg.TTS.APIKey,
			Model:  cfg.TTS.Model,
			Voice:  cfg.TTS.Voice,
		})
		if err != nil {
			return nil, server.HealthTarget{}, err
		}
		return client, server.HealthTarget{Name: "tts", Pinger: client}, nil

	default:
		return nil, server.HealthTarget{}, fmt.Errorf("unknown TTS provider: %s", cfg.TTS.Provider)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
