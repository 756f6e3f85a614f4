package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/voice-gateway/internal/conversation"
	"github.com/skypro1111/voice-gateway/internal/metrics"
)

// DefaultClarificationReply is returned when recognition produces an empty
// transcript.
const DefaultClarificationReply = "Sorry, I couldn't hear you clearly. Could you please try again?"

// Stage timeout defaults. Transcription gets the largest budget since audio
// decoding dominates turn latency.
const (
	DefaultTranscribeTimeout = 25 * time.Second
	DefaultRespondTimeout    = 15 * time.Second
	DefaultSynthesizeTimeout = 15 * time.Second
)

// Config contains orchestrator timeout and fallback policy.
type Config struct {
	TranscribeTimeout  time.Duration
	RespondTimeout     time.Duration
	SynthesizeTimeout  time.Duration
	ClarificationReply string
}

// Stats represents orchestrator processing statistics.
type Stats struct {
	TurnsProcessed     uint64        `json:"turns_processed"`
	TurnsFailed        uint64        `json:"turns_failed"`
	EmptyTranscripts   uint64        `json:"empty_transcripts"`
	SynthesisFallbacks uint64        `json:"synthesis_fallbacks"`
	AvgTurnTime        time.Duration `json:"avg_turn_time"`
	ConversationTurns  int           `json:"conversation_turns"`
}

// Orchestrator drives one conversational turn through the three pipeline
// stages in strict sequence: no stage starts before the previous one
// completes, and turns are never pipelined because the respond stage depends
// on conversation state mutated by earlier turns.
type Orchestrator struct {
	transcriber Transcriber
	responder   Responder
	synthesizer Synthesizer
	conv        *conversation.Context
	logger      *slog.Logger
	metrics     *metrics.Metrics
	config      Config

	// turnMu serializes turns: one in flight at a time per conversation.
	turnMu sync.Mutex

	// lastTrims tracks the conversation trim count already exported to metrics.
	lastTrims uint64

	// Statistics
	turnsProcessed     uint64
	turnsFailed        uint64
	emptyTranscripts   uint64
	synthesisFallbacks uint64
	avgTurnTime        time.Duration
	statsMu            sync.RWMutex
}

// New creates a pipeline orchestrator. The conversation context is owned by
// the orchestrator for the lifetime of the conversation session; metrics may
// be nil.
func New(transcriber Transcriber, responder Responder, synthesizer Synthesizer,
	conv *conversation.Context, logger *slog.Logger, m *metrics.Metrics, config Config) (*Orchestrator, error) {

	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if responder == nil {
		return nil, fmt.Errorf("responder cannot be nil")
	}
	if synthesizer == nil {
		return nil, fmt.Errorf("synthesizer cannot be nil")
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation context cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if config.TranscribeTimeout <= 0 {
		config.TranscribeTimeout = DefaultTranscribeTimeout
	}
	if config.RespondTimeout <= 0 {
		config.RespondTimeout = DefaultRespondTimeout
	}
	if config.SynthesizeTimeout <= 0 {
		config.SynthesizeTimeout = DefaultSynthesizeTimeout
	}
	if config.ClarificationReply == "" {
		config.ClarificationReply = DefaultClarificationReply
	}

	return &Orchestrator{
		transcriber: transcriber,
		responder:   responder,
		synthesizer: synthesizer,
		conv:        conv,
		logger:      logger,
		metrics:     m,
		config:      config,
	}, nil
}

// Process runs one audio submission through transcribe, respond, and
// synthesize. Transcribe and respond failures abort the turn with a
// *PipelineError; a synthesize failure degrades to a text-only result.
//
// An empty transcript is an expected outcome, not an error: the respond
// stage is skipped and a fixed clarification reply (still synthesized on a
// best-effort basis) is returned with confidence 0.
func (o *Orchestrator) Process(ctx context.Context, audio []byte) (*TurnResult, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	requestID := uuid.NewString()
	start := time.Now()

	// Stage 1: transcribe.
	stageStart := time.Now()
	tctx, cancel := context.WithTimeout(ctx, o.config.TranscribeTimeout)
	transcript, err := o.transcriber.Transcribe(tctx, audio)
	cancel()
	if err != nil {
		o.recordFailure(StageTranscribe, time.Since(stageStart))
		return nil, &PipelineError{Stage: StageTranscribe, Err: err}
	}
	o.recordStage(StageTranscribe, time.Since(stageStart))
	if o.metrics != nil {
		o.metrics.RecordTranscriptConfidence(transcript.Confidence)
	}

	if strings.TrimSpace(transcript.Text) == "" {
		o.logger.Warn("Empty transcript, returning clarification reply",
			slog.String("request_id", requestID),
		)
		o.statsMu.Lock()
		o.emptyTranscripts++
		o.statsMu.Unlock()
		if o.metrics != nil {
			o.metrics.RecordEmptyTranscript()
		}

		reply := o.config.ClarificationReply
		replyAudio := o.synthesizeOrDegrade(ctx, requestID, reply)
		result := &TurnResult{
			RequestID:  requestID,
			Transcript: "",
			Confidence: 0.0,
			Reply:      reply,
			Audio:      replyAudio,
			Elapsed:    time.Since(start),
		}
		o.recordTurn(result.Elapsed)
		return result, nil
	}

	o.logger.Info("Transcription complete",
		slog.String("request_id", requestID),
		slog.String("transcript", truncate(transcript.Text, 80)),
		slog.Float64("confidence", transcript.Confidence),
	)

	// Stage 2: respond. The user turn is appended before the backend call
	// and is intentionally not rolled back on failure; the next prompt
	// window simply carries the dangling user turn.
	o.conv.Append(conversation.RoleUser, transcript.Text)
	window := o.conv.PromptWindow()

	stageStart = time.Now()
	rctx, cancel := context.WithTimeout(ctx, o.config.RespondTimeout)
	reply, err := o.responder.Generate(rctx, window)
	cancel()
	if err != nil {
		o.recordFailure(StageRespond, time.Since(stageStart))
		return nil, &PipelineError{Stage: StageRespond, Err: err}
	}
	o.recordStage(StageRespond, time.Since(stageStart))
	o.conv.Append(conversation.RoleAssistant, reply)

	// Stage 3: synthesize. Text-only degradation on failure.
	replyAudio := o.synthesizeOrDegrade(ctx, requestID, reply)

	result := &TurnResult{
		RequestID:  requestID,
		Transcript: transcript.Text,
		Confidence: transcript.Confidence,
		Reply:      reply,
		Audio:      replyAudio,
		Elapsed:    time.Since(start),
	}
	o.recordTurn(result.Elapsed)
	o.syncConversationMetrics()

	o.logger.Info("Turn complete",
		slog.String("request_id", requestID),
		slog.Duration("elapsed", result.Elapsed),
		slog.Bool("audio", replyAudio != nil),
	)
	return result, nil
}

// ProcessText runs a text submission through the respond stage against the
// same conversation context, skipping transcription and synthesis.
func (o *Orchestrator) ProcessText(ctx context.Context, text string) (*TurnResult, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text input cannot be empty")
	}

	requestID := uuid.NewString()
	start := time.Now()

	o.conv.Append(conversation.RoleUser, text)
	window := o.conv.PromptWindow()

	rctx, cancel := context.WithTimeout(ctx, o.config.RespondTimeout)
	reply, err := o.responder.Generate(rctx, window)
	cancel()
	if err != nil {
		o.recordFailure(StageRespond, time.Since(start))
		return nil, &PipelineError{Stage: StageRespond, Err: err}
	}
	o.recordStage(StageRespond, time.Since(start))
	o.conv.Append(conversation.RoleAssistant, reply)

	result := &TurnResult{
		RequestID:  requestID,
		Transcript: text,
		Confidence: 1.0,
		Reply:      reply,
		Elapsed:    time.Since(start),
	}
	o.recordTurn(result.Elapsed)
	o.syncConversationMetrics()
	return result, nil
}

// syncConversationMetrics exports the conversation length and any trims that
// happened during the turn.
func (o *Orchestrator) syncConversationMetrics() {
	if o.metrics == nil {
		return
	}
	o.metrics.SetConversationTurns(o.conv.Len())
	for trims := o.conv.Trims(); o.lastTrims < trims; o.lastTrims++ {
		o.metrics.RecordConversationTrim()
	}
}

// synthesizeOrDegrade attempts synthesis of the reply text and returns nil
// audio on failure, logging a warning instead of failing the turn.
func (o *Orchestrator) synthesizeOrDegrade(ctx context.Context, requestID, text string) []byte {
	stageStart := time.Now()
	sctx, cancel := context.WithTimeout(ctx, o.config.SynthesizeTimeout)
	audio, err := o.synthesizer.Synthesize(sctx, text)
	cancel()
	if err != nil {
		o.logger.Warn("Synthesis failed, returning text-only result",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		o.statsMu.Lock()
		o.synthesisFallbacks++
		o.statsMu.Unlock()
		if o.metrics != nil {
			o.metrics.RecordSynthesisFallback()
			o.metrics.RecordStageDuration(string(StageSynthesize), time.Since(stageStart).Seconds())
		}
		return nil
	}
	o.recordStage(StageSynthesize, time.Since(stageStart))
	return audio
}

// Reset clears the conversation context. Idempotent.
func (o *Orchestrator) Reset() {
	o.conv.Clear()
	if o.metrics != nil {
		o.metrics.SetConversationTurns(0)
	}
	o.logger.Info("Conversation context cleared")
}

// History returns a read-only copy of the conversation log.
func (o *Orchestrator) History() []conversation.Turn {
	return o.conv.History()
}

// GetStats returns current orchestrator statistics.
func (o *Orchestrator) GetStats() Stats {
	o.statsMu.RLock()
	defer o.statsMu.RUnlock()

	return Stats{
		TurnsProcessed:     o.turnsProcessed,
		TurnsFailed:        o.turnsFailed,
		EmptyTranscripts:   o.emptyTranscripts,
		SynthesisFallbacks: o.synthesisFallbacks,
		AvgTurnTime:        o.avgTurnTime,
		ConversationTurns:  o.conv.Len(),
	}
}

func (o *Orchestrator) recordStage(stage Stage, elapsed time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordStageDuration(string(stage), elapsed.Seconds())
	}
}

func (o *Orchestrator) recordFailure(stage Stage, elapsed time.Duration) {
	o.statsMu.Lock()
	o.turnsFailed++
	o.statsMu.Unlock()
	if o.metrics != nil {
		o.metrics.RecordTurnFailure(string(stage))
		o.metrics.RecordStageDuration(string(stage), elapsed.Seconds())
	}
}

func (o *Orchestrator) recordTurn(elapsed time.Duration) {
	o.statsMu.Lock()
	o.turnsProcessed++
	if o.avgTurnTime == 0 {
		o.avgTurnTime = elapsed
	} else {
		o.avgTurnTime = (o.avgTurnTime + elapsed) / 2
	}
	o.statsMu.Unlock()
	if o.metrics != nil {
		o.metrics.RecordTurnProcessed(elapsed.Seconds())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
