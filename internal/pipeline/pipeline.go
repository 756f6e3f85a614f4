package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/skypro1111/voice-gateway/internal/conversation"
)

// Stage names one of the three sequential phases of a turn.
type Stage string

const (
	StageTranscribe Stage = "asr"
	StageRespond    Stage = "llm"
	StageSynthesize Stage = "tts"
)

// PipelineError reports a failed pipeline stage. Transcribe and respond
// failures abort the turn; synthesize failures never surface as a
// PipelineError because the turn degrades to text-only instead.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Transcript is the output of the transcribe stage.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcriber converts raw audio into recognized text with a confidence
// score in [0,1]. Implementations fail on backend unavailability or
// malformed audio.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (Transcript, error)
}

// Responder generates a reply for the given prompt window. The window is the
// system message followed by the bounded conversation history, oldest first.
type Responder interface {
	Generate(ctx context.Context, window []conversation.Message) (string, error)
}

// Synthesizer converts reply text into audio bytes. Empty input returns
// empty output without error.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// TurnResult is the composite outcome of one pipeline invocation. Audio is
// nil when synthesis failed or was skipped; the turn is still a success as
// long as Reply is populated.
type TurnResult struct {
	RequestID  string        `json:"request_id"`
	Transcript string        `json:"transcript"`
	Confidence float64       `json:"confidence"`
	Reply      string        `json:"reply"`
	Audio      []byte        `json:"audio,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}
