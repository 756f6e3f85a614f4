// Package tts implements the speech synthesis backends of the pipeline.
// It provides an HTTP client for a self-hosted Piper synthesis service and
// an OpenAI speech API client. Both return WAV audio bytes and treat empty
// input as empty output without error.
package tts
