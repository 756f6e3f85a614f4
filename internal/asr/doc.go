// Package asr implements the speech recognition backends of the pipeline.
// It provides an HTTP client for a self-hosted Whisper transcription service
// with retry, backoff, and rate limiting, plus an OpenAI-backed client using
// the hosted Whisper API.
package asr
