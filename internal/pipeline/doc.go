// Package pipeline implements the speech pipeline orchestrator.
// It sequences transcription, context-aware reply generation, and speech
// synthesis for one conversational turn, enforces per-stage timeouts, and
// degrades to a text-only result when synthesis fails.
package pipeline
