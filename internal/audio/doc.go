// Package audio provides WAV format helpers for the voice gateway.
// It probes caller-submitted uploads for sanity logging and encodes PCM-16
// samples to WAV for tests and the mock backend server.
package audio
