// Package server implements the HTTP API of the voice gateway.
// It exposes the speech and text chat endpoints backed by the pipeline
// orchestrator, conversation management endpoints, and the
// monitoring/health/metrics surface.
package server
