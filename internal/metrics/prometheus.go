package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice gateway
type Metrics struct {
	// Pipeline turn metrics
	TurnsProcessed prometheus.Counter
	TurnsFailed    *prometheus.CounterVec
	TurnDuration   prometheus.Histogram
	StageDuration  *prometheus.HistogramVec

	// Recognition metrics
	EmptyTranscripts     prometheus.Counter
	TranscriptConfidence prometheus.Histogram

	// Synthesis metrics
	SynthesisFallbacks prometheus.Counter

	// Conversation metrics
	ConversationTurns prometheus.Gauge
	ConversationTrims prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Pipeline turn metrics
		TurnsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_turns_processed_total",
			Help: "Total number of conversational turns processed",
		}),
		TurnsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_turns_failed_total",
			Help: "Total number of turns aborted by a stage failure",
		}, []string{"stage"}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_turn_duration_seconds",
			Help:    "Wall-clock duration of complete turns",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~50s
		}, []string{"stage"}),

		// Recognition metrics
		EmptyTranscripts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_empty_transcripts_total",
			Help: "Total number of turns short-circuited by an empty transcript",
		}),
		TranscriptConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_transcript_confidence",
			Help:    "Confidence score of recognized transcripts",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Synthesis metrics
		SynthesisFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_synthesis_fallbacks_total",
			Help: "Total number of turns degraded to text-only after a synthesis failure",
		}),

		// Conversation metrics
		ConversationTurns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voice_conversation_turns",
			Help: "Current number of turns in the conversation log",
		}),
		ConversationTrims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_conversation_trims_total",
			Help: "Total number of trim/summarize passes over the conversation log",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordTurnProcessed records a completed turn and its duration
func (m *Metrics) RecordTurnProcessed(durationSeconds float64) {
	m.TurnsProcessed.Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// RecordTurnFailure records a turn aborted at the given stage
func (m *Metrics) RecordTurnFailure(stage string) {
	m.TurnsFailed.WithLabelValues(stage).Inc()
}

// RecordStageDuration records the duration of one pipeline stage
func (m *Metrics) RecordStageDuration(stage string, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordEmptyTranscript increments the empty transcript counter
func (m *Metrics) RecordEmptyTranscript() {
	m.EmptyTranscripts.Inc()
}

// RecordTranscriptConfidence records a transcript confidence score
func (m *Metrics) RecordTranscriptConfidence(confidence float64) {
	m.TranscriptConfidence.Observe(confidence)
}

// RecordSynthesisFallback increments the text-only degradation counter
func (m *Metrics) RecordSynthesisFallback() {
	m.SynthesisFallbacks.Inc()
}

// SetConversationTurns sets the current conversation log length
func (m *Metrics) SetConversationTurns(count int) {
	m.ConversationTurns.Set(float64(count))
}

// RecordConversationTrim increments the trim/summarize counter
func (m *Metrics) RecordConversationTrim() {
	m.ConversationTrims.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
