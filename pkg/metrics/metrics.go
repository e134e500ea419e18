// Package metrics exposes the pipeline's Prometheus instrumentation.
// Grounded on longregen-alicia's internal/adapters/metrics/prometheus.go —
// package-level promauto vars registered against the default registry,
// one file, no wrapper struct.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lokutor_sessions_active",
		Help: "Number of currently open streaming sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lokutor_sessions_total",
		Help: "Total streaming sessions opened",
	})

	CommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lokutor_commits_total",
		Help: "Total committed segments, by commit reason",
	}, []string{"reason"}) // "stability", "timeout", "force"

	ASRRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lokutor_asr_request_duration_seconds",
		Help:    "ASR re-decode call duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	ASRRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lokutor_asr_requests_total",
		Help: "Total ASR calls, by outcome",
	}, []string{"outcome"}) // "ok", "error", "filtered"

	MTRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lokutor_mt_request_duration_seconds",
		Help:    "Translation call duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	TTSRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lokutor_tts_request_duration_seconds",
		Help:    "TTS time from synthesis call start to first audio chunk",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	EndToEndLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lokutor_e2e_latency_seconds",
		Help:    "Commit-to-first-audio latency per segment",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
	})

	BackpressureDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lokutor_backpressure_degraded",
		Help: "Number of sessions currently in the Degraded backpressure state",
	})

	TTSQueueMS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lokutor_tts_queue_ms",
		Help: "Most recently reported queued TTS audio backlog, in milliseconds",
	})
)
