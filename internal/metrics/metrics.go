// Package metrics exposes Prometheus instrumentation for the voice pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voiceagent_calls_active",
		Help: "Currently active call sessions",
	})

	CallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceagent_calls_total",
		Help: "Total calls processed",
	})

	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceagent_turns_total",
		Help: "Total turns committed by the arbiter",
	})

	InterruptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceagent_interrupts_total",
		Help: "Total barge-in interrupts fired",
	})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceagent_tool_calls_total",
		Help: "Tool invocations by tool name and outcome",
	}, []string{"tool", "outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voiceagent_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceagent_e2e_duration_seconds",
		Help:    "End-to-end latency from speech-end to first TTS audio",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceagent_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	AudioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceagent_audio_chunks_processed_total",
		Help: "Total ingress audio chunks received",
	})

	BargeInEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceagent_bargein_evaluations_total",
		Help: "Ingress frames evaluated by the barge-in detector",
	})

	EmbeddingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceagent_embedding_duration_seconds",
		Help:    "Embedding generation latency",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5},
	})

	RAGDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceagent_rag_duration_seconds",
		Help:    "Retrieval latency (embed + vector search)",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5},
	})

	STTReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceagent_stt_reconnects_total",
		Help: "Streaming STT adapter reconnect/fallback attempts",
	})
)
