package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsInitiatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medcall",
			Name:      "calls_initiated_total",
			Help:      "Total outbound reminder calls placed.",
		},
		[]string{"outcome"}, // "success", "validation_error", "provider_error"
	)

	webhooksReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medcall",
			Name:      "webhooks_received_total",
			Help:      "Total provider webhooks routed by the orchestrator.",
		},
		[]string{"event"}, // "answered", "recording", "status", "incoming"
	)

	fallbackSMSCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medcall",
			Name:      "fallback_sms_total",
			Help:      "Total fallback SMS send attempts for unreachable patients.",
		},
		[]string{"outcome"}, // "sent", "error"
	)

	transcriptionDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medcall",
			Name:      "transcription_duration_seconds",
			Help:      "Duration of the full transcription fetch pipeline.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"}, // "success", "error"
	)

	storeFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medcall",
			Name:      "store_failures_total",
			Help:      "Call record upserts that failed and were swallowed.",
		},
	)
)
