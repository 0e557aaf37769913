package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncAttemptsTotal counts sync attempts by direction and outcome status
	SyncAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_attempts_total",
			Help: "Total number of sync attempts",
		},
		[]string{"direction", "status"},
	)

	// WebhookEventsTotal counts inbound webhook events by platform, event type and result
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_webhook_events_total",
			Help: "Total number of webhook events received",
		},
		[]string{"platform", "event_type", "result"},
	)

	// OutboundPushDuration tracks outbound push latency per platform
	OutboundPushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_outbound_push_duration_seconds",
			Help:    "Outbound push duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform", "action"},
	)

	// PendingRetries tracks the number of due retries seen by the last sweep
	PendingRetries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_pending_retries",
			Help: "Number of due retries found by the last retry sweep",
		},
	)

	// RetriesExhaustedTotal counts logs forced to terminal failed after the ladder
	RetriesExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_retries_exhausted_total",
			Help: "Total number of sync operations that exhausted the retry ladder",
		},
		[]string{"direction"},
	)

	// ConnectorCacheSize tracks authenticated connectors held by the registry
	ConnectorCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_connector_cache_size",
			Help: "Number of authenticated connector instances in the registry cache",
		},
	)

	// ConflictsTotal counts mastering conflicts by entity type and winner
	ConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_conflicts_total",
			Help: "Total number of mastering conflicts recorded",
		},
		[]string{"entity_type", "winner"},
	)
)
