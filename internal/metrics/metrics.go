package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Ingestion metrics
	PayloadsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_payloads_processed_total",
			Help: "Webhook payloads processed",
		},
		[]string{"result"}, // inbound, status, noop, malformed, failed
	)

	Upserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_upserts_total",
			Help: "Message store upserts",
		},
		[]string{"kind", "outcome"},
	)

	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inbox_store_latency_seconds",
			Help:    "Message store upsert latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25},
		},
	)

	// Live update metrics
	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_broadcast_events_total",
			Help: "Events handed to the broadcaster",
		},
		[]string{"event"},
	)

	BroadcastDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_broadcast_dropped_total",
			Help: "Events dropped because a queue was full",
		},
		[]string{"stage"}, // dispatcher, client
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inbox_websocket_clients",
			Help: "Connected websocket clients",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_conversation_cache_lookups_total",
			Help: "Conversation cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)
)
