package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camillamix"

// Session and broadcast metrics
var (
	// SessionsActive tracks currently open websocket sessions
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Currently open websocket sessions",
		},
	)

	// BroadcastMessagesTotal counts outbound messages by type, per recipient
	BroadcastMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Outbound session messages by type",
		},
		[]string{"type"},
	)

	// SessionsEvictedTotal counts sessions dropped for full buffers or write errors
	SessionsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions evicted because they could not keep up",
		},
	)

	// CommandsTotal counts inbound commands by kind and status (ok/rejected)
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound session commands by kind and status",
		},
		[]string{"kind", "status"},
	)

	// TickDuration tracks level tick processing time
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Level tick processing duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// BroadcasterPanicsTotal counts recovered panics in the coordinator loop
	BroadcasterPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcaster_panics_total",
			Help:      "Recovered panics in the broadcaster loop",
		},
	)
)

// DSP adapter metrics
var (
	// AdapterFailuresTotal counts advisory adapter failures by operation
	AdapterFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_failures_total",
			Help:      "DSP adapter failures by operation",
		},
		[]string{"op"},
	)

	// AdapterBreakerState tracks the query circuit breaker (0=closed, 1=half-open, 2=open)
	AdapterBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adapter_breaker_state",
			Help:      "DSP query circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// AdapterReconnectsTotal counts successful backend (re)connections
	AdapterReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_connects_total",
			Help:      "Successful DSP backend connections",
		},
	)
)

// Persistence metrics
var (
	// PresetSavesTotal counts preset writes by status (success/error)
	PresetSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preset_saves_total",
			Help:      "Preset saves by status",
		},
		[]string{"status"},
	)

	// ImportsTotal counts config imports by recognised source layout
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Config imports by provenance source",
		},
		[]string{"source"},
	)
)
