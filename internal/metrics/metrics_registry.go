package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngested counts gateway events routed through detection.
	// Labels: kind = "join" | "message"
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_events_ingested_total",
			Help: "Gateway events routed through detection",
		},
		[]string{"kind"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_events_dropped_total",
			Help: "Gateway events dropped because their shard was full",
		},
		[]string{"kind"},
	)

	ThreatScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "antiraid_threat_score",
			Help:    "Fused threat score per evaluated event",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
		[]string{"kind"},
	)

	ThreatLevels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_threat_levels_total",
			Help: "Evaluated events per threat level",
		},
		[]string{"level"},
	)

	IncidentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_incidents_total",
			Help: "Incidents persisted",
		},
		[]string{"type"},
	)

	HoneypotCatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_honeypot_catches_total",
			Help: "Honeypot traps triggered",
		},
		[]string{"trap_type"},
	)

	// ActionsExecuted counts enforcement attempts.
	// Labels:
	//   - action: "monitor", "timeout", "kick", "ban", "lockdown"
	//   - outcome: "ok", "error", "cooldown"
	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_actions_total",
			Help: "Moderation actions by type and outcome",
		},
		[]string{"action", "outcome"},
	)

	RESTLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "antiraid_rest_request_duration_seconds",
			Help:    "Duration of Discord REST calls",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route"},
	)

	RESTRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_rest_retries_total",
			Help: "REST calls retried after a 429, 5xx or transport error",
		},
		[]string{"route"},
	)

	ActiveLockdowns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "antiraid_active_lockdowns",
			Help: "Guilds currently in lockdown",
		},
	)

	GatewayConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "antiraid_gateway_connected",
			Help: "1 while the gateway session is connected",
		},
	)

	PipelineSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "antiraid_pipeline_duration_seconds",
			Help:    "Time from event receipt to decision",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"kind"},
	)
)

// Registry bundles the in-process counters used by the status command.
type Registry struct {
	latency *LatencyHistogram
	ingress *IngressRateCounter
	gateway *GatewayHealth
}

func NewRegistry() *Registry {
	return &Registry{
		latency: NewLatencyHistogram(),
		ingress: NewIngressRateCounter(),
		gateway: NewGatewayHealth(),
	}
}

func (r *Registry) Latency() *LatencyHistogram { return r.latency }
func (r *Registry) Ingress() *IngressRateCounter { return r.ingress }
func (r *Registry) Gateway() *GatewayHealth   { return r.gateway }

var globalRegistry = NewRegistry()

func GetRegistry() *Registry {
	return globalRegistry
}
