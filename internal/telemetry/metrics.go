package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency. Shared across all
// services.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "darktower",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// ACTokenIssuanceTotal counts service-token issuance attempts by internal
// outcome. outcome is never surfaced to clients (see pkg/apierr); it exists
// so operators can distinguish failure modes the client-visible
// invalid_client response deliberately collapses.
var ACTokenIssuanceTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "ac",
		Name:      "token_issuance_total",
		Help:      "Service token issuance attempts by outcome.",
	},
	[]string{"outcome"}, // success, unknown, bad_secret, disabled, insufficient_scope
)

// ACKeyRotationTotal counts signing-key rotation attempts.
var ACKeyRotationTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "ac",
		Name:      "key_rotation_total",
		Help:      "Signing key rotation attempts by status.",
	},
	[]string{"status"}, // success, rate_limited, error
)

// GCRegisteredControllers gauges fleet size by type and health status.
var GCRegisteredControllers = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "darktower",
		Subsystem: "gc",
		Name:      "registered_controllers",
		Help:      "Number of registered fleet members by type and status.",
	},
	[]string{"type", "status"}, // type: mc, mh; status: pending, healthy, degraded, unhealthy, draining
)

// GCMCAssignmentsTotal counts assignment attempts by outcome.
var GCMCAssignmentsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "gc",
		Name:      "mc_assignments_total",
		Help:      "Meeting assignment attempts by status.",
	},
	[]string{"status"}, // success, rejected, unavailable
)

// GCHeartbeatTotal counts heartbeats received by the fleet registry.
var GCHeartbeatTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "gc",
		Name:      "heartbeat_total",
		Help:      "Heartbeats received by fleet member type and kind.",
	},
	[]string{"member_type", "kind"}, // member_type: mc, mh; kind: fast, comprehensive
)

// MCSessionTokenTotal counts session binding token operations.
var MCSessionTokenTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "mc",
		Name:      "session_token_total",
		Help:      "Session binding token operations by outcome.",
	},
	[]string{"outcome"}, // issued, resumed, replayed, expired, redirected
)

// MCFencingGenerationBumpsTotal counts generation bumps handed out by the
// fenced KV client.
var MCFencingGenerationBumpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "mc",
		Name:      "fencing_generation_bumps_total",
		Help:      "Fencing generation bump operations.",
	},
	[]string{"result"}, // ok, store_unavailable
)

// MCGCRegistrationTotal counts MC->GC registration attempts.
var MCGCRegistrationTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "mc",
		Name:      "gc_registration_total",
		Help:      "MC to GC registration attempts by status.",
	},
	[]string{"status"}, // success, error, not_found
)

// MCAssignmentAcceptTotal counts AssignMeetingWithMh outcomes on the
// accepting side (C12).
var MCAssignmentAcceptTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "mc",
		Name:      "assignment_accept_total",
		Help:      "AssignMeetingWithMh calls by outcome.",
	},
	[]string{"result"}, // accepted, at_capacity, draining, invalid, error
)

// TokenManagerRefreshTotal counts C1 refresh attempts across all services
// that embed a token manager.
var TokenManagerRefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "darktower",
		Subsystem: "tokenmanager",
		Name:      "refresh_total",
		Help:      "Service token refresh attempts by status.",
	},
	[]string{"status", "error_kind"}, // status: success, error; error_kind enumerated, never raw
)

// All returns every collector a service should register, for use with
// NewMetricsRegistry.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		ACTokenIssuanceTotal,
		ACKeyRotationTotal,
		GCRegisteredControllers,
		GCMCAssignmentsTotal,
		GCHeartbeatTotal,
		MCSessionTokenTotal,
		MCFencingGenerationBumpsTotal,
		MCGCRegistrationTotal,
		MCAssignmentAcceptTotal,
		TokenManagerRefreshTotal,
	}
}

// Catalog lists every metric name this module defines, so CI tooling can
// assert each one appears in a dashboard panel (spec's bounded-cardinality
// guard). The guard itself lives in CI configuration, out of scope here.
func Catalog() []string {
	return []string{
		"darktower_api_request_duration_seconds",
		"darktower_ac_token_issuance_total",
		"darktower_ac_key_rotation_total",
		"darktower_gc_registered_controllers",
		"darktower_gc_mc_assignments_total",
		"darktower_gc_heartbeat_total",
		"darktower_mc_session_token_total",
		"darktower_mc_fencing_generation_bumps_total",
		"darktower_mc_gc_registration_total",
		"darktower_tokenmanager_refresh_total",
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors and the full darktower metric vocabulary.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
