// Package observability provides the Prometheus metrics exported by
// cmd/agentcore's /metrics endpoint: containers running, tool calls, and
// idle reaps.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge cmd/agentcore registers with
// Prometheus's default registry at startup.
type Metrics struct {
	// ContainersRunning tracks the number of containers currently in the
	// running phase, across all conversations.
	ContainersRunning prometheus.Gauge

	// ContainerIdleReaps counts how many times the idle reaper has
	// stopped a running container.
	ContainerIdleReaps prometheus.Counter

	// ContainerLifecycleCounter counts container lifecycle transitions
	// by outcome (created, resumed, failed, destroyed).
	ContainerLifecycleCounter *prometheus.CounterVec

	// ToolCallCounter counts tool invocations by tool id and outcome
	// (ok, error).
	ToolCallCounter *prometheus.CounterVec
}

// NewMetrics registers and returns a Metrics. Call once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ContainersRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agentcore_containers_running",
			Help: "Current number of containers in the running phase.",
		}),
		ContainerIdleReaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_container_idle_reaps_total",
			Help: "Total number of containers stopped by the idle reaper.",
		}),
		ContainerLifecycleCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_container_lifecycle_total",
			Help: "Total container lifecycle transitions by outcome.",
		}, []string{"outcome"}),
		ToolCallCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_tool_calls_total",
			Help: "Total tool invocations by tool id and outcome.",
		}, []string{"tool_id", "outcome"}),
	}
}
