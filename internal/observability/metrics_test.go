package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// NewMetrics registers with Prometheus's default registry, so every
// collector it's exercised through here comes from a single call: a
// second call in the same test binary would panic on duplicate
// registration.
func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	t.Run("container lifecycle", func(t *testing.T) {
		m.ContainersRunning.Add(2)
		m.ContainerLifecycleCounter.WithLabelValues("created").Inc()
		m.ContainerLifecycleCounter.WithLabelValues("created").Inc()
		m.ContainerLifecycleCounter.WithLabelValues("destroyed").Inc()
		m.ContainerIdleReaps.Inc()

		if got := testutil.ToFloat64(m.ContainersRunning); got != 2 {
			t.Errorf("expected ContainersRunning=2, got %v", got)
		}
		if got := testutil.ToFloat64(m.ContainerLifecycleCounter.WithLabelValues("created")); got != 2 {
			t.Errorf("expected 2 created transitions, got %v", got)
		}
		if got := testutil.ToFloat64(m.ContainerIdleReaps); got != 1 {
			t.Errorf("expected 1 idle reap, got %v", got)
		}
	})

	t.Run("tool calls", func(t *testing.T) {
		m.ToolCallCounter.WithLabelValues("bash", "ok").Inc()
		m.ToolCallCounter.WithLabelValues("bash", "ok").Inc()
		m.ToolCallCounter.WithLabelValues("bash", "error").Inc()

		if got := testutil.ToFloat64(m.ToolCallCounter.WithLabelValues("bash", "ok")); got != 2 {
			t.Errorf("expected 2 ok calls, got %v", got)
		}
		if got := testutil.ToFloat64(m.ToolCallCounter.WithLabelValues("bash", "error")); got != 1 {
			t.Errorf("expected 1 error call, got %v", got)
		}
	})
}
