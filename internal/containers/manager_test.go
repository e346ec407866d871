package containers

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.ContainersConfig{
		MemoryLimitMB:   256,
		CPULimit:        1,
		IdleTimeout:     0,
		SweepInterval:   time.Hour,
		NetworkIsolated: true,
		Image:           "alpine:3.20",
	}
	workDir := t.TempDir()
	m := New(cfg, func(conversationID string) string {
		return workDir + "/" + conversationID
	}, nil)
	t.Cleanup(func() { m.reaper.stop() })
	return m
}

func TestStatusDefaultsToNotCreated(t *testing.T) {
	m := testManager(t)
	if got := m.Status("conv-1"); got != PhaseNotCreated {
		t.Errorf("expected %q, got %q", PhaseNotCreated, got)
	}
}

func TestResetOnNeverCreatedConversationIsNoop(t *testing.T) {
	m := testManager(t)
	if err := m.Reset(context.Background(), "conv-1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Status("conv-1"); got != PhaseDestroyed {
		t.Errorf("expected %q after reset, got %q", PhaseDestroyed, got)
	}
}

func TestIdleSweepNoopWhenTimeoutDisabled(t *testing.T) {
	m := testManager(t)
	rec := m.recordFor("conv-1")
	rec.mu.Lock()
	rec.phase = PhaseRunning
	rec.lastUsed = time.Now().Add(-24 * time.Hour)
	rec.mu.Unlock()

	m.idleSweep(context.Background())

	if got := m.Status("conv-1"); got != PhaseRunning {
		t.Errorf("expected idle sweep to be a no-op with IdleTimeout=0, got %q", got)
	}
}
