// Package containers implements the Lazy Container Manager: one sandboxed
// Docker container per conversation, created on first use and reused
// across subsequent tool calls, stopped after an idle period and resumed
// on demand, destroyed on an explicit reset.
//
// Grounded on internal/tools/sandbox/executor.go's dockerExecutor (the
// exec.CommandContext(ctx, "docker", ...) invocation style and
// baseDockerArgs resource-limit flags) and on
// internal/shell/process_registry.go's StartSweeper/StopSweeper pattern
// for the idle reaper.
package containers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/observability"
)

// Phase is a container's position in its lifecycle state machine
// (not_created -> creating -> running -> stopped -> running (resume), or
// -> failed/destroyed from any state).
type Phase string

const (
	PhaseNotCreated Phase = "not_created"
	PhaseCreating   Phase = "creating"
	PhaseRunning    Phase = "running"
	PhaseStopped    Phase = "stopped"
	PhaseFailed     Phase = "failed"
	PhaseDestroyed  Phase = "destroyed"
)

// record is a Manager's bookkeeping for one conversation's container.
type record struct {
	mu            sync.Mutex
	phase         Phase
	containerID   string
	lastUsed      time.Time
	lastError     error
}

// Manager owns one container per conversation and the docker backend used
// to provision it.
type Manager struct {
	cfg        config.ContainersConfig
	docker     *dockerBackend
	workDirFor func(conversationID string) string
	logger     *slog.Logger

	mu      sync.Mutex
	records map[string]*record

	reaper  *reaper
	metrics *observability.Metrics
}

// New creates a Manager. workDirFor resolves a conversation id to the
// host directory bind-mounted into that conversation's container at
// /mnt (config.Config.WorkingDirFor). The idle reaper is started
// immediately and runs until Shutdown is called.
func New(cfg config.ContainersConfig, workDirFor func(conversationID string) string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "container_manager")

	m := &Manager{
		cfg:        cfg,
		docker:     newDockerBackend(cfg, workDirFor, logger),
		workDirFor: workDirFor,
		logger:     logger,
		records:    make(map[string]*record),
	}
	m.reaper = newReaper(m, cfg.SweepInterval, logger)
	m.reaper.start()
	return m
}

// SetMetrics attaches the Prometheus metrics this Manager reports
// container lifecycle transitions and idle reaps to. Optional; a Manager
// with no metrics attached behaves identically, just unobserved.
func (m *Manager) SetMetrics(metrics *observability.Metrics) {
	m.metrics = metrics
}

func (m *Manager) recordFor(conversationID string) *record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[conversationID]
	if !ok {
		rec = &record{phase: PhaseNotCreated}
		m.records[conversationID] = rec
	}
	return rec
}

// Ensure returns a running container id for conversationID, creating one
// lazily on first use or resuming a stopped one. It retries transient
// provisioning failures per the docker backend's retry policy. The
// second return value reports whether this call itself created or
// resumed the container (false when it was already running and simply
// reused).
func (m *Manager) Ensure(ctx context.Context, conversationID string) (string, bool, error) {
	rec := m.recordFor(conversationID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.phase {
	case PhaseRunning:
		rec.lastUsed = time.Now()
		return rec.containerID, false, nil

	case PhaseStopped:
		rec.phase = PhaseCreating
		if err := m.docker.start(ctx, rec.containerID); err != nil {
			rec.phase = PhaseFailed
			rec.lastError = err
			m.recordLifecycle("failed")
			return "", false, fmt.Errorf("resume container for conversation %s: %w", conversationID, err)
		}
		rec.phase = PhaseRunning
		rec.lastUsed = time.Now()
		m.recordLifecycle("resumed")
		m.adjustRunning(1)
		return rec.containerID, true, nil

	case PhaseNotCreated, PhaseFailed, PhaseDestroyed:
		rec.phase = PhaseCreating
		id, err := m.docker.create(ctx, conversationID)
		if err != nil {
			rec.phase = PhaseFailed
			rec.lastError = err
			m.recordLifecycle("failed")
			return "", false, fmt.Errorf("create container for conversation %s: %w", conversationID, err)
		}
		rec.containerID = id
		rec.phase = PhaseRunning
		rec.lastUsed = time.Now()
		m.recordLifecycle("created")
		m.adjustRunning(1)
		return id, true, nil

	case PhaseCreating:
		return "", false, fmt.Errorf("container for conversation %s is already being created", conversationID)

	default:
		return "", false, fmt.Errorf("container for conversation %s is in unexpected phase %q", conversationID, rec.phase)
	}
}

// Status reports a conversation's current container phase without
// triggering creation.
func (m *Manager) Status(conversationID string) Phase {
	m.mu.Lock()
	rec, ok := m.records[conversationID]
	m.mu.Unlock()
	if !ok {
		return PhaseNotCreated
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.phase
}

// Execute runs cmd inside conversationID's container, creating or
// resuming it first if necessary.
func (m *Manager) Execute(ctx context.Context, conversationID string, cmd []string) (stdout, stderr string, exitCode int, err error) {
	id, _, err := m.Ensure(ctx, conversationID)
	if err != nil {
		return "", "", 0, err
	}
	rec := m.recordFor(conversationID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastUsed = time.Now()
	return m.docker.exec(ctx, id, cmd)
}

// Reset destroys conversationID's container (if any); the next Ensure
// creates a fresh one. When keepScratch is false, the conversation's
// host-side scratch directory is also wiped; when true, the directory is
// left in place for the next container to mount.
func (m *Manager) Reset(ctx context.Context, conversationID string, keepScratch bool) error {
	rec := m.recordFor(conversationID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	wasRunning := rec.phase == PhaseRunning
	if rec.containerID != "" {
		if err := m.docker.remove(ctx, rec.containerID); err != nil {
			m.logger.Warn("failed to remove container during reset", "conversation_id", conversationID, "error", err)
		}
	}
	rec.phase = PhaseDestroyed
	rec.containerID = ""
	m.recordLifecycle("destroyed")
	if wasRunning {
		m.adjustRunning(-1)
	}

	if !keepScratch && m.workDirFor != nil {
		if err := os.RemoveAll(m.workDirFor(conversationID)); err != nil {
			m.logger.Warn("failed to wipe scratch directory during reset", "conversation_id", conversationID, "error", err)
		}
	}
	return nil
}

// recordLifecycle increments the container lifecycle counter by outcome,
// a no-op when no metrics are attached.
func (m *Manager) recordLifecycle(outcome string) {
	if m.metrics == nil {
		return
	}
	m.metrics.ContainerLifecycleCounter.WithLabelValues(outcome).Inc()
}

// adjustRunning adds delta to the running-containers gauge, a no-op when
// no metrics are attached.
func (m *Manager) adjustRunning(delta float64) {
	if m.metrics == nil {
		return
	}
	m.metrics.ContainersRunning.Add(delta)
}

// idleSweep stops (does not remove) every running container whose last
// use exceeds the configured idle timeout. A timeout of zero disables
// idle reaping.
func (m *Manager) idleSweep(ctx context.Context) {
	if m.cfg.IdleTimeout <= 0 {
		return
	}

	m.mu.Lock()
	candidates := make(map[string]*record, len(m.records))
	for convID, rec := range m.records {
		candidates[convID] = rec
	}
	m.mu.Unlock()

	cutoff := time.Now().Add(-m.cfg.IdleTimeout)
	for convID, rec := range candidates {
		rec.mu.Lock()
		shouldStop := rec.phase == PhaseRunning && rec.lastUsed.Before(cutoff)
		containerID := rec.containerID
		rec.mu.Unlock()

		if !shouldStop {
			continue
		}
		if err := m.docker.stop(ctx, containerID); err != nil {
			m.logger.Warn("failed to stop idle container", "conversation_id", convID, "error", err)
			continue
		}
		rec.mu.Lock()
		rec.phase = PhaseStopped
		rec.mu.Unlock()
		m.adjustRunning(-1)
		if m.metrics != nil {
			m.metrics.ContainerIdleReaps.Inc()
		}
		m.logger.Info("stopped idle container", "conversation_id", convID)
	}
}

// Shutdown stops the idle reaper and removes every tracked container.
func (m *Manager) Shutdown(ctx context.Context) {
	m.reaper.stop()
	m.DestroyAll(ctx)
}

// DestroyAll removes every tracked container without stopping the idle
// reaper, leaving the Manager usable afterward (each conversation's next
// Ensure call provisions a fresh container). Used by the Conversation
// Manager's wipe-all reset, which clears all state but keeps the runtime
// running.
func (m *Manager) DestroyAll(ctx context.Context) {
	m.mu.Lock()
	records := make(map[string]*record, len(m.records))
	for k, v := range m.records {
		records[k] = v
	}
	m.mu.Unlock()

	for convID, rec := range records {
		rec.mu.Lock()
		id := rec.containerID
		phase := rec.phase
		rec.mu.Unlock()
		if id == "" || phase == PhaseDestroyed {
			continue
		}
		if err := m.docker.remove(ctx, id); err != nil {
			m.logger.Warn("failed to remove container during wipe", "conversation_id", convID, "error", err)
		}
		rec.mu.Lock()
		rec.phase = PhaseDestroyed
		rec.containerID = ""
		rec.mu.Unlock()
		m.recordLifecycle("destroyed")
		if phase == PhaseRunning {
			m.adjustRunning(-1)
		}
	}
}
