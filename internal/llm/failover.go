package llm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/internal/backoff"
)

// classifyError buckets a completion-service error into the kinds the
// driver's retry/fallback policy cares about, adapted from
// internal/agent/failover.go's classifyProviderError and narrowed to
// transient LLM failures (overload, rate-limit, timeout); everything else
// is treated as permanent and not retried.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "timed out"), strings.Contains(s, "deadline exceeded"):
		return "timeout"
	case strings.Contains(s, "rate limit"), strings.Contains(s, "rate_limit"), strings.Contains(s, "429"), strings.Contains(s, "too many requests"):
		return "rate_limit"
	case strings.Contains(s, "overloaded"), strings.Contains(s, "internal server"), strings.Contains(s, "server error"),
		strings.Contains(s, "502"), strings.Contains(s, "503"), strings.Contains(s, "504"):
		return "overload"
	default:
		return "permanent"
	}
}

func isTransient(err error) bool {
	switch classifyError(err) {
	case "timeout", "rate_limit", "overload":
		return true
	default:
		return false
	}
}

// FailoverPolicy narrows internal/agent/failover.go's FailoverOrchestrator
// from an arbitrary provider list to exactly a primary/backup pair: retry
// the active service with exponential backoff (internal/backoff), and
// after a configurable number of consecutive transient failures, switch
// to the backup and keep retrying it without further cap. reset()
// restores the primary for later turns.
type FailoverPolicy struct {
	primary CompletionService
	backup  CompletionService

	policy       backoff.BackoffPolicy
	maxFailures  int
	logger       *slog.Logger

	mu           sync.Mutex
	onBackup     bool
	consecutive  int
}

// NewFailoverPolicy builds a policy switching from primary to backup after
// maxFailures consecutive transient failures. backup may be nil, in which
// case the policy retries the primary indefinitely (no fallback target).
func NewFailoverPolicy(primary, backup CompletionService, policy backoff.BackoffPolicy, maxFailures int, logger *slog.Logger) *FailoverPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverPolicy{
		primary:     primary,
		backup:      backup,
		policy:      policy,
		maxFailures: maxFailures,
		logger:      logger.With("component", "llm_failover"),
	}
}

// active returns the currently selected service.
func (f *FailoverPolicy) active() CompletionService {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onBackup && f.backup != nil {
		return f.backup
	}
	return f.primary
}

// reset restores the primary model for subsequent turns.
func (f *FailoverPolicy) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onBackup = false
	f.consecutive = 0
}

// recordFailure registers one transient failure against the active
// service and switches to backup once maxFailures consecutive failures
// have been observed.
func (f *FailoverPolicy) recordFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consecutive++
	if !f.onBackup && f.backup != nil && f.consecutive >= f.maxFailures {
		f.onBackup = true
		f.consecutive = 0
		f.logger.Warn("switching to backup completion service after repeated failures",
			"primary", f.primary.Name(), "backup", f.backup.Name())
	}
}

func (f *FailoverPolicy) recordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consecutive = 0
}

// Complete sends req to the currently active service, retrying transient
// failures with exponential backoff (0.1s -> 3s doubling by default) and
// falling over to the backup once the failure threshold is crossed.
func (f *FailoverPolicy) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	attempt := 1
	for {
		svc := f.active()
		ch, err := svc.Complete(ctx, req)
		if err == nil {
			f.recordSuccess()
			return ch, nil
		}
		if !isTransient(err) {
			return nil, err
		}

		f.recordFailure()

		delay := backoff.ComputeBackoff(f.policy, attempt)
		attempt++

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
