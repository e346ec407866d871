// Package backoff computes the delay the LLM Driver's failover policy
// waits between retries of the active completion service before it
// either tries again or falls over to the backup model.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy defines the exponential-backoff curve applied between
// completion-service retries: InitialMs*Factor^(attempt-1), clamped to
// MaxMs, with up to Jitter*base milliseconds of randomized delay added on
// top so concurrent conversations retrying against the same failing
// provider don't all wake up in lockstep.
type BackoffPolicy struct {
	InitialMs float64
	MaxMs     float64
	Factor    float64
	Jitter    float64
}

// ComputeBackoff returns the delay before retry number attempt (attempts
// are 1-indexed).
func ComputeBackoff(policy BackoffPolicy, attempt int) time.Duration {
	return ComputeBackoffWithRand(policy, attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// ComputeBackoffWithRand is ComputeBackoff with the jitter draw supplied
// by the caller, so tests can assert exact delays instead of ranges.
func ComputeBackoffWithRand(policy BackoffPolicy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)

	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)

	return time.Duration(math.Round(total)) * time.Millisecond
}
