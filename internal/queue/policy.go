package queue

import (
	"time"

	"github.com/emergent/jobqueue/internal/config"
)

// Policy is the per-kind retry configuration. Retry decisions are a pure
// function of (attempt count, max attempts); there is no strategy dispatch.
type Policy struct {
	// MaxAttempts is the total claim budget before a job is dead-lettered.
	MaxAttempts int

	// BackoffBase is the delay after the first failed attempt. The original
	// deployments ran with one minute.
	BackoffBase time.Duration

	// BackoffCap bounds the computed delay. Zero means uncapped.
	BackoffCap time.Duration

	// StaleThreshold is how long a job may sit in processing before the
	// reaper presumes its worker crashed.
	StaleThreshold time.Duration

	// WorkerBatch and WorkerInterval drive the polling loop.
	WorkerBatch    int
	WorkerInterval time.Duration
}

// Backoff returns the retry delay after the given failed attempt,
// 0-indexed: attempt 0 waits BackoffBase, attempt 1 twice that, doubling
// from there. Deterministic, no jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := p.BackoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.BackoffCap > 0 && d >= p.BackoffCap {
			return p.BackoffCap
		}
	}

	if p.BackoffCap > 0 && d > p.BackoffCap {
		return p.BackoffCap
	}
	return d
}

// PolicyFromConfig maps one kind's env-driven settings onto a Policy.
func PolicyFromConfig(pc config.PolicyConfig) Policy {
	return Policy{
		MaxAttempts:    pc.MaxAttempts,
		BackoffBase:    pc.BackoffBase,
		BackoffCap:     pc.BackoffCap,
		StaleThreshold: pc.StaleThreshold,
		WorkerBatch:    pc.WorkerBatch,
		WorkerInterval: pc.WorkerInterval,
	}
}
