package gateway

import (
	"sync"
	"time"

	"github.com/mikey/llm-mail-triage/internal/core"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker is a circuit breaker shared by all workers of a run. It counts
// consecutive transient failures across calls; at the threshold it opens and
// rejects calls for a cool-down window, then admits a single probe.
type Breaker struct {
	mu            sync.Mutex
	threshold     int
	cooldown      time.Duration
	state         breakerState
	consecutive   int
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker creates a breaker that opens after threshold consecutive
// transient failures and stays open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a call may proceed. While open it returns
// CircuitOpenError until the cool-down elapses, then admits exactly one
// probe; concurrent callers during the probe are rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		remaining := b.cooldown - time.Since(b.openedAt)
		if remaining > 0 {
			return &core.CircuitOpenError{RetryAfter: remaining}
		}
		b.state = breakerHalfOpen
		b.probeInFlight = true
		return nil
	default: // half-open
		if b.probeInFlight {
			return &core.CircuitOpenError{RetryAfter: b.cooldown}
		}
		b.probeInFlight = true
		return nil
	}
}

// RecordSuccess resets the failure streak; a successful probe closes the
// breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	b.probeInFlight = false
	b.state = breakerClosed
}

// ReleaseProbe reports a probe that ended without a definitive success or
// transient failure, e.g. a permanent API error or a cancelled context. The
// probe did not prove the service healthy, so the breaker re-opens and the
// cool-down restarts; the slot must never stay occupied. No-op outside a
// half-open probe.
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen && b.probeInFlight {
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.probeInFlight = false
	}
}

// RecordFailure notes a transient failure. In half-open it re-opens the
// breaker and restarts the cool-down; in closed it opens once the streak
// reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	if b.state == breakerHalfOpen || b.consecutive >= b.threshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.probeInFlight = false
	}
}
