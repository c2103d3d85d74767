package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-mail-triage/internal/core"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := NewBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow(), "breaker must stay closed below the threshold")

	b.RecordFailure()
	err := b.Allow()
	var openErr *core.CircuitOpenError
	require.True(t, errors.As(err, &openErr), "breaker must open at the threshold, got %v", err)
	assert.Greater(t, openErr.RetryAfter, time.Duration(0))
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	t.Parallel()

	b := NewBreaker(2, time.Minute)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.NoError(t, b.Allow(), "a success in between must reset the consecutive count")
}

func TestBreaker_AllowsSingleProbeAfterCooldown(t *testing.T) {
	t.Parallel()

	b := NewBreaker(1, 30*time.Millisecond)
	b.RecordFailure()

	require.Error(t, b.Allow(), "breaker must reject during cool-down")

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, b.Allow(), "one probe must pass after the cool-down")
	require.Error(t, b.Allow(), "only one probe may be in flight")

	b.RecordSuccess()
	assert.NoError(t, b.Allow(), "a successful probe closes the breaker")
}

func TestBreaker_ReleaseProbeReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(1, 30*time.Millisecond)
	b.RecordFailure()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, b.Allow())
	b.ReleaseProbe()

	require.Error(t, b.Allow(), "a released probe must re-open the breaker, not leave it half-open")

	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, b.Allow(), "the probe slot must be free again after the cool-down")
}

func TestBreaker_ReleaseProbeIsNoOpWhenClosed(t *testing.T) {
	t.Parallel()

	b := NewBreaker(2, time.Minute)
	b.ReleaseProbe()
	assert.NoError(t, b.Allow())
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(1, 30*time.Millisecond)
	b.RecordFailure()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, b.Allow())
	b.RecordFailure()

	require.Error(t, b.Allow(), "a failed probe must re-open the breaker immediately")

	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, b.Allow(), "the cool-down restarts after a failed probe")
}
