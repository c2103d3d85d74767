package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "openai", cfg.GetLLM().Provider)

	gw, err := cfg.GetGateway()
	require.NoError(t, err)
	assert.Equal(t, 3, gw.MaxAttempts)
	assert.Equal(t, 30*time.Second, gw.RequestTimeout)
	assert.Equal(t, 5, gw.BreakerThreshold)
	assert.Equal(t, 30*time.Second, gw.BreakerCooldown)
	assert.Equal(t, 200*time.Millisecond, gw.BackoffInitial)

	triage, err := cfg.GetTriage()
	require.NoError(t, err)
	assert.Equal(t, []string{"support", "sales", "complaint", "spam", "other"}, triage.Categories)
	assert.Equal(t, 0.6, triage.ConfidenceThreshold)
	assert.Equal(t, 0.1, triage.FallbackConfidence)
	assert.Contains(t, triage.Keywords["complaint"], "refund")
	assert.Equal(t, "suppress", triage.Policies["spam"])

	pipeline, err := cfg.GetPipeline()
	require.NoError(t, err)
	assert.Equal(t, 4, pipeline.Workers)
}

func TestGetGateway_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	v := NewEmptyViper()
	v.Set("gateway.max_attempts", 0)
	_, err := NewFromViper(v).GetGateway()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")

	v = NewEmptyViper()
	v.Set("gateway.breaker_threshold", 0)
	_, err = NewFromViper(v).GetGateway()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "breaker_threshold")

	v = NewEmptyViper()
	v.Set("gateway.request_timeout", "soon")
	_, err = NewFromViper(v).GetGateway()
	require.Error(t, err)
}

func TestGetTriage_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	v := NewEmptyViper()
	v.Set("triage.confidence_threshold", 1.5)
	_, err := NewFromViper(v).GetTriage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence_threshold")

	v = NewEmptyViper()
	v.Set("triage.categories", []string{})
	_, err = NewFromViper(v).GetTriage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "categories")
}

func TestGetPipeline_RejectsInvalidWorkers(t *testing.T) {
	t.Parallel()

	v := NewEmptyViper()
	v.Set("pipeline.workers", 0)
	_, err := NewFromViper(v).GetPipeline()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}
