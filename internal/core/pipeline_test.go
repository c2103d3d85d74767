package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-triage/internal/core"
)

func newTestPipeline(t *testing.T, gw core.ModelGateway, workers int, policies map[core.Category]core.ResponsePolicy) *core.Pipeline {
	t.Helper()
	classifier := newTestClassifier(gw, nil, core.ClassifierOptions{ConfidenceThreshold: 0.6})
	responder := newTestResponder(t, gw, policies, core.ResponderOptions{})
	return core.NewPipeline(classifier, responder, zap.NewNop(), core.PipelineOptions{Workers: workers})
}

// templateOnly keeps the responder off the model so gateway stubs only see
// classification prompts.
func templateOnly() map[core.Category]core.ResponsePolicy {
	policies := make(map[core.Category]core.ResponsePolicy)
	for _, c := range testTaxonomy().Categories() {
		policies[c] = core.PolicyTemplate
	}
	return policies
}

func batchOf(n int) []*core.EmailRecord {
	emails := make([]*core.EmailRecord, 0, n)
	for i := 0; i < n; i++ {
		emails = append(emails, &core.EmailRecord{
			ID:      fmt.Sprintf("email-%02d", i),
			From:    fmt.Sprintf("sender%d@example.com", i),
			Subject: fmt.Sprintf("subject-%02d", i),
			Body:    "Please help, I hit an error.",
		})
	}
	return emails
}

func TestRun_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	// Later items finish first, so collection order differs from input order.
	gw := &stubGateway{fn: func(spec core.PromptSpec) (*core.RawModelOutput, error) {
		var idx int
		if i := strings.Index(spec.User, "subject-"); i >= 0 {
			fmt.Sscanf(spec.User[i:], "subject-%02d", &idx)
		}
		time.Sleep(time.Duration(9-idx) * 2 * time.Millisecond)
		return verdictOutput("support", 0.9), nil
	}}
	p := newTestPipeline(t, gw, 4, templateOnly())

	emails := batchOf(10)
	outcomes, metrics := p.Run(context.Background(), emails)

	require.Len(t, outcomes, 10)
	for i, outcome := range outcomes {
		assert.Equal(t, emails[i].ID, outcome.Email.ID)
		assert.Equal(t, emails[i].ID, outcome.Classification.EmailID)
	}
	assert.Equal(t, 10, metrics.Processed)
	assert.Equal(t, 0, metrics.Skipped)
}

func TestRun_PanicIsIsolatedToItsItem(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(spec core.PromptSpec) (*core.RawModelOutput, error) {
		if strings.Contains(spec.User, "subject-03") {
			panic("classifier blew up")
		}
		return verdictOutput("support", 0.9), nil
	}}
	p := newTestPipeline(t, gw, 4, templateOnly())

	emails := batchOf(6)
	outcomes, metrics := p.Run(context.Background(), emails)

	require.Len(t, outcomes, 6)
	for i, outcome := range outcomes {
		if i == 3 {
			assert.Nil(t, outcome.Classification)
			assert.Equal(t, core.ResponseNeedsReview, outcome.Response.Status)
			continue
		}
		require.NotNil(t, outcome.Classification, "item %d must be unaffected", i)
		assert.Equal(t, core.ResponseSent, outcome.Response.Status)
	}
	assert.Equal(t, 1, metrics.ErrorsByKind["item_panic"])
	assert.Equal(t, 6, metrics.Processed)
}

func TestRun_CancellationReturnsPartialResults(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 5)
	block := make(chan struct{})

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		started <- struct{}{}
		<-block
		return nil, &core.TransientError{Err: errors.New("connection reset")}
	}}
	p := newTestPipeline(t, gw, 2, templateOnly())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emails := batchOf(5)

	type runResult struct {
		outcomes []*core.TriageOutcome
		metrics  core.MetricsSnapshot
	}
	resultCh := make(chan runResult, 1)
	go func() {
		outcomes, metrics := p.Run(ctx, emails)
		resultCh <- runResult{outcomes, metrics}
	}()

	// Wait for both workers to pick up an item, cancel, then release them.
	<-started
	<-started
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(block)

	result := <-resultCh
	require.Len(t, result.outcomes, 2, "only the two in-flight items complete")
	assert.Equal(t, "email-00", result.outcomes[0].Email.ID)
	assert.Equal(t, "email-01", result.outcomes[1].Email.ID)
	for _, outcome := range result.outcomes {
		assert.Equal(t, core.StatusFallback, outcome.Classification.Status, "in-flight items resolve through the fallback path")
		assert.Equal(t, core.ResponseNeedsReview, outcome.Response.Status)
	}

	assert.Equal(t, 2, result.metrics.Processed)
	assert.Equal(t, 3, result.metrics.Skipped)
	assert.Equal(t, 1, result.metrics.ErrorsByKind["canceled"])
}

func TestRun_MetricsTallyOutcomes(t *testing.T) {
	t.Parallel()

	emails := []*core.EmailRecord{
		{ID: "a", From: "a@example.com", Subject: "mark-complaint", Body: "Damaged goods, refund please."},
		{ID: "b", From: "b@example.com", Subject: "mark-spam", Body: "You are a winner!"},
		{ID: "c", From: "c@example.com", Subject: "mark-support", Body: "I hit an error during install."},
		{ID: "d", From: "d@example.com", Subject: "mark-fail", Body: "Plain message with no keywords."},
	}

	gw := &stubGateway{fn: func(spec core.PromptSpec) (*core.RawModelOutput, error) {
		if !spec.WantVerdict {
			return &core.RawModelOutput{Text: "Hi, thanks for reaching out."}, nil
		}
		switch {
		case strings.Contains(spec.User, "mark-complaint"):
			return verdictOutput("complaint", 0.9), nil
		case strings.Contains(spec.User, "mark-spam"):
			return verdictOutput("spam", 0.8), nil
		case strings.Contains(spec.User, "mark-support"):
			return verdictOutput("support", 0.4), nil
		default:
			return nil, &core.PermanentError{Err: errors.New("model unavailable")}
		}
	}}
	p := newTestPipeline(t, gw, 1, nil)

	_, metrics := p.Run(context.Background(), emails)

	assert.Equal(t, 4, metrics.Total)
	assert.Equal(t, 4, metrics.Processed)
	assert.Equal(t, 0, metrics.Skipped)

	assert.Equal(t, 1, metrics.PerCategory["complaint"])
	assert.Equal(t, 1, metrics.PerCategory["spam"])
	assert.Equal(t, 1, metrics.PerCategory["support"])
	assert.Equal(t, 1, metrics.PerCategory[core.CategoryOther], "the keyword-free failure lands in the catch-all")

	assert.Equal(t, 2, metrics.PerClassificationStatus[core.StatusConfident])
	assert.Equal(t, 1, metrics.PerClassificationStatus[core.StatusLowConfidence])
	assert.Equal(t, 1, metrics.PerClassificationStatus[core.StatusFallback])

	// complaint -> template, support -> model draft, spam -> suppressed,
	// fallback -> needs review.
	assert.Equal(t, 2, metrics.PerResponseStatus[core.ResponseSent])
	assert.Equal(t, 1, metrics.PerResponseStatus[core.ResponseSuppressed])
	assert.Equal(t, 1, metrics.PerResponseStatus[core.ResponseNeedsReview])

	assert.Equal(t, 1, metrics.ErrorsByKind["classification_fallback"])
	assert.InDelta(t, (0.9+0.8+0.4+0.1)/4, metrics.AvgConfidence, 1e-9)
	assert.False(t, metrics.FinishedAt.Before(metrics.StartedAt))
}
