package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-triage/internal/adapters/cache"
	"github.com/mikey/llm-mail-triage/internal/core"
	"github.com/mikey/llm-mail-triage/internal/prompt"
	"github.com/mikey/llm-mail-triage/internal/utils"
)

// stubGateway fakes the model boundary for classifier, responder and
// pipeline tests.
type stubGateway struct {
	mu    sync.Mutex
	calls int
	fn    func(spec core.PromptSpec) (*core.RawModelOutput, error)
}

func (g *stubGateway) Invoke(_ context.Context, spec core.PromptSpec) (*core.RawModelOutput, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.fn(spec)
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func verdictOutput(category string, confidence float64) *core.RawModelOutput {
	return &core.RawModelOutput{
		Text:     `{"category":"` + category + `"}`,
		Verdict:  &core.ModelVerdict{Category: category, Confidence: confidence, Rationale: "stubbed"},
		Attempts: 1,
		Model:    "stub-model",
	}
}

func testTaxonomy() core.Taxonomy {
	return core.NewTaxonomy([]string{"support", "sales", "complaint", "spam", "other"})
}

func testKeywords() *core.KeywordMatcher {
	return core.NewKeywordMatcher(testTaxonomy(), map[core.Category][]string{
		"support":   {"help", "error", "install"},
		"sales":     {"pricing", "buy", "partnership"},
		"complaint": {"refund", "unacceptable", "damaged"},
		"spam":      {"winner", "lottery"},
	})
}

func testPrompts() core.PromptBuilder {
	return prompt.NewBuilder(utils.NewTextProcessor(nil), 0)
}

func newTestClassifier(gw core.ModelGateway, cacheRepo core.ClassificationCache, opts core.ClassifierOptions) *core.Classifier {
	return core.NewClassifier(gw, testPrompts(), cacheRepo, testKeywords(), testTaxonomy(), zap.NewNop(), opts)
}

func complaintEmail() *core.EmailRecord {
	return &core.EmailRecord{
		ID:         "001",
		From:       "angry.customer@example.com",
		Subject:    "Broken product received",
		Body:       "The package arrived damaged and I demand a refund. This is unacceptable.",
		ReceivedAt: time.Now(),
	}
}

func TestClassify_ConfidentVerdict(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		return verdictOutput("complaint", 0.9), nil
	}}
	c := newTestClassifier(gw, nil, core.ClassifierOptions{})

	result := c.Classify(context.Background(), complaintEmail())
	assert.Equal(t, core.Category("complaint"), result.Category)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, core.StatusConfident, result.Status)
	assert.Equal(t, "stub-model", result.ModelUsed)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, result.Attempts)
}

func TestClassify_BelowThresholdKeepsCategory(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		return verdictOutput("sales", 0.4), nil
	}}
	c := newTestClassifier(gw, nil, core.ClassifierOptions{ConfidenceThreshold: 0.6})

	result := c.Classify(context.Background(), complaintEmail())
	assert.Equal(t, core.Category("sales"), result.Category)
	assert.Equal(t, core.StatusLowConfidence, result.Status)
}

func TestClassify_ZeroThresholdIsRespected(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		return verdictOutput("sales", 0.2), nil
	}}
	c := newTestClassifier(gw, nil, core.ClassifierOptions{ConfidenceThreshold: 0})

	result := c.Classify(context.Background(), complaintEmail())
	assert.Equal(t, core.StatusConfident, result.Status,
		"a configured threshold of 0 means every model verdict is confident")
}

func TestClassify_GatewayFailureFallsBackToKeywords(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		return &core.RawModelOutput{Attempts: 3}, &core.PermanentError{Err: errors.New("model unavailable")}
	}}
	c := newTestClassifier(gw, nil, core.ClassifierOptions{})

	result := c.Classify(context.Background(), complaintEmail())
	assert.Equal(t, core.Category("complaint"), result.Category, "keywords in the body must decide the category")
	assert.Equal(t, core.StatusFallback, result.Status)
	assert.Equal(t, 0.1, result.Confidence, "fallback results carry the fixed sentinel confidence")
	assert.Equal(t, "keyword-fallback", result.ModelUsed)
	assert.Contains(t, result.Rationale, "model unavailable")
	assert.Equal(t, 3, result.Attempts, "the attempt count survives into the fallback result")
}

func TestClassify_FallbackWithoutKeywordsIsOther(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		return nil, &core.PermanentError{Err: errors.New("down")}
	}}
	c := newTestClassifier(gw, nil, core.ClassifierOptions{})

	email := &core.EmailRecord{ID: "x", From: "a@b", Subject: "Hello", Body: "Just saying hi."}
	result := c.Classify(context.Background(), email)
	assert.Equal(t, core.CategoryOther, result.Category)
	assert.Equal(t, core.StatusFallback, result.Status)
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		return verdictOutput("complaint", 0.9), nil
	}}
	c := newTestClassifier(gw, nil, core.ClassifierOptions{})

	first := c.Classify(context.Background(), complaintEmail())
	second := c.Classify(context.Background(), complaintEmail())
	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Status, second.Status)
}

func TestClassify_CacheServesRepeatContent(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		return verdictOutput("complaint", 0.9), nil
	}}
	repo := cache.NewMemoryCache(zap.NewNop(), 0)
	c := newTestClassifier(gw, repo, core.ClassifierOptions{CacheEnabled: true, CacheTTL: time.Hour})

	first := c.Classify(context.Background(), complaintEmail())
	require.False(t, first.FromCache)

	second := c.Classify(context.Background(), complaintEmail())
	assert.True(t, second.FromCache)
	assert.Equal(t, "cache", second.ModelUsed)
	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, 1, gw.callCount(), "the second classification must not reach the model")
}

func TestClassify_FallbackResultsAreNotCached(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{fn: func(core.PromptSpec) (*core.RawModelOutput, error) {
		return nil, &core.TransientError{Err: errors.New("throttled")}
	}}
	repo := cache.NewMemoryCache(zap.NewNop(), 0)
	c := newTestClassifier(gw, repo, core.ClassifierOptions{CacheEnabled: true, CacheTTL: time.Hour})

	c.Classify(context.Background(), complaintEmail())
	second := c.Classify(context.Background(), complaintEmail())
	assert.False(t, second.FromCache)
	assert.Equal(t, 2, gw.callCount(), "a recovered service must get to re-classify fallback content")
}
