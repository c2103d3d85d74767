package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ClassifierOptions are the policy knobs for classification.
type ClassifierOptions struct {
	// ConfidenceThreshold splits Confident from LowConfidence. 0 is a valid
	// setting (every model verdict counts as confident); a negative value
	// selects the default.
	ConfidenceThreshold float64
	// FallbackConfidence is the fixed sentinel stamped on fallback results.
	FallbackConfidence float64
	// CacheEnabled turns the verdict cache on.
	CacheEnabled bool
	// CacheTTL bounds how long a cached verdict is served.
	CacheTTL time.Duration
}

func (o ClassifierOptions) withDefaults() ClassifierOptions {
	if o.ConfidenceThreshold < 0 {
		o.ConfidenceThreshold = 0.6
	}
	if o.FallbackConfidence <= 0 {
		o.FallbackConfidence = 0.1
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 24 * time.Hour
	}
	return o
}

// Classifier assigns every email a category. Classify never fails: every
// gateway error path terminates in a deterministic keyword-fallback result,
// so no email leaves the pipeline uncategorized.
type Classifier struct {
	gateway  ModelGateway
	prompts  PromptBuilder
	cache    ClassificationCache
	keywords *KeywordMatcher
	taxonomy Taxonomy
	logger   *zap.Logger
	opts     ClassifierOptions
}

// NewClassifier creates a classifier. cache may be nil when caching is
// disabled.
func NewClassifier(
	gateway ModelGateway,
	prompts PromptBuilder,
	cache ClassificationCache,
	keywords *KeywordMatcher,
	taxonomy Taxonomy,
	logger *zap.Logger,
	opts ClassifierOptions,
) *Classifier {
	return &Classifier{
		gateway:  gateway,
		prompts:  prompts,
		cache:    cache,
		keywords: keywords,
		taxonomy: taxonomy,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

// Classify categorizes one email.
func (c *Classifier) Classify(ctx context.Context, email *EmailRecord) *ClassificationResult {
	if c.opts.CacheEnabled && c.cache != nil {
		if cached, err := c.cache.Get(ctx, email.Digest()); err == nil {
			c.logger.Debug("Verdict cache hit", zap.String("email_id", email.ID))
			return &ClassificationResult{
				EmailID:    email.ID,
				Category:   cached.Category,
				Confidence: cached.Confidence,
				Rationale:  cached.Rationale,
				Status:     cached.Status,
				FromCache:  true,
				ModelUsed:  "cache",
			}
		}
	}

	spec := c.prompts.Classification(email, c.taxonomy)
	out, err := c.gateway.Invoke(ctx, spec)
	if err != nil {
		return c.fallback(email, out, err)
	}

	status := StatusConfident
	if out.Verdict.Confidence < c.opts.ConfidenceThreshold {
		status = StatusLowConfidence
	}

	result := &ClassificationResult{
		EmailID:    email.ID,
		Category:   Category(out.Verdict.Category),
		Confidence: out.Verdict.Confidence,
		Rationale:  out.Verdict.Rationale,
		RawOutput:  out.Text,
		Attempts:   out.Attempts,
		Status:     status,
		ModelUsed:  out.Model,
	}

	c.logger.Debug("Email classified",
		zap.String("email_id", email.ID),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence),
		zap.String("status", string(status)))

	// Only model-backed verdicts are cached; a recovered service should
	// re-classify anything that fell back.
	if c.opts.CacheEnabled && c.cache != nil {
		entry := &CachedVerdict{
			Digest:     email.Digest(),
			Category:   result.Category,
			Confidence: result.Confidence,
			Rationale:  result.Rationale,
			Status:     status,
			LastSeen:   time.Now(),
			ExpiresAt:  time.Now().Add(c.opts.CacheTTL),
		}
		if err := c.cache.Set(ctx, entry); err != nil {
			c.logger.Error("Failed to update verdict cache", zap.Error(err))
		}
	}

	return result
}

func (c *Classifier) fallback(email *EmailRecord, out *RawModelOutput, cause error) *ClassificationResult {
	category := c.keywords.Match(email.Subject, email.Body)

	result := &ClassificationResult{
		EmailID:    email.ID,
		Category:   category,
		Confidence: c.opts.FallbackConfidence,
		Rationale:  "keyword fallback: " + cause.Error(),
		Status:     StatusFallback,
		ModelUsed:  "keyword-fallback",
	}
	if out != nil {
		result.RawOutput = out.Text
		result.Attempts = out.Attempts
	}

	c.logger.Warn("Falling back to keyword classification",
		zap.String("email_id", email.ID),
		zap.String("category", string(category)),
		zap.Error(cause))

	return result
}
