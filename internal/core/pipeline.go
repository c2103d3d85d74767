package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PipelineOptions configures batch execution.
type PipelineOptions struct {
	// Workers bounds concurrent email processing; it doubles as a
	// concurrency-based rate control toward the remote service.
	Workers int
}

func (o PipelineOptions) withDefaults() PipelineOptions {
	if o.Workers < 1 {
		o.Workers = 4
	}
	return o
}

// Pipeline runs classify-then-respond over a batch. Items are independent:
// one item's failure never aborts the batch, and output order always matches
// input order regardless of worker interleaving.
type Pipeline struct {
	classifier *Classifier
	responder  *Responder
	logger     *zap.Logger
	opts       PipelineOptions
}

// NewPipeline creates a pipeline.
func NewPipeline(classifier *Classifier, responder *Responder, logger *zap.Logger, opts PipelineOptions) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		responder:  responder,
		logger:     logger,
		opts:       opts.withDefaults(),
	}
}

// Run processes the batch. Cancelling ctx stops dispatching new items
// promptly; in-flight items resolve (their remote calls fail over to the
// fallback path) and whatever completed is returned with the metrics.
func (p *Pipeline) Run(ctx context.Context, emails []*EmailRecord) ([]*TriageOutcome, MetricsSnapshot) {
	runID := uuid.NewString()
	metrics := newRunMetrics(runID, len(emails))

	p.logger.Info("Starting triage run",
		zap.String("run_id", runID),
		zap.Int("emails", len(emails)),
		zap.Int("workers", p.opts.Workers))

	type job struct {
		idx   int
		email *EmailRecord
	}
	type completion struct {
		idx     int
		outcome *TriageOutcome
	}

	jobs := make(chan job)
	done := make(chan completion, len(emails))

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				done <- completion{idx: j.idx, outcome: p.processOne(ctx, j.email, metrics)}
			}
		}()
	}

	// Dispatch in input order; stop handing out work once ctx is cancelled.
	go func() {
		defer close(jobs)
		for i, email := range emails {
			select {
			case jobs <- job{idx: i, email: email}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(done)

	// Slot-indexed collection keeps input order under any interleaving.
	slots := make([]*TriageOutcome, len(emails))
	for c := range done {
		slots[c.idx] = c.outcome
		metrics.recordOutcome(c.outcome)
	}

	outcomes := make([]*TriageOutcome, 0, len(emails))
	for _, outcome := range slots {
		if outcome != nil {
			outcomes = append(outcomes, outcome)
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.recordError("canceled")
		p.logger.Warn("Triage run cancelled", zap.String("run_id", runID), zap.Int("completed", len(outcomes)))
	}
	metrics.finalize()

	snap := metrics.Snapshot()
	p.logger.Info("Triage run finished",
		zap.String("run_id", runID),
		zap.Int("processed", snap.Processed),
		zap.Int("skipped", snap.Skipped),
		zap.Float64("avg_confidence", snap.AvgConfidence))

	return outcomes, snap
}

// processOne is the per-item failure boundary: a panic in either stage is
// converted into a NeedsReview outcome instead of taking the batch down.
func (p *Pipeline) processOne(ctx context.Context, email *EmailRecord, metrics *RunMetrics) (outcome *TriageOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			itemErr := &ItemError{EmailID: email.ID, Err: fmt.Errorf("panic: %v", rec)}
			p.logger.Error("Item processing failed", zap.String("email_id", email.ID), zap.Error(itemErr))
			metrics.recordError("item_panic")
			outcome = &TriageOutcome{
				Email: email,
				Response: &ResponseRecord{
					EmailID:     email.ID,
					Status:      ResponseNeedsReview,
					GeneratedAt: time.Now(),
				},
			}
		}
	}()

	classification := p.classifier.Classify(ctx, email)
	if classification.Status == StatusFallback {
		metrics.recordError("classification_fallback")
	}

	response := p.responder.Generate(ctx, email, classification)

	return &TriageOutcome{
		Email:          email,
		Classification: classification,
		Response:       response,
	}
}
