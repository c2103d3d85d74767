package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mikey/llm-mail-triage/internal/core"
)

const correctionFormat = `Your previous reply did not match the required format. It must be a single
JSON object with fields category (exactly one of: %s), confidence (number
between 0 and 1) and rationale (string).

Previous reply:
%s

Original request:
%s

Respond only with the corrected JSON object and nothing else.`

// Options configures the gateway's reliability behavior.
type Options struct {
	// MaxAttempts bounds model calls per Invoke, the corrective re-prompt
	// included.
	MaxAttempts int
	// RequestTimeout applies to each individual attempt.
	RequestTimeout time.Duration
	// RateLimitRPS is a global limit shared by all workers. <=0 disables it.
	RateLimitRPS float64

	// BackoffInitial is the sleep before the first retry.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	return o
}

// Gateway is the sole component that performs the remote model call. It
// wraps a CompletionClient with per-attempt timeouts, bounded retry with
// exponential backoff and jitter, a shared circuit breaker, a shared rate
// limiter, and schema validation with one corrective re-prompt.
type Gateway struct {
	client  core.CompletionClient
	breaker *Breaker
	limiter *rate.Limiter
	logger  *zap.Logger
	opts    Options
}

// New creates a gateway around client. The breaker is shared state: pass the
// same instance to every gateway serving one run.
func New(client core.CompletionClient, breaker *Breaker, logger *zap.Logger, opts Options) *Gateway {
	opts = opts.withDefaults()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	return &Gateway{
		client:  client,
		breaker: breaker,
		limiter: limiter,
		logger:  logger,
		opts:    opts,
	}
}

// Invoke runs the prompt against the model. On error the returned output may
// still be non-nil so callers can record the attempt count.
func (g *Gateway) Invoke(ctx context.Context, spec core.PromptSpec) (*core.RawModelOutput, error) {
	out := &core.RawModelOutput{Model: g.client.ModelName()}
	userPrompt := spec.User
	correctionUsed := false

	for out.Attempts < g.opts.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if err := g.breaker.Allow(); err != nil {
			g.logger.Warn("Circuit breaker rejected model call")
			return out, err
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				g.breaker.ReleaseProbe()
				return out, err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.opts.RequestTimeout)
		text, err := g.client.Complete(attemptCtx, spec.System, userPrompt)
		cancel()
		out.Attempts++

		if err != nil {
			if ctx.Err() != nil {
				g.breaker.ReleaseProbe()
				return out, ctx.Err()
			}
			// An attempt that ran out its own deadline is retryable.
			if errors.Is(err, context.DeadlineExceeded) {
				err = &core.TransientError{Err: err}
			}

			if !core.IsTransient(err) {
				// A held probe slot must not outlive the attempt.
				g.breaker.ReleaseProbe()
				g.logger.Error("Permanent model failure", zap.Error(err), zap.Int("attempts", out.Attempts))
				return out, err
			}

			g.breaker.RecordFailure()
			if out.Attempts >= g.opts.MaxAttempts {
				g.logger.Warn("Retries exhausted", zap.Error(err), zap.Int("attempts", out.Attempts))
				return out, err
			}

			sleep := backoffSleep(g.opts.BackoffInitial, g.opts.BackoffMax, g.opts.BackoffJitterFrac, out.Attempts-1)
			g.logger.Debug("Retrying after transient failure",
				zap.Error(err),
				zap.Int("attempt", out.Attempts),
				zap.Duration("backoff", sleep))

			t := time.NewTimer(sleep)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return out, ctx.Err()
			}
			continue
		}

		g.breaker.RecordSuccess()
		out.Text = text

		if !spec.WantVerdict {
			return out, nil
		}

		verdict, verr := parseVerdict(text, spec.Taxonomy)
		if verr == nil {
			out.Verdict = verdict
			return out, nil
		}

		// One corrective follow-up: include the invalid reply and ask the
		// model to fix the format. It counts toward MaxAttempts.
		if !correctionUsed && out.Attempts < g.opts.MaxAttempts {
			correctionUsed = true
			labels := labelList(spec.Taxonomy)
			userPrompt = fmt.Sprintf(correctionFormat, labels, text, spec.User)
			g.logger.Debug("Issuing corrective re-prompt", zap.Error(verr), zap.Int("attempt", out.Attempts))
			continue
		}

		g.logger.Warn("Model output failed validation", zap.Error(verr), zap.Int("attempts", out.Attempts))
		return out, &core.ValidationError{Output: text, Err: verr}
	}

	return out, &core.ValidationError{Output: out.Text, Err: errors.New("attempts exhausted before a valid reply")}
}

func labelList(taxonomy core.Taxonomy) string {
	labels := make([]string, 0, len(taxonomy.Categories()))
	for _, c := range taxonomy.Categories() {
		labels = append(labels, string(c))
	}
	return strings.Join(labels, ", ")
}

// parseVerdict decodes and validates the model's JSON verdict against the
// taxonomy. The reply is untrusted input: a JSON object is scanned out of
// surrounding prose before decoding.
func parseVerdict(text string, taxonomy core.Taxonomy) (*core.ModelVerdict, error) {
	jsonStr, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var verdict core.ModelVerdict
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse model reply as JSON: %w", err)
	}

	if !taxonomy.Contains(verdict.Category) {
		return nil, fmt.Errorf("category %q is not in the taxonomy", verdict.Category)
	}
	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v is outside [0,1]", verdict.Confidence)
	}

	return &verdict, nil
}

// extractJSON finds the outermost JSON object in a text reply.
func extractJSON(text string) (string, error) {
	jsonStart := strings.IndexByte(text, '{')
	jsonEnd := strings.LastIndexByte(text, '}')
	if jsonStart < 0 || jsonEnd < jsonStart {
		return "", errors.New("no JSON object in model reply")
	}
	return text[jsonStart : jsonEnd+1], nil
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
