package core

import (
	"context"
)

// PromptSpec is a structured model request: instructions plus the email
// content, and whether a schema-conforming verdict is expected back.
type PromptSpec struct {
	// System is the role instruction sent ahead of the user prompt.
	System string
	// User is the task prompt including the email content verbatim.
	User string
	// WantVerdict asks the gateway to validate the reply as a ModelVerdict.
	WantVerdict bool
	// Taxonomy constrains the verdict's category label when WantVerdict is set.
	Taxonomy Taxonomy
}

// ModelVerdict is the structured payload a classification prompt requires.
type ModelVerdict struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// RawModelOutput is what the gateway hands back: the raw reply for audit,
// the validated verdict when one was requested, and the attempt count.
type RawModelOutput struct {
	Text     string
	Verdict  *ModelVerdict
	Attempts int
	Model    string
}

// CompletionClient is the provider port. It is the only capability a remote
// LLM has to offer; concrete adapters map provider failures onto
// TransientError or PermanentError.
type CompletionClient interface {
	// Complete sends a prompt and returns the model's raw text reply.
	Complete(ctx context.Context, system, prompt string) (string, error)

	// ModelName identifies the underlying model for audit fields.
	ModelName() string
}

// ModelGateway is the reliability boundary around the remote call. Every
// component above the adapters goes through it.
type ModelGateway interface {
	// Invoke runs the prompt with retry, backoff, breaker and validation
	// applied. Errors are one of TransientError, PermanentError,
	// ValidationError or CircuitOpenError.
	Invoke(ctx context.Context, spec PromptSpec) (*RawModelOutput, error)
}

// PromptBuilder turns emails into model requests. Implementations must be
// pure: identical inputs yield identical specs.
type PromptBuilder interface {
	// Classification builds the prompt requesting a taxonomy verdict.
	Classification(email *EmailRecord, taxonomy Taxonomy) PromptSpec

	// Response builds the prompt requesting a drafted reply.
	Response(email *EmailRecord, category Category) PromptSpec
}

// ClassificationCache stores model-backed verdicts keyed by content digest.
type ClassificationCache interface {
	// Get retrieves a cached verdict, or an error when absent or expired.
	Get(ctx context.Context, digest string) (*CachedVerdict, error)

	// Set stores a verdict.
	Set(ctx context.Context, verdict *CachedVerdict) error

	// Delete removes a verdict.
	Delete(ctx context.Context, digest string) error

	// Cleanup removes expired verdicts.
	Cleanup(ctx context.Context) error
}
