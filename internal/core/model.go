package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Category is a single triage label, e.g. "complaint" or "spam".
type Category string

// CategoryOther is the mandatory catch-all; every taxonomy contains it.
const CategoryOther Category = "other"

// Taxonomy is the fixed, ordered set of categories for a run. Order matters:
// keyword-fallback ties resolve to the earliest category.
type Taxonomy struct {
	categories []Category
}

// NewTaxonomy builds a taxonomy from ordered labels, appending "other" if
// the caller left it out.
func NewTaxonomy(labels []string) Taxonomy {
	categories := make([]Category, 0, len(labels)+1)
	hasOther := false
	for _, label := range labels {
		c := Category(label)
		if c == CategoryOther {
			hasOther = true
		}
		categories = append(categories, c)
	}
	if !hasOther {
		categories = append(categories, CategoryOther)
	}
	return Taxonomy{categories: categories}
}

// Categories returns the ordered category list.
func (t Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// Contains reports whether label is one of the taxonomy's exact categories.
func (t Taxonomy) Contains(label string) bool {
	for _, c := range t.categories {
		if string(c) == label {
			return true
		}
	}
	return false
}

// EmailRecord is an already-parsed inbound email. It is read-only input and
// is never mutated by the pipeline.
type EmailRecord struct {
	ID         string
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
	Metadata   map[string]string
}

// Digest returns a content-addressed key for the record, used by the
// classification cache. Sender, subject and body participate; the ID does
// not, so re-submitted content hits the cache.
func (e *EmailRecord) Digest() string {
	h := sha256.New()
	h.Write([]byte(e.From))
	h.Write([]byte{0})
	h.Write([]byte(e.Subject))
	h.Write([]byte{0})
	h.Write([]byte(e.Body))
	return hex.EncodeToString(h.Sum(nil))
}

// ClassificationStatus describes how a classification was obtained.
type ClassificationStatus string

const (
	// StatusConfident means the model returned a verdict at or above the
	// confidence threshold.
	StatusConfident ClassificationStatus = "confident"
	// StatusLowConfidence means the model verdict fell below the threshold;
	// the category is kept as the best available signal.
	StatusLowConfidence ClassificationStatus = "low_confidence"
	// StatusFallback means the deterministic keyword fallback produced the
	// category because the model was unavailable or its output invalid.
	StatusFallback ClassificationStatus = "fallback"
)

// ClassificationResult is the outcome of classifying one email. Created once
// and never mutated afterwards.
type ClassificationResult struct {
	EmailID    string
	Category   Category
	Confidence float64
	Rationale  string
	RawOutput  string
	Attempts   int
	Status     ClassificationStatus
	FromCache  bool
	ModelUsed  string
}

// ResponseStatus describes the disposition of a generated response.
type ResponseStatus string

const (
	// ResponseSent means the response text passed guardrails and is sendable.
	ResponseSent ResponseStatus = "sent"
	// ResponseSuppressed means policy forbids replying; text is always nil.
	ResponseSuppressed ResponseStatus = "suppressed"
	// ResponseNeedsReview means a human must look: guardrail failure,
	// fallback-origin classification, or an unexpected processing error.
	ResponseNeedsReview ResponseStatus = "needs_review"
)

// ResponseRecord is the outcome of response generation for one email.
type ResponseRecord struct {
	EmailID     string
	Category    Category
	Text        *string
	Status      ResponseStatus
	GeneratedAt time.Time
}

// TriageOutcome pairs the two per-email results, in input order.
type TriageOutcome struct {
	Email          *EmailRecord
	Classification *ClassificationResult
	Response       *ResponseRecord
}

// CachedVerdict is a stored model-backed classification.
type CachedVerdict struct {
	Digest     string
	Category   Category
	Confidence float64
	Rationale  string
	Status     ClassificationStatus
	LastSeen   time.Time
	ExpiresAt  time.Time
}
