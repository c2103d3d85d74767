package core

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// ResponsePolicy decides how a category is answered.
type ResponsePolicy string

const (
	// PolicySuppress produces no reply at all, e.g. for spam.
	PolicySuppress ResponsePolicy = "suppress"
	// PolicyTemplate fills a fixed template with email fields; no model call.
	PolicyTemplate ResponsePolicy = "template"
	// PolicyModelDraft asks the model for a reply, then applies guardrails.
	PolicyModelDraft ResponsePolicy = "model_draft"
)

// templateData is what reply templates may reference.
type templateData struct {
	From     string
	Subject  string
	Category string
}

// DefaultPolicies maps the default taxonomy to response policies.
func DefaultPolicies() map[Category]ResponsePolicy {
	return map[Category]ResponsePolicy{
		"support":     PolicyModelDraft,
		"sales":       PolicyModelDraft,
		"complaint":   PolicyTemplate,
		"spam":        PolicySuppress,
		CategoryOther: PolicyTemplate,
	}
}

// DefaultTemplates returns the built-in reply templates.
func DefaultTemplates() map[Category]string {
	return map[Category]string{
		"complaint": "Dear {{.From}},\n\n" +
			"We are sorry to hear about your experience. Our support team is already looking into this issue " +
			"and aims to resolve it as quickly as possible.\n\nBest Regards,\nSupport Team",
		"support": "Hi {{.From}},\n\n" +
			"Thank you for reaching out. Our technical team will review your case and follow up as soon as possible.\n\n" +
			"Best Regards,\nTech Support Team",
		"sales": "Hi {{.From}},\n\n" +
			"Thank you for your interest. A member of our sales team will get back to you shortly.\n\n" +
			"Best Regards,\nSales Team",
		CategoryOther: "Hi {{.From}},\n\n" +
			"Thank you for reaching out. We have received your message and will direct it to the right team. " +
			"You'll hear from us soon.\n\nBest Regards,\nGeneral Inquiries Team",
	}
}

// ResponderOptions are the guardrail knobs.
type ResponderOptions struct {
	// MaxResponseChars bounds a model-drafted reply's length.
	MaxResponseChars int
}

func (o ResponderOptions) withDefaults() ResponderOptions {
	if o.MaxResponseChars <= 0 {
		o.MaxResponseChars = 2000
	}
	return o
}

// Responder turns a classified email into a ResponseRecord according to the
// per-category policy table. Generate never fails: every path produces a
// record, degraded ones marked NeedsReview.
type Responder struct {
	gateway   ModelGateway
	prompts   PromptBuilder
	policies  map[Category]ResponsePolicy
	templates map[Category]*template.Template
	logger    *zap.Logger
	opts      ResponderOptions
}

// NewResponder creates a responder. Template sources missing from templates
// fall back to the built-ins; a syntactically invalid template is a
// configuration error surfaced at startup.
func NewResponder(
	gateway ModelGateway,
	prompts PromptBuilder,
	policies map[Category]ResponsePolicy,
	templates map[Category]string,
	logger *zap.Logger,
	opts ResponderOptions,
) (*Responder, error) {
	if policies == nil {
		policies = DefaultPolicies()
	}
	sources := DefaultTemplates()
	for c, src := range templates {
		sources[c] = src
	}

	parsed := make(map[Category]*template.Template, len(sources))
	for c, src := range sources {
		tmpl, err := template.New(string(c)).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("invalid reply template for category %q: %w", c, err)
		}
		parsed[c] = tmpl
	}

	return &Responder{
		gateway:   gateway,
		prompts:   prompts,
		policies:  policies,
		templates: parsed,
		logger:    logger,
		opts:      opts.withDefaults(),
	}, nil
}

// Generate produces the response record for a classified email.
func (r *Responder) Generate(ctx context.Context, email *EmailRecord, classification *ClassificationResult) *ResponseRecord {
	record := &ResponseRecord{
		EmailID:     email.ID,
		Category:    classification.Category,
		GeneratedAt: time.Now(),
	}

	// Fallback-origin categories are themselves low-trust, so no automated
	// reply goes out regardless of policy.
	if classification.Status == StatusFallback {
		record.Status = ResponseNeedsReview
		return record
	}

	policy, ok := r.policies[classification.Category]
	if !ok {
		r.logger.Warn("No response policy for category, routing to review",
			zap.String("email_id", email.ID),
			zap.String("category", string(classification.Category)))
		record.Status = ResponseNeedsReview
		return record
	}

	switch policy {
	case PolicySuppress:
		record.Status = ResponseSuppressed
		return record

	case PolicyTemplate:
		text, err := r.renderTemplate(email, classification.Category)
		if err != nil {
			r.logger.Error("Template rendering failed", zap.String("email_id", email.ID), zap.Error(err))
			record.Status = ResponseNeedsReview
			return record
		}
		record.Status = ResponseSent
		record.Text = &text
		return record

	case PolicyModelDraft:
		return r.draft(ctx, email, classification, record)

	default:
		r.logger.Warn("Unknown response policy, routing to review",
			zap.String("email_id", email.ID),
			zap.String("policy", string(policy)))
		record.Status = ResponseNeedsReview
		return record
	}
}

func (r *Responder) renderTemplate(email *EmailRecord, category Category) (string, error) {
	tmpl, ok := r.templates[category]
	if !ok {
		tmpl = r.templates[CategoryOther]
	}

	var sb strings.Builder
	err := tmpl.Execute(&sb, templateData{
		From:     email.From,
		Subject:  email.Subject,
		Category: string(category),
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Responder) draft(ctx context.Context, email *EmailRecord, classification *ClassificationResult, record *ResponseRecord) *ResponseRecord {
	spec := r.prompts.Response(email, classification.Category)
	out, err := r.gateway.Invoke(ctx, spec)
	if err != nil {
		r.logger.Warn("Model draft failed, routing to review",
			zap.String("email_id", email.ID),
			zap.Error(err))
		record.Status = ResponseNeedsReview
		return record
	}

	text := strings.TrimSpace(out.Text)
	if err := r.checkGuardrails(email, text); err != nil {
		r.logger.Warn("Guardrail rejected draft",
			zap.String("email_id", email.ID),
			zap.Error(err))
		record.Status = ResponseNeedsReview
		return record
	}

	record.Status = ResponseSent
	record.Text = &text
	return record
}

// checkGuardrails validates a model-drafted reply: it must be non-empty,
// within the length bound, and must not echo metadata values that never
// appeared in the original body.
func (r *Responder) checkGuardrails(email *EmailRecord, text string) error {
	if text == "" {
		return &GuardrailError{Reason: "empty draft"}
	}
	if n := utf8.RuneCountInString(text); n > r.opts.MaxResponseChars {
		return &GuardrailError{Reason: fmt.Sprintf("draft length %d exceeds limit %d", n, r.opts.MaxResponseChars)}
	}

	caser := cases.Fold()
	foldedDraft := caser.String(text)
	foldedBody := caser.String(email.Body)
	for key, value := range email.Metadata {
		if value == "" {
			continue
		}
		foldedValue := caser.String(value)
		if strings.Contains(foldedDraft, foldedValue) && !strings.Contains(foldedBody, foldedValue) {
			return &GuardrailError{Reason: fmt.Sprintf("draft echoes metadata field %q", key)}
		}
	}

	return nil
}
