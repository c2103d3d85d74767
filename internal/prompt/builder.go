package prompt

import (
	"fmt"
	"strings"

	"github.com/mikey/llm-mail-triage/internal/core"
	"github.com/mikey/llm-mail-triage/internal/utils"
)

const classificationSystem = "You are an email triage system. Respond only with JSON."

const classificationFormat = `Classify the following email into exactly one of these categories: %s.
Respond with a JSON object containing:
- category: string (must be exactly one of the category names above)
- confidence: number between 0 and 1 (how confident you are in the category)
- rationale: string (one short sentence explaining the choice)

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

const responseSystem = "You are a customer support assistant drafting a reply email. Respond only with the reply text."

const responseFormat = `Draft a short, polite reply to the following %s email. Address the sender's
message directly, do not invent order numbers, account details or promises,
and sign off as "Support Team".

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the reply text and nothing else.`

// Builder constructs model requests. Methods are pure functions of their
// inputs so identical emails always produce identical prompts.
type Builder struct {
	textProcessor *utils.TextProcessor
	maxBodyChars  int
}

// NewBuilder creates a prompt builder. maxBodyChars bounds how much of the
// email body is embedded in a prompt; <=0 means unlimited.
func NewBuilder(textProcessor *utils.TextProcessor, maxBodyChars int) *Builder {
	return &Builder{
		textProcessor: textProcessor,
		maxBodyChars:  maxBodyChars,
	}
}

// Classification builds the prompt asking the model for a taxonomy verdict.
func (b *Builder) Classification(email *core.EmailRecord, taxonomy core.Taxonomy) core.PromptSpec {
	labels := make([]string, 0, len(taxonomy.Categories()))
	for _, c := range taxonomy.Categories() {
		labels = append(labels, string(c))
	}

	return core.PromptSpec{
		System:      classificationSystem,
		User:        fmt.Sprintf(classificationFormat, strings.Join(labels, ", "), email.From, email.Subject, b.boundedBody(email.Body)),
		WantVerdict: true,
		Taxonomy:    taxonomy,
	}
}

// Response builds the prompt asking the model to draft a reply for an email
// already classified into category.
func (b *Builder) Response(email *core.EmailRecord, category core.Category) core.PromptSpec {
	return core.PromptSpec{
		System: responseSystem,
		User:   fmt.Sprintf(responseFormat, string(category), email.From, email.Subject, b.boundedBody(email.Body)),
	}
}

func (b *Builder) boundedBody(body string) string {
	return b.textProcessor.ProcessText(body, b.maxBodyChars)
}
