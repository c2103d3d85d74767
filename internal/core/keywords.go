package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// KeywordMatcher is the deterministic fallback classifier: it scores each
// category by keyword occurrences in subject+body and picks the best match,
// or CategoryOther when nothing matches. Ties resolve in taxonomy order.
type KeywordMatcher struct {
	order  []Category
	folded map[Category][]string
}

// NewKeywordMatcher builds a matcher over the taxonomy. Table entries for
// categories outside the taxonomy are ignored. Keywords are matched with
// Unicode case folding.
func NewKeywordMatcher(taxonomy Taxonomy, table map[Category][]string) *KeywordMatcher {
	caser := cases.Fold()
	folded := make(map[Category][]string, len(table))
	for _, c := range taxonomy.Categories() {
		keywords, ok := table[c]
		if !ok {
			continue
		}
		fk := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			fk = append(fk, caser.String(kw))
		}
		if len(fk) > 0 {
			folded[c] = fk
		}
	}

	return &KeywordMatcher{
		order:  taxonomy.Categories(),
		folded: folded,
	}
}

// Match returns the best-scoring category for the given text, or
// CategoryOther when no keyword occurs at all.
func (m *KeywordMatcher) Match(subject, body string) Category {
	// A fresh caser per call: cases.Caser is not safe for concurrent use.
	text := cases.Fold().String(subject + "\n" + body)

	best := CategoryOther
	bestScore := 0
	for _, c := range m.order {
		score := 0
		for _, kw := range m.folded[c] {
			score += strings.Count(text, kw)
		}
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}
