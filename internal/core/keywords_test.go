package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mikey/llm-mail-triage/internal/core"
)

func TestKeywordMatch_PicksHighestScoringCategory(t *testing.T) {
	t.Parallel()

	m := testKeywords()
	got := m.Match("Broken order", "The item arrived damaged, I want a refund. Completely unacceptable.")
	assert.Equal(t, core.Category("complaint"), got)
}

func TestKeywordMatch_SubjectCounts(t *testing.T) {
	t.Parallel()

	m := testKeywords()
	got := m.Match("Partnership inquiry", "We would like to talk next week.")
	assert.Equal(t, core.Category("sales"), got)
}

func TestKeywordMatch_NoKeywordsIsOther(t *testing.T) {
	t.Parallel()

	m := testKeywords()
	got := m.Match("Thanks", "Just wanted to say the team did a great job.")
	assert.Equal(t, core.CategoryOther, got)
}

func TestKeywordMatch_TieResolvesInTaxonomyOrder(t *testing.T) {
	t.Parallel()

	// One keyword hit each for support and complaint; support comes first in
	// the taxonomy.
	m := testKeywords()
	got := m.Match("", "I hit an error and I want a refund.")
	assert.Equal(t, core.Category("support"), got)
}

func TestKeywordMatch_CaseFolds(t *testing.T) {
	t.Parallel()

	m := testKeywords()
	got := m.Match("REFUND NOW", "THIS IS UNACCEPTABLE")
	assert.Equal(t, core.Category("complaint"), got)
}

func TestKeywordMatch_IgnoresCategoriesOutsideTaxonomy(t *testing.T) {
	t.Parallel()

	m := core.NewKeywordMatcher(testTaxonomy(), map[core.Category][]string{
		"billing": {"invoice"},
	})
	got := m.Match("Invoice question", "Where is my invoice?")
	assert.Equal(t, core.CategoryOther, got)
}
