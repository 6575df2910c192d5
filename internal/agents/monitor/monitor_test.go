package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURLForDedupStripsTrackingParams(t *testing.T) {
	a := normalizeURLForDedup("https://Example.com/article?utm_source=fb&fbclid=abc&id=1")
	b := normalizeURLForDedup("https://example.com/article?id=1")
	assert.Equal(t, a, b)
}

func TestNormalizeURLForDedupStripsFragment(t *testing.T) {
	got := normalizeURLForDedup("https://example.com/a#section-2")
	assert.NotContains(t, got, "#")
}

func TestDedupeFeedEntriesCollapsesSameArticle(t *testing.T) {
	entries := []feedEntry{
		{title: "Same Title", link: "https://example.com/a?utm_source=x"},
		{title: "Same Title", link: "https://example.com/a"},
		{title: "Different", link: "https://example.com/b"},
	}
	out := dedupeFeedEntries(entries, 10)
	assert.Len(t, out, 2)
}

func TestMissingInvertedPyramidDetectsAllFourGaps(t *testing.T) {
	missing := missingInvertedPyramid("نص عام بدون أي عناصر خبرية واضحة")
	assert.ElementsMatch(t, []string{"من", "ماذا", "أين", "متى"}, missing)
}

func TestMissingInvertedPyramidSatisfiedWhenHintsPresent(t *testing.T) {
	chunk := "أعلن الرئيس اليوم في الجزائر عن قرار جديد"
	missing := missingInvertedPyramid(chunk)
	assert.Empty(t, missing)
}

func TestGradeBuckets(t *testing.T) {
	assert.Equal(t, "ممتاز", grade(95))
	assert.Equal(t, "جيد", grade(80))
	assert.Equal(t, "مقبول", grade(65))
	assert.Equal(t, "ضعيف", grade(40))
}

func TestPracticalSuggestionsFallsBackWhenEmpty(t *testing.T) {
	out := practicalSuggestions(nil, nil)
	assert.Len(t, out, 1)
}

func TestPracticalSuggestionsDropsVagueBoilerplate(t *testing.T) {
	out := practicalSuggestions(nil, []string{"تحسين بشكل عام"})
	assert.NotContains(t, out, "تحسين بشكل عام")
}
