package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrossValidateRequiresTwoSources(t *testing.T) {
	google := []string{"مباراة الجزائر"}
	competitors := []string{"مباراة", "قوية"}
	bursts := []string{}

	verified := crossValidate(google, competitors, bursts)
	assert.Len(t, verified, 1)
	assert.Equal(t, "مباراة الجزائر", verified[0].Keyword)
	assert.Contains(t, verified[0].SourceSignals, "competitors")
}

func TestCrossValidateRejectsSingleSourceTrend(t *testing.T) {
	google := []string{"كلمة غريبة"}
	verified := crossValidate(google, nil, nil)
	assert.Empty(t, verified)
}

func TestCrossValidateBurstAgainstCompetitors(t *testing.T) {
	bursts := []string{"انتخابات"}
	competitors := []string{"انتخابات", "نتائج"}
	verified := crossValidate(nil, competitors, bursts)
	assert.Len(t, verified, 1)
	assert.Equal(t, 6, verified[0].Strength)
}

func TestCrossValidateSortsByStrengthDescending(t *testing.T) {
	google := []string{"أ ب", "ج د"}
	competitors := []string{"أ", "ج"}
	bursts := []string{"ب"}
	verified := crossValidate(google, competitors, bursts)
	assert.True(t, len(verified) >= 2)
	for i := 1; i < len(verified); i++ {
		assert.GreaterOrEqual(t, verified[i-1].Strength, verified[i].Strength)
	}
}

func TestDedupeRemovesDuplicatesPreservingOrder(t *testing.T) {
	out := dedupe([]string{"a", "b", "a", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}
