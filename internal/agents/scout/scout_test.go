package scout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/geraldfingburke/editorial-core/internal/models"
)

func TestUniqueHashStableForSameInputs(t *testing.T) {
	h1 := uniqueHash("Echorouk", "https://example.com/a", "Title")
	h2 := uniqueHash("Echorouk", "https://example.com/a", "Title")
	assert.Equal(t, h1, h2)
}

func TestUniqueHashDiffersOnLinkChange(t *testing.T) {
	h1 := uniqueHash("Echorouk", "https://example.com/a", "Title")
	h2 := uniqueHash("Echorouk", "https://example.com/b", "Title")
	assert.NotEqual(t, h1, h2)
}

func TestSourceLimitWithinBounds(t *testing.T) {
	a := &Agent{}
	source := models.Source{Priority: 8, Credibility: "official", SourceType: "agency"}
	limit := a.sourceLimit(source)
	assert.GreaterOrEqual(t, limit, 4)
	assert.LessOrEqual(t, limit, 18)
}

func TestSourceLimitFreshnessBoostForStaleSource(t *testing.T) {
	a := &Agent{}
	stale := time.Now().Add(-48 * time.Hour)
	fresh := models.Source{Priority: 5, Credibility: "medium", LastFetchedAt: nil}
	staleSource := models.Source{Priority: 5, Credibility: "medium", LastFetchedAt: &stale}
	assert.Greater(t, a.sourceLimit(staleSource), a.sourceLimit(models.Source{Priority: 5, Credibility: "medium", LastFetchedAt: timePtr(time.Now())}))
	_ = fresh
}

func timePtr(t time.Time) *time.Time { return &t }

func TestTruncateRunesRespectsUnicode(t *testing.T) {
	s := "الجزائر اليوم"
	truncated := truncateRunes(s, 5)
	assert.Equal(t, []rune(s)[:5], []rune(truncated))
}

func TestContainsAnySubstr(t *testing.T) {
	assert.True(t, containsAnySubstr("https://x.com/tag/politics", "/tag/"))
	assert.False(t, containsAnySubstr("https://x.com/article/1", "/tag/", "/video/"))
}
