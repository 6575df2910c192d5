package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/models"
)

func TestRuleBasedCategoryRequiresMinHits(t *testing.T) {
	text := "الرئيس تبون يجتمع مع الوزير الأول لمناقشة قانون جديد في قصر الرئاسة"
	assert.Equal(t, models.CategoryPolitics, ruleBasedCategory(text, 2))
}

func TestRuleBasedCategoryBelowThresholdReturnsEmpty(t *testing.T) {
	text := "مقال عام بدون أي كلمات مفتاحية واضحة عن أي مجال محدد"
	assert.Equal(t, models.ArticleCategory(""), ruleBasedCategory(text, 2))
}

func TestRuleBasedUrgencyBreakingOnMarkerAndDomain(t *testing.T) {
	text := "عاجل: بيان وزارة الدفاع الوطني حول العملية الأمنية الأخيرة"
	assert.Equal(t, models.UrgencyBreaking, ruleBasedUrgency(text))
}

func TestRuleBasedUrgencyMediumForPlainText(t *testing.T) {
	text := "نادي الكرة المحلي يجري تدريباته الأسبوعية استعدادا للموسم الجديد"
	assert.Equal(t, models.UrgencyMedium, ruleBasedUrgency(text))
}

func TestHasLocalSignalDetectsAlgeriaKeyword(t *testing.T) {
	assert.True(t, hasLocalSignal("أخبار الجزائر اليوم", "Generic Source"))
	assert.False(t, hasLocalSignal("news about washington today", "Reuters"))
}

func TestLooksNonLocalForAggregatorWithoutSignal(t *testing.T) {
	assert.True(t, looksNonLocal("reuters reports from washington", "Google News"))
	assert.False(t, looksNonLocal("أخبار الجزائر اليوم", "Google News"))
}

func TestNoiseGateRejectsShortTitle(t *testing.T) {
	article := &models.Article{OriginalTitle: "short", OriginalContent: "enough content here to pass the content length gate comfortably"}
	noisy, reason := noiseGate(article, "short")
	assert.True(t, noisy)
	assert.Equal(t, "title_too_short", reason)
}

func TestNoiseGateRejectsPuzzleContent(t *testing.T) {
	article := &models.Article{OriginalTitle: "Today's Wordle answer and hints", OriginalContent: "Wordle hints for today's puzzle answer and strategy tips for players"}
	noisy, reason := noiseGate(article, "today's wordle answer and hints")
	assert.True(t, noisy)
	assert.Equal(t, "game_or_puzzle_noise", reason)
}

func TestIsGoogleAggregator(t *testing.T) {
	assert.True(t, isGoogleAggregator("Google News"))
	assert.True(t, isGoogleAggregator("news.google.com"))
	assert.False(t, isGoogleAggregator("Reuters"))
}

func TestEditorialQualityGateRejectsPromotional(t *testing.T) {
	article := &models.Article{OriginalTitle: "اشتري الآن أفضل العروض الحصرية لهذا الأسبوع فقط"}
	ok, reason := editorialQualityGate(article, "اشتري الآن أفضل العروض الحصرية لهذا الأسبوع فقط", true, true)
	assert.False(t, ok)
	assert.Equal(t, "promotional_or_ad_noise", reason)
}

func TestEditorialQualityGateRequiresLocalSignalUnlessBreaking(t *testing.T) {
	article := &models.Article{OriginalTitle: "مقال طويل بما فيه الكفاية عن موضوع عالمي عام"}
	ok, reason := editorialQualityGate(article, "مقال طويل بما فيه الكفاية عن موضوع عالمي عام", false, true)
	assert.False(t, ok)
	assert.Equal(t, "non_local_editorial_noise", reason)

	article.IsBreaking = true
	ok, _ = editorialQualityGate(article, "مقال طويل بما فيه الكفاية عن موضوع عالمي عام", false, true)
	assert.True(t, ok)
}

func TestEstimateImportanceCapsAtTen(t *testing.T) {
	score := estimateImportance("الجزائر عاجل بيان رسمي هام", models.CategoryPolitics, models.UrgencyBreaking)
	assert.LessOrEqual(t, score, 10)
	assert.Greater(t, score, 5)
}

func TestSelectArticlesForBatchRespectsSourceQuota(t *testing.T) {
	a := &Agent{cfg: config.Default()}
	var rows []candidateRow
	for i := 0; i < 10; i++ {
		rows = append(rows, candidateRow{
			article: models.Article{
				ID:              int64(i),
				SourceName:      "Same Source",
				OriginalTitle:   "أخبار الجزائر اليوم حول تطورات محلية مهمة",
				OriginalContent: "محتوى كافٍ لتجاوز بوابة الضوضاء في هذا الاختبار",
			},
		})
	}
	selected := a.selectArticlesForBatch(rows, 50)
	assert.LessOrEqual(t, len(selected), 6) // config.Default() caps one source at RouterSourceQuota (6)
}
