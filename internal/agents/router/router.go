// Package router implements the Router agent (spec §4.4.2): rule-based
// classification first, AI classification only when the rules are
// inconclusive, ported from original_source/backend/app/agents/router.py's
// keyword tables and scoring formulas.
package router

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/cache"
	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/llm"
	"github.com/geraldfingburke/editorial-core/internal/models"
	"github.com/geraldfingburke/editorial-core/internal/notify"
)

// ── Rule-based keyword maps (free, no AI cost) ──

var categoryKeywords = map[models.ArticleCategory][]string{
	models.CategoryPolitics: {
		"رئيس", "وزير", "برلمان", "حكومة", "انتخابات", "دبلوماسي", "سفير",
		"تبون", "رئاسة", "مجلس", "قانون", "مرسوم", "سيادي",
		"president", "minister", "parliament", "election", "politique",
	},
	models.CategoryEconomy: {
		"اقتصاد", "بنك", "ميزانية", "نفط", "غاز", "سوناطراك", "بورصة",
		"تضخم", "دينار", "استثمار", "تجارة", "صادرات", "واردات",
		"économie", "banque", "pétrole", "sonatrach", "investissement",
	},
	models.CategorySports: {
		"رياضة", "كرة", "منتخب", "بطولة", "لاعب", "هدف", "مباراة",
		"محرز", "بلماضي", "الخضر", "فاف", "دوري",
		"sport", "football", "match", "joueur", "équipe",
	},
	models.CategoryTechnology: {
		"تكنولوجيا", "إنترنت", "تطبيق", "هاتف", "ذكاء اصطناعي", "رقمنة",
		"technology", "internet", "application", "numérique", "intelligence artificielle",
	},
	models.CategoryHealth: {
		"صحة", "مستشفى", "طبيب", "دواء", "وباء", "لقاح", "علاج",
		"santé", "hôpital", "médecin", "vaccin",
	},
	models.CategoryCulture: {
		"ثقافة", "فن", "سينما", "مسرح", "كتاب", "مهرجان", "موسيقى",
		"culture", "cinéma", "festival", "livre",
	},
	models.CategoryEnvironment: {
		"بيئة", "مناخ", "زلزال", "فيضان", "حرائق", "جفاف",
		"environnement", "climat", "séisme", "inondation",
	},
	models.CategorySociety: {
		"مجتمع", "تعليم", "جامعة", "مدرسة", "شباب", "سكن", "نقل",
		"société", "éducation", "université", "transport", "logement",
	},
}

var breakingKeywords = []string{
	"عاجل", "هام", "الآن", "تنبيه", "خاص", "فورا", "فوراً", "انفراد",
	"متابعة", "طارئ", "breaking", "urgent", "alerte",
}

var breakingActionTerms = []string{
	"قرار", "قرارات", "قرر", "بيان", "بيان رسمي", "بيان هام",
	"اجتماع", "اجتماع الحكومة", "يعلن", "تعلن", "تعليمات", "إجراءات",
	"حركة الولاة", "نشرية خاصة", "تطورات", "الموقف الجزائري",
	"اكتشافات", "اتفاقيات", "نتائج البكالوريا", "مسابقات التوظيف",
	"سعر الصرف", "قرارات مالية", "التضخم",
}

var breakingEventTerms = []string{
	"زلزال", "انفجار", "اغتيال", "حرائق", "فيضانات", "حادث خطير",
	"انقطاع واسع", "وفاة", "seisme", "explosion", "attentat",
}

var breakingGovernanceTerms = []string{
	"رئاسة الجمهورية", "الرئيس عبد المجيد تبون", "الرئيس تبون", "تبون",
	"قرارات سيادية", "الوزير الأول", "نذير العرباوي", "الوزارة الأولى", "مجلس الوزراء",
}

var breakingDefenseTerms = []string{
	"وزارة الدفاع الوطني", "الجيش الوطني الشعبي", "الفريق أول السعيد شنقريحة",
	"شنقريحة", "بيان وزارة الدفاع",
}

var breakingInteriorTerms = []string{
	"وزارة الداخلية والجماعات المحلية", "إبراهيم مراد", "حركة الولاة", "الحماية المدنية",
}

var breakingWeatherTerms = []string{
	"الديوان الوطني للأرصاد الجوية", "نشرية خاصة", "أحوال الطقس", "أمطار غزيرة",
	"رياح قوية", "عاصفة", "عاصفة ثلجية", "فيضانات",
}

var breakingForeignAffairsTerms = []string{
	"وزارة الخارجية", "أحمد عطاف", "الأزمة الإقليمية", "الموقف الجزائري",
	"الساحل", "الاتحاد الإفريقي",
}

var breakingEducationTerms = []string{
	"وزارة التربية", "بلعابد", "نتائج البكالوريا", "نتائج التعليم المتوسط", "مسابقات التوظيف",
}

var breakingEnergyTerms = []string{
	"سوناطراك", "حشيشي", "اكتشافات نفطية", "اتفاقيات طاقة", "صفقة غاز",
}

var breakingHumanitarianTerms = []string{
	"الهلال الأحمر الجزائري", "ابتسام حملاوي", "مساعدات إنسانية", "قافلة مساعدات",
}

var breakingFinanceTerms = []string{
	"بنك الجزائر", "سعر الصرف", "قرارات مالية", "التضخم", "احتياطي الصرف",
}

var breakingSignalGroups = [][]string{
	breakingGovernanceTerms,
	breakingDefenseTerms,
	breakingInteriorTerms,
	breakingWeatherTerms,
	breakingForeignAffairsTerms,
	breakingEducationTerms,
	breakingEnergyTerms,
	breakingHumanitarianTerms,
	breakingFinanceTerms,
}

var authorityGroups = [][]string{
	breakingGovernanceTerms,
	breakingDefenseTerms,
	breakingInteriorTerms,
	breakingFinanceTerms,
}

var noisePatterns = compileAll([]string{
	`\bwordle\b`, `\bcrossword\b`, `\bnyt mini\b`, `\bconnections\b`,
	`\bquordle\b`, `\bhints?\b`, `\banswers?\b`, `\bhoroscope\b`, `\bsudoku\b`,
})

var localSignalKeywords = []string{
	"الجزائر", "جزائري", "الجزائرية", "algérie", "algerie", "algeria",
	"وهران", "الجزائر العاصمة", "قسنطينة", "سطيف", "عنابة", "تلمسان", "بجاية",
}

var lowValueEditorialPatterns = compileAll([]string{
	`\bpromo\b`, `\bsponsored\b`, `\badvertisement\b`, `\bcoupon\b`, `\bdiscount\b`,
	`\bcasino\b`, `\bbetting\b`, `اشتر[يى]`, `تخفيضات`, `عرض خاص`, `ممول`, `إعلان`,
})

var localSourceKeywords = []string{
	"algeria", "algérie", "algerie", "dz", "aps", "tsa", "echorouk", "el khabar", "elwatan",
	"الجزائر", "الجزائرية", "الشروق", "الخبر", "النهار", "وكالة الأنباء الجزائرية",
}

var nonLocalSignalKeywords = []string{
	"usa", "united states", "washington", "europe", "uk", "france", "germany",
	"india", "china", "russia", "nigeria", "pakistan", "south korea",
	"democrats", "associated press", "ap news", "reuters",
}

var arabicCharRe = regexp.MustCompile(`[\x{0621}-\x{064A}]`)

var arabicSourceNameHints = []string{
	"عربي", "العربية", "الجزيرة", "سكاي نيوز عربية", "الخبر", "الشروق", "النهار",
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Stats summarizes one ProcessBatch run.
type Stats struct {
	Processed int
	Candidates int
	AICalls    int
	Breaking   int
}

// Agent is the Router agent.
type Agent struct {
	db     *sql.DB
	cache  *cache.Cache
	llm    llm.Client
	notify notify.Notifier
	cfg    *config.Config
	log    zerolog.Logger
}

// New constructs a Router agent.
func New(db *sql.DB, c *cache.Cache, llmClient llm.Client, notifier notify.Notifier, cfg *config.Config, log zerolog.Logger) *Agent {
	return &Agent{db: db, cache: c, llm: llmClient, notify: notifier, cfg: cfg, log: log}
}

type candidateRow struct {
	article models.Article
	source  *models.Source
}

// ProcessBatch pulls NEW articles, selects a source-balanced subset, and
// classifies each one (spec §4.4.2). The select-for-update and every row's
// persist run inside one transaction so the SKIP LOCKED row locks held
// during selection stay held until the batch's writes land, keeping two
// concurrent router workers from picking up the same articles.
func (a *Agent) ProcessBatch(ctx context.Context, limit int) (Stats, error) {
	stats := Stats{}

	if err := a.expireStaleBreakingFlags(ctx); err != nil {
		return stats, fmt.Errorf("router: expire breaking flags: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("router: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := a.fetchNewArticles(ctx, tx, limit*4)
	if err != nil {
		return stats, err
	}

	selected := a.selectArticlesForBatch(rows, limit)

	for i := range selected {
		row := &selected[i]
		if err := a.classifyArticle(ctx, row, &stats); err != nil {
			a.log.Error().Err(err).Int64("article_id", row.article.ID).Msg("router_article_error")
			row.article.RejectionReason = "classification_error:" + err.Error()
			row.article.RetryCount++
			a.persistArticle(ctx, tx, &row.article)
			continue
		}
		a.persistArticle(ctx, tx, &row.article)
		stats.Processed++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("router: commit batch: %w", err)
	}

	a.log.Info().Int("processed", stats.Processed).Int("candidates", stats.Candidates).
		Int("ai_calls", stats.AICalls).Int("breaking", stats.Breaking).Msg("router_batch_complete")
	return stats, nil
}

func (a *Agent) fetchNewArticles(ctx context.Context, tx *sql.Tx, limit int) ([]candidateRow, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT a.id, a.source_id, a.source_name, a.original_url, a.original_title,
		       a.original_content, a.title_ar, a.summary, a.category, a.importance_score,
		       a.urgency, a.is_breaking, a.status, a.unique_hash, a.entities, a.keywords,
		       a.crawled_at, a.retry_count,
		       s.id, s.name, s.language
		FROM articles a
		LEFT JOIN sources s ON s.id = a.source_id
		WHERE a.status = 'NEW'
		ORDER BY a.crawled_at DESC
		LIMIT $1
		FOR UPDATE OF a SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("router: fetch new articles: %w", err)
	}
	defer rows.Close()

	var out []candidateRow
	for rows.Next() {
		var row candidateRow
		var sourceName, sourceLang sql.NullString
		var srcID sql.NullInt64
		if err := rows.Scan(
			&row.article.ID, &row.article.SourceID, &row.article.SourceName, &row.article.OriginalURL,
			&row.article.OriginalTitle, &row.article.OriginalContent, &row.article.TitleAr, &row.article.Summary,
			&row.article.Category, &row.article.ImportanceScore, &row.article.Urgency, &row.article.IsBreaking,
			&row.article.Status, &row.article.UniqueHash, &row.article.Entities, &row.article.Keywords,
			&row.article.CrawledAt, &row.article.RetryCount,
			&srcID, &sourceName, &sourceLang,
		); err != nil {
			return nil, fmt.Errorf("router: scan article: %w", err)
		}
		if srcID.Valid {
			row.source = &models.Source{ID: int(srcID.Int64), Name: sourceName.String, Language: sourceLang.String}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (a *Agent) persistArticle(ctx context.Context, tx *sql.Tx, article *models.Article) {
	_, err := tx.ExecContext(ctx, `
		UPDATE articles SET title_ar=$2, summary=$3, category=$4, importance_score=$5,
		       urgency=$6, is_breaking=$7, status=$8, rejection_reason=$9, entities=$10,
		       keywords=$11, retry_count=$12, updated_at=now()
		WHERE id=$1`,
		article.ID, article.TitleAr, article.Summary, article.Category, article.ImportanceScore,
		article.Urgency, article.IsBreaking, article.Status, article.RejectionReason,
		article.Entities, article.Keywords, article.RetryCount)
	if err != nil {
		a.log.Error().Err(err).Int64("article_id", article.ID).Msg("router: persist article failed")
	}
}

// expireStaleBreakingFlags demotes breaking flags older than the configured
// TTL to a high-urgency, non-breaking state.
func (a *Agent) expireStaleBreakingFlags(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.cfg.BreakingNewsTTLMinutes) * time.Minute)
	_, err := a.db.ExecContext(ctx, `
		UPDATE articles SET is_breaking = false, urgency = 'high', updated_at = now()
		WHERE is_breaking = true AND crawled_at < $1`, cutoff)
	return err
}

// classifyArticle runs the full triage pipeline for one article.
func (a *Agent) classifyArticle(ctx context.Context, row *candidateRow, stats *Stats) error {
	article := &row.article
	text := article.OriginalTitle + " " + article.OriginalContent
	textLower := strings.ToLower(text)
	hasLocalSignal := hasLocalSignal(textLower, article.SourceName)

	if noisy, reason := noiseGate(article, textLower); noisy {
		article.Status = models.StatusArchived
		article.ImportanceScore = 0
		article.RejectionReason = "auto_filtered:" + reason
		return nil
	}

	if isArabicSource(article, row.source) && !arabicCharRe.MatchString(article.OriginalTitle) {
		article.Status = models.StatusRejected
		article.ImportanceScore = 0
		article.RejectionReason = "auto_filtered:arabic_source_non_arabic_title"
		return nil
	}

	category := ruleBasedCategory(text, a.cfg.RouterRuleMinHits)
	urgency := ruleBasedUrgency(text)

	if urgency == models.UrgencyBreaking {
		article.IsBreaking = true
		article.Urgency = models.UrgencyBreaking
		stats.Breaking++
		a.notify.NotifyBreaking(ctx, article.OriginalTitle, article.OriginalURL)
	}

	if category == "" && a.cfg.RouterSkipAIForNonLocalAggregator &&
		isGoogleAggregator(article.SourceName) && !hasLocalSignal && urgency != models.UrgencyBreaking {
		category = models.CategoryInternational
	}

	if category == "" {
		if err := a.classifyWithAI(ctx, article, stats); err != nil {
			a.log.Warn().Err(err).Msg("ai_classification_failed")
			article.Category = models.CategoryLocalAlgeria
			article.ImportanceScore = 5
		}
	} else {
		article.Category = category
		article.ImportanceScore = estimateImportance(text, category, urgency)
		article.Urgency = urgency
		if article.TitleAr == "" {
			article.TitleAr = article.OriginalTitle
		}
		if article.Summary == "" {
			article.Summary = truncate(firstNonEmpty(article.OriginalContent, article.OriginalTitle), 300)
		}
		sourceName := sourceNameOf(row.source, article.SourceName)
		if article.Category == models.CategoryLocalAlgeria && looksNonLocal(textLower, sourceName) {
			article.Category = models.CategoryInternational
		}
	}

	qualityOK, qualityReason := editorialQualityGate(article, textLower, hasLocalSignal, a.cfg.EditorialRequireLocalSignal)
	if !qualityOK {
		if isGoogleAggregator(article.SourceName) {
			article.Status = models.StatusClassified
		} else {
			article.Status = models.StatusArchived
		}
		article.ImportanceScore = 0
		article.RejectionReason = "auto_filtered:" + qualityReason
		return nil
	}

	isCandidate := article.ImportanceScore >= a.cfg.EditorialMinImportance ||
		article.IsBreaking || article.Urgency == models.UrgencyHigh || article.Urgency == models.UrgencyBreaking

	if a.cfg.EditorialRequireLocalSignal && !(article.IsBreaking || article.Urgency == models.UrgencyBreaking) {
		isCandidate = isCandidate && hasLocalSignal
	}

	if isGoogleAggregator(article.SourceName) && !hasLocalSignal && !article.IsBreaking && article.Urgency != models.UrgencyBreaking {
		isCandidate = false
	}

	if isCandidate {
		article.Status = models.StatusCandidate
		stats.Candidates++
	} else {
		article.Status = models.StatusClassified
		article.RejectionReason = "auto_filtered:low_editorial_value"
	}

	return nil
}

func (a *Agent) classifyWithAI(ctx context.Context, article *models.Article, stats *Stats) error {
	text := truncate(article.OriginalTitle+" "+article.OriginalContent, 4000)
	analysis, err := a.llm.AnalyzeNews(ctx, article.OriginalTitle, text)
	if err != nil {
		return err
	}
	stats.AICalls++
	a.cache.IncrementCounter(ctx, "ai_calls_today", 24*time.Hour)

	article.Summary = firstNonEmpty(article.Summary, text)
	if category := models.ArticleCategory(analysis.Category); isKnownCategory(category) {
		article.Category = category
	} else {
		article.Category = models.CategoryLocalAlgeria
	}
	article.ImportanceScore = analysis.ImportanceScore
	article.IsBreaking = analysis.IsBreaking || article.IsBreaking
	article.Entities = models.StringArray(analysis.Entities)
	article.Keywords = models.StringArray(analysis.Keywords)

	if analysis.IsBreaking && article.Urgency != models.UrgencyBreaking {
		article.Urgency = models.UrgencyBreaking
		stats.Breaking++
	}

	localText := strings.ToLower(article.OriginalTitle + " " + article.OriginalContent)
	if article.Category == models.CategoryLocalAlgeria && looksNonLocal(localText, article.SourceName) {
		article.Category = models.CategoryInternational
	}
	return nil
}

func isKnownCategory(c models.ArticleCategory) bool {
	switch c {
	case models.CategoryPolitics, models.CategoryEconomy, models.CategorySports, models.CategoryTechnology,
		models.CategoryHealth, models.CategoryCulture, models.CategoryEnvironment, models.CategorySociety,
		models.CategoryLocalAlgeria, models.CategoryInternational:
		return true
	default:
		return false
	}
}

// selectArticlesForBatch prioritizes local relevance and caps how many
// articles any single source contributes per batch (spec §4.4.2).
func (a *Agent) selectArticlesForBatch(rows []candidateRow, limit int) []candidateRow {
	if len(rows) == 0 {
		return nil
	}

	type scored struct {
		row         candidateRow
		localSource int
		localSignal int
		crawled     time.Time
	}

	scoredRows := make([]scored, len(rows))
	for i, row := range rows {
		text := strings.ToLower(row.article.OriginalTitle + " " + row.article.OriginalContent)
		sourceName := sourceNameOf(row.source, row.article.SourceName)
		localSource := 0
		if containsAny(strings.ToLower(sourceName), localSourceKeywords) {
			localSource = 1
		}
		localSignal := 0
		if hasLocalSignal(text, sourceName) {
			localSignal = 1
		}
		scoredRows[i] = scored{row: row, localSource: localSource, localSignal: localSignal, crawled: row.article.CrawledAt}
	}

	sortScored(scoredRows)

	sourceQuota := a.cfg.RouterSourceQuota
	if sourceQuota < 1 {
		sourceQuota = 1
	}
	candidateQuota := a.cfg.RouterCandidateSourceQuota
	if candidateQuota < 1 {
		candidateQuota = 1
	}

	perSourceTotal := map[string]int{}
	perSourceCandidateLike := map[string]int{}
	var selected []candidateRow

	for _, s := range scoredRows {
		if len(selected) >= limit {
			break
		}
		sourceKey := sourceKeyOf(s.row.source, s.row.article.SourceName)
		if perSourceTotal[sourceKey] >= sourceQuota {
			continue
		}
		text := strings.ToLower(s.row.article.OriginalTitle + " " + s.row.article.OriginalContent)
		sourceName := sourceNameOf(s.row.source, s.row.article.SourceName)
		candidateLike := hasLocalSignal(text, sourceName)
		if candidateLike && perSourceCandidateLike[sourceKey] >= candidateQuota {
			continue
		}
		selected = append(selected, s.row)
		perSourceTotal[sourceKey]++
		if candidateLike {
			perSourceCandidateLike[sourceKey]++
		}
	}
	return selected
}

func sortScored(s []struct {
	row         candidateRow
	localSource int
	localSignal int
	crawled     time.Time
}) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && lessScored(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func lessScored(a, b struct {
	row         candidateRow
	localSource int
	localSignal int
	crawled     time.Time
}) bool {
	if a.localSource != b.localSource {
		return a.localSource > b.localSource
	}
	if a.localSignal != b.localSignal {
		return a.localSignal > b.localSignal
	}
	return a.crawled.After(b.crawled)
}

func sourceKeyOf(source *models.Source, fallbackName string) string {
	if source != nil && source.ID != 0 {
		return fmt.Sprintf("%d", source.ID)
	}
	if fallbackName != "" {
		return fallbackName
	}
	return "unknown"
}

func sourceNameOf(source *models.Source, fallback string) string {
	if source != nil && source.Name != "" {
		return source.Name
	}
	return fallback
}

// ── Rule-based scoring, ported verbatim from router.py ──

func ruleBasedCategory(text string, minHits int) models.ArticleCategory {
	if text == "" {
		return ""
	}
	textLower := strings.ToLower(text)
	if minHits < 1 {
		minHits = 1
	}

	var best models.ArticleCategory
	bestScore := 0
	for category, keywords := range categoryKeywords {
		score := countMatches(textLower, keywords)
		if score > bestScore {
			bestScore = score
			best = category
		}
	}
	if bestScore >= minHits {
		return best
	}
	return ""
}

func ruleBasedUrgency(text string) models.Urgency {
	if text == "" {
		return models.UrgencyLow
	}
	textLower := strings.ToLower(text)

	markerHits := countMatches(textLower, breakingKeywords)
	actionHits := countMatches(textLower, breakingActionTerms)
	eventHits := countMatches(textLower, breakingEventTerms)

	domainHits := 0
	entityHits := 0
	for _, group := range breakingSignalGroups {
		groupHits := countMatches(textLower, group)
		if groupHits > 0 {
			domainHits++
			entityHits += groupHits
		}
	}

	authorityHits := 0
	for _, group := range authorityGroups {
		if containsAny(textLower, group) {
			authorityHits++
		}
	}

	score := markerHits*3 + minInt(actionHits, 4) + minInt(eventHits, 3)*2 + domainHits*2 + authorityHits*2
	if entityHits >= 3 {
		score++
	}

	if markerHits >= 1 && (domainHits >= 1 || eventHits >= 1 || actionHits >= 2 || authorityHits >= 1) {
		return models.UrgencyBreaking
	}
	if authorityHits >= 1 && actionHits >= 1 {
		return models.UrgencyBreaking
	}
	if domainHits >= 2 && (actionHits >= 1 || markerHits >= 1) {
		return models.UrgencyBreaking
	}
	if eventHits >= 2 {
		return models.UrgencyBreaking
	}
	if score >= 8 {
		return models.UrgencyBreaking
	}
	if score >= 3 || markerHits >= 1 || eventHits >= 1 {
		return models.UrgencyHigh
	}
	return models.UrgencyMedium
}

func estimateImportance(text string, category models.ArticleCategory, urgency models.Urgency) int {
	score := 5
	textLower := strings.ToLower(text)

	algeriaKeywords := []string{"الجزائر", "جزائري", "algeria", "algerie"}
	if containsAny(textLower, algeriaKeywords) {
		score += 2
	}

	switch urgency {
	case models.UrgencyBreaking:
		score += 3
	case models.UrgencyHigh:
		score += 2
	default:
		if containsAny(textLower, breakingKeywords) {
			score++
		}
	}

	if category == models.CategoryPolitics || category == models.CategoryEconomy {
		score++
	}

	if score > 10 {
		return 10
	}
	return score
}

func hasLocalSignal(textLower, sourceName string) bool {
	if containsAny(textLower, localSignalKeywords) {
		return true
	}
	src := strings.ToLower(sourceName)
	return containsAny(src, []string{"aps", "tsa", "echorouk", "el khabar", "elwatan", "dz", "algerie", "algérie"})
}

func looksNonLocal(textLower, sourceName string) bool {
	if hasLocalSignal(textLower, sourceName) {
		return false
	}
	if isGoogleAggregator(sourceName) {
		return true
	}
	return containsAny(textLower, nonLocalSignalKeywords)
}

func noiseGate(article *models.Article, textLower string) (bool, string) {
	title := strings.TrimSpace(article.OriginalTitle)
	content := strings.TrimSpace(article.OriginalContent)

	if len([]rune(title)) < 12 {
		return true, "title_too_short"
	}
	if len([]rune(content)) < 40 && !article.IsBreaking {
		return true, "content_too_short"
	}
	for _, pattern := range noisePatterns {
		if pattern.MatchString(textLower) {
			return true, "game_or_puzzle_noise"
		}
	}
	return false, ""
}

func isArabicSource(article *models.Article, source *models.Source) bool {
	if source != nil && strings.ToLower(source.Language) == "ar" {
		return true
	}
	name := strings.ToLower(sourceNameOf(source, article.SourceName))
	return containsAny(name, arabicSourceNameHints)
}

func editorialQualityGate(article *models.Article, textLower string, hasLocalSignal bool, requireLocalSignal bool) (bool, string) {
	if !article.IsBreaking && requireLocalSignal && !hasLocalSignal {
		return false, "non_local_editorial_noise"
	}
	for _, pattern := range lowValueEditorialPatterns {
		if pattern.MatchString(textLower) {
			return false, "promotional_or_ad_noise"
		}
	}
	title := strings.TrimSpace(article.OriginalTitle)
	if len([]rune(title)) < 16 && !article.IsBreaking {
		return false, "weak_headline"
	}
	return true, ""
}

func isGoogleAggregator(sourceName string) bool {
	lower := strings.ToLower(sourceName)
	return strings.Contains(lower, "google news") || strings.Contains(lower, "news.google.com")
}

func countMatches(textLower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(textLower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

func containsAny(textLower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(textLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
