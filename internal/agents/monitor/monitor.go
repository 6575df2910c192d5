// Package monitor implements the Published-Quality Monitor agent (spec
// §4.4.5): audits already-published content pulled from an external RSS
// feed against editorial-constitution rules, ported from
// original_source/backend/app/agents/published_monitor.py.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/cache"
	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/llm"
	"github.com/geraldfingburke/editorial-core/internal/notify"
)

const cacheKeyLastReport = "published_monitor:last"

var clickbaitTerms = []string{
	"لن تصدق", "صدمة", "فضيحة", "كارثة", "شاهد الآن",
	"مفاجأة مدوية", "يفجر مفاجأة", "سر خطير", "انكشف المستور",
}

var commonSpellingMistakes = map[string]string{
	"ان شاء الله": "إن شاء الله",
	"الذى":        "الذي",
	"هاذا":        "هذا",
	"هاذه":        "هذه",
	"فى":          "في",
	"الى":         "إلى",
}

var (
	whoHints   = []string{"الرئيس", "الوزير", "الوزارة", "الحكومة", "الجيش", "الوكالة", "مصدر", "مسؤول", "شركة"}
	whatHints  = []string{"أعلن", "أعلنت", "أكد", "كشفت", "قرار", "بيان", "اتفاق", "نتائج", "تحقيق"}
	whereHints = []string{"الجزائر", "ولاية", "العاصمة", "محلية", "دولية", "أفريقيا", "غزة"}
	whenHints  = []string{"اليوم", "أمس", "غدا", "هذا الأسبوع", "هذا الشهر", "خلال", "بتاريخ"}
)

var strongKeywords = []string{"بيان", "قرار", "رسمي", "إحصائيات", "وثيقة", "مصدر", "أرقام", "تأكيد"}

const editorialQualityPrompt = `You are a professional editorial and spelling quality reviewer for an Arabic news portal.
Evaluate the article without leniency, to a professional newsroom standard.

Required:
1) Spot spelling/grammar errors or unprofessional phrasing.
2) Spot professional issues: sensationalism, vagueness, weak sourcing, leaps in reasoning.
3) Provide practical, immediately actionable editorial suggestions.
4) Give a numeric score_adjustment from -15 to +5 only.

Return JSON only:
{"issues":[string],"suggestions":[string],"score_adjustment":int,"checks":{"spelling":int,"style":int,"structure":int,"accuracy":int}}`

var whitespaceRe = regexp.MustCompile(`\s+`)

// Item is one audited published article.
type Item struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	PublishedAt string         `json:"published_at"`
	Score       int            `json:"score"`
	Grade       string         `json:"grade"`
	Issues      []string       `json:"issues"`
	Suggestions []string       `json:"suggestions"`
	Metrics     map[string]int `json:"metrics"`
}

// Report is the outcome of one Scan, cached so Latest can return the most
// recent one.
type Report struct {
	FeedURL           string    `json:"feed_url"`
	ExecutedAt        time.Time `json:"executed_at"`
	TotalItems        int       `json:"total_items"`
	TotalFeedEntries  int       `json:"total_feed_entries"`
	DuplicatesFiltered int      `json:"duplicates_filtered"`
	AverageScore      float64   `json:"average_score"`
	WeakItemsCount    int       `json:"weak_items_count"`
	IssuesCount       int       `json:"issues_count"`
	Status            string    `json:"status"`
	Items             []Item    `json:"items"`
}

type llmReview struct {
	Issues          []string       `json:"issues"`
	Suggestions     []string       `json:"suggestions"`
	ScoreAdjustment float64        `json:"score_adjustment"`
	Checks          map[string]any `json:"checks"`
}

// Agent is the Published-Quality Monitor agent.
type Agent struct {
	cache  *cache.Cache
	llm    llm.Client
	notify notify.Notifier
	cfg    *config.Config
	log    zerolog.Logger
	feed   *gofeed.Parser
	http   *http.Client
}

// New constructs a Published-Quality Monitor agent.
func New(c *cache.Cache, llmClient llm.Client, notifier notify.Notifier, cfg *config.Config, log zerolog.Logger) *Agent {
	return &Agent{
		cache:  c,
		llm:    llmClient,
		notify: notifier,
		cfg:    cfg,
		log:    log,
		feed:   gofeed.NewParser(),
		http:   &http.Client{Timeout: 20 * time.Second},
	}
}

type feedEntry struct {
	title       string
	summary     string
	link        string
	publishedAt string
}

// Scan fetches the configured published feed, dedups entries, audits each
// (with an LLM pass on the first LLMItemCap), and alerts on weak items.
func (a *Agent) Scan(ctx context.Context) (*Report, error) {
	feedURL := a.cfg.PublishedMonitorFeedURL
	limit := a.cfg.PublishedMonitorItemLimit
	if limit < 1 {
		limit = 20
	}
	if limit > 30 {
		limit = 30
	}

	entries := a.fetchFeedEntries(ctx, feedURL)
	unique := dedupeFeedEntries(entries, limit)

	items := make([]Item, 0, len(unique))
	for i, entry := range unique {
		bodyText := a.fetchArticleText(ctx, entry.link)
		useLLM := i < maxInt(0, a.cfg.PublishedMonitorLLMItemCap)
		items = append(items, a.auditEntry(ctx, entry, bodyText, useLLM))
	}

	avg := 0.0
	issuesCount := 0
	var weak []Item
	for _, item := range items {
		avg += float64(item.Score)
		issuesCount += len(item.Issues)
		if item.Score < a.cfg.PublishedMonitorAlertThreshold {
			weak = append(weak, item)
		}
	}
	if len(items) > 0 {
		avg = roundTo2(avg / float64(len(items)))
	}

	status := "ok"
	if len(weak) > 0 {
		status = "alert"
	}

	report := &Report{
		FeedURL:            feedURL,
		ExecutedAt:         time.Now().UTC(),
		TotalItems:         len(items),
		TotalFeedEntries:   len(entries),
		DuplicatesFiltered: maxInt(0, len(entries)-len(unique)),
		AverageScore:       avg,
		WeakItemsCount:     len(weak),
		IssuesCount:        issuesCount,
		Status:             status,
		Items:              items,
	}

	ttl := time.Duration(maxInt(20, a.cfg.PublishedMonitorIntervalMin*3)) * time.Minute
	a.cache.SetJSON(ctx, cacheKeyLastReport, report, ttl)

	if len(weak) > 0 {
		a.alertWeakItems(ctx, report)
	}

	a.log.Info().Int("total_items", len(items)).Float64("average_score", avg).
		Int("weak_items", len(weak)).Int("issues_count", issuesCount).Msg("published_monitor_scan_complete")
	return report, nil
}

// Latest returns the cached report from the most recent Scan, if any.
func (a *Agent) Latest(ctx context.Context) (*Report, bool) {
	var report Report
	if !a.cache.GetJSON(ctx, cacheKeyLastReport, &report) {
		return nil, false
	}
	return &report, true
}

func (a *Agent) fetchFeedEntries(ctx context.Context, feedURL string) []feedEntry {
	fetchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	feed, err := a.feed.ParseURLWithContext(feedURL, fetchCtx)
	if err != nil {
		a.log.Error().Err(err).Str("feed_url", feedURL).Msg("published_monitor_feed_error")
		return nil
	}

	entries := make([]feedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, feedEntry{
			title:       item.Title,
			summary:     stripHTML(firstNonEmpty(item.Description, item.Content)),
			link:        item.Link,
			publishedAt: firstNonEmpty(item.Published, item.Updated),
		})
	}
	return entries
}

func (a *Agent) fetchArticleText(ctx context.Context, articleURL string) string {
	if articleURL == "" {
		return ""
	}
	fetchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, articleURL, nil)
	if err != nil {
		return ""
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}
	var paragraphs []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return whitespaceRe.ReplaceAllString(strings.Join(paragraphs, "\n"), " ")
}

func stripHTML(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// normalizeURLForDedup strips tracking query params and fragments so the
// same article reached via different campaign links collapses to one entry.
func normalizeURLForDedup(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	query := u.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || isTrackingParam(lower) {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()
	u.Fragment = ""
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	return strings.TrimRight(u.String(), "/")
}

func isTrackingParam(key string) bool {
	switch key {
	case "fbclid", "gclid", "igshid", "oc", "hl", "gl", "ceid":
		return true
	default:
		return false
	}
}

func normalizeTitleForDedup(title string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), " ")
}

func dedupeFeedEntries(entries []feedEntry, limit int) []feedEntry {
	seen := map[string]bool{}
	var out []feedEntry
	for _, e := range entries {
		signature := normalizeURLForDedup(e.link) + "|" + normalizeTitleForDedup(e.title)
		if seen[signature] {
			continue
		}
		seen[signature] = true
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// auditEntry runs the rule-based scoring gates, then an optional LLM
// editorial review that may adjust the score within [-15, +5].
func (a *Agent) auditEntry(ctx context.Context, entry feedEntry, bodyText string, useLLM bool) Item {
	score := 100
	var issues, suggestions []string

	titleClean := strings.TrimSpace(entry.title)
	summaryClean := strings.TrimSpace(entry.summary)
	text := strings.TrimSpace(summaryClean + " " + bodyText)
	loweredText := strings.ToLower(text)
	loweredTitle := strings.ToLower(titleClean)
	wordCount := len(strings.Fields(firstNonEmpty(bodyText, summaryClean)))

	var clickbaitHits []string
	for _, term := range clickbaitTerms {
		if strings.Contains(loweredTitle, term) || strings.Contains(loweredText, term) {
			clickbaitHits = append(clickbaitHits, term)
		}
	}
	if len(clickbaitHits) > 0 {
		score -= minInt(30, len(clickbaitHits)*8)
		issues = append(issues, fmt.Sprintf("مؤشرات تهويل/Clickbait: %s", strings.Join(limitSlice(clickbaitHits, 3), ", ")))
		suggestions = append(suggestions, "استبدال الصياغة المثيرة بعنوان خبري مباشر ودقيق.")
	}

	spellingHits := 0
	for wrong := range commonSpellingMistakes {
		if strings.Contains(loweredText, wrong) || strings.Contains(loweredTitle, wrong) {
			spellingHits++
		}
	}
	if spellingHits > 0 {
		score -= minInt(24, spellingHits*4)
		issues = append(issues, "أخطاء إملائية شائعة مرصودة.")
		suggestions = append(suggestions, "إجراء مراجعة إملائية نهائية واعتماد الصيغة القياسية للأسماء والمصطلحات.")
	}

	titleLen := len([]rune(titleClean))
	switch {
	case titleLen < 35:
		score -= 8
		issues = append(issues, "العنوان قصير جداً لتحسين SEO.")
		suggestions = append(suggestions, "رفع طول العنوان إلى 35-75 حرفاً مع الحفاظ على الوضوح.")
	case titleLen > 95:
		score -= 10
		issues = append(issues, "العنوان طويل ويضعف القراءة.")
		suggestions = append(suggestions, "اختصار العنوان مع إبراز الفاعل والحدث.")
	}

	if wordCount < 180 {
		score -= 12
		issues = append(issues, "المحتوى قصير ولا يغطي الخبر بشكل كافٍ.")
		suggestions = append(suggestions, "إضافة تفاصيل أساسية وسياق داعم من مصادر موثوقة.")
	}

	firstChunk := firstChunkOf(bodyText, summaryClean)
	missing := missingInvertedPyramid(firstChunk)
	if len(missing) > 0 {
		score -= minInt(16, len(missing)*4)
		issues = append(issues, fmt.Sprintf("نقص في عناصر الهرم الإخباري: %s", strings.Join(missing, ", ")))
		suggestions = append(suggestions, "تقوية الفقرة الافتتاحية بعناصر: من/ماذا/أين/متى.")
	}

	strongHits := 0
	combined := titleClean + " " + text
	for _, kw := range strongKeywords {
		if strings.Contains(combined, kw) {
			strongHits++
		}
	}
	if strongHits < 2 {
		score -= 6
		issues = append(issues, "ضعف في الكلمات المفتاحية التحريرية القوية.")
		suggestions = append(suggestions, "تعزيز المصطلحات الخبرية الدقيقة في العنوان والفقرة الأولى.")
	}

	metrics := map[string]int{
		"title_length":         titleLen,
		"word_count":           wordCount,
		"clickbait_hits":       len(clickbaitHits),
		"spelling_hits":        spellingHits,
		"strong_keywords_hits": strongHits,
	}

	if useLLM && (titleClean != "" || text != "") {
		if review := a.llmEditorialReview(ctx, titleClean, summaryClean, bodyText, firstChunk); review != nil {
			issues = extendUnique(issues, review.Issues, 8)
			suggestions = extendUnique(suggestions, review.Suggestions, 8)
			score += int(review.ScoreAdjustment)
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Item{
		Title:       titleClean,
		URL:         entry.link,
		PublishedAt: entry.publishedAt,
		Score:       score,
		Grade:       grade(score),
		Issues:      issues,
		Suggestions: practicalSuggestions(issues, suggestions),
		Metrics:     metrics,
	}
}

func (a *Agent) llmEditorialReview(ctx context.Context, title, summary, bodyText, firstChunk string) *llmReview {
	prompt := fmt.Sprintf(
		"%s\n\nTitle: %s\nSummary: %s\nOpening paragraph: %s\nBody excerpt: %s\n",
		editorialQualityPrompt, truncate(title, 240), truncate(summary, 700),
		truncate(firstChunk, 700), truncate(firstNonEmpty(bodyText, summary), 1800),
	)

	var result llmReview
	if err := a.llm.GenerateJSON(ctx, "You are an exacting Arabic-language editorial quality reviewer.", prompt, &result); err != nil {
		a.log.Warn().Err(err).Msg("published_monitor_llm_error")
		return nil
	}
	if len(result.Issues) == 0 && len(result.Suggestions) == 0 {
		return nil
	}
	a.cache.IncrementCounter(ctx, "ai_calls_today", 24*time.Hour)

	if result.ScoreAdjustment < -15 {
		result.ScoreAdjustment = -15
	}
	if result.ScoreAdjustment > 5 {
		result.ScoreAdjustment = 5
	}
	return &result
}

func firstChunkOf(bodyText, summary string) string {
	if bodyText != "" {
		parts := regexp.MustCompile(`[.\n]+`).Split(bodyText, 2)
		return strings.TrimSpace(parts[0])
	}
	return strings.TrimSpace(summary)
}

func missingInvertedPyramid(chunk string) []string {
	var missing []string
	if !containsAny(chunk, whoHints) {
		missing = append(missing, "من")
	}
	if !containsAny(chunk, whatHints) {
		missing = append(missing, "ماذا")
	}
	if !containsAny(chunk, whereHints) {
		missing = append(missing, "أين")
	}
	if !containsAny(chunk, whenHints) {
		missing = append(missing, "متى")
	}
	return missing
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

func extendUnique(target, values []string, maxItems int) []string {
	for _, v := range values {
		clean := whitespaceRe.ReplaceAllString(strings.TrimSpace(v), " ")
		if clean == "" || containsString(target, clean) {
			continue
		}
		target = append(target, clean)
		if len(target) >= maxItems {
			break
		}
	}
	return target
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// practicalSuggestions turns flagged issues into concrete editorial actions
// and drops vague boilerplate suggestions under 7 words.
func practicalSuggestions(issues, suggestions []string) []string {
	var practical []string
	add := func(v string) {
		clean := whitespaceRe.ReplaceAllString(strings.TrimSpace(v), " ")
		if clean == "" || containsString(practical, clean) {
			return
		}
		practical = append(practical, clean)
	}

	for _, issue := range issues {
		lower := strings.ToLower(issue)
		switch {
		case strings.Contains(lower, "clickbait") || strings.Contains(issue, "تهويل"):
			add("استبدل صياغة الإثارة بمعلومة مباشرة تتضمن الجهة والنتيجة.")
		case strings.Contains(issue, "إملائ") || strings.Contains(issue, "املائ"):
			add("طبّق تدقيقًا إملائيًا نهائيًا وصحّح الكلمات المشار إليها قبل النشر.")
		case strings.Contains(issue, "العنوان قصير"):
			add("وسّع العنوان إلى 35-75 حرفًا بإضافة الفاعل والأثر المباشر.")
		case strings.Contains(issue, "العنوان طويل"):
			add("اختصر العنوان واحذف الحشو مع الإبقاء على الفاعل والفعل الرئيسيين.")
		case strings.Contains(issue, "المحتوى قصير"):
			add("أضف فقرة خلفية وفقرة أرقام/تصريحات موثقة من مصدر رسمي.")
		case strings.Contains(issue, "الهرم"):
			add("أعد صياغة المقدمة لتتضمن: من/ماذا/أين/متى في أول جملة.")
		case strings.Contains(issue, "الكلمات المفتاحية"):
			add("أدرج مصطلحين خبريين دقيقين في العنوان والفقرة الأولى دون تهويل.")
		}
	}

	vagueMarkers := []string{"تحسين", "جودة", "أفضل", "بشكل عام", "صياغة جيدة", "راجع النص"}
	for _, suggestion := range suggestions {
		normalized := strings.ToLower(strings.TrimSpace(suggestion))
		if normalized == "" {
			continue
		}
		if containsAny(normalized, vagueMarkers) && len(strings.Fields(normalized)) < 7 {
			continue
		}
		add(suggestion)
	}

	if len(practical) == 0 {
		add("نفّذ مراجعة تحريرية سريعة للعنوان والمقدمة والإسناد قبل إعادة النشر.")
	}
	return limitSlice(practical, 6)
}

func grade(score int) string {
	switch {
	case score >= 90:
		return "ممتاز"
	case score >= 75:
		return "جيد"
	case score >= 60:
		return "مقبول"
	default:
		return "ضعيف"
	}
}

func (a *Agent) alertWeakItems(ctx context.Context, report *Report) {
	var weakTitles []string
	for _, item := range report.Items {
		if item.Score < a.cfg.PublishedMonitorAlertThreshold {
			weakTitles = append(weakTitles, fmt.Sprintf("%s (%d/100)", item.Title, item.Score))
		}
	}
	message := fmt.Sprintf("%d published article(s) scored below the quality threshold:\n%s",
		len(weakTitles), strings.Join(weakTitles, "\n"))
	a.notify.Notify(ctx, notify.SeverityWarning, "Published quality alert", message)
}

func limitSlice(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func roundTo2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
