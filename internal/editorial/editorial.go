// Package editorial implements the Article/EditorialDraft state machine
// (spec §4.5): status transition validation, exclusive draft apply/archive
// with optimistic concurrency, append-only EditorDecision capture, and three
// quality gates (readability, SEO-tech, guardian post-publish); there is no
// fact-check gate. The readability and SEO-tech scoring formulas are
// ported verbatim from
// original_source/backend/app/services/quality_gate_service.py since the
// distilled spec names the gates but not their arithmetic.
package editorial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/models"
)

// pqUniqueViolation is the PostgreSQL SQLSTATE for a unique_violation.
const pqUniqueViolation = "23505"

var (
	// ErrVersionConflict is returned by UpdateDraft when the caller's
	// version does not match the draft's current version (spec §4.5).
	ErrVersionConflict = errors.New("editorial: draft version conflict")
	// ErrDraftNotEditable is returned when a draft is no longer in "draft"
	// status (already applied or archived).
	ErrDraftNotEditable = errors.New("editorial: draft is not in draft status")
	// ErrInvalidTransition is returned when a requested Article status
	// change is not a legal edge in the state graph.
	ErrInvalidTransition = errors.New("editorial: invalid article status transition")
	// ErrAlreadyApplied is returned by ApplyDraft when another draft for
	// the same article was applied concurrently, caught via the unique
	// violation on idx_drafts_one_active_per_article (spec §4.5 apply
	// exclusivity).
	ErrAlreadyApplied = errors.New("editorial: another draft is already applied for this article")
)

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// transitions enumerates the legal Article status graph (spec §4.5). A
// status absent from this map is terminal with respect to these edges
// (PUBLISHED is reversible via the director unpublish edge below).
var transitions = map[models.ArticleStatus][]models.ArticleStatus{
	models.StatusNew:                   {models.StatusClassified, models.StatusCandidate, models.StatusArchived, models.StatusRejected},
	models.StatusCandidate:             {models.StatusApprovedHandoff, models.StatusRejected},
	models.StatusClassified:            {models.StatusApprovedHandoff, models.StatusRejected},
	models.StatusApprovedHandoff:       {models.StatusDraftGenerated},
	models.StatusDraftGenerated:        {models.StatusApproved},
	models.StatusApproved:              {models.StatusReadyForChiefApproval, models.StatusApprovalRequestReservations},
	models.StatusReadyForChiefApproval: {models.StatusReadyForManualPublish},
	models.StatusReadyForManualPublish: {models.StatusPublished},
	models.StatusPublished:             {models.StatusApproved},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to models.ArticleStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Service provides the editorial state-machine operations against the
// durable store.
type Service struct {
	db         *sql.DB
	log        zerolog.Logger
	httpClient *http.Client
}

// New constructs an editorial Service.
func New(db *sql.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log, httpClient: &http.Client{Timeout: 20 * time.Second}}
}

// Transition moves article to newStatus, enforcing the state graph, and
// records an EditorDecision describing the move.
func (s *Service) Transition(ctx context.Context, articleID int64, newStatus models.ArticleStatus, actorUsername, decision, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("editorial: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current models.ArticleStatus
	if err := tx.QueryRowContext(ctx, `SELECT status FROM articles WHERE id = $1 FOR UPDATE`, articleID).Scan(&current); err != nil {
		return fmt.Errorf("editorial: load article %d: %w", articleID, err)
	}
	if !CanTransition(current, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, newStatus)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE articles SET status = $1, updated_at = NOW() WHERE id = $2`, newStatus, articleID); err != nil {
		return fmt.Errorf("editorial: update article status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO editor_decisions (article_id, action, actor_username, reason)
		VALUES ($1, $2, $3, $4)`,
		articleID, decision, actorUsername, reason,
	); err != nil {
		return fmt.Errorf("editorial: record decision: %w", err)
	}
	return tx.Commit()
}

// draftRow mirrors the columns UpdateDraft/ApplyDraft/ArchiveDraft need.
type draftRow struct {
	id        int64
	articleID int64
	status    models.DraftStatus
	version   int
}

// UpdateDraft edits a draft's title/body under optimistic concurrency:
// expectedVersion must equal the draft's current version or
// ErrVersionConflict is returned. On success the version increments.
func (s *Service) UpdateDraft(ctx context.Context, draftID int64, expectedVersion int, title, body string, actorUsername string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("editorial: begin tx: %w", err)
	}
	defer tx.Rollback()

	var row draftRow
	err = tx.QueryRowContext(ctx, `SELECT id, article_id, status, version FROM editorial_drafts WHERE id = $1 FOR UPDATE`, draftID).
		Scan(&row.id, &row.articleID, &row.status, &row.version)
	if err != nil {
		return fmt.Errorf("editorial: load draft %d: %w", draftID, err)
	}
	if row.status != models.DraftStatusDraft {
		return ErrDraftNotEditable
	}
	if row.version != expectedVersion {
		return fmt.Errorf("%w: current=%d requested=%d", ErrVersionConflict, row.version, expectedVersion)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE editorial_drafts
		SET title = $1, body = $2, version = version + 1, actor_username = $3, updated_at = NOW()
		WHERE id = $4`,
		title, body, actorUsername, draftID,
	)
	if err != nil {
		return fmt.Errorf("editorial: update draft: %w", err)
	}
	return tx.Commit()
}

// ApplyDraft applies draftID: exclusive (a second apply attempt on another
// draft of the same article fails with ErrAlreadyApplied once one is
// applied, enforced by the unique partial index on editorial_drafts with
// status='applied'), freezes
// the draft, and copies its title/body into the owning Article.
func (s *Service) ApplyDraft(ctx context.Context, draftID int64, actorUsername string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("editorial: begin tx: %w", err)
	}
	defer tx.Rollback()

	var row draftRow
	var title, body string
	err = tx.QueryRowContext(ctx, `
		SELECT id, article_id, status, version, title, body
		FROM editorial_drafts WHERE id = $1 FOR UPDATE`, draftID,
	).Scan(&row.id, &row.articleID, &row.status, &row.version, &title, &body)
	if err != nil {
		return fmt.Errorf("editorial: load draft %d: %w", draftID, err)
	}
	if row.status != models.DraftStatusDraft {
		return ErrDraftNotEditable
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE editorial_drafts SET status = 'applied', actor_username = $1, updated_at = NOW() WHERE id = $2`,
		actorUsername, draftID,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("editorial: apply draft: %w", err)
	}

	if title != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE articles SET title_ar = $1, updated_at = NOW() WHERE id = $2`, title, row.articleID); err != nil {
			return fmt.Errorf("editorial: copy title into article: %w", err)
		}
	}
	if body != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE articles SET body_html = $1, updated_at = NOW() WHERE id = $2`, body, row.articleID); err != nil {
			return fmt.Errorf("editorial: copy body into article: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO editor_decisions (article_id, draft_id, action, actor_username, after_title, after_body)
		VALUES ($1, $2, 'process:apply_draft', $3, $4, $5)`,
		row.articleID, draftID, actorUsername, title, body,
	); err != nil {
		return fmt.Errorf("editorial: record apply decision: %w", err)
	}
	return tx.Commit()
}

// ArchiveDraft marks draftID archived. Archiving an already-archived draft
// is idempotent.
func (s *Service) ArchiveDraft(ctx context.Context, draftID int64, actorUsername string) error {
	var status models.DraftStatus
	if err := s.db.QueryRowContext(ctx, `SELECT status FROM editorial_drafts WHERE id = $1`, draftID).Scan(&status); err != nil {
		return fmt.Errorf("editorial: load draft %d: %w", draftID, err)
	}
	if status == models.DraftStatusArchived {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE editorial_drafts SET status = 'archived', actor_username = $1, updated_at = NOW() WHERE id = $2`,
		actorUsername, draftID,
	)
	if err != nil {
		return fmt.Errorf("editorial: archive draft: %w", err)
	}
	return nil
}

// ============================================================================
// Quality gates
// ============================================================================

// QualityReport is one gate's findings, persisted as ArticleQualityReport.
type QualityReport struct {
	Stage           string
	Passed          bool
	Score           int
	Metrics         map[string]interface{}
	BlockingReasons []string
	ActionableFixes []string
}

var (
	passivePatternsAr = []*regexp.Regexp{
		regexp.MustCompile(`\bتم\b`),
		regexp.MustCompile(`\bيتم\b`),
		regexp.MustCompile(`\bأُعلن\b`),
		regexp.MustCompile(`\bأُكد\b`),
		regexp.MustCompile(`\bأُشير\b`),
	}
	transitionWordsAr = []string{
		"لكن", "بالمقابل", "في المقابل", "إضافة إلى", "من جهة", "من ناحية", "بالتالي", "لذلك", "علاوة على ذلك",
	}
	sentenceSplitRe = regexp.MustCompile(`[.!؟;\n]+`)
	paragraphSplitRe = regexp.MustCompile(`\n+`)
	wordSplitRe      = regexp.MustCompile(`\S+`)
)

// ReadabilityReport scores Arabic editorial prose on average sentence
// length, long-sentence ratio, passive-voice ratio, and paragraph length —
// ported from quality_gate_service.py's readability_report.
func ReadabilityReport(text string) QualityReport {
	clean := strings.TrimSpace(text)
	paragraphs := nonEmpty(paragraphSplitRe.Split(clean, -1))
	sentences := nonEmpty(sentenceSplitRe.Split(clean, -1))

	sentenceLens := make([]int, 0, len(sentences))
	for _, s := range sentences {
		sentenceLens = append(sentenceLens, len(wordSplitRe.FindAllString(s, -1)))
	}
	if len(sentenceLens) == 0 {
		sentenceLens = []int{0}
	}
	avgSentenceLen := average(sentenceLens)
	longSentenceRatio := ratio(sentenceLens, func(n int) bool { return n > 25 })

	passiveHits := 0
	for _, p := range passivePatternsAr {
		passiveHits += len(p.FindAllString(clean, -1))
	}
	passiveRatio := float64(passiveHits) / float64(maxInt(1, len(sentences)))

	paraLens := make([]int, 0, len(paragraphs))
	for _, p := range paragraphs {
		paraLens = append(paraLens, len(wordSplitRe.FindAllString(p, -1)))
	}
	if len(paraLens) == 0 {
		paraLens = []int{0}
	}
	longParagraphCount := countIf(paraLens, func(n int) bool { return n > 120 })

	transitionsCount := 0
	for _, w := range transitionWordsAr {
		transitionsCount += strings.Count(clean, w)
	}

	score := 100
	score -= minInt(35, int(maxFloat(0, avgSentenceLen-18)*2))
	score -= minInt(25, int(longSentenceRatio*100*0.8))
	score -= minInt(20, int(passiveRatio*100*0.6))
	score -= minInt(20, longParagraphCount*8)
	score = maxInt(0, score)

	var blocking, fixes []string
	if avgSentenceLen > 24 {
		blocking = append(blocking, "متوسط طول الجملة مرتفع")
		fixes = append(fixes, "قسّم الجمل الطويلة إلى جمل أقصر (15-22 كلمة)")
	}
	if longSentenceRatio > 0.35 {
		blocking = append(blocking, "نسبة الجمل الطويلة أعلى من المعيار")
		fixes = append(fixes, "أعد صياغة الفقرات بجمل قصيرة مباشرة")
	}
	if passiveRatio > 0.30 {
		fixes = append(fixes, "خفض المبني للمجهول وفضّل الصياغة المباشرة بالفعل والفاعل")
	}
	if longParagraphCount > 0 {
		fixes = append(fixes, "قسّم الفقرات الطويلة إلى فقرات أقصر")
	}
	if transitionsCount < 2 {
		fixes = append(fixes, "أضف كلمات انتقالية لتحسين السلاسة بين الفقرات")
	}

	passed := len(blocking) == 0
	stage := "READABILITY_PASSED"
	if !passed {
		stage = "DRAFT_READY"
	}
	return QualityReport{
		Stage: stage, Passed: passed, Score: score,
		Metrics: map[string]interface{}{
			"avg_sentence_len":   roundTo2(avgSentenceLen),
			"long_sentence_ratio": roundTo3(longSentenceRatio),
			"passive_ratio":       roundTo3(passiveRatio),
			"long_paragraph_count": longParagraphCount,
			"transitions_count":   transitionsCount,
		},
		BlockingReasons: blocking, ActionableFixes: fixes,
	}
}

var (
	trustedExternalHints = []string{"reuters", "bbc", "apnews", "france24", "who.int", "worldbank", "imf.org", "un.org"}
	arabicOrLatinWordRe  = regexp.MustCompile(`[\x{0600}-\x{06FF}A-Za-z]{3,}`)
	slugRe               = regexp.MustCompile(`^[a-z0-9\-_/%.]+$`)
)

// TechnicalAudit scores on-page SEO mechanics: title/description length,
// heading structure, alt text, internal/external links, and keyword
// density — ported from quality_gate_service.py's technical_audit.
func TechnicalAudit(a *models.Article, internalLinkHost string) QualityReport {
	body := strings.TrimSpace(a.BodyHTML)
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(body))

	plainText := ""
	if body != "" && doc != nil {
		plainText = strings.TrimSpace(doc.Text())
	}

	seoTitle := firstNonEmpty(a.SEOTitle, a.TitleAr, a.OriginalTitle)
	seoDesc := firstNonEmpty(a.SEODescription, a.Summary)
	slug := slugFromURL(firstNonEmpty(a.PublishedURL, a.OriginalURL))

	var h1, h2, h3, imgsMissingAlt, imgCount, internalLinks, externalLinks, trustedExternal int
	if body != "" && doc != nil {
		h1 = doc.Find("h1").Length()
		h2 = doc.Find("h2").Length()
		h3 = doc.Find("h3").Length()
		doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
			imgCount++
			if strings.TrimSpace(sel.AttrOr("alt", "")) == "" {
				imgsMissingAlt++
			}
		})
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href := sel.AttrOr("href", "")
			isInternal := strings.HasPrefix(href, "/") || (internalLinkHost != "" && strings.Contains(href, internalLinkHost))
			if isInternal {
				internalLinks++
				return
			}
			if strings.HasPrefix(href, "http") {
				externalLinks++
				lower := strings.ToLower(href)
				for _, hint := range trustedExternalHints {
					if strings.Contains(lower, hint) {
						trustedExternal++
						break
					}
				}
			}
		})
	}

	var keyword string
	if m := arabicOrLatinWordRe.FindString(seoTitle); m != "" {
		keyword = strings.ToLower(m)
	}
	density := 0.0
	if keyword != "" && plainText != "" {
		words := wordSplitRe.FindAllString(strings.ToLower(plainText), -1)
		hits := 0
		for _, w := range words {
			if strings.Contains(w, keyword) {
				hits++
			}
		}
		density = float64(hits) / float64(maxInt(1, len(words)))
	}

	var blocking, fixes []string
	if body == "" {
		blocking = append(blocking, "محتوى المقال فارغ")
		fixes = append(fixes, "أنشئ مسودة نهائية قبل النشر")
	}
	if seoTitle == "" {
		blocking = append(blocking, "SEO Title مفقود")
		fixes = append(fixes, "أضف عنوان SEO بطول 30-65 حرفًا")
	}
	if seoTitle != "" && !(len(seoTitle) >= 30 && len(seoTitle) <= 65) {
		blocking = append(blocking, "SEO Title خارج الطول الموصى به")
	}
	if seoDesc == "" {
		blocking = append(blocking, "Meta Description مفقود")
	}
	if seoDesc != "" && !(len(seoDesc) >= 80 && len(seoDesc) <= 170) {
		fixes = append(fixes, "عدّل Meta Description ليكون بين 80 و170 حرفًا")
	}
	if slug == "" || !slugRe.MatchString(strings.ToLower(slug)) {
		blocking = append(blocking, "Slug غير نظيف أو مفقود")
	}
	if h1 != 1 {
		blocking = append(blocking, "يجب وجود H1 واحد فقط")
	}
	if h3 > 0 && h2 == 0 {
		fixes = append(fixes, "يفضل ترتيب العناوين H2 قبل H3")
	}
	if imgCount > 0 && imgsMissingAlt > 0 {
		blocking = append(blocking, "بعض الصور بدون ALT")
	}
	if internalLinks < 1 {
		fixes = append(fixes, "أضف رابطًا داخليًا واحدًا على الأقل")
	}
	if externalLinks > 0 && trustedExternal < 1 {
		fixes = append(fixes, "يفضل إضافة رابط خارجي لمصدر موثوق")
	}
	if density > 0.02 {
		fixes = append(fixes, "خفّض تكرار الكلمة المفتاحية (Keyword stuffing)")
	}

	passed := len(blocking) == 0
	score := maxInt(0, 100-len(blocking)*18-len(fixes)*4)
	stage := "SEO_TECH_PASSED"
	if !passed {
		stage = "DRAFT_READY"
	}
	return QualityReport{
		Stage: stage, Passed: passed, Score: score,
		Metrics: map[string]interface{}{
			"seo_title_len": len(seoTitle), "meta_description_len": len(seoDesc),
			"h1_count": h1, "h2_count": h2, "h3_count": h3,
			"images_count": imgCount, "images_missing_alt": imgsMissingAlt,
			"internal_links": internalLinks, "external_links": externalLinks,
			"trusted_external_links": trustedExternal, "keyword_density": roundTo4(density),
		},
		BlockingReasons: blocking, ActionableFixes: fixes,
	}
}

// GuardianCheck crawls a published article's live URL and verifies
// canonical tag, robots directives, and basic Open Graph presence —
// ported from quality_gate_service.py's guardian_check.
func (s *Service) GuardianCheck(ctx context.Context, url string) QualityReport {
	url = strings.TrimSpace(url)
	if url == "" {
		return QualityReport{
			Stage: "PUBLISHED", Passed: false, Score: 0,
			BlockingReasons: []string{"رابط المنشور غير متوفر"},
			ActionableFixes: []string{"احفظ رابط النشر ثم أعد الفحص"},
			Metrics:         map[string]interface{}{},
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return s.guardianFailure(url, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return s.guardianFailure(url, err)
	}
	defer resp.Body.Close()
	ttfbMs := int(time.Since(start).Milliseconds())

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return s.guardianFailure(url, err)
	}

	robots := metaContent(doc, "robots")
	canonical, _ := doc.Find(`link[rel="canonical"]`).Attr("href")
	ogTitle := metaProperty(doc, "og:title")
	ogType := metaProperty(doc, "og:type")

	metrics := map[string]interface{}{
		"url": url, "status_code": resp.StatusCode, "ttfb_ms": ttfbMs, "final_url": resp.Request.URL.String(),
		"has_canonical": canonical != "", "robots": robots, "has_og_title": ogTitle != "", "has_og_type": ogType != "",
	}

	var blocking, fixes []string
	if resp.StatusCode != http.StatusOK {
		blocking = append(blocking, "Status code ليس 200")
	}
	if strings.Contains(strings.ToLower(robots), "noindex") {
		blocking = append(blocking, "الصفحة تحمل وسم noindex")
	}
	if canonical == "" {
		blocking = append(blocking, "canonical مفقود")
	}
	if ogTitle == "" {
		fixes = append(fixes, "أضف OG title")
	}
	if ogType == "" {
		fixes = append(fixes, "أضف OG type")
	}
	if ttfbMs > 2500 {
		fixes = append(fixes, "زمن الاستجابة مرتفع، راجع الأداء/الكاش")
	}

	passed := len(blocking) == 0
	score := maxInt(0, 100-len(blocking)*20-len(fixes)*5)
	stage := "POST_PUBLISH_VERIFIED"
	if !passed {
		stage = "PUBLISHED"
	}
	return QualityReport{Stage: stage, Passed: passed, Score: score, Metrics: metrics, BlockingReasons: blocking, ActionableFixes: fixes}
}

func (s *Service) guardianFailure(url string, err error) QualityReport {
	s.log.Warn().Err(err).Str("url", url).Msg("guardian_check_failed")
	return QualityReport{
		Stage: "PUBLISHED", Passed: false, Score: 0,
		BlockingReasons: []string{fmt.Sprintf("فشل الزحف: %v", err)},
		ActionableFixes: []string{"تحقق من الرابط والخادم ثم أعد الفحص"},
		Metrics:         map[string]interface{}{"url": url},
	}
}

// GuardianCheckWithRetry runs GuardianCheck once immediately, saves the
// report, and — if it failed — schedules a single retry 30 minutes later
// on a background goroutine, matching the original's asyncio.sleep(30*60)
// retry policy.
func (s *Service) GuardianCheckWithRetry(ctx context.Context, articleID int64, url, createdBy string) {
	report := s.GuardianCheck(ctx, url)
	if err := s.SaveReport(ctx, articleID, "POST_PUBLISH", createdBy, report); err != nil {
		s.log.Warn().Err(err).Int64("article_id", articleID).Msg("save_guardian_report_failed")
	}
	if report.Passed {
		return
	}

	go func() {
		timer := time.NewTimer(30 * time.Minute)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		retry := s.GuardianCheck(ctx, url)
		if err := s.SaveReport(context.Background(), articleID, "POST_PUBLISH_RETRY", createdBy, retry); err != nil {
			s.log.Warn().Err(err).Int64("article_id", articleID).Msg("save_guardian_retry_report_failed")
		}
	}()
}

// SaveReport persists a QualityReport as an ArticleQualityReport row.
func (s *Service) SaveReport(ctx context.Context, articleID int64, stage, createdBy string, report QualityReport) error {
	reportJSON := models.JSONMap{
		"stage": report.Stage, "passed": report.Passed, "score": report.Score,
		"metrics": report.Metrics, "blocking_reasons": report.BlockingReasons, "actionable_fixes": report.ActionableFixes,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO article_quality_reports
			(article_id, stage, passed, score, blocking_reasons, actionable_fixes, report_json, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		articleID, stage, report.Passed, report.Score,
		models.StringArray(report.BlockingReasons), models.StringArray(report.ActionableFixes), reportJSON, firstNonEmpty(createdBy, "system"),
	)
	if err != nil {
		return fmt.Errorf("editorial: save quality report: %w", err)
	}
	return nil
}

// RunQualityGate loads articleID, runs the readability and technical/SEO
// gates against its current draft body, persists both reports, and moves
// the article to READY_FOR_CHIEF_APPROVAL when both pass or
// APPROVAL_REQUEST_WITH_RESERVATIONS otherwise (spec §4.5 quality-gate
// edge). internalLinkHost identifies the site's own domain for the
// internal-link count in TechnicalAudit.
func (s *Service) RunQualityGate(ctx context.Context, articleID int64, internalLinkHost string) error {
	var a models.Article
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title_ar, summary, seo_title, seo_description, body_html,
		       original_url, published_url, status
		FROM articles WHERE id = $1`, articleID).
		Scan(&a.ID, &a.TitleAr, &a.Summary, &a.SEOTitle, &a.SEODescription, &a.BodyHTML,
			&a.OriginalURL, &a.PublishedURL, &a.Status)
	if err != nil {
		return fmt.Errorf("editorial: load article %d: %w", articleID, err)
	}

	readability := ReadabilityReport(a.BodyHTML)
	technical := TechnicalAudit(&a, internalLinkHost)
	if err := s.SaveReport(ctx, articleID, "READABILITY", "system", readability); err != nil {
		return err
	}
	if err := s.SaveReport(ctx, articleID, "TECHNICAL_SEO", "system", technical); err != nil {
		return err
	}

	next := models.StatusReadyForChiefApproval
	decision, reason := "quality_gate_passed", ""
	if !readability.Passed || !technical.Passed {
		next = models.StatusApprovalRequestReservations
		decision = "quality_gate_reservations"
		reason = strings.Join(append(append([]string{}, readability.BlockingReasons...), technical.BlockingReasons...), "; ")
	}
	return s.Transition(ctx, articleID, next, "system", decision, reason)
}

func metaContent(doc *goquery.Document, name string) string {
	v, _ := doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).Attr("content")
	return v
}

func metaProperty(doc *goquery.Document, property string) string {
	v, _ := doc.Find(fmt.Sprintf(`meta[property="%s"]`, property)).Attr("content")
	return v
}

func slugFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	path := raw
	if idx := strings.Index(raw, "://"); idx >= 0 {
		rest := raw[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			path = rest[slash:]
		} else {
			path = ""
		}
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

func average(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(maxInt(1, len(values)))
}

func ratio(values []int, pred func(int) bool) float64 {
	return float64(countIf(values, pred)) / float64(maxInt(1, len(values)))
}

func countIf(values []int, pred func(int) bool) int {
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return n
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

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func roundTo2(f float64) float64 { return float64(int(f*100+0.5)) / 100 }
func roundTo3(f float64) float64 { return float64(int(f*1000+0.5)) / 1000 }
func roundTo4(f float64) float64 { return float64(int(f*10000+0.5)) / 10000 }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
