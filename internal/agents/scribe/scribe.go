// Package scribe implements the Scribe agent (spec §4.4.3): it turns an
// approved Article into a new EditorialDraft by asking the LLM for a
// structured {headline, body_html, seo_title, seo_description, tags}
// document, sanitizing the body to an allow-list of HTML tags, and
// transitioning the Article to DRAFT_GENERATED. No original_source file
// exists for this agent; it is grounded on the spec's stated output
// contract plus the teacher's ai.go prompt-and-retry idiom.
package scribe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/llm"
	"github.com/geraldfingburke/editorial-core/internal/models"
)

// draftOutput is the LLM's structured response for one article.
type draftOutput struct {
	Headline       string   `json:"headline"`
	BodyHTML       string   `json:"body_html"`
	SEOTitle       string   `json:"seo_title"`
	SEODescription string   `json:"seo_description"`
	Tags           []string `json:"tags"`
}

// Result is what Write returns on success.
type Result struct {
	ArticleID int64
	DraftID   int64
	WorkID    string
	Version   int
}

// Agent is the Scribe agent.
type Agent struct {
	db     *sql.DB
	llm    llm.Client
	policy *bluemonday.Policy
	log    zerolog.Logger
}

// New constructs a Scribe agent with an HTML sanitization policy allowing
// only the structural tags a newsroom body needs.
func New(db *sql.DB, llmClient llm.Client, log zerolog.Logger) *Agent {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("p", "h2", "h3", "ul", "ol", "li", "blockquote", "figure", "figcaption")
	policy.AllowElements("strong", "em", "b", "i", "br")
	policy.AllowAttrs("href").OnElements("a")
	policy.AllowAttrs("src", "alt").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	return &Agent{db: db, llm: llmClient, policy: policy, log: log}
}

// Write generates (or regenerates) a draft for articleID. When
// fixedWorkID is non-empty, the new version is appended to that existing
// work instead of starting a new one — the surface for "rewrite this
// article".
func (a *Agent) Write(ctx context.Context, articleID int64, sourceAction, fixedWorkID string) (*Result, error) {
	article, err := a.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusApprovedHandoff && article.Status != models.StatusApproved {
		return nil, fmt.Errorf("scribe: article %d is in status %s, not eligible for draft generation", articleID, article.Status)
	}
	if sourceAction == "" {
		sourceAction = "auto_scribe"
	}

	out, err := a.generate(ctx, article)
	if err != nil {
		return nil, fmt.Errorf("scribe: generate draft for article %d: %w", articleID, err)
	}
	body := a.policy.Sanitize(out.BodyHTML)

	workID := fixedWorkID
	if workID == "" {
		workID = newWorkID()
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("scribe: begin tx: %w", err)
	}
	defer tx.Rollback()

	var maxVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM editorial_drafts WHERE work_id = $1`, workID,
	).Scan(&maxVersion)
	if err != nil {
		return nil, fmt.Errorf("scribe: resolve draft version: %w", err)
	}
	nextVersion := maxVersion + 1

	title := firstNonEmpty(out.Headline, article.TitleAr, article.OriginalTitle)
	seoTitle := firstNonEmpty(out.SEOTitle, title)
	seoDescription := firstNonEmpty(out.SEODescription, article.Summary)

	var draftID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO editorial_drafts
			(article_id, work_id, version, source_action, title, body, status, change_origin)
		VALUES ($1, $2, $3, $4, $5, $6, 'draft', 'ai')
		RETURNING id`,
		articleID, workID, nextVersion, sourceAction, title, body,
	).Scan(&draftID)
	if err != nil {
		return nil, fmt.Errorf("scribe: insert draft: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE articles
		SET status = $1, title_ar = COALESCE(NULLIF($2, ''), title_ar),
		    seo_title = $3, seo_description = $4, keywords = $5, updated_at = NOW()
		WHERE id = $6`,
		models.StatusDraftGenerated, title, seoTitle, seoDescription, models.StringArray(out.Tags), articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("scribe: update article status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("scribe: commit: %w", err)
	}

	a.log.Info().Int64("article_id", articleID).Str("work_id", workID).Int("version", nextVersion).Msg("draft_generated")
	return &Result{ArticleID: articleID, DraftID: draftID, WorkID: workID, Version: nextVersion}, nil
}

// BatchStats summarizes one WriteBatch run.
type BatchStats struct {
	Drafted int
	Failed  int
}

// WriteBatch writes a fresh draft for up to limit (default 20) articles
// sitting in APPROVED_HANDOFF, highest importance first, the auto-pipeline
// entry point the orchestrator's
// scribe tick calls instead of targeting one article at a time. One
// article's generation failure is logged and skipped, not fatal to the
// batch.
func (a *Agent) WriteBatch(ctx context.Context, limit int) (BatchStats, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id FROM articles WHERE status = $1 ORDER BY importance_score DESC, created_at ASC LIMIT $2`,
		models.StatusApprovedHandoff, limit,
	)
	if err != nil {
		return BatchStats{}, fmt.Errorf("scribe: fetch handoff batch: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return BatchStats{}, fmt.Errorf("scribe: scan handoff batch: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return BatchStats{}, err
	}

	var stats BatchStats
	for _, id := range ids {
		if _, err := a.Write(ctx, id, "auto_pipeline", ""); err != nil {
			a.log.Warn().Err(err).Int64("article_id", id).Msg("auto_pipeline_scribe_failed")
			stats.Failed++
			continue
		}
		stats.Drafted++
	}
	return stats, nil
}

func (a *Agent) loadArticle(ctx context.Context, id int64) (*models.Article, error) {
	var art models.Article
	err := a.db.QueryRowContext(ctx, `
		SELECT id, source_name, original_title, original_content, title_ar, summary, category, status
		FROM articles WHERE id = $1`, id,
	).Scan(&art.ID, &art.SourceName, &art.OriginalTitle, &art.OriginalContent, &art.TitleAr, &art.Summary, &art.Category, &art.Status)
	if err != nil {
		return nil, fmt.Errorf("scribe: load article %d: %w", id, err)
	}
	return &art, nil
}

func (a *Agent) generate(ctx context.Context, article *models.Article) (*draftOutput, error) {
	system := "You are a senior editor at an Algerian Arabic-language newsroom turning a classified news " +
		"item into a publication-ready article. Write in Arabic, factual and clear, no meta commentary."
	user := fmt.Sprintf(
		"Source title: %s\nSource summary: %s\nSource content: %s\nCategory: %s\n\n"+
			"Produce the final article. Return JSON exactly as: "+
			"{\"headline\":string,\"body_html\":string,\"seo_title\":string,"+
			"\"seo_description\":string,\"tags\":[string]}\n"+
			"body_html may use only <p>,<h2>,<h3>,<ul>,<ol>,<li>,<blockquote>,<strong>,<em>,<a>,<img> tags.",
		article.OriginalTitle, article.Summary, truncate(article.OriginalContent, 6000), article.Category,
	)

	var out draftOutput
	if err := a.llm.GenerateJSON(ctx, system, user, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.BodyHTML) == "" {
		return nil, fmt.Errorf("llm returned empty body_html")
	}
	return &out, nil
}

func newWorkID() string {
	return fmt.Sprintf("WRK-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
