// Package articles implements the read-side article repository behind
// the list/breaking endpoints of spec §6: filtering by status, category,
// is_breaking and free-text search, the four sort keys, and the
// "local first" ordering mode, alongside the breaking-TTL demotion that
// the list and breaking endpoints both trigger opportunistically.
package articles

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/models"
)

// localPriorityTerms mirrors the newsroom's Algeria-first relevance
// signal: a match against any of these terms in the title/summary
// outranks a generic article of equal recency.
var localPriorityTerms = []string{
	"الجزائر", "جزائري", "جزائرية", "algeria", "algerie", "algérie", "dz",
	"رئاسة الجمهورية", "الوزير الأول", "سوناطراك", "وزارة",
}

var localPrioritySources = []string{
	"echorouk", "الشروق", "aps", "tsa", "el khabar", "الخبر", "النهار",
}

var actionableBreakingStatuses = []models.ArticleStatus{
	models.StatusNew, models.StatusClassified, models.StatusCandidate,
}

// Repository queries the articles table for the HTTP/GraphQL boundaries.
type Repository struct {
	db  *sql.DB
	cfg *config.Config
}

// New constructs a Repository.
func New(db *sql.DB, cfg *config.Config) *Repository {
	return &Repository{db: db, cfg: cfg}
}

// ListFilter narrows and orders a List call.
type ListFilter struct {
	Status     models.ArticleStatus
	Category   models.ArticleCategory
	IsBreaking *bool
	Search     string
	SortBy     string // created_at | crawled_at | importance_score | published_at
	LocalFirst bool
	Page       int
	PerPage    int
}

var allowedSortColumns = map[string]string{
	"created_at":       "created_at",
	"crawled_at":       "crawled_at",
	"importance_score": "importance_score",
	"published_at":     "published_at",
}

// Page is a paginated slice of articles.
type Page struct {
	Items   []*models.Article
	Total   int
	Page    int
	PerPage int
	Pages   int
}

// List returns articles matching filter, paginated and ordered per the
// requested sort key and local-first mode (spec §6).
func (r *Repository) List(ctx context.Context, filter ListFilter) (*Page, error) {
	if filter.IsBreaking != nil && *filter.IsBreaking {
		if err := r.ExpireStaleBreakingFlags(ctx); err != nil {
			return nil, err
		}
	}

	sortColumn, ok := allowedSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	freshnessCutoff := time.Now().Add(-time.Duration(r.cfg.ScoutMaxArticleAgeHours) * time.Hour)
	breakingCutoff := time.Now().Add(-time.Duration(r.cfg.BreakingNewsTTLMinutes) * time.Minute)

	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
		if isNewsroomFreshStatus(filter.Status) {
			add("COALESCE(published_at, crawled_at) >= $%d", freshnessCutoff)
		}
	} else {
		where = append(where, "status != 'ARCHIVED'")
		add("(status NOT IN ('NEW','CLASSIFIED','CANDIDATE') OR COALESCE(published_at, crawled_at) >= $%d)", freshnessCutoff)
	}

	if filter.Category != "" {
		add("category = $%d", string(filter.Category))
	}

	if filter.IsBreaking != nil {
		add("is_breaking = $%d", *filter.IsBreaking)
		if *filter.IsBreaking {
			add("crawled_at >= $%d", breakingCutoff)
			if filter.Status == "" {
				placeholders := make([]string, len(actionableBreakingStatuses))
				for i, s := range actionableBreakingStatuses {
					args = append(args, string(s))
					placeholders[i] = fmt.Sprintf("$%d", len(args))
				}
				where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
			}
		}
	}

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		args = append(args, like, like)
		where = append(where, fmt.Sprintf("(original_title ILIKE $%d OR title_ar ILIKE $%d)", len(args)-1, len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM articles %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("articles: count: %w", err)
	}

	orderBy := fmt.Sprintf("ORDER BY %s DESC", sortColumn)
	if filter.LocalFirst && filter.Status == "" {
		orderBy = fmt.Sprintf("ORDER BY %s DESC, %s DESC", localPriorityExpr(&args), sortColumn)
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := fmt.Sprintf(`
		SELECT id, source_id, source_name, original_url, original_title, original_content,
		       title_ar, summary, seo_title, seo_description, body_html, category,
		       importance_score, urgency, is_breaking, status, unique_hash, trace_id,
		       rejection_reason, entities, keywords, published_url, published_at,
		       crawled_at, retry_count, created_at, updated_at
		FROM articles %s %s LIMIT $%d OFFSET $%d`, whereClause, orderBy, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("articles: list: %w", err)
	}
	defer rows.Close()

	var items []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pages := (total + perPage - 1) / perPage
	return &Page{Items: items, Total: total, Page: page, PerPage: perPage, Pages: pages}, nil
}

// Breaking returns actionable breaking articles, most recently crawled
// first (spec §6 breaking endpoint).
func (r *Repository) Breaking(ctx context.Context, limit int) ([]*models.Article, error) {
	if limit < 1 || limit > 20 {
		limit = 5
	}
	if err := r.ExpireStaleBreakingFlags(ctx); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-time.Duration(r.cfg.BreakingNewsTTLMinutes) * time.Minute)
	args := []interface{}{cutoff}
	placeholders := make([]string, len(actionableBreakingStatuses))
	for i, s := range actionableBreakingStatuses {
		args = append(args, string(s))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, source_id, source_name, original_url, original_title, original_content,
		       title_ar, summary, seo_title, seo_description, body_html, category,
		       importance_score, urgency, is_breaking, status, unique_hash, trace_id,
		       rejection_reason, entities, keywords, published_url, published_at,
		       crawled_at, retry_count, created_at, updated_at
		FROM articles
		WHERE is_breaking = true AND COALESCE(published_at, crawled_at) >= $1 AND status IN (%s)
		ORDER BY crawled_at DESC LIMIT $%d`, strings.Join(placeholders, ","), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("articles: breaking: %w", err)
	}
	defer rows.Close()

	var items []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// ExpireStaleBreakingFlags demotes is_breaking articles older than the
// breaking-TTL to urgency=high (spec §8.1 early-expire edge case).
func (r *Repository) ExpireStaleBreakingFlags(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(r.cfg.BreakingNewsTTLMinutes) * time.Minute)
	_, err := r.db.ExecContext(ctx, `
		UPDATE articles SET is_breaking = false, urgency = 'high', updated_at = now()
		WHERE is_breaking = true AND COALESCE(published_at, crawled_at) < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("articles: expire breaking flags: %w", err)
	}
	return nil
}

func isNewsroomFreshStatus(s models.ArticleStatus) bool {
	switch s {
	case models.StatusNew, models.StatusClassified, models.StatusCandidate:
		return true
	default:
		return false
	}
}

// localPriorityExpr builds the SQL CASE expression scoring a row 0-4 by
// Algeria-local relevance: category match outranks a trusted-source
// match, which outranks a title/summary term match. Term/source values
// are bound as parameters appended to args, the same approach List uses
// for its WHERE clauses, rather than interpolated into the query text.
func localPriorityExpr(args *[]interface{}) string {
	titleLike := ilikeAny("original_title", localPriorityTerms, args)
	arabicTitleLike := ilikeAny("title_ar", localPriorityTerms, args)
	summaryLike := ilikeAny("summary", localPriorityTerms, args)
	sourceLike := ilikeAny("source_name", localPrioritySources, args)
	return fmt.Sprintf(`CASE
		WHEN category = 'local_algeria' THEN 4
		WHEN %s THEN 3
		WHEN %s THEN 2
		WHEN %s THEN 2
		WHEN %s THEN 1
		ELSE 0
	END`, sourceLike, titleLike, arabicTitleLike, summaryLike)
}

func ilikeAny(column string, terms []string, args *[]interface{}) string {
	clauses := make([]string, len(terms))
	for i, t := range terms {
		*args = append(*args, "%"+t+"%")
		clauses[i] = fmt.Sprintf("%s ILIKE $%d", column, len(*args))
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(s rowScanner) (*models.Article, error) {
	a := &models.Article{}
	err := s.Scan(
		&a.ID, &a.SourceID, &a.SourceName, &a.OriginalURL, &a.OriginalTitle, &a.OriginalContent,
		&a.TitleAr, &a.Summary, &a.SEOTitle, &a.SEODescription, &a.BodyHTML, &a.Category,
		&a.ImportanceScore, &a.Urgency, &a.IsBreaking, &a.Status, &a.UniqueHash, &a.TraceID,
		&a.RejectionReason, &a.Entities, &a.Keywords, &a.PublishedURL, &a.PublishedAt,
		&a.CrawledAt, &a.RetryCount, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("articles: scan: %w", err)
	}
	return a, nil
}
