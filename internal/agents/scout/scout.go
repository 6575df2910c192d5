// Package scout implements the Scout agent (spec §4.4.1): ingestion-only
// fetch, normalize, and dedup-gate of RSS sources, ported from
// original_source/backend/app/agents/scout.py. Scout never classifies or
// scores content — that is the Router's job.
package scout

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/cache"
	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/models"
)

const maxScrapeLinks = 30

// Stats summarizes one Run.
type Stats struct {
	Total      int
	New        int
	Duplicates int
	Errors     int
}

// Agent is the Scout agent.
type Agent struct {
	db        *sql.DB
	cache     *cache.Cache
	cfg       *config.Config
	log       zerolog.Logger
	feed      *gofeed.Parser
	sanitizer *bluemonday.Policy
	http      *http.Client
}

// New constructs a Scout agent.
func New(db *sql.DB, c *cache.Cache, cfg *config.Config, log zerolog.Logger) *Agent {
	return &Agent{
		db:        db,
		cache:     c,
		cfg:       cfg,
		log:       log,
		feed:      gofeed.NewParser(),
		sanitizer: bluemonday.StrictPolicy(),
		http:      &http.Client{Timeout: time.Duration(cfg.RSSFetchTimeoutSeconds) * time.Second},
	}
}

// Run fetches every enabled source, in randomized batches bounded by a
// concurrency semaphore, stopping once the per-run new-article cap is hit.
func (a *Agent) Run(ctx context.Context) (Stats, error) {
	stats := Stats{}

	sources, err := a.enabledSources(ctx)
	if err != nil {
		return stats, fmt.Errorf("scout: load sources: %w", err)
	}
	if len(sources) == 0 {
		a.log.Warn().Msg("scout_no_sources_enabled")
		return stats, nil
	}

	rand.Shuffle(len(sources), func(i, j int) { sources[i], sources[j] = sources[j], sources[i] })

	batchSize := a.cfg.ScoutBatchSize
	if batchSize < 1 {
		batchSize = 10
	}
	maxNewPerRun := a.cfg.ScoutMaxNewPerRun
	if maxNewPerRun < 1 {
		maxNewPerRun = 500
	}

	sem := make(chan struct{}, maxInt(a.cfg.ScoutConcurrency, 1))
	var mu sync.Mutex
	report := func(delta Stats) {
		mu.Lock()
		defer mu.Unlock()
		stats.Total += delta.Total
		stats.New += delta.New
		stats.Duplicates += delta.Duplicates
		stats.Errors += delta.Errors
	}

	for i := 0; i < len(sources); i += batchSize {
		end := i + batchSize
		if end > len(sources) {
			end = len(sources)
		}
		batch := sources[i:end]

		var wg sync.WaitGroup
		for _, src := range batch {
			src := src
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				a.fetchSource(ctx, src, report)
			}()
		}
		wg.Wait()

		mu.Lock()
		reachedCap := stats.New >= maxNewPerRun
		mu.Unlock()
		if reachedCap {
			a.log.Info().Int("max_new", maxNewPerRun).Msg("scout_run_cap_reached")
			break
		}
		if end < len(sources) {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}

	a.log.Info().Int("total", stats.Total).Int("new", stats.New).
		Int("duplicates", stats.Duplicates).Int("errors", stats.Errors).Msg("scout_run_complete")
	return stats, nil
}

func (a *Agent) enabledSources(ctx context.Context) ([]models.Source, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, url, rss_url, method, language, priority, credibility,
		       source_type, enabled, error_count, last_fetched_at
		FROM sources WHERE enabled = true ORDER BY priority DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var s models.Source
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.RSSURL, &s.Method, &s.Language,
			&s.Priority, &s.Credibility, &s.SourceType, &s.Enabled, &s.ErrorCount, &s.LastFetchedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type feedItem struct {
	title     string
	link      string
	content   string
	published *time.Time
}

func (a *Agent) fetchSource(ctx context.Context, source models.Source, report func(Stats)) {
	var items []feedItem
	var fetchErr error

	if strings.ToLower(firstNonEmpty(source.Method, "rss")) == "rss" {
		feedURL := firstNonEmpty(source.RSSURL, source.URL)
		items, fetchErr = a.fetchFeed(ctx, feedURL)
	} else {
		items, fetchErr = a.scrapeSource(ctx, source.URL)
	}

	if fetchErr != nil {
		a.deadLetter(ctx, source, fetchErr)
		a.markSourceError(ctx, source.ID)
		report(Stats{Errors: 1})
		return
	}
	if len(items) == 0 {
		return
	}

	limit := a.sourceLimit(source)
	delta := Stats{}
	for idx, item := range items {
		if idx >= limit {
			break
		}
		delta.Total++
		outcome := a.processEntry(ctx, item, source)
		switch outcome {
		case outcomeNew:
			delta.New++
		case outcomeDuplicate:
			delta.Duplicates++
		case outcomeError:
			delta.Errors++
		}
	}
	report(delta)
	a.markSourceFetched(ctx, source.ID)
}

func (a *Agent) fetchFeed(ctx context.Context, feedURL string) ([]feedItem, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.RSSFetchTimeoutSeconds)*time.Second)
	defer cancel()

	feed, err := a.feed.ParseURLWithContext(feedURL, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]feedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}
		content := entry.Description
		if content == "" && len(entry.Content) > 0 {
			content = entry.Content
		}
		var published *time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed
		}
		items = append(items, feedItem{title: title, link: link, content: content, published: published})
	}
	return items, nil
}

func (a *Agent) scrapeSource(ctx context.Context, pageURL string) ([]feedItem, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.RSSFetchTimeoutSeconds)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: parse html: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var items []feedItem
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(items) >= maxScrapeLinks {
			return false
		}
		title := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		if len(title) < 8 || href == "" {
			return true
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return true
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		if resolved.Host != "" && resolved.Host != base.Host {
			return true
		}
		link := resolved.String()
		if seen[link] {
			return true
		}
		if containsAnySubstr(link, "/tag/", "/tags/", "/category/", "/author/", "/video/", "#") {
			return true
		}
		seen[link] = true
		items = append(items, feedItem{title: title, link: link})
		return true
	})
	return items, nil
}

// sourceLimit scales a per-source article cap by priority, credibility, and
// source type, with a freshness boost for sources that have gone stale.
func (a *Agent) sourceLimit(source models.Source) int {
	priority := source.Priority
	if priority == 0 {
		priority = 5
	}
	credWeight := map[string]float64{"official": 1.3, "high": 1.15, "medium": 1.0, "low": 0.8}[strings.ToLower(firstNonEmpty(source.Credibility, "medium"))]
	if credWeight == 0 {
		credWeight = 1.0
	}
	typeWeight := map[string]float64{"official": 1.2, "agency": 1.1, "media": 1.0, "aggregator": 0.9, "business": 1.0, "tech": 1.0}[strings.ToLower(source.SourceType)]
	if typeWeight == 0 {
		typeWeight = 1.0
	}

	base := 6 + int(float64(priority-5)*0.8)
	cap := int(float64(base) * credWeight * typeWeight)

	if source.LastFetchedAt == nil {
		cap += 3
	} else {
		age := time.Since(*source.LastFetchedAt).Hours()
		if age >= 24 {
			cap += 3
		} else if age >= 6 {
			cap += 2
		}
	}

	if cap < 4 {
		return 4
	}
	if cap > 18 {
		return 18
	}
	return cap
}

type entryOutcome int

const (
	outcomeNew entryOutcome = iota
	outcomeDuplicate
	outcomeError
)

// processEntry runs the dedup gate (cache hash → DB hash → fuzzy title) then
// sanitizes and stores the article as NEW.
func (a *Agent) processEntry(ctx context.Context, item feedItem, source models.Source) entryOutcome {
	uniqueHash := uniqueHash(source.Name, item.link, item.title)

	if a.cache.IsURLProcessed(ctx, uniqueHash) {
		return outcomeDuplicate
	}

	var existingID int64
	err := a.db.QueryRowContext(ctx, `SELECT id FROM articles WHERE unique_hash = $1`, uniqueHash).Scan(&existingID)
	if err == nil {
		a.cache.MarkURLProcessed(ctx, uniqueHash)
		return outcomeDuplicate
	}
	if err != sql.ErrNoRows {
		a.log.Warn().Err(err).Msg("scout: dedup db check failed")
		return outcomeError
	}

	if a.cache.IsDuplicateTitle(ctx, item.title, a.cfg.DedupSimilarityThreshold) {
		return outcomeDuplicate
	}

	title := sanitizeText(a.sanitizer, item.title)
	content := truncateRunes(sanitizeText(a.sanitizer, item.content), 10000)
	traceID := uniqueHash[:16]

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO articles (unique_hash, original_title, original_url, original_content,
		                       published_at, crawled_at, source_id, source_name, status, trace_id)
		VALUES ($1, $2, $3, $4, $5, now(), $6, $7, $8, $9)
		ON CONFLICT (original_url) DO NOTHING`,
		uniqueHash, title, item.link, content, item.published, source.ID, source.Name, models.StatusNew, traceID)
	if err != nil {
		a.log.Warn().Err(err).Str("url", item.link).Msg("scout: insert article failed")
		return outcomeError
	}

	a.cache.MarkURLProcessed(ctx, uniqueHash)
	a.cache.AddRecentTitle(ctx, title)
	return outcomeNew
}

func (a *Agent) markSourceFetched(ctx context.Context, sourceID int) {
	_, err := a.db.ExecContext(ctx, `UPDATE sources SET last_fetched_at = now(), error_count = 0 WHERE id = $1`, sourceID)
	if err != nil {
		a.log.Warn().Err(err).Int("source_id", sourceID).Msg("scout: update source metadata failed")
	}
}

func (a *Agent) markSourceError(ctx context.Context, sourceID int) {
	_, err := a.db.ExecContext(ctx, `UPDATE sources SET error_count = error_count + 1 WHERE id = $1`, sourceID)
	if err != nil {
		a.log.Warn().Err(err).Int("source_id", sourceID).Msg("scout: update source error count failed")
	}
}

func (a *Agent) deadLetter(ctx context.Context, source models.Source, fetchErr error) {
	payload := models.JSONMap{"source_id": source.ID, "source_url": source.URL}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO dead_letter_jobs (original_job_id, job_type, queue_name, error, payload_json)
		VALUES ($1, 'scout_fetch', 'ingest', $2, $3)`,
		fmt.Sprintf("scout-%d-%d", source.ID, time.Now().UnixNano()), fetchErr.Error(), payload)
	if err != nil {
		a.log.Error().Err(err).Str("source", source.Name).Msg("scout: dead letter insert failed")
	}
	a.log.Error().Err(fetchErr).Str("source", source.Name).Msg("source_fetch_error")
}

func uniqueHash(sourceName, link, title string) string {
	h := sha256.Sum256([]byte(sourceName + "|" + link + "|" + title))
	return hex.EncodeToString(h[:])
}

func sanitizeText(p *bluemonday.Policy, s string) string {
	return strings.TrimSpace(p.Sanitize(s))
}

func truncateRunes(s string, n int) string {
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

func containsAnySubstr(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
