// Package database provides PostgreSQL connection management and schema
// migrations for the editorial intelligence core. It handles connection
// pooling and idempotent schema setup for sources, articles,
// fingerprints, clusters, editorial drafts, and the durable job queue's
// bookkeeping tables.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/geraldfingburke/editorial-core/internal/config"
)

// NewDB establishes a new PostgreSQL connection pool using cfg.DatabaseURL,
// verifying connectivity with Ping before returning.
func NewDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	return db, nil
}

// Migrate executes the schema migration. It is idempotent: every statement
// uses CREATE TABLE/INDEX IF NOT EXISTS, so it is safe to call on every
// startup.
//
// Schema:
//
//  1. sources                 — RSS/scrape feed configuration and health
//  2. articles                — ingested + classified + drafted stories
//  3. article_fingerprints    — SimHash + shingles per article
//  4. story_clusters          — near-duplicate / developing-story groups
//  5. story_cluster_members   — article <-> cluster membership with score
//  6. article_relations       — directed inter-article relationships
//  7. editorial_drafts        — versioned draft history per article
//  8. editor_decisions        — append-only editorial audit trail
//  9. article_quality_reports — readability / SEO / fact-check / guardian
//  10. job_runs                — durable queue job bookkeeping
//  11. dead_letter_jobs        — jobs that exhausted retries
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		url TEXT NOT NULL UNIQUE,
		rss_url TEXT,
		method VARCHAR(20) NOT NULL DEFAULT 'rss' CHECK (method IN ('rss', 'scrape')),
		language VARCHAR(20) NOT NULL DEFAULT 'ar',
		priority INTEGER NOT NULL DEFAULT 5,
		credibility VARCHAR(20) NOT NULL DEFAULT 'medium',
		source_type VARCHAR(30) NOT NULL DEFAULT 'general',
		enabled BOOLEAN DEFAULT true,
		error_count INTEGER NOT NULL DEFAULT 0,
		last_fetched_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS articles (
		id SERIAL PRIMARY KEY,
		source_id INTEGER REFERENCES sources(id) ON DELETE SET NULL,
		source_name VARCHAR(255),
		original_url TEXT NOT NULL,
		original_title TEXT NOT NULL,
		original_content TEXT,
		title_ar TEXT,
		summary TEXT,
		seo_title TEXT,
		seo_description TEXT,
		body_html TEXT,
		category VARCHAR(30),
		importance_score INTEGER,
		urgency VARCHAR(20) NOT NULL DEFAULT 'low',
		is_breaking BOOLEAN NOT NULL DEFAULT false,
		status VARCHAR(40) NOT NULL DEFAULT 'NEW',
		unique_hash VARCHAR(64) NOT NULL,
		trace_id VARCHAR(64),
		rejection_reason TEXT,
		entities TEXT[],
		keywords TEXT[],
		published_url TEXT,
		published_at TIMESTAMP,
		crawled_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_original_url ON articles(original_url);
	CREATE INDEX IF NOT EXISTS idx_articles_unique_hash ON articles(unique_hash);
	CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
	CREATE INDEX IF NOT EXISTS idx_articles_is_breaking ON articles(is_breaking) WHERE is_breaking;
	CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
	CREATE INDEX IF NOT EXISTS idx_articles_crawled_at ON articles(crawled_at);

	CREATE TABLE IF NOT EXISTS article_fingerprints (
		id SERIAL PRIMARY KEY,
		article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		sim_hash BIGINT NOT NULL,
		shingles TEXT[],
		token_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_fingerprints_article_id ON article_fingerprints(article_id);

	CREATE TABLE IF NOT EXISTS story_clusters (
		id SERIAL PRIMARY KEY,
		cluster_key VARCHAR(64) NOT NULL UNIQUE,
		label TEXT,
		category VARCHAR(30),
		geography VARCHAR(30),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS story_cluster_members (
		id SERIAL PRIMARY KEY,
		cluster_id INTEGER NOT NULL REFERENCES story_clusters(id) ON DELETE CASCADE,
		article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (cluster_id, article_id)
	);

	CREATE INDEX IF NOT EXISTS idx_cluster_members_article_id ON story_cluster_members(article_id);

	CREATE TABLE IF NOT EXISTS article_relations (
		id SERIAL PRIMARY KEY,
		from_article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		to_article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		relation_type VARCHAR(30) NOT NULL,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (from_article_id, to_article_id, relation_type)
	);

	CREATE TABLE IF NOT EXISTS editorial_drafts (
		id BIGSERIAL PRIMARY KEY,
		article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		work_id VARCHAR(64) NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		source_action VARCHAR(30) NOT NULL,
		title TEXT,
		body TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'applied', 'archived')),
		parent_draft_id BIGINT REFERENCES editorial_drafts(id),
		change_origin VARCHAR(20) NOT NULL DEFAULT 'ai',
		actor_user_id INTEGER,
		actor_username VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_drafts_article_id ON editorial_drafts(article_id);
	CREATE INDEX IF NOT EXISTS idx_drafts_work_id ON editorial_drafts(work_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_drafts_one_active_per_article
		ON editorial_drafts(article_id) WHERE status = 'applied';

	CREATE TABLE IF NOT EXISTS editor_decisions (
		id BIGSERIAL PRIMARY KEY,
		article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		draft_id BIGINT REFERENCES editorial_drafts(id),
		action VARCHAR(30) NOT NULL,
		actor_user_id INTEGER,
		actor_username VARCHAR(255),
		before_title TEXT,
		after_title TEXT,
		before_body TEXT,
		after_body TEXT,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_article_id ON editor_decisions(article_id);

	CREATE TABLE IF NOT EXISTS article_quality_reports (
		id BIGSERIAL PRIMARY KEY,
		article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		stage VARCHAR(30) NOT NULL,
		passed BOOLEAN NOT NULL,
		score INTEGER,
		blocking_reasons TEXT[],
		actionable_fixes TEXT[],
		report_json JSONB,
		created_by VARCHAR(20) NOT NULL DEFAULT 'system',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_quality_reports_article_id ON article_quality_reports(article_id);
	CREATE INDEX IF NOT EXISTS idx_quality_reports_stage ON article_quality_reports(stage);

	CREATE TABLE IF NOT EXISTS job_runs (
		id UUID PRIMARY KEY,
		job_type VARCHAR(40) NOT NULL,
		queue_name VARCHAR(40) NOT NULL,
		entity_id VARCHAR(64),
		status VARCHAR(20) NOT NULL DEFAULT 'queued',
		attempt INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		payload_json JSONB,
		result_json JSONB,
		error TEXT,
		request_id VARCHAR(64),
		correlation_id VARCHAR(64),
		actor_user_id INTEGER,
		actor_username VARCHAR(255),
		queued_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		started_at TIMESTAMP,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_job_runs_status ON job_runs(status);
	CREATE INDEX IF NOT EXISTS idx_job_runs_queue_name ON job_runs(queue_name);
	CREATE INDEX IF NOT EXISTS idx_job_runs_entity_id ON job_runs(entity_id);
	CREATE INDEX IF NOT EXISTS idx_job_runs_queued_at ON job_runs(queued_at);

	CREATE TABLE IF NOT EXISTS dead_letter_jobs (
		id BIGSERIAL PRIMARY KEY,
		original_job_id UUID NOT NULL,
		job_type VARCHAR(40) NOT NULL,
		queue_name VARCHAR(40) NOT NULL,
		error TEXT,
		traceback TEXT,
		payload_json JSONB,
		meta_json JSONB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_dead_letter_original_job_id ON dead_letter_jobs(original_job_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migration execution failed: %w", err)
	}

	return nil
}
