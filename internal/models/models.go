// Package models defines the core domain types shared by every subsystem of
// the editorial intelligence core: articles, fingerprints, story clusters,
// editorial drafts, durable job records, and their PostgreSQL array/JSON
// scanning helpers.
//
// Persisted entities carry system-generated identifiers; most also carry
// CreatedAt/UpdatedAt timestamps. Struct tags serve two audiences: `json`
// for API responses and `db` naming the column each field maps to.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// ============================================================================
// ENUMERATIONS
// ============================================================================

// ArticleCategory is the closed set of editorial categories.
type ArticleCategory string

const (
	CategoryPolitics      ArticleCategory = "politics"
	CategoryEconomy       ArticleCategory = "economy"
	CategorySports        ArticleCategory = "sports"
	CategoryTechnology    ArticleCategory = "technology"
	CategoryHealth        ArticleCategory = "health"
	CategoryCulture       ArticleCategory = "culture"
	CategoryEnvironment   ArticleCategory = "environment"
	CategorySociety       ArticleCategory = "society"
	CategoryLocalAlgeria  ArticleCategory = "local_algeria"
	CategoryInternational ArticleCategory = "international"
)

// Urgency is the urgency band assigned by the Router.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyBreaking Urgency = "breaking"
)

// ArticleStatus enumerates every state in the Article lifecycle (spec §4.5).
type ArticleStatus string

const (
	StatusNew                         ArticleStatus = "NEW"
	StatusClassified                  ArticleStatus = "CLASSIFIED"
	StatusCandidate                   ArticleStatus = "CANDIDATE"
	StatusArchived                    ArticleStatus = "ARCHIVED"
	StatusRejected                    ArticleStatus = "REJECTED"
	StatusApprovedHandoff             ArticleStatus = "APPROVED_HANDOFF"
	StatusDraftGenerated              ArticleStatus = "DRAFT_GENERATED"
	StatusApproved                    ArticleStatus = "APPROVED"
	StatusReadyForChiefApproval       ArticleStatus = "READY_FOR_CHIEF_APPROVAL"
	StatusApprovalRequestReservations ArticleStatus = "APPROVAL_REQUEST_WITH_RESERVATIONS"
	StatusReadyForManualPublish       ArticleStatus = "READY_FOR_MANUAL_PUBLISH"
	StatusPublished                   ArticleStatus = "PUBLISHED"
)

// DraftStatus enumerates EditorialDraft states.
type DraftStatus string

const (
	DraftStatusDraft    DraftStatus = "draft"
	DraftStatusApplied  DraftStatus = "applied"
	DraftStatusArchived DraftStatus = "archived"
)

// RelationType enumerates ArticleRelation edge kinds.
type RelationType string

const (
	RelationDuplicateVariant RelationType = "duplicate_variant"
	RelationSequence         RelationType = "sequence"
	RelationImpact           RelationType = "impact"
	RelationContrast         RelationType = "contrast"
	RelationRelated          RelationType = "related"
)

// JobStatus enumerates JobRun states (spec §4.3).
type JobStatus string

const (
	JobQueued       JobStatus = "queued"
	JobRunning      JobStatus = "running"
	JobCompleted    JobStatus = "completed"
	JobFailed       JobStatus = "failed"
	JobDeadLettered JobStatus = "dead_lettered"
)

// ============================================================================
// DATABASE TYPE HELPERS
// ============================================================================

// StringArray adapts []string to PostgreSQL TEXT[] columns via lib/pq.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	return pq.Array([]string(a)).Value()
}

func (a *StringArray) Scan(value interface{}) error {
	return pq.Array((*[]string)(a)).Scan(value)
}

// JSONMap adapts map[string]any to a PostgreSQL JSONB column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		*m = JSONMap{}
		return nil
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// ============================================================================
// SOURCE
// ============================================================================

// Source is an enabled RSS feed or scraper target that Scout fetches from.
type Source struct {
	ID            int        `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	URL           string     `json:"url" db:"url"`
	RSSURL        string     `json:"rss_url" db:"rss_url"`
	Method        string     `json:"method" db:"method"` // "rss" | "scrape"
	Language      string     `json:"language" db:"language"`
	Priority      int        `json:"priority" db:"priority"` // 1..10
	Credibility   string     `json:"credibility" db:"credibility"`
	SourceType    string     `json:"source_type" db:"source_type"`
	Enabled       bool       `json:"enabled" db:"enabled"`
	ErrorCount    int        `json:"error_count" db:"error_count"`
	LastFetchedAt *time.Time `json:"last_fetched_at" db:"last_fetched_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// ============================================================================
// ARTICLE
// ============================================================================

// Article is a fetched news item as it moves through Scout → Router → Scribe
// → editorial review → publication (spec §3, §4.5).
type Article struct {
	ID              int64           `json:"id" db:"id"`
	SourceID        int             `json:"source_id" db:"source_id"`
	SourceName      string          `json:"source_name" db:"source_name"`
	OriginalURL     string          `json:"original_url" db:"original_url"`
	OriginalTitle   string          `json:"original_title" db:"original_title"`
	OriginalContent string          `json:"original_content" db:"original_content"`
	TitleAr         string          `json:"title_ar" db:"title_ar"`
	Summary         string          `json:"summary" db:"summary"`
	SEOTitle        string          `json:"seo_title" db:"seo_title"`
	SEODescription  string          `json:"seo_description" db:"seo_description"`
	BodyHTML        string          `json:"body_html" db:"body_html"`
	Category        ArticleCategory `json:"category" db:"category"`
	ImportanceScore int             `json:"importance_score" db:"importance_score"`
	Urgency         Urgency         `json:"urgency" db:"urgency"`
	IsBreaking      bool            `json:"is_breaking" db:"is_breaking"`
	Status          ArticleStatus   `json:"status" db:"status"`
	UniqueHash      string          `json:"unique_hash" db:"unique_hash"`
	TraceID         string          `json:"trace_id" db:"trace_id"`
	RejectionReason string          `json:"rejection_reason" db:"rejection_reason"`
	Entities        StringArray     `json:"entities" db:"entities"`
	Keywords        StringArray     `json:"keywords" db:"keywords"`
	PublishedURL    string          `json:"published_url" db:"published_url"`
	PublishedAt     *time.Time      `json:"published_at" db:"published_at"`
	CrawledAt       time.Time       `json:"crawled_at" db:"crawled_at"`
	RetryCount      int             `json:"retry_count" db:"retry_count"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Text concatenates title + summary + body, the canonical input to both the
// Router's keyword scoring and the fingerprint tokenizer.
func (a *Article) Text() string {
	return a.OriginalTitle + " " + a.Summary + " " + a.OriginalContent
}

// ============================================================================
// FINGERPRINT & CLUSTERING
// ============================================================================

// ArticleFingerprint holds the SimHash + shingle set of one Article (spec
// §4.2); the schema allows at most one per Article. No pipeline stage
// computes or stores one: fingerprint.Compute derives the values and
// fingerprint.Classify reads the stored rows.
type ArticleFingerprint struct {
	ID         int64       `json:"id" db:"id"`
	ArticleID  int64       `json:"article_id" db:"article_id"`
	SimHash    int64       `json:"simhash" db:"sim_hash"` // signed storage, unsigned semantics
	Shingles   StringArray `json:"shingles" db:"shingles"`
	TokenCount int         `json:"token_count" db:"token_count"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// StoryCluster groups Articles covering the same event.
type StoryCluster struct {
	ID         int64           `json:"id" db:"id"`
	ClusterKey string          `json:"cluster_key" db:"cluster_key"`
	Label      string          `json:"label" db:"label"`
	Category   ArticleCategory `json:"category" db:"category"`
	Geography  string          `json:"geography" db:"geography"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// StoryClusterMember is one Article's membership in a StoryCluster.
type StoryClusterMember struct {
	ID        int64     `json:"id" db:"id"`
	ClusterID int64     `json:"cluster_id" db:"cluster_id"`
	ArticleID int64     `json:"article_id" db:"article_id"`
	Score     float64   `json:"score" db:"score"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ArticleRelation is a directed, idempotent edge between two Articles.
type ArticleRelation struct {
	ID          int64        `json:"id" db:"id"`
	FromArticle int64        `json:"from_article_id" db:"from_article_id"`
	ToArticle   int64        `json:"to_article_id" db:"to_article_id"`
	Type        RelationType `json:"relation_type" db:"relation_type"`
	Score       float64      `json:"score" db:"score"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// ============================================================================
// EDITORIAL DRAFT
// ============================================================================

// EditorialDraft is one revision of rewritten article content (spec §3, §4.5).
// (WorkID, Version) is unique; Version is monotonic per WorkID.
type EditorialDraft struct {
	ID            int64       `json:"id" db:"id"`
	ArticleID     int64       `json:"article_id" db:"article_id"`
	WorkID        string      `json:"work_id" db:"work_id"`
	Version       int         `json:"version" db:"version"`
	SourceAction  string      `json:"source_action" db:"source_action"`
	Title         string      `json:"title" db:"title"`
	Body          string      `json:"body" db:"body"`
	Status        DraftStatus `json:"status" db:"status"`
	ParentDraftID *int64      `json:"parent_draft_id" db:"parent_draft_id"`
	ChangeOrigin  string      `json:"change_origin" db:"change_origin"`
	ActorUserID   *int        `json:"actor_user_id" db:"actor_user_id"`
	ActorUsername string      `json:"actor_username" db:"actor_username"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// EditorDecision is an immutable record of a human decision on a draft or
// article (approve / reject / rewrite / process:*).
type EditorDecision struct {
	ID            int64     `json:"id" db:"id"`
	ArticleID     int64     `json:"article_id" db:"article_id"`
	DraftID       *int64    `json:"draft_id" db:"draft_id"`
	Action        string    `json:"action" db:"action"`
	ActorUserID   *int      `json:"actor_user_id" db:"actor_user_id"`
	ActorUsername string    `json:"actor_username" db:"actor_username"`
	BeforeTitle   string    `json:"before_title" db:"before_title"`
	AfterTitle    string    `json:"after_title" db:"after_title"`
	BeforeBody    string    `json:"before_body" db:"before_body"`
	AfterBody     string    `json:"after_body" db:"after_body"`
	Reason        string    `json:"reason" db:"reason"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ArticleQualityReport is an append-only (or latest-wins, per gate) gate
// report: readability, SEO-tech, fact-check, or guardian post-publish.
type ArticleQualityReport struct {
	ID              int64       `json:"id" db:"id"`
	ArticleID       int64       `json:"article_id" db:"article_id"`
	Stage           string      `json:"stage" db:"stage"`
	Passed          bool        `json:"passed" db:"passed"`
	Score           *int        `json:"score" db:"score"`
	BlockingReasons StringArray `json:"blocking_reasons" db:"blocking_reasons"`
	ActionableFixes StringArray `json:"actionable_fixes" db:"actionable_fixes"`
	ReportJSON      JSONMap     `json:"report_json" db:"report_json"`
	CreatedBy       string      `json:"created_by" db:"created_by"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// ============================================================================
// DURABLE JOB QUEUE
// ============================================================================

// JobRun is the durable record of one enqueued unit of work (spec §4.3).
type JobRun struct {
	ID            string    `json:"id" db:"id"` // UUID
	JobType       string    `json:"job_type" db:"job_type"`
	QueueName     string    `json:"queue_name" db:"queue_name"`
	EntityID      string    `json:"entity_id" db:"entity_id"`
	Status        JobStatus `json:"status" db:"status"`
	Attempt       int       `json:"attempt" db:"attempt"`
	MaxAttempts   int       `json:"max_attempts" db:"max_attempts"`
	PayloadJSON   JSONMap   `json:"payload_json" db:"payload_json"`
	ResultJSON    JSONMap   `json:"result_json" db:"result_json"`
	Error         string    `json:"error" db:"error"`
	RequestID     string    `json:"request_id" db:"request_id"`
	CorrelationID string    `json:"correlation_id" db:"correlation_id"`
	ActorUserID   *int      `json:"actor_user_id" db:"actor_user_id"`
	ActorUsername string    `json:"actor_username" db:"actor_username"`
	QueuedAt      time.Time `json:"queued_at" db:"queued_at"`
	StartedAt     *time.Time `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
}

// IsTerminal reports whether the job has reached a status from which it
// never transitions again (invariant 5, spec §8).
func (j *JobRun) IsTerminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobDeadLettered:
		return true
	default:
		return false
	}
}

// DeadLetterJob is the permanent forensic record created on terminal job
// failure (spec §3, invariant 6).
type DeadLetterJob struct {
	ID            int64     `json:"id" db:"id"`
	OriginalJobID string    `json:"original_job_id" db:"original_job_id"`
	JobType       string    `json:"job_type" db:"job_type"`
	QueueName     string    `json:"queue_name" db:"queue_name"`
	Error         string    `json:"error" db:"error"`
	Traceback     string    `json:"traceback" db:"traceback"`
	PayloadJSON   JSONMap   `json:"payload_json" db:"payload_json"`
	MetaJSON      JSONMap   `json:"meta_json" db:"meta_json"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ============================================================================
// PROGRESS EVENTS (§6 live event stream)
// ============================================================================

// ProgressEvent is one per-node progress update for a long-running
// orchestrated job, keyed by RunID and delivered over the SSE boundary.
type ProgressEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Node      string    `json:"node"`
	EventType string    `json:"event_type"` // "started" | "progress" | "completed" | "failed"
	Payload   JSONMap   `json:"payload"`
	Timestamp time.Time `json:"ts"`
}
