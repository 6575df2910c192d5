// Package queue implements the durable job queue (spec §4.3): Postgres is
// the system of record for job state, Redis lists are the wake-up transport
// workers block on. Every state transition goes through this package so the
// state machine (queued -> running -> completed|failed|dead_lettered) and
// its invariants (no job skips dead-lettering after exhausting retries, no
// terminal job ever transitions again) hold in one place.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/models"
)

// JobType is the closed set of work units the pipeline enqueues.
type JobType string

const (
	JobTypeScoutRun         JobType = "scout_run"
	JobTypeRouterBatch      JobType = "router_batch"
	JobTypeScribeDraft      JobType = "scribe_draft"
	JobTypeTrendRadar       JobType = "trend_radar"
	JobTypePublishedMonitor JobType = "published_monitor"
	JobTypeQualityGate      JobType = "quality_gate"
)

// taskRoute is the (task name, queue name) pair a JobType dispatches to,
// the Go equivalent of the original service's JOB_TASK_MAP — a map keyed by
// the typed JobType rather than by bare strings.
type taskRoute struct {
	TaskName  string
	QueueName string
}

var jobTaskMap = map[JobType]taskRoute{
	JobTypeScoutRun:         {TaskName: "scout.run", QueueName: "ingest"},
	JobTypeRouterBatch:      {TaskName: "router.process_batch", QueueName: "ai_router"},
	JobTypeScribeDraft:      {TaskName: "scribe.generate_draft", QueueName: "ai_scribe"},
	JobTypeTrendRadar:       {TaskName: "trend.radar_scan", QueueName: "ai_trends"},
	JobTypePublishedMonitor: {TaskName: "monitor.scan_published", QueueName: "ai_quality"},
	JobTypeQualityGate:      {TaskName: "editorial.quality_gate", QueueName: "ai_quality"},
}

func routeFor(jt JobType) (taskRoute, error) {
	r, ok := jobTaskMap[jt]
	if !ok {
		return taskRoute{}, fmt.Errorf("%w: %s", ErrUnknownJobType, jt)
	}
	return r, nil
}

// Errors returned by Queue methods. Callers type-switch or errors.Is against
// these rather than matching on message text.
var (
	ErrUnknownJobType  = errors.New("queue: unknown job type")
	ErrQueueOverloaded = errors.New("queue: backpressure limit reached")
	ErrJobNotFound     = errors.New("queue: job not found")
	ErrAlreadyTerminal = errors.New("queue: job already in a terminal state")
)

// Queue is the durable job queue: Postgres-backed bookkeeping plus a Redis
// list per queue name used to wake workers.
type Queue struct {
	db  *sql.DB
	rdb *redis.Client
	cfg *config.Config
	log zerolog.Logger
}

// New constructs a Queue bound to db for bookkeeping and rdb for transport.
func New(db *sql.DB, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *Queue {
	return &Queue{db: db, rdb: rdb, cfg: cfg, log: log}
}

// CheckBackpressure reports whether queueName is at or above its configured
// depth limit, counting queued+running job_runs rows for that queue.
func (q *Queue) CheckBackpressure(ctx context.Context, queueName string) (bool, error) {
	if !q.cfg.QueueBackpressureEnabled {
		return false, nil
	}
	depth, err := q.QueueDepth(ctx, queueName)
	if err != nil {
		return false, err
	}
	return depth >= int64(q.cfg.QueueLimit(queueName)), nil
}

// QueueDepth returns the number of queued+running jobs for queueName.
func (q *Queue) QueueDepth(ctx context.Context, queueName string) (int64, error) {
	var depth int64
	err := q.db.QueryRowContext(ctx, `
		SELECT count(*) FROM job_runs
		WHERE queue_name = $1 AND status IN ('queued', 'running')`, queueName).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("queue: depth query: %w", err)
	}
	return depth, nil
}

// QueueDepths returns the queued+running count for every known queue, for
// health/monitoring endpoints.
func (q *Queue) QueueDepths(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT queue_name, count(*) FROM job_runs
		WHERE status IN ('queued', 'running')
		GROUP BY queue_name`)
	if err != nil {
		return nil, fmt.Errorf("queue: depths query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("queue: scan depth: %w", err)
		}
		out[name] = n
	}
	return out, rows.Err()
}

// FindActiveJob returns the existing queued/running job for (jobType,
// entityID), if any, implementing the idempotency coalescing spec §4.3 and
// §8 invariant 4 require: two requests for the same unit of work never
// produce two in-flight jobs.
func (q *Queue) FindActiveJob(ctx context.Context, jt JobType, entityID string) (*models.JobRun, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, job_type, queue_name, entity_id, status, attempt, max_attempts,
		       payload_json, result_json, error, request_id, correlation_id,
		       actor_user_id, actor_username, queued_at, started_at, finished_at
		FROM job_runs
		WHERE job_type = $1 AND entity_id = $2 AND status IN ('queued', 'running')
		ORDER BY queued_at DESC LIMIT 1`, jt, entityID)
	job, err := scanJobRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueOptions carries the optional context attached to a job at creation
// time, threaded through from the HTTP/GraphQL boundary.
type EnqueueOptions struct {
	RequestID     string
	CorrelationID string
	ActorUserID   *int
	ActorUsername string
	MaxAttempts   int
}

// Enqueue creates a durable job record for (jobType, entityID) and pushes its
// ID onto the Redis transport list, unless an active job for the same
// (jobType, entityID) already exists (returned unchanged) or the target
// queue is over its backpressure limit (ErrQueueOverloaded).
func (q *Queue) Enqueue(ctx context.Context, jt JobType, entityID string, payload models.JSONMap, opts EnqueueOptions) (*models.JobRun, error) {
	route, err := routeFor(jt)
	if err != nil {
		return nil, err
	}

	if existing, err := q.FindActiveJob(ctx, jt, entityID); err != nil {
		return nil, err
	} else if existing != nil {
		q.log.Debug().Str("job_type", string(jt)).Str("entity_id", entityID).Msg("coalesced into active job")
		return existing, nil
	}

	overloaded, err := q.CheckBackpressure(ctx, route.QueueName)
	if err != nil {
		return nil, err
	}
	if overloaded {
		return nil, fmt.Errorf("%w: queue %s", ErrQueueOverloaded, route.QueueName)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	job := &models.JobRun{
		ID:            uuid.NewString(),
		JobType:       string(jt),
		QueueName:     route.QueueName,
		EntityID:      entityID,
		Status:        models.JobQueued,
		MaxAttempts:   maxAttempts,
		PayloadJSON:   payload,
		RequestID:     opts.RequestID,
		CorrelationID: opts.CorrelationID,
		ActorUserID:   opts.ActorUserID,
		ActorUsername: opts.ActorUsername,
		QueuedAt:      time.Now().UTC(),
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO job_runs (id, job_type, queue_name, entity_id, status, attempt,
		                       max_attempts, payload_json, request_id, correlation_id,
		                       actor_user_id, actor_username, queued_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.JobType, job.QueueName, job.EntityID, job.Status, job.MaxAttempts,
		job.PayloadJSON, job.RequestID, job.CorrelationID, job.ActorUserID, job.ActorUsername, job.QueuedAt)
	if err != nil {
		return nil, fmt.Errorf("queue: insert job: %w", err)
	}

	if err := q.rdb.LPush(ctx, transportKey(route.QueueName), job.ID).Err(); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.ID).Msg("redis transport push failed, job remains queued in postgres")
	}

	return job, nil
}

func transportKey(queueName string) string {
	return "queue:" + queueName
}

// Dequeue blocks up to timeout for the next job ID on queueName's transport
// list, loads the full record, and marks it running. Returns (nil, nil) on
// timeout with nothing available.
func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*models.JobRun, error) {
	res, err := q.rdb.BRPop(ctx, timeout, transportKey(queueName)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: brpop: %w", err)
	}
	if len(res) < 2 {
		return nil, nil
	}
	jobID := res[1]

	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	if job.Status != models.JobQueued {
		// Already picked up or reaped; nothing to do.
		return nil, nil
	}
	if err := q.MarkRunning(ctx, jobID); err != nil {
		return nil, err
	}
	job.Status = models.JobRunning
	return job, nil
}

// GetJob loads a single job by ID, returning (nil, nil) if absent.
func (q *Queue) GetJob(ctx context.Context, id string) (*models.JobRun, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, job_type, queue_name, entity_id, status, attempt, max_attempts,
		       payload_json, result_json, error, request_id, correlation_id,
		       actor_user_id, actor_username, queued_at, started_at, finished_at
		FROM job_runs WHERE id = $1`, id)
	job, err := scanJobRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// ListFilter narrows ListJobs results.
type ListFilter struct {
	Status    models.JobStatus
	QueueName string
	JobType   JobType
	Limit     int
}

// ListJobs returns job_runs rows matching filter, most recently queued first.
func (q *Queue) ListJobs(ctx context.Context, filter ListFilter) ([]*models.JobRun, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, job_type, queue_name, entity_id, status, attempt, max_attempts,
		       payload_json, result_json, error, request_id, correlation_id,
		       actor_user_id, actor_username, queued_at, started_at, finished_at
		FROM job_runs WHERE 1=1`
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.QueueName != "" {
		args = append(args, filter.QueueName)
		query += fmt.Sprintf(" AND queue_name = $%d", len(args))
	}
	if filter.JobType != "" {
		args = append(args, string(filter.JobType))
		query += fmt.Sprintf(" AND job_type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY queued_at DESC LIMIT $%d", len(args))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue: list query: %w", err)
	}
	defer rows.Close()

	var jobs []*models.JobRun
	for rows.Next() {
		job, err := scanJobRunRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkRunning transitions a queued job to running, incrementing its attempt
// counter and stamping started_at.
func (q *Queue) MarkRunning(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE job_runs SET status = 'running', attempt = attempt + 1, started_at = now()
		WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		return fmt.Errorf("queue: mark running: %w", err)
	}
	return requireRowsAffected(res, id)
}

// MarkCompleted transitions a running job to completed, storing result.
func (q *Queue) MarkCompleted(ctx context.Context, id string, result models.JSONMap) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE job_runs SET status = 'completed', result_json = $2, finished_at = now()
		WHERE id = $1 AND status = 'running'`, id, result)
	if err != nil {
		return fmt.Errorf("queue: mark completed: %w", err)
	}
	return requireRowsAffected(res, id)
}

// MarkFailed transitions a running job back to queued for retry if attempts
// remain, or dead-letters it if this was the final attempt. Every terminal
// failure goes through DeadLetter — no job type is exempt (§8 invariant 6).
func (q *Queue) MarkFailed(ctx context.Context, id string, failureErr string) error {
	job, err := q.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyTerminal, id)
	}

	if job.Attempt >= job.MaxAttempts {
		return q.DeadLetter(ctx, job, failureErr)
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE job_runs SET status = 'queued', error = $2, started_at = NULL
		WHERE id = $1`, id, failureErr)
	if err != nil {
		return fmt.Errorf("queue: mark failed (retry): %w", err)
	}
	if err := q.rdb.LPush(ctx, transportKey(job.QueueName), job.ID).Err(); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.ID).Msg("redis transport re-push failed on retry")
	}
	return nil
}

// DeadLetter permanently fails job, recording it in dead_letter_jobs for
// forensic inspection.
func (q *Queue) DeadLetter(ctx context.Context, job *models.JobRun, failureErr string) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("queue: dead letter begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE job_runs SET status = 'dead_lettered', error = $2, finished_at = now()
		WHERE id = $1`, job.ID, failureErr); err != nil {
		return fmt.Errorf("queue: dead letter update job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letter_jobs (original_job_id, job_type, queue_name, error, payload_json)
		VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.JobType, job.QueueName, failureErr, job.PayloadJSON); err != nil {
		return fmt.Errorf("queue: dead letter insert: %w", err)
	}

	return tx.Commit()
}

// ReapStale marks running jobs stuck past StaleRunningWindow and queued
// jobs stuck past StaleQueuedWindow as failed, returning the number reaped.
func (q *Queue) ReapStale(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	runningCutoff := now.Add(-q.cfg.StaleRunningWindow())
	rows, err := q.db.QueryContext(ctx, `
		SELECT id FROM job_runs WHERE status = 'running' AND started_at < $1`, runningCutoff)
	if err != nil {
		return 0, fmt.Errorf("queue: reap stale running query: %w", err)
	}
	var staleRunning []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		staleRunning = append(staleRunning, id)
	}
	rows.Close()

	reaped := 0
	for _, id := range staleRunning {
		if err := q.failTerminal(ctx, id, "stale_timeout: exceeded running window"); err != nil {
			q.log.Warn().Err(err).Str("job_id", id).Msg("reap: mark failed error")
			continue
		}
		reaped++
	}

	queuedCutoff := now.Add(-q.cfg.StaleQueuedWindow())
	res, err := q.db.ExecContext(ctx, `
		UPDATE job_runs SET status = 'failed', error = 'stale_timeout: exceeded queued window', finished_at = now()
		WHERE status = 'queued' AND queued_at < $1`, queuedCutoff)
	if err != nil {
		return reaped, fmt.Errorf("queue: reap stale queued: %w", err)
	}
	n, _ := res.RowsAffected()
	reaped += int(n)

	return reaped, nil
}

// failTerminal moves a running job directly to failed, bypassing the
// retry/dead-letter branch in MarkFailed. stale_timeout → failed is its own
// terminal edge (§4.3), distinct from a task-reported failure that may still
// have attempts remaining.
func (q *Queue) failTerminal(ctx context.Context, id string, failureErr string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE job_runs SET status = 'failed', error = $2, finished_at = now()
		WHERE id = $1 AND status = 'running'`, id, failureErr)
	if err != nil {
		return fmt.Errorf("queue: reap stale running: %w", err)
	}
	return requireRowsAffected(res, id)
}

func requireRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("queue: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJobRun(row *sql.Row) (*models.JobRun, error) {
	return scanJobRunScanner(row)
}

func scanJobRunRows(rows *sql.Rows) (*models.JobRun, error) {
	return scanJobRunScanner(rows)
}

func scanJobRunScanner(s rowScanner) (*models.JobRun, error) {
	var j models.JobRun
	var payload, result models.JSONMap
	err := s.Scan(&j.ID, &j.JobType, &j.QueueName, &j.EntityID, &j.Status, &j.Attempt, &j.MaxAttempts,
		&payload, &result, &j.Error, &j.RequestID, &j.CorrelationID,
		&j.ActorUserID, &j.ActorUsername, &j.QueuedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	j.PayloadJSON = payload
	j.ResultJSON = result
	return &j, nil
}
