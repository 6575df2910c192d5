package queue

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/config"
)

func newTestQueue(t *testing.T) (*Queue, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := config.Default()
	log := zerolog.Nop()
	return New(db, rdb, cfg, log), mock, mr
}

func TestRouteForKnownJobType(t *testing.T) {
	route, err := routeFor(JobTypeRouterBatch)
	require.NoError(t, err)
	require.Equal(t, "ai_router", route.QueueName)
}

func TestRouteForUnknownJobType(t *testing.T) {
	_, err := routeFor(JobType("nonsense"))
	require.ErrorIs(t, err, ErrUnknownJobType)
}

func TestCheckBackpressureDisabled(t *testing.T) {
	q, _, _ := newTestQueue(t)
	q.cfg.QueueBackpressureEnabled = false
	over, err := q.CheckBackpressure(context.Background(), "ai_router")
	require.NoError(t, err)
	require.False(t, over)
}

func TestCheckBackpressureOverLimit(t *testing.T) {
	q, mock, _ := newTestQueue(t)
	q.cfg.QueueDepthLimits["ai_router"] = 1

	rows := sqlmock.NewRows([]string{"count"}).AddRow(5)
	mock.ExpectQuery(`SELECT count\(\*\) FROM job_runs`).WillReturnRows(rows)

	over, err := q.CheckBackpressure(context.Background(), "ai_router")
	require.NoError(t, err)
	require.True(t, over)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDequeueTimesOutWithNothingQueued(t *testing.T) {
	q, _, _ := newTestQueue(t)
	job, err := q.Dequeue(context.Background(), "ai_router", 50*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestMarkFailedDeadLettersOnFinalAttempt(t *testing.T) {
	q, mock, _ := newTestQueue(t)

	getRows := sqlmock.NewRows([]string{
		"id", "job_type", "queue_name", "entity_id", "status", "attempt", "max_attempts",
		"payload_json", "result_json", "error", "request_id", "correlation_id",
		"actor_user_id", "actor_username", "queued_at", "started_at", "finished_at",
	}).AddRow("job-1", "router_batch", "ai_router", "42", "running", 3, 3,
		nil, nil, "", "", "", nil, "", time.Now(), time.Now(), nil)

	mock.ExpectQuery(`SELECT id, job_type, queue_name`).WillReturnRows(getRows)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE job_runs SET status = 'dead_lettered'`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dead_letter_jobs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := q.MarkFailed(context.Background(), "job-1", "boom")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReapStaleFailsRunningJobsDirectlyWithoutRetry(t *testing.T) {
	q, mock, _ := newTestQueue(t)

	staleRows := sqlmock.NewRows([]string{"id"}).AddRow("job-1")
	mock.ExpectQuery(`SELECT id FROM job_runs WHERE status = 'running'`).WillReturnRows(staleRows)
	mock.ExpectExec(`UPDATE job_runs SET status = 'failed', error = \$2, finished_at = now\(\) WHERE id = \$1 AND status = 'running'`).
		WithArgs("job-1", "stale_timeout: exceeded running window").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE job_runs SET status = 'failed', error = 'stale_timeout: exceeded queued window'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := q.ReapStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
