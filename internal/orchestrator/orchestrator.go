// Package orchestrator implements the periodic tick scheduler (spec §4.6):
// one independent loop per configured agent, each enqueuing the
// corresponding job type through the durable queue rather than invoking the
// agent directly, with backpressure and active-job coalescing delegated to
// Queue.Enqueue. Shutdown cancels every loop and awaits them with errors
// logged rather than propagated, mirroring the original's
// return_exceptions=true and the teacher scheduler.go's mutex-guarded
// ticker lifecycle.
package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/geraldfingburke/editorial-core/internal/cache"
	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/llm"
	"github.com/geraldfingburke/editorial-core/internal/models"
	"github.com/geraldfingburke/editorial-core/internal/notify"
	"github.com/geraldfingburke/editorial-core/internal/queue"
)

// CoreContext bundles every capability the pipeline's agents and ticks
// depend on, constructed once at startup and injected everywhere — no
// agent imports another (spec §4.6 Design Notes, "dependency-inverted
// layer").
type CoreContext struct {
	DB        *sql.DB
	Cache     *cache.Cache
	Queue     *queue.Queue
	LLMClient llm.Client
	Notifier  notify.Notifier
	Config    *config.Config
	Log       zerolog.Logger
}

// Orchestrator runs the periodic ticks that drive the pipeline.
type Orchestrator struct {
	core CoreContext

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New constructs an Orchestrator bound to core.
func New(core CoreContext) *Orchestrator {
	return &Orchestrator{core: core}
}

// Start launches one goroutine per configured tick. Safe to call only
// once; a second call while already running is a no-op.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		o.core.Log.Warn().Msg("orchestrator already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	o.cancel = cancel
	o.group = group
	o.running = true

	pipelineTick := time.Duration(o.core.Config.PipelineTickMinutes) * time.Minute
	trendTick := time.Duration(o.core.Config.TrendRadarIntervalMinutes) * time.Minute
	monitorTick := time.Duration(o.core.Config.PublishedMonitorIntervalMin) * time.Minute
	reaperTick := time.Duration(o.core.Config.ReaperIntervalSeconds) * time.Second

	group.Go(func() error { o.loop(groupCtx, "scout_router", pipelineTick, o.tickPipeline); return nil })
	group.Go(func() error { o.loop(groupCtx, "scribe_batch", pipelineTick, o.tickScribe); return nil })
	group.Go(func() error { o.loop(groupCtx, "trend_radar", trendTick, o.tickTrendRadar); return nil })
	group.Go(func() error { o.loop(groupCtx, "published_monitor", monitorTick, o.tickPublishedMonitor); return nil })
	group.Go(func() error { o.loop(groupCtx, "stale_reaper", reaperTick, o.tickReaper); return nil })

	o.core.Log.Info().Msg("orchestrator started")
}

// Stop cancels every loop and waits for them to exit. Errors from
// individual ticks are logged, not returned — one agent's failure never
// aborts the others (return_exceptions=true equivalent).
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}

	o.cancel()
	if err := o.group.Wait(); err != nil {
		o.core.Log.Warn().Err(err).Msg("orchestrator loop returned error during shutdown")
	}
	o.running = false
	o.core.Log.Info().Msg("orchestrator stopped")
}

// IsRunning reports whether the orchestrator's loops are active.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// loop runs fn every interval until ctx is cancelled, logging (not
// propagating) any error fn returns so one bad tick does not kill the loop.
func (o *Orchestrator) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				o.core.Log.Warn().Err(err).Str("tick", name).Msg("tick failed")
			}
		}
	}
}

// tickPipeline enqueues a combined Scout+Router cycle, gated by the
// AutoPipelineEnabled flag.
func (o *Orchestrator) tickPipeline(ctx context.Context) error {
	if !o.core.Config.AutoPipelineEnabled {
		return nil
	}
	if err := o.enqueueTick(ctx, queue.JobTypeScoutRun, "scheduled"); err != nil {
		return err
	}
	return o.enqueueTick(ctx, queue.JobTypeRouterBatch, "scheduled")
}

// tickScribe enqueues an auto-pipeline draft-generation batch, gated by
// the AutoScribeEnabled flag (spec §6 "auto_scribe_enabled").
func (o *Orchestrator) tickScribe(ctx context.Context) error {
	if !o.core.Config.AutoScribeEnabled {
		return nil
	}
	return o.enqueueTick(ctx, queue.JobTypeScribeDraft, "auto_pipeline")
}

func (o *Orchestrator) tickTrendRadar(ctx context.Context) error {
	if !o.core.Config.AutoTrendsEnabled {
		return nil
	}
	return o.enqueueTick(ctx, queue.JobTypeTrendRadar, "scheduled")
}

func (o *Orchestrator) tickPublishedMonitor(ctx context.Context) error {
	if !o.core.Config.PublishedMonitorEnabled {
		return nil
	}
	return o.enqueueTick(ctx, queue.JobTypePublishedMonitor, "scheduled")
}

func (o *Orchestrator) tickReaper(ctx context.Context) error {
	n, err := o.core.Queue.ReapStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		o.core.Log.Info().Int("reaped", n).Msg("stale_reaper")
	}
	return nil
}

// enqueueTick enqueues jt for entityID, treating backpressure as an
// expected, loggable skip rather than a failure (spec §4.6: "if above
// threshold, the tick logs and skips that cycle").
func (o *Orchestrator) enqueueTick(ctx context.Context, jt queue.JobType, entityID string) error {
	_, err := o.core.Queue.Enqueue(ctx, jt, entityID, models.JSONMap{"trigger": "scheduled_tick"}, queue.EnqueueOptions{})
	if errors.Is(err, queue.ErrQueueOverloaded) {
		o.core.Log.Info().Str("job_type", string(jt)).Msg("tick skipped: queue over backpressure limit")
		return nil
	}
	return err
}

// Trigger enqueues jt on demand from the external HTTP/GraphQL boundary,
// with an actor identity and an idempotency-key nonce appended to
// entityID as job_type:entity_id:trigger_nonce (spec §4.6).
func (o *Orchestrator) Trigger(ctx context.Context, jt queue.JobType, entityID, actorUsername, nonce string) (*models.JobRun, error) {
	opts := queue.EnqueueOptions{ActorUsername: actorUsername}
	key := entityID
	if nonce != "" {
		key = entityID + ":" + nonce
	}
	return o.core.Queue.Enqueue(ctx, jt, key, models.JSONMap{"trigger": "on_demand", "actor": actorUsername}, opts)
}
