// Package worker drains the durable queue (spec §4.3): one goroutine per
// transport queue blocks on Queue.Dequeue, dispatches the job's payload to
// the matching agent by job_type, and records the outcome back onto the
// job_runs row, publishing progress over the events bus along the way.
// Agents never enqueue or dequeue directly — this is the one place a
// job_type resolves to code, the Go analogue of the original service's
// Celery task registry.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/agents/monitor"
	"github.com/geraldfingburke/editorial-core/internal/agents/router"
	"github.com/geraldfingburke/editorial-core/internal/agents/scout"
	"github.com/geraldfingburke/editorial-core/internal/agents/scribe"
	"github.com/geraldfingburke/editorial-core/internal/agents/trend"
	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/editorial"
	"github.com/geraldfingburke/editorial-core/internal/events"
	"github.com/geraldfingburke/editorial-core/internal/models"
	"github.com/geraldfingburke/editorial-core/internal/queue"
)

// dequeueTimeout bounds each BRPOP call so a Pool's loops notice context
// cancellation promptly instead of blocking indefinitely.
const dequeueTimeout = 5 * time.Second

// autoPipelineEntityID marks a scribe job as the batch tick rather than a
// single-article on-demand draft request.
const autoPipelineEntityID = "auto_pipeline"

// queueNames is the fixed set of Redis transport lists workers drain,
// mirroring jobTaskMap's QueueName values in internal/queue.
var queueNames = []string{"ingest", "ai_router", "ai_scribe", "ai_trends", "ai_quality"}

// Pool runs one dequeue loop per transport queue.
type Pool struct {
	queue  *queue.Queue
	cfg    *config.Config
	events *events.Bus
	log    zerolog.Logger

	scout     *scout.Agent
	router    *router.Agent
	scribe    *scribe.Agent
	trend     *trend.Agent
	monitor   *monitor.Agent
	editorial *editorial.Service

	wg sync.WaitGroup
}

// Agents bundles the agent instances a Pool dispatches jobs to.
type Agents struct {
	Scout     *scout.Agent
	Router    *router.Agent
	Scribe    *scribe.Agent
	Trend     *trend.Agent
	Monitor   *monitor.Agent
	Editorial *editorial.Service
}

// New constructs a Pool bound to q for bookkeeping/transport and agents
// for dispatch.
func New(q *queue.Queue, cfg *config.Config, bus *events.Bus, agents Agents, log zerolog.Logger) *Pool {
	return &Pool{
		queue: q, cfg: cfg, events: bus, log: log,
		scout: agents.Scout, router: agents.Router, scribe: agents.Scribe,
		trend: agents.Trend, monitor: agents.Monitor, editorial: agents.Editorial,
	}
}

// Start launches one goroutine per transport queue; they run until ctx is
// cancelled.
func (p *Pool) Start(ctx context.Context) {
	for _, qn := range queueNames {
		qn := qn
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.drain(ctx, qn)
		}()
	}
}

// Wait blocks until every drain loop has exited (i.e. after ctx is done).
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) drain(ctx context.Context, queueName string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queueName, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Str("queue", queueName).Msg("dequeue failed")
			continue
		}
		if job == nil {
			continue
		}
		p.process(ctx, job)
	}
}

func (p *Pool) process(ctx context.Context, job *models.JobRun) {
	runID := job.ID
	p.events.Publish(models.ProgressEvent{RunID: runID, Node: string(job.JobType), EventType: "started", Timestamp: time.Now(), Payload: models.JSONMap{}})

	result, err := p.dispatch(ctx, job)
	if err != nil {
		p.events.Publish(models.ProgressEvent{RunID: runID, Node: string(job.JobType), EventType: "failed", Timestamp: time.Now(), Payload: models.JSONMap{"error": err.Error()}})
		if markErr := p.queue.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			p.log.Error().Err(markErr).Str("job_id", job.ID).Msg("mark failed errored")
		}
		return
	}

	if markErr := p.queue.MarkCompleted(ctx, job.ID, result); markErr != nil {
		p.log.Error().Err(markErr).Str("job_id", job.ID).Msg("mark completed errored")
	}
	p.events.Publish(models.ProgressEvent{RunID: runID, Node: string(job.JobType), EventType: "completed", Timestamp: time.Now(), Payload: result})
}

// dispatch resolves job.JobType to the owning agent and runs it, the Go
// equivalent of the original service's Celery task registry lookup.
func (p *Pool) dispatch(ctx context.Context, job *models.JobRun) (models.JSONMap, error) {
	switch queue.JobType(job.JobType) {
	case queue.JobTypeScoutRun:
		stats, err := p.scout.Run(ctx)
		return statsToJSON(stats), err

	case queue.JobTypeRouterBatch:
		stats, err := p.router.ProcessBatch(ctx, p.cfg.RouterBatchLimit)
		return statsToJSON(stats), err

	case queue.JobTypeScribeDraft:
		if job.EntityID == autoPipelineEntityID {
			stats, err := p.scribe.WriteBatch(ctx, p.cfg.ScoutBatchSize)
			if err != nil {
				return nil, err
			}
			return models.JSONMap{"drafted": stats.Drafted, "failed": stats.Failed}, nil
		}
		articleID, err := parseEntityID(job.EntityID)
		if err != nil {
			return nil, err
		}
		result, err := p.scribe.Write(ctx, articleID, "queue", "")
		if err != nil {
			return nil, err
		}
		return models.JSONMap{"draft_id": result.DraftID, "work_id": result.WorkID, "version": result.Version}, nil

	case queue.JobTypeTrendRadar:
		alerts, err := p.trend.Scan(ctx)
		if err != nil {
			return nil, err
		}
		return models.JSONMap{"alerts": len(alerts)}, nil

	case queue.JobTypePublishedMonitor:
		report, err := p.monitor.Scan(ctx)
		if err != nil {
			return nil, err
		}
		if report == nil {
			return models.JSONMap{}, nil
		}
		return models.JSONMap{"items_scanned": len(report.Items)}, nil

	case queue.JobTypeQualityGate:
		articleID, err := parseEntityID(job.EntityID)
		if err != nil {
			return nil, err
		}
		if err := p.editorial.RunQualityGate(ctx, articleID, p.cfg.SiteInternalLinkHost); err != nil {
			return nil, err
		}
		return models.JSONMap{"article_id": articleID}, nil

	default:
		return nil, fmt.Errorf("worker: %w: %s", queue.ErrUnknownJobType, job.JobType)
	}
}

func parseEntityID(entityID string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(entityID, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("worker: entity_id %q is not numeric: %w", entityID, err)
	}
	return id, nil
}

func statsToJSON(stats interface{}) models.JSONMap {
	return models.JSONMap{"stats": fmt.Sprintf("%+v", stats)}
}
