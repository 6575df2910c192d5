// Package events implements the per-run progress event bus behind the
// live event stream (spec §6): in-process publish/subscribe keyed by
// run_id, fed by the orchestrator and agents and drained by the SSE
// boundary. It is kept in-process (channels, the teacher's own
// stopChan-style control-flow idiom) rather than durable — the durable
// source of truth for job outcomes is internal/queue's JobRun table;
// this bus only carries transient progress fan-out to live viewers.
package events

import (
	"sync"

	"github.com/geraldfingburke/editorial-core/internal/models"
)

// Bus fans out ProgressEvents to subscribers of a given run_id.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[chan models.ProgressEvent]struct{}
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[chan models.ProgressEvent]struct{})}
}

// Subscribe registers a new listener for runID and returns a channel of
// events plus an unsubscribe function the caller must call when done.
func (b *Bus) Subscribe(runID string) (<-chan models.ProgressEvent, func()) {
	ch := make(chan models.ProgressEvent, 32)

	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[chan models.ProgressEvent]struct{})
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[runID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, runID)
			}
		}
		close(ch)
	}
	return ch, unsubscribe
}

// Publish delivers event to every current subscriber of event.RunID.
// Slow subscribers are dropped from delivery for this event rather than
// blocking the publisher.
func (b *Bus) Publish(event models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[event.RunID] {
		select {
		case ch <- event:
		default:
		}
	}
}
