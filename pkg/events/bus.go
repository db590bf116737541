package events

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/extrasync/pkg/models"
)

type Handler func(ctx context.Context, event Event) error

// JobCreator persists deferred deliveries. jobs.Service satisfies it.
type JobCreator interface {
	CreateJob(ctx context.Context, job *models.Job) error
}

// Bus dispatches events to handlers. Inline handlers run inside Publish, in
// subscription order. Deferred handlers run later from Deliver, once a worker
// picks up the job Publish enqueued for them.
type Bus struct {
	mu       sync.RWMutex
	inline   map[string][]Handler
	deferred map[string][]Handler
	jobs     JobCreator
}

func NewBus(jobs JobCreator) *Bus {
	return &Bus{
		inline:   map[string][]Handler{},
		deferred: map[string][]Handler{},
		jobs:     jobs,
	}
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inline[name] = append(b.inline[name], h)
}

func (b *Bus) SubscribeDeferred(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deferred[name] = append(b.deferred[name], h)
}

func (b *Bus) handlers(m map[string][]Handler, name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), m[name]...)
}

// Publish runs the inline handlers of the event and enqueues one job for its
// deferred handlers. Every inline handler runs even if an earlier one fails;
// the first error is returned.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	log := logger.FromContext(ctx)

	var first error
	for _, h := range b.handlers(b.inline, event.Name()) {
		if err := h(ctx, event); err != nil {
			log.Error("event handler error", logger.Data{
				"event":     event.Name(),
				"series_id": event.Series(),
				"error":     err.Error(),
			})
			if first == nil {
				first = err
			}
		}
	}

	if len(b.handlers(b.deferred, event.Name())) > 0 {
		if err := b.enqueue(ctx, event); err != nil {
			if first == nil {
				first = err
			}
		}
	}

	return first
}

func (b *Bus) enqueue(ctx context.Context, event Event) error {
	if b.jobs == nil {
		return errors.Errorf("no job creator for deferred %s event", event.Name())
	}

	payload, err := Encode(event)
	if err != nil {
		return err
	}

	seriesID := event.Series()
	job := &models.Job{
		Type:   models.JobTypeEvent,
		Status: models.JobStatusPending,
		DataParsed: &models.JobEventData{
			Name:    event.Name(),
			Payload: payload,
		},
		SeriesID: &seriesID,
	}
	return errors.Wrapf(b.jobs.CreateJob(ctx, job), "enqueue %s event", event.Name())
}

// Deliver decodes a queued event and runs its deferred handlers. Handlers
// stop at the first error so the job is reported as failed.
func (b *Bus) Deliver(ctx context.Context, name string, payload []byte) error {
	event, err := Decode(name, payload)
	if err != nil {
		return err
	}
	for _, h := range b.handlers(b.deferred, name) {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
