// Package download coordinates batches of file downloads: it bounds the number
// of concurrent fetches, drives every request through a retrying Fetcher,
// verifies integrity constraints and reports lifecycle events to observers.
//
// Payloads are delivered incrementally through EventComplete; the coordinator
// never holds more than the in-flight payloads in memory.
package download

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/glorpus-work/mcbundle/pkg/hash"
	"golang.org/x/sync/errgroup"
)

// Coordinator downloads batches of requests with bounded concurrency.
type Coordinator struct {
	fetcher   Fetcher
	cfg       Config
	observers []Observer
}

// New creates a Coordinator. Observers receive every event of every batch.
func New(fetcher Fetcher, cfg Config, observers ...Observer) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Coordinator{
		fetcher:   fetcher,
		cfg:       cfg,
		observers: observers,
	}
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Download processes batch with at most concurrency requests in flight at any
// time; a non-positive bound uses Config.Concurrency. Slots are refilled as
// soon as a request finishes.
//
// It returns nil when every request completed, or the first *RequestError
// observed. After the first failure no further queued request is started, but
// requests already in flight are not interrupted: Download waits for them, so
// every successful sibling has emitted its complete event before it returns.
func (c *Coordinator) Download(ctx context.Context, batch []Request, concurrency int) error {
	if len(batch) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = c.cfg.Concurrency
	}

	run := &batchRun{coordinator: c, total: len(batch)}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, req := range batch {
		if run.failed.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return run.process(ctx, req)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// batchRun holds the state of a single Download call.
type batchRun struct {
	coordinator *Coordinator
	total       int
	failed      atomic.Bool

	mu        sync.Mutex
	completed int
}

func (r *batchRun) process(ctx context.Context, req Request) error {
	// A slot may free up right after a sibling failed; do not start new work then.
	if r.failed.Load() || ctx.Err() != nil {
		return nil
	}

	r.emit(Event{Type: EventStart, Request: req, Total: r.total})

	checkHashes := r.coordinator.cfg.CheckHashes
	if checkHashes {
		for _, constraint := range req.Constraints {
			if err := constraint.Validate(); err != nil {
				return r.fail(req, err)
			}
		}
	}

	payload, err := r.coordinator.fetcher.Fetch(ctx, req.URL, func(attempt int, err error) {
		r.emit(Event{Type: EventRetry, Request: req, Total: r.total, Attempt: attempt, Err: err})
	})
	if err != nil {
		return r.fail(req, err)
	}

	if checkHashes {
		if err := hash.VerifyAll(payload, req.Constraints); err != nil {
			return r.fail(req, err)
		}
	}

	r.complete(req, payload)
	return nil
}

// complete assigns the next ordinal and emits under the same lock so
// observers see ordinals in strictly increasing order.
func (r *batchRun) complete(req Request, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordinal := r.completed
	r.completed++
	r.emit(Event{Type: EventComplete, Request: req, Ordinal: ordinal, Total: r.total, Payload: payload})
}

func (r *batchRun) fail(req Request, err error) error {
	r.failed.Store(true)
	reqErr := &RequestError{Request: req, Err: err}
	r.emit(Event{Type: EventFailed, Request: req, Total: r.total, Err: reqErr})
	return reqErr
}

func (r *batchRun) emit(e Event) {
	for _, o := range r.coordinator.observers {
		o.OnEvent(e)
	}
}
