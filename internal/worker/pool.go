// Package worker runs calendar-day lookups off the caller's goroutine.
//
// Requests travel to a fixed set of workers over a job queue; results come
// back on a single results channel and are routed to the waiting caller by
// correlation ID. No mutable state is shared with the workers: each request
// owns its lookup table until the reply is delivered.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appLog "plantime/internal/log"
	"plantime/internal/lookup"
)

var (
	// ErrClosed is returned for requests made after Close.
	ErrClosed = errors.New("worker: pool closed")
	// ErrSuperseded is returned by Session.Do when a newer request of the
	// same session replaced this one.
	ErrSuperseded = errors.New("worker: request superseded")
)

// ProcessFunc computes a response for a request.
type ProcessFunc func(lookup.Request) lookup.Response

// Options configures a Pool.
type Options struct {
	// Workers is the number of worker goroutines. Zero means GOMAXPROCS.
	Workers int
	// QueueSize bounds pending jobs. Zero means 4 * Workers.
	QueueSize int
	// Process overrides the lookup function. Nil means lookup.Process.
	Process ProcessFunc
}

type job struct {
	id  string
	req lookup.Request
}

type result struct {
	id   string
	resp lookup.Response
}

// Pool is a fixed-size lookup worker pool.
type Pool struct {
	process ProcessFunc

	jobs    chan job
	results chan result

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.Mutex
	pending map[string]chan lookup.Response

	closeOnce sync.Once
	closeErr  error
}

// NewPool starts the workers and the result dispatcher.
func NewPool(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4 * opts.Workers
	}
	if opts.Process == nil {
		opts.Process = lookup.Process
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	p := &Pool{
		process: opts.Process,
		jobs:    make(chan job, opts.QueueSize),
		results: make(chan result, opts.Workers),
		ctx:     gctx,
		cancel:  cancel,
		group:   group,
		pending: make(map[string]chan lookup.Response),
	}

	for i := 0; i < opts.Workers; i++ {
		group.Go(p.work)
	}
	group.Go(p.dispatch)

	appLog.Debug("lookup worker pool started", "workers", opts.Workers, "queue", opts.QueueSize)
	return p
}

func (p *Pool) work() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case j := <-p.jobs:
			resp := p.process(j.req)
			select {
			case p.results <- result{id: j.id, resp: resp}:
			case <-p.ctx.Done():
				return nil
			}
		}
	}
}

func (p *Pool) dispatch() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case r := <-p.results:
			p.mu.Lock()
			ch, ok := p.pending[r.id]
			delete(p.pending, r.id)
			p.mu.Unlock()
			if !ok {
				// Caller gave up; drop the reply.
				continue
			}
			ch <- r.resp
		}
	}
}

// Submit enqueues req and returns its correlation ID and a channel that
// receives exactly one response unless the request is abandoned.
func (p *Pool) Submit(ctx context.Context, req lookup.Request) (string, <-chan lookup.Response, error) {
	if p.ctx.Err() != nil {
		return "", nil, ErrClosed
	}

	id := uuid.NewString()
	ch := make(chan lookup.Response, 1)

	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()

	select {
	case p.jobs <- job{id: id, req: req}:
		return id, ch, nil
	case <-ctx.Done():
		p.forget(id)
		return "", nil, ctx.Err()
	case <-p.ctx.Done():
		p.forget(id)
		return "", nil, ErrClosed
	}
}

// Process submits req and waits for its response.
func (p *Pool) Process(ctx context.Context, req lookup.Request) (lookup.Response, error) {
	id, ch, err := p.Submit(ctx, req)
	if err != nil {
		return lookup.Response{}, err
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		p.forget(id)
		return lookup.Response{}, ctx.Err()
	case <-p.ctx.Done():
		p.forget(id)
		return lookup.Response{}, ErrClosed
	}
}

// HandleMessage is the wire boundary: it decodes a PROCESS_CALENDARS
// message, runs it on the pool and encodes the CALENDARS_PROCESSED reply.
// Undecodable messages are answered with an empty mapping.
func (p *Pool) HandleMessage(ctx context.Context, data []byte) ([]byte, error) {
	var req lookup.Request
	if err := json.Unmarshal(data, &req); err != nil {
		appLog.Debug("lookup message not decodable; answering empty", "err", err.Error())
		req = lookup.Request{}
	}
	resp, err := p.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// Pending returns the number of requests awaiting a reply.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Pool) forget(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// Close stops the workers and waits for them to exit. Queued requests that
// were not processed are abandoned.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.closeErr = p.group.Wait()
		appLog.Debug("lookup worker pool stopped")
	})
	return p.closeErr
}
