package worker

import (
	"context"
	"sync"

	"plantime/internal/lookup"
)

// Session gives one consumer a single in-flight slot on a Pool. A new Do
// cancels the previous one, and a reply that arrives after being superseded
// is discarded, so the consumer only ever sees the latest answer.
type Session struct {
	pool *Pool

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewSession creates a session on p.
func (p *Pool) NewSession() *Session {
	return &Session{pool: p}
}

// Do runs req, superseding any request of this session still in flight.
func (s *Session) Do(ctx context.Context, req lookup.Request) (lookup.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	mine := s.seq
	s.cancel = cancel
	s.mu.Unlock()

	resp, err := s.pool.Process(ctx, req)

	s.mu.Lock()
	stale := mine != s.seq
	if !stale {
		s.cancel = nil
	}
	s.mu.Unlock()

	if stale {
		return lookup.Response{}, ErrSuperseded
	}
	return resp, err
}
