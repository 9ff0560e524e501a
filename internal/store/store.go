// Package store holds the plan and holiday calendars currently served.
//
// A Store is refreshed from the plan file and the configured holiday feeds,
// typically on a cron schedule. Readers get immutable snapshots; a refresh
// swaps them atomically.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"plantime/internal/config"
	"plantime/internal/ics"
	appLog "plantime/internal/log"
	"plantime/internal/model"
	"plantime/internal/plan"
)

// Fetcher downloads holiday feeds.
type Fetcher interface {
	FetchAll(ctx context.Context, feeds []ics.Feed) ([]ics.FetchResult, []error)
}

// Store is safe for concurrent use.
type Store struct {
	cfg     *config.Config
	fetcher Fetcher
	now     func() time.Time

	mu        sync.RWMutex
	plan      *plan.Plan
	feeds     []model.Calendar
	version   uint64
	updatedAt time.Time
}

// New returns an empty store. Call Refresh to load data.
func New(cfg *config.Config, fetcher Fetcher) *Store {
	return &Store{
		cfg:     cfg,
		fetcher: fetcher,
		now:     time.Now,
		plan:    &plan.Plan{},
	}
}

// Refresh reloads the plan file and the holiday feeds. Feeds that fail keep
// their previous calendar. The plan is replaced only if it loads; the
// returned error joins every failure.
func (s *Store) Refresh(ctx context.Context) error {
	var errs []error

	p, err := plan.Load(s.cfg.PlanPath)
	if err != nil {
		errs = append(errs, err)
	} else if verr := p.Validate(s.cfg.Location()); verr != nil {
		// Invalid phases are still served; the layout reports them.
		appLog.Info("plan has invalid phases", "path", s.cfg.PlanPath, "err", verr.Error())
	}

	feeds := s.cfg.Feeds()
	var fetched []model.Calendar
	if len(feeds) > 0 && s.fetcher != nil {
		results, fetchErrs := s.fetcher.FetchAll(ctx, feeds)
		errs = append(errs, fetchErrs...)
		opts := s.parseOptions()
		for _, res := range results {
			cal, err := ics.ParseCalendar(res.Feed, res.Body, opts)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			fetched = append(fetched, cal)
		}
	}

	s.mu.Lock()
	if p != nil {
		s.plan = p
	}
	s.feeds = mergeFeeds(s.feeds, fetched, feeds)
	s.version++
	s.updatedAt = s.now()
	version := s.version
	s.mu.Unlock()

	appLog.Info("store refreshed", "version", version, "feeds", len(fetched), "errors", len(errs))
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("store: refresh: %w", err)
	}
	return nil
}

// SetPlan replaces the plan without touching the feeds.
func (s *Store) SetPlan(p *plan.Plan) {
	if p == nil {
		p = &plan.Plan{}
	}
	s.mu.Lock()
	s.plan = p
	s.version++
	s.updatedAt = s.now()
	s.mu.Unlock()
}

// Plan returns the current plan. Callers must not modify it.
func (s *Store) Plan() *plan.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// Calendars returns the plan's inline calendars followed by the feed
// calendars, in configuration order.
func (s *Store) Calendars() []model.Calendar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Calendar, 0, len(s.plan.Calendars)+len(s.feeds))
	out = append(out, s.plan.Calendars...)
	return append(out, s.feeds...)
}

// Calendar looks a calendar up by ID.
func (s *Store) Calendar(id string) (model.Calendar, bool) {
	for _, c := range s.Calendars() {
		if c.ID == id {
			return c, true
		}
	}
	return model.Calendar{}, false
}

// Version increases on every Refresh and SetPlan.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// UpdatedAt is the time of the last refresh.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// parseOptions bounds feed expansion to the configured range widened by a
// year on each side so scrolling past the edges still finds holidays.
func (s *Store) parseOptions() ics.ParseOptions {
	start, end := s.cfg.Range(s.now())
	return ics.ParseOptions{
		Location:   s.cfg.Location(),
		RangeStart: start.AddDate(-1, 0, 0),
		RangeEnd:   end.AddDate(1, 0, 0),
	}
}

// mergeFeeds orders calendars like the configured feeds, using a fresh
// calendar when one was fetched and the previous one otherwise.
func mergeFeeds(prev, fresh []model.Calendar, feeds []ics.Feed) []model.Calendar {
	byID := make(map[string]model.Calendar, len(prev)+len(fresh))
	for _, c := range prev {
		byID[c.ID] = c
	}
	for _, c := range fresh {
		byID[c.ID] = c
	}
	out := make([]model.Calendar, 0, len(feeds))
	for _, f := range feeds {
		if c, ok := byID[f.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}
