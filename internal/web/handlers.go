package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"plantime/internal/dates"
	"plantime/internal/ics"
	appLog "plantime/internal/log"
	"plantime/internal/model"
	"plantime/internal/plan"
	"plantime/internal/render"
	"plantime/internal/timeline"
	"plantime/internal/worker"
)

// layoutConfig reads the query parameters shared by the layout endpoints.
//
//	start, end      display range (YYYY-MM-DD), default from config
//	px_per_day      scale, default from config
//	scroll_left     scroll offset of the viewport in pixels
//	viewport_width  viewport width in pixels, 0 = whole range
func (s *Server) layoutConfig(q url.Values) (timeline.Config, error) {
	loc := s.cfg.Location()
	start, end := s.cfg.Range(s.now())

	if v := q.Get("start"); v != "" {
		t, err := dates.ParseISODate(v, loc)
		if err != nil {
			return timeline.Config{}, fmt.Errorf("start: %w", err)
		}
		start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := dates.ParseISODate(v, loc)
		if err != nil {
			return timeline.Config{}, fmt.Errorf("end: %w", err)
		}
		end = t
	}

	return timeline.Config{
		Start:         start,
		End:           end,
		PxPerDay:      parseFloatDefault(q.Get("px_per_day"), s.cfg.PxPerDay),
		WeekStart:     s.cfg.Weekday(),
		Today:         s.now(),
		Location:      loc,
		ScrollLeft:    parseFloatDefault(q.Get("scroll_left"), 0),
		ViewportWidth: parseFloatDefault(q.Get("viewport_width"), 0),
		Overscan:      s.cfg.OverscanDays,
	}, nil
}

// buildLayout lays out the current plan and resolves its calendar days on
// the worker pool.
func (s *Server) buildLayout(ctx context.Context, cfg timeline.Config) (timeline.Layout, error) {
	pl := s.source.Plan()
	l := timeline.Build(cfg, timeline.Input{Phases: pl.Phases, References: pl.References})
	if l.TotalDays == 0 {
		return l, nil
	}

	resp, err := s.pool.Process(ctx, l.LookupRequest(s.source.Calendars()))
	if err != nil {
		return l, err
	}
	l.CalendarDays = resp.CalendarDaysMap
	return l, nil
}

func (s *Server) layoutFromRequest(w http.ResponseWriter, r *http.Request) (timeline.Layout, bool) {
	cfg, err := s.layoutConfig(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return timeline.Layout{}, false
	}
	l, err := s.buildLayout(r.Context(), cfg)
	if err != nil {
		appLog.Error("calendar lookup failed", err, "path", r.URL.Path)
		writeError(w, lookupStatus(err), "calendar lookup unavailable")
		return timeline.Layout{}, false
	}
	if len(l.Rejected) > 0 {
		appLog.Debug("layout rejected phases", "count", len(l.Rejected))
	}
	return l, true
}

// handleLayout returns the computed layout as JSON.
//
// GET /api/layout?start=2025-01-01&end=2025-12-31&px_per_day=20
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	l, ok := s.layoutFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleCalendarDays exposes the lookup worker wire contract over HTTP.
// Malformed bodies get an empty mapping, like the in-process boundary.
func (s *Server) handleCalendarDays(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	out, err := s.pool.HandleMessage(r.Context(), body)
	if err != nil {
		appLog.Error("calendar-days request failed", err)
		writeError(w, lookupStatus(err), "calendar lookup unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(out)
}

// handleCalendarExport serves a calendar as ICS.
//
// GET /api/calendars/{id}.ics
func (s *Server) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(r.PathValue("file"), ".ics")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	cal, found := s.source.Calendar(id)
	if !found {
		writeError(w, http.StatusNotFound, "calendar not found")
		return
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, cal, s.now()); err != nil {
		appLog.Error("ics export failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, id))
	_, _ = w.Write(buf.Bytes())
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	Days  int    `json:"days,omitempty"`
	Field string `json:"field,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleValidatePhase checks a phase's date range for an editing client.
//
// POST /api/phases/validate  {"id":"dev","startDate":"2025-03-10","endDate":"2025-03-15"}
func (s *Server) handleValidatePhase(w http.ResponseWriter, r *http.Request) {
	var ph model.PlanPhase
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ph); err != nil {
		writeError(w, http.StatusBadRequest, "invalid phase JSON")
		return
	}

	rng, err := plan.ValidatePhase(ph, s.cfg.Location())
	var verr *plan.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, validateResponse{Valid: true, Days: dates.DaysBetween(rng.Start, rng.End) + 1})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validateResponse{Field: verr.Field, Error: verr.Reason})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleTimelineSVG renders the timeline as SVG. Responses are cached
// briefly per query and data version.
func (s *Server) handleTimelineSVG(w http.ResponseWriter, r *http.Request) {
	key := fmt.Sprintf("svg|%d|%s|%s", s.source.Version(), s.now().In(s.cfg.Location()).Format(dates.ISOLayout), r.URL.RawQuery)
	if body, ok := s.svgCache.get(key); ok {
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(body)
		return
	}

	l, ok := s.layoutFromRequest(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.SVG(&buf, l, s.title(), render.DefaultStyle()); err != nil {
		appLog.Error("svg render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render timeline")
		return
	}
	s.svgCache.put(key, buf.Bytes())

	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(buf.Bytes())
}

// handleTimelinePage renders the HTML page the snapshot command captures.
func (s *Server) handleTimelinePage(w http.ResponseWriter, r *http.Request) {
	l, ok := s.layoutFromRequest(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.Page(&buf, l, s.title(), render.DefaultStyle()); err != nil {
		appLog.Error("page render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render timeline")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) title() string {
	if name := s.source.Plan().Name; name != "" {
		return name
	}
	return "Release timeline"
}

func lookupStatus(err error) int {
	switch {
	case errors.Is(err, worker.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func parseFloatDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
