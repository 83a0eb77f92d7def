package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	appLog "journalcal/internal/log"
	"journalcal/internal/model"
	"journalcal/internal/schedule"
	"journalcal/internal/store"
)

const (
	eventsCacheTTL = 30 * time.Second
	// maxCachedWindows bounds the number of distinct windows kept at once.
	maxCachedWindows = 16
)

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Occurrences     []model.Occurrence `json:"occurrences"`
	Days            []schedule.Day     `json:"days"`
	FailedIDs       []string           `json:"failed_ids,omitempty"`
	TruncatedIDs    []string           `json:"truncated_ids,omitempty"`
	RangeStart      time.Time          `json:"range_start"`
	RangeEnd        time.Time          `json:"range_end"`
	DisplayTimeZone string             `json:"display_timezone"`
	WeekStart       string             `json:"week_start"`
}

// eventsCache holds a cached /api/events response and its timestamp.
type eventsCache struct {
	resp      eventsResponse
	updatedAt time.Time
}

// handleEvents returns expanded occurrences of the stored events.
//
// GET /api/events?days=7&backfill=1
// GET /api/events?from=2024-01-01&to=2024-01-31
//   - days:     앞으로 몇 일을 볼 것인지 (기본 config.HorizonDays)
//   - backfill: 과거 몇 일을 포함할지 (기본 config.BackfillDays)
//   - from/to:  명시적 범위 (YYYY-MM-DD 또는 RFC3339); days/backfill 보다 우선
//
// 범위는 schedule.MaxWindowDays 를 넘을 수 없다 (400).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now().In(s.loc)

	rangeStart, rangeEnd, err := s.eventsWindow(now, q.Get("from"), q.Get("to"), q.Get("days"), q.Get("backfill"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := rangeStart.Format(time.RFC3339Nano) + "|" + rangeEnd.Format(time.RFC3339Nano)
	s.eventsMu.RLock()
	ec := s.eventsCache[key]
	s.eventsMu.RUnlock()
	if ec != nil && now.Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	appLog.Debug("api events request",
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
		"timezone", s.loc.String(),
	)

	res, err := schedule.List(s.store.Events(), rangeStart, rangeEnd, schedule.Options{
		Location:               s.loc,
		MaxOccurrencesPerEvent: s.cfg.MaxOccurrencesPerEvent,
	})
	if err != nil {
		appLog.Error("api events: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	days := schedule.GroupByDay(res.Occurrences, rangeStart, rangeEnd, s.loc)
	schedule.MarkWeekStarts(days, s.cfg.FirstWeekday())

	resp := eventsResponse{
		Occurrences:     res.Occurrences,
		Days:            days,
		FailedIDs:       res.Failed,
		TruncatedIDs:    res.Truncated,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: s.loc.String(),
		WeekStart:       s.cfg.WeekStart,
	}

	s.eventsMu.Lock()
	for k, c := range s.eventsCache {
		if now.Sub(c.updatedAt) >= eventsCacheTTL {
			delete(s.eventsCache, k)
		}
	}
	if len(s.eventsCache) >= maxCachedWindows {
		clear(s.eventsCache)
	}
	s.eventsCache[key] = &eventsCache{resp: resp, updatedAt: now}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) eventsWindow(now time.Time, from, to, days, backfill string) (time.Time, time.Time, error) {
	if from == "" && to == "" {
		d := parseIntDefault(days, s.cfg.HorizonDays)
		if d <= 0 {
			d = s.cfg.HorizonDays
		}
		b := parseIntDefault(backfill, s.cfg.BackfillDays)
		if b < 0 {
			b = 0
		}
		if d+b > schedule.MaxWindowDays || d > schedule.MaxWindowDays || b > schedule.MaxWindowDays {
			return time.Time{}, time.Time{}, fmt.Errorf("days + backfill must not exceed %d", schedule.MaxWindowDays)
		}
		start, end := schedule.Window(now, b, d, s.loc)
		return start, end, nil
	}

	start, err := parseWhen(from, s.loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
	}
	end, err := parseWhen(to, s.loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("to is before from")
	}
	if err := schedule.CheckWindow(start, end); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("range longer than %d days", schedule.MaxWindowDays)
	}
	return start, end, nil
}

// parseWhen accepts YYYY-MM-DD (start of day, or its last instant when
// endOfDay is set) or an RFC 3339 timestamp.
func parseWhen(v string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("missing value")
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, loc); err == nil {
		if endOfDay {
			return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// handlePutEvent creates or replaces an event.
//
// POST /api/events  {id?, title, startTime, endTime?, isAllDay, rrule?}
func (s *Server) handlePutEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	saved, err := s.store.Put(ev)
	if err != nil {
		appLog.Error("api events: put failed", err, "id", ev.ID)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Invalidate()

	appLog.Info("event saved", "id", saved.ID, "rrule", saved.RRule)
	writeJSON(w, http.StatusOK, saved)
}

// handleDeleteEvent removes an event by id.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		appLog.Error("api events: delete failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	s.Invalidate()

	appLog.Info("event deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
