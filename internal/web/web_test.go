package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalcal/internal/config"
	"journalcal/internal/model"
	"journalcal/internal/store"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *store.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Locale = "en"
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "events.yaml"))
	require.NoError(t, err)

	s := NewServer(cfg, st)
	s.now = func() time.Time { return time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC) }
	return s, st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "pw"}
	})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("me", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEvents_ListAndCache(t *testing.T) {
	s, st := newTestServer(t, nil)
	h := s.Handler()

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	_, err := st.Put(model.Event{ID: "gym", Title: "Gym", StartTime: start, EndTime: &end, RRule: "FREQ=WEEKLY;BYDAY=MO,TH"})
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/events?from=2024-01-01&to=2024-01-07", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[eventsResponse](t, rec)
	require.Len(t, resp.Occurrences, 2)
	assert.Equal(t, "gym", resp.Occurrences[0].EventID)
	assert.Len(t, resp.Days, 7)
	assert.Len(t, resp.Days[3].Occurrences, 1)
	assert.Equal(t, "UTC", resp.DisplayTimeZone)

	// Written through the API: the cache must not hide it.
	rec = do(t, h, http.MethodPost, "/api/events", `{"title":"Trip","startTime":"2024-01-05T00:00:00Z","isAllDay":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decode[model.Event](t, rec)
	assert.NotEmpty(t, saved.ID)

	rec = do(t, h, http.MethodGet, "/api/events?from=2024-01-01&to=2024-01-07", "")
	resp = decode[eventsResponse](t, rec)
	assert.Len(t, resp.Occurrences, 3)

	// Changed behind the server's back: served from cache until invalidated.
	_, err = st.Put(model.Event{ID: "late", Title: "Late", StartTime: start.Add(time.Hour)})
	require.NoError(t, err)
	resp = decode[eventsResponse](t, do(t, h, http.MethodGet, "/api/events?from=2024-01-01&to=2024-01-07", ""))
	assert.Len(t, resp.Occurrences, 3)
	s.Invalidate()
	resp = decode[eventsResponse](t, do(t, h, http.MethodGet, "/api/events?from=2024-01-01&to=2024-01-07", ""))
	assert.Len(t, resp.Occurrences, 4)
}

func TestEvents_DefaultWindow(t *testing.T) {
	s, _ := newTestServer(t, nil)

	resp := decode[eventsResponse](t, do(t, s.Handler(), http.MethodGet, "/api/events?days=3&backfill=1", ""))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), resp.RangeStart)
	assert.Len(t, resp.Days, 4)
	assert.Empty(t, resp.Occurrences)
	assert.Equal(t, "monday", resp.WeekStart)
}

func TestEvents_BadWindow(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/events?from=2024-01-05&to=2024-01-01", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/events?from=yesterday&to=2024-01-01", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/events?from=1000-01-01&to=9999-12-31", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/events?days=2000000000", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/events?days=7&backfill=9223372036854775807", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/events?from=2024-01-01&to=2026-12-31", "").Code)
}

func TestEvents_CacheIsBounded(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	for i := 1; i <= 3*maxCachedWindows; i++ {
		require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, fmt.Sprintf("/api/events?days=%d", i), "").Code)
		s.eventsMu.RLock()
		n := len(s.eventsCache)
		s.eventsMu.RUnlock()
		require.LessOrEqual(t, n, maxCachedWindows)
	}

	// Expired entries are dropped on the next write.
	now := s.now()
	s.now = func() time.Time { return now.Add(eventsCacheTTL) }
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/events?from=2024-03-01&to=2024-03-02", "").Code)
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	assert.Len(t, s.eventsCache, 1)
}

func TestEvents_WeekStart(t *testing.T) {
	// 2024-01-01 is a Monday.
	s, _ := newTestServer(t, nil)
	resp := decode[eventsResponse](t, do(t, s.Handler(), http.MethodGet, "/api/events?from=2024-01-01&to=2024-01-14", ""))
	require.Len(t, resp.Days, 14)
	assert.True(t, resp.Days[0].WeekStart)
	assert.False(t, resp.Days[6].WeekStart)
	assert.True(t, resp.Days[7].WeekStart)

	s, _ = newTestServer(t, func(c *config.Config) { c.WeekStart = "sunday" })
	resp = decode[eventsResponse](t, do(t, s.Handler(), http.MethodGet, "/api/events?from=2024-01-01&to=2024-01-14", ""))
	assert.False(t, resp.Days[0].WeekStart)
	assert.True(t, resp.Days[6].WeekStart)
	assert.Equal(t, "sunday", resp.WeekStart)
}

func TestEvents_FailedEventIsReported(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.store = stubStore{events: []model.Event{
		{ID: "broken", RRule: "FREQ=DAILY"},
		{ID: "fine", StartTime: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
	}}

	resp := decode[eventsResponse](t, do(t, s.Handler(), http.MethodGet, "/api/events?from=2024-01-01&to=2024-01-07", ""))
	assert.Equal(t, []string{"broken"}, resp.FailedIDs)
	require.Len(t, resp.Occurrences, 1)
	assert.Equal(t, "fine", resp.Occurrences[0].EventID)
}

func TestDeleteEvent(t *testing.T) {
	s, st := newTestServer(t, nil)
	h := s.Handler()
	_, err := st.Put(model.Event{ID: "x", StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/events/x", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/events/x", "").Code)
}

func TestRuleParse(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/api/rrule/parse", `{"rule":"freq=weekly;BYDAY=SU,XX;INTERVAL=2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ruleResponse](t, rec)
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=2;BYDAY=SU", resp.Rule)
	assert.True(t, resp.Recurring)
	assert.Equal(t, "every 2 weeks, Sun", resp.Summary)
	assert.Equal(t, []string{"SU"}, resp.Form.Weekdays)
	assert.Len(t, resp.Warnings, 1)

	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodPost, "/api/rrule/parse", `{`).Code)
}

func TestRuleEdit(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/rrule/edit", `{"rule":"FREQ=WEEKLY;BYDAY=MO","delta":{"type":"weekday","weekday":"WE"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ruleResponse](t, rec)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,WE", resp.Rule)
	assert.Equal(t, "every week, Mon, Wed", resp.Summary)

	rec = do(t, h, http.MethodPost, "/api/rrule/edit", `{"rule":"","deltas":[{"type":"frequency","frequency":"DAILY"},{"type":"end","end":"count","count":3}],"locale":"ko"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[ruleResponse](t, rec)
	assert.Equal(t, "FREQ=DAILY;COUNT=3", resp.Rule)
	assert.Equal(t, "매일, 3회", resp.Summary)
	assert.Equal(t, "count", resp.Form.End)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/rrule/edit", `{"rule":"FREQ=DAILY","delta":{"type":"bogus"}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/rrule/edit", `{"rule":"FREQ=DAILY"}`).Code)
}

func TestRuleSummary_Locale(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()
	target := "/api/rrule/summary?rule=" + url.QueryEscape("FREQ=MONTHLY;INTERVAL=6")

	body := decode[map[string]string](t, do(t, h, http.MethodGet, target, ""))
	assert.Equal(t, "every 6 months", body["summary"])

	body = decode[map[string]string](t, do(t, h, http.MethodGet, target+"&locale=ko", ""))
	assert.Equal(t, "6개월마다", body["summary"])

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body = decode[map[string]string](t, rec)
	assert.Equal(t, "6개월마다", body["summary"])
}

func TestRuleExpand(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/rrule/expand", `{
		"rule": "FREQ=DAILY;COUNT=10",
		"start": "2024-01-01T08:00:00Z",
		"end": "2024-01-01T09:00:00Z",
		"from": "2024-01-03T00:00:00Z",
		"to": "2024-01-05T23:59:59Z"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[expandResponse](t, rec)
	require.Len(t, resp.Occurrences, 3)
	assert.True(t, resp.Occurrences[0].Start.Equal(time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, resp.Occurrences[0].End.Sub(resp.Occurrences[0].Start))
	assert.False(t, resp.Truncated)
	assert.Empty(t, resp.Error)

	rec = do(t, h, http.MethodPost, "/api/rrule/expand", `{"rule":"FREQ=DAILY","start":"2024-01-01T00:00:00Z","from":"2024-01-01T00:00:00Z","to":"2024-12-31T00:00:00Z","max":5}`)
	resp = decode[expandResponse](t, rec)
	assert.Len(t, resp.Occurrences, 5)
	assert.True(t, resp.Truncated)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/rrule/expand", `{"rule":"FREQ=DAILY","from":"2024-01-01T00:00:00Z","to":"2024-01-02T00:00:00Z"}`).Code)
}

func TestCalendarExport(t *testing.T) {
	s, st := newTestServer(t, nil)
	_, err := st.Put(model.Event{ID: "gym", Title: "Gym", StartTime: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), RRule: "FREQ=WEEKLY;BYDAY=MO"})
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "UID:gym")
	assert.Contains(t, rec.Body.String(), "RRULE:FREQ=WEEKLY;BYDAY=MO")
}

type stubStore struct {
	events []model.Event
}

func (s stubStore) Events() []model.Event                   { return s.events }
func (s stubStore) Put(ev model.Event) (model.Event, error) { return ev, nil }
func (s stubStore) Delete(string) error                     { return store.ErrNotFound }
