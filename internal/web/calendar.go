package web

import (
	"net/http"

	"journalcal/internal/ics"
)

// handleCalendar exports the stored events as an iCalendar feed so other
// calendar apps can subscribe to them.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "journalcal"
	}
	body := ics.Export(s.store.Events(), name)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
