package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "journalcal/internal/log"
	"journalcal/internal/model"
	"journalcal/internal/recurrence"
)

// ErrEmptyCalendar is returned for an empty payload.
var ErrEmptyCalendar = errors.New("ics: empty calendar body")

// Import parses an ICS payload into schedule events.
//
//   - TZID handling is left to the underlying library, so timed events carry
//     their proper Location.
//   - All-day events are detected from VALUE=DATE or a date-only DTSTART.
//   - RRULE is kept in canonical form; unsupported parts are dropped and
//     logged at debug level.
//   - Overridden instances (RECURRENCE-ID) are skipped; the series they
//     belong to is imported once.
//
// A VEVENT that cannot be read is logged and skipped.
func Import(body []byte) ([]model.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyCalendar
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics import: parse failed", err)
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
			continue
		}
		ev, err := eventFromVEvent(ve)
		if err != nil {
			appLog.Error("ics import: vevent skipped", err, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics import completed", "event_count", len(events))
	return events, nil
}

func eventFromVEvent(ve *ical.VEvent) (model.Event, error) {
	ev := model.Event{
		ID:          propValue(ve, ical.ComponentPropertyUniqueId),
		Title:       propValue(ve, ical.ComponentPropertySummary),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		Location:    propValue(ve, ical.ComponentPropertyLocation),
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtstart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.IsAllDay = isDateValue(dtstart)

	var (
		start time.Time
		err   error
	)
	if ev.IsAllDay {
		start, err = ve.GetAllDayStartAt()
	} else {
		start, err = ve.GetStartAt()
	}
	if err != nil {
		return ev, err
	}
	ev.StartTime = start

	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		var end time.Time
		if ev.IsAllDay {
			end, err = ve.GetAllDayEndAt()
		} else {
			end, err = ve.GetEndAt()
		}
		if err == nil && !end.Before(start) {
			ev.EndTime = &end
		}
	}

	if raw := propValue(ve, ical.ComponentPropertyRrule); raw != "" {
		spec, warns := recurrence.ParseWithWarnings(raw)
		for _, w := range warns {
			appLog.Debug("ics import: rrule component ignored", "uid", ev.ID, "warning", w.Error())
		}
		ev.RRule = recurrence.Serialize(spec)
	}

	return ev, nil
}

// isDateValue reports whether a DTSTART holds a DATE rather than DATE-TIME.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}
