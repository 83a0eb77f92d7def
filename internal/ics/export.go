package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"journalcal/internal/model"
	"journalcal/internal/recurrence"
)

const productService = "journalcal"

// Export renders events as a VCALENDAR named name, one VEVENT per event.
// Recurring events carry their canonical RRULE; rules that do not parse as
// recurring are left out.
func Export(events []model.Event, name string) string {
	return exportAt(events, name, time.Now())
}

func exportAt(events []model.Event, name string, stamp time.Time) string {
	cal := ical.NewCalendarFor(productService)
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}

		if ev.IsAllDay {
			ve.SetAllDayStartAt(ev.StartTime)
			end := ev.StartTime.AddDate(0, 0, 1)
			if ev.EndTime != nil && ev.EndTime.After(ev.StartTime) {
				end = *ev.EndTime
			}
			ve.SetAllDayEndAt(end)
		} else {
			ve.SetStartAt(ev.StartTime)
			if ev.EndTime != nil {
				ve.SetEndAt(*ev.EndTime)
			}
		}

		if spec := recurrence.Parse(ev.RRule); spec.Recurring() {
			ve.AddRrule(recurrence.Serialize(spec))
		}
	}

	return cal.Serialize()
}
