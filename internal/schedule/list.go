// Package schedule turns stored schedule events into the concrete, sorted
// occurrences a calendar or day list displays for a time window.
package schedule

import (
	"sort"
	"time"

	"github.com/samber/mo"

	appLog "journalcal/internal/log"
	"journalcal/internal/model"
	"journalcal/internal/recurrence"
)

// Options controls how a list is built.
type Options struct {
	// Location is the display timezone. If nil, time.Local is used.
	Location *time.Location

	// MaxOccurrencesPerEvent caps expansion of a single event. If zero,
	// recurrence.DefaultMaxOccurrences is used.
	MaxOccurrencesPerEvent int
}

// Result holds the expanded occurrences plus the events that could not be
// fully shown.
type Result struct {
	Occurrences []model.Occurrence
	// Failed lists events whose recurrence could not be expanded; they are
	// missing from Occurrences.
	Failed []string
	// Truncated lists events that hit MaxOccurrencesPerEvent.
	Truncated []string
}

// List expands events into occurrences inside [windowStart, windowEnd]. The
// window must pass CheckWindow.
//
// A broken event never blanks the list: its failure is logged, recorded in
// Result.Failed and the remaining events are still expanded. All-day events
// are matched per calendar day, so an all-day occurrence is listed when its
// day intersects the window.
func List(events []model.Event, windowStart, windowEnd time.Time, opts Options) (Result, error) {
	var res Result

	if err := CheckWindow(windowStart, windowEnd); err != nil {
		return res, err
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	expander := recurrence.NewExpander(opts.MaxOccurrencesPerEvent)

	res.Occurrences = make([]model.Occurrence, 0)
	for _, ev := range events {
		spec, warns := recurrence.ParseWithWarnings(ev.RRule)
		for _, w := range warns {
			appLog.Debug("schedule: rrule component ignored", "event_id", ev.ID, "warning", w.Error())
		}

		var exp recurrence.Expansion
		if ev.IsAllDay {
			exp = expandAllDay(expander, ev, spec, windowStart, windowEnd, opts.Location)
		} else {
			exp = expander.Run(spec, ev.StartTime, ev.End(), windowStart, windowEnd)
		}

		if exp.Err != nil {
			appLog.Error("schedule: recurrence expansion failed, skipping event", exp.Err,
				"event_id", ev.ID,
				"rrule", ev.RRule,
			)
			res.Failed = append(res.Failed, ev.ID)
			continue
		}
		if exp.Truncated {
			appLog.Warn("schedule: occurrences truncated for event",
				"event_id", ev.ID,
				"cap", expander.MaxOccurrences,
			)
			res.Truncated = append(res.Truncated, ev.ID)
		}

		for _, o := range exp.Occurrences {
			res.Occurrences = append(res.Occurrences, makeOccurrence(ev, spec, o, opts.Location))
		}
	}

	sortOccurrences(res.Occurrences)
	return res, nil
}

// expandAllDay anchors the event at midnight of its own calendar date in loc
// and widens the window to whole days.
func expandAllDay(e *recurrence.Expander, ev model.Event, spec recurrence.Spec, windowStart, windowEnd time.Time, loc *time.Location) recurrence.Expansion {
	if ev.StartTime.IsZero() {
		return e.Run(spec, time.Time{}, mo.None[time.Time](), windowStart, windowEnd)
	}

	start := midnight(ev.StartTime, loc)
	end := start.AddDate(0, 0, 1)
	if ev.EndTime != nil {
		// All-day ends are exclusive dates; an end on the start date still
		// means one day.
		if last := midnight(*ev.EndTime, loc); last.After(start) {
			end = last
		}
	}

	ws := midnight(windowStart.In(loc), loc)
	return e.Run(spec, start, mo.Some(end), ws, windowEnd)
}

// midnight returns 00:00 in loc of t's own calendar date.
func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func makeOccurrence(ev model.Event, spec recurrence.Spec, o recurrence.Occurrence, loc *time.Location) model.Occurrence {
	start := o.Start.In(loc)
	end := o.End.In(loc)

	return model.Occurrence{
		EventID:     ev.ID,
		InstanceKey: start.Format(time.RFC3339Nano),
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.IsAllDay,
		Recurring:   spec.Recurring(),
		Start:       start,
		End:         end,
	}
}

// sortOccurrences orders by start; on equal starts all-day entries come
// first, then by title and event id for a stable listing.
func sortOccurrences(occs []model.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.EventID < b.EventID
	})
}
