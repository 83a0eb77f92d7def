package schedule

import (
	"errors"
	"time"

	"journalcal/internal/model"
)

// MaxWindowDays bounds the span of a listing window.
const MaxWindowDays = 3 * 366

// ErrWindowTooLong is returned for a window spanning more than MaxWindowDays.
var ErrWindowTooLong = errors.New("schedule: window longer than the maximum")

// Day is one calendar date of a day list.
type Day struct {
	Date    string `json:"date"` // YYYY-MM-DD in the display timezone
	Weekday string `json:"weekday"`
	// WeekStart marks the configured first day of a week.
	WeekStart   bool               `json:"week_start,omitempty"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// CheckWindow rejects inverted windows and windows longer than
// MaxWindowDays.
func CheckWindow(windowStart, windowEnd time.Time) error {
	if windowEnd.Before(windowStart) {
		return errors.New("schedule: window end is before window start")
	}
	if windowEnd.Sub(windowStart) > MaxWindowDays*24*time.Hour {
		return ErrWindowTooLong
	}
	return nil
}

// Window returns the day-aligned list window around now: from midnight
// backfill days ago up to the last instant before midnight horizon days
// ahead.
func Window(now time.Time, backfillDays, horizonDays int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	today := midnight(now.In(loc), loc)
	start := today.AddDate(0, 0, -backfillDays)
	end := today.AddDate(0, 0, horizonDays).Add(-time.Nanosecond)
	return start, end
}

// GroupByDay buckets sorted occurrences by the local dates they touch
// between windowStart and windowEnd. A multi-day occurrence appears on every
// day it covers; an end at exactly midnight does not spill into that day.
// Days without occurrences are included so the list has no gaps.
func GroupByDay(occs []model.Occurrence, windowStart, windowEnd time.Time, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}
	first := midnight(windowStart.In(loc), loc)
	last := midnight(windowEnd.In(loc), loc)
	if last.Before(first) {
		return nil
	}
	if limit := first.AddDate(0, 0, MaxWindowDays); last.After(limit) {
		last = limit
	}

	var days []Day
	index := make(map[string]int)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		index[key] = len(days)
		days = append(days, Day{
			Date:        key,
			Weekday:     d.Weekday().String(),
			Occurrences: make([]model.Occurrence, 0),
		})
	}

	for _, o := range occs {
		start := o.Start.In(loc)
		end := o.End.In(loc)

		lastDay := midnight(end, loc)
		if end.After(start) && end.Equal(lastDay) {
			lastDay = lastDay.AddDate(0, 0, -1)
		}
		for d := midnight(start, loc); !d.After(lastDay); d = d.AddDate(0, 0, 1) {
			if i, ok := index[d.Format(time.DateOnly)]; ok {
				days[i].Occurrences = append(days[i].Occurrences, o)
			}
		}
	}
	return days
}

// MarkWeekStarts flags every day that falls on first.
func MarkWeekStarts(days []Day, first time.Weekday) {
	for i := range days {
		d, err := time.Parse(time.DateOnly, days[i].Date)
		if err != nil {
			continue
		}
		days[i].WeekStart = d.Weekday() == first
	}
}
