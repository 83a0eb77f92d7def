package recurrence

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"
)

var (
	// ErrNotRecurring is returned when expansion options are requested for a
	// spec without a frequency.
	ErrNotRecurring = errors.New("recurrence: spec does not recur")
	// ErrMissingAnchor is returned when no dtstart is supplied.
	ErrMissingAnchor = errors.New("recurrence: missing anchor start")
	// ErrIntervalTooLarge is returned for an interval above MaxInterval,
	// which the library's date arithmetic cannot handle.
	ErrIntervalTooLarge = errors.New("recurrence: interval too large")
)

// MaxInterval is the largest INTERVAL accepted; ten thousand years at
// yearly frequency.
const MaxInterval = 10000

var libFrequencies = map[Frequency]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

var libWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// ExpansionOptions converts s into rrule-go options anchored at dtstart.
// UNTIL becomes the inclusive last second of its date in UTC, the same
// instant Serialize writes.
func ExpansionOptions(s Spec, dtstart time.Time) (rrule.ROption, error) {
	if !s.Recurring() {
		return rrule.ROption{}, ErrNotRecurring
	}
	if dtstart.IsZero() {
		return rrule.ROption{}, ErrMissingAnchor
	}
	if s.Interval() > MaxInterval {
		return rrule.ROption{}, ErrIntervalTooLarge
	}

	opt := rrule.ROption{
		Freq:     libFrequencies[s.freq],
		Dtstart:  dtstart,
		Interval: s.Interval(),
	}
	for _, d := range s.days.Days() {
		opt.Byweekday = append(opt.Byweekday, libWeekdays[d])
	}
	if n, ok := s.term.Count(); ok {
		opt.Count = n
	}
	if date, ok := s.term.Until(); ok {
		opt.Until = endOfDay(date)
	}
	return opt, nil
}
