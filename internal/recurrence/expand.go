package recurrence

import (
	"fmt"
	"iter"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps a single expansion so that a very wide window on
// a dense rule cannot run away.
const DefaultMaxOccurrences = 5000

// Occurrence is one concrete instance of a recurring event.
type Occurrence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Expansion is the outcome of expanding one rule against one window.
type Expansion struct {
	Occurrences []Occurrence
	// Truncated is set when more occurrences matched than the cap allowed.
	Truncated bool
	// Err is the failure that was swallowed, if any. Occurrences is empty
	// whenever Err is set.
	Err error
}

// Expander adapts rrule-go to Spec values. The zero value is not usable; use
// NewExpander.
type Expander struct {
	// MaxOccurrences bounds the occurrences returned per call.
	MaxOccurrences int

	newIterator func(rrule.ROption) (rrule.Next, error)
}

// NewExpander returns an Expander with the given cap; limit <= 0 selects
// DefaultMaxOccurrences.
func NewExpander(limit int) *Expander {
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}
	return &Expander{
		MaxOccurrences: limit,
		newIterator:    libIterator,
	}
}

var defaultExpander = NewExpander(DefaultMaxOccurrences)

// Expand returns the occurrences of s whose start lies in the closed window
// [windowStart, windowEnd]. It never fails; see Expander.Run.
func Expand(s Spec, anchorStart time.Time, anchorEnd mo.Option[time.Time], windowStart, windowEnd time.Time) []Occurrence {
	return defaultExpander.Run(s, anchorStart, anchorEnd, windowStart, windowEnd).Occurrences
}

// TryExpand is Expand that also reports the error it swallowed.
func TryExpand(s Spec, anchorStart time.Time, anchorEnd mo.Option[time.Time], windowStart, windowEnd time.Time) ([]Occurrence, error) {
	res := defaultExpander.Run(s, anchorStart, anchorEnd, windowStart, windowEnd)
	return res.Occurrences, res.Err
}

// Occurrences is the lazy form of Expand.
func Occurrences(s Spec, anchorStart time.Time, anchorEnd mo.Option[time.Time], windowStart, windowEnd time.Time) iter.Seq[Occurrence] {
	return defaultExpander.Occurrences(s, anchorStart, anchorEnd, windowStart, windowEnd)
}

// Run expands s anchored at anchorStart into the window.
//
// A non-recurring spec yields the anchor itself when [anchorStart, anchorEnd]
// overlaps the window. A recurring spec yields every generated start inside
// the closed window, each lasting as long as the anchor (zero if anchorEnd is
// absent). Errors from the rule library, including panics, leave the result
// empty with Err set.
func (e *Expander) Run(s Spec, anchorStart time.Time, anchorEnd mo.Option[time.Time], windowStart, windowEnd time.Time) Expansion {
	var res Expansion
	truncated, err := e.walk(s, anchorStart, anchorEnd, windowStart, windowEnd, func(o Occurrence) bool {
		res.Occurrences = append(res.Occurrences, o)
		return true
	})
	if err != nil {
		return Expansion{Err: err}
	}
	res.Truncated = truncated
	return res
}

// Occurrences yields lazily. A failure midway simply ends the sequence.
func (e *Expander) Occurrences(s Spec, anchorStart time.Time, anchorEnd mo.Option[time.Time], windowStart, windowEnd time.Time) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		_, _ = e.walk(s, anchorStart, anchorEnd, windowStart, windowEnd, yield)
	}
}

func (e *Expander) walk(s Spec, anchorStart time.Time, anchorEnd mo.Option[time.Time], windowStart, windowEnd time.Time, yield func(Occurrence) bool) (bool, error) {
	if windowEnd.Before(windowStart) {
		return false, nil
	}

	var dur time.Duration
	if end, ok := anchorEnd.Get(); ok && end.After(anchorStart) {
		dur = end.Sub(anchorStart)
	}

	if !s.Recurring() {
		if anchorStart.IsZero() {
			return false, nil
		}
		end := anchorStart.Add(dur)
		if !anchorStart.After(windowEnd) && !end.Before(windowStart) {
			yield(Occurrence{Start: anchorStart, End: end})
		}
		return false, nil
	}

	opt, err := ExpansionOptions(s, anchorStart)
	if err != nil {
		return false, err
	}
	opt.Dtstart = fastForward(s, opt.Dtstart, windowStart)

	next, err := e.iterator(opt)
	if err != nil {
		return false, err
	}

	limit := e.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}

	n := 0
	for {
		start, ok, err := safeNext(next)
		if err != nil {
			return false, err
		}
		if !ok || start.After(windowEnd) {
			return false, nil
		}
		if start.Before(windowStart) {
			continue
		}
		if n >= limit {
			return true, nil
		}
		n++
		if !yield(Occurrence{Start: start, End: start.Add(dur)}) {
			return false, nil
		}
	}
}

func (e *Expander) iterator(opt rrule.ROption) (next rrule.Next, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recurrence: rule construction panicked: %v", r)
		}
	}()

	build := e.newIterator
	if build == nil {
		build = libIterator
	}
	next, err = build(opt)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}
	return next, nil
}

func libIterator(opt rrule.ROption) (rrule.Next, error) {
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, err
	}
	return rule.Iterator(), nil
}

func safeNext(next rrule.Next) (t time.Time, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recurrence: iteration panicked: %v", r)
		}
	}()
	t, ok = next()
	return t, ok, nil
}

// fastForward moves dtstart forward by whole periods so that iteration begins
// at the last aligned start at or before windowStart. Only Daily and Weekly
// rules without COUNT have fixed-length periods whose shift cannot change the
// generated set inside the window. The library repeats the wall clock of
// dtstart, so a shifted start whose clock differs from the anchor's (the
// anchor time does not exist on that day) is stepped back a period.
func fastForward(s Spec, dtstart, windowStart time.Time) time.Time {
	if s.term.Kind() == ByCount {
		return dtstart
	}

	var step int
	switch s.freq {
	case Daily:
		step = s.Interval()
	case Weekly:
		step = 7 * s.Interval()
	default:
		return dtstart
	}

	ws := windowStart.In(dtstart.Location())
	if !ws.After(dtstart) {
		return dtstart
	}

	periods := calendarDaysBetween(dtstart, ws) / step
	for periods > 0 {
		shifted := dtstart.AddDate(0, 0, periods*step)
		if !shifted.After(ws) && sameClock(shifted, dtstart) {
			return shifted
		}
		periods--
	}
	return dtstart
}

func sameClock(a, b time.Time) bool {
	ah, am, as := a.Clock()
	bh, bm, bs := b.Clock()
	return ah == bh && am == bm && as == bs && a.Nanosecond() == b.Nanosecond()
}

func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
