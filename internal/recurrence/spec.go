// Package recurrence models the subset of RFC 5545 recurrence rules used by
// schedule events: FREQ, INTERVAL, BYDAY, COUNT and UNTIL.
//
// A rule travels as text between the backend and the UI. This package parses
// that text into a Spec, writes it back in a canonical form, summarizes it for
// display and expands it into concrete occurrences inside a query window.
// Everything here is pure: no I/O, no shared state.
package recurrence

import (
	"strings"
	"time"
)

// Frequency is the recurrence cadence. The zero value means "does not recur".
type Frequency int

const (
	None Frequency = iota
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyTokens = map[Frequency]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

// String returns the FREQ token, or "" for None.
func (f Frequency) String() string {
	return frequencyTokens[f]
}

// ParseFrequency maps a FREQ token (case-insensitive) to a Frequency.
func ParseFrequency(token string) (Frequency, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	for f, t := range frequencyTokens {
		if t == token {
			return f, true
		}
	}
	return None, false
}

// Weekday indexes days Monday-first, matching BYDAY canonical order.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayTokens = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

func (d Weekday) valid() bool {
	return d >= Monday && d <= Sunday
}

// String returns the two-letter BYDAY token.
func (d Weekday) String() string {
	if !d.valid() {
		return ""
	}
	return weekdayTokens[d]
}

// ParseWeekday maps a two-letter BYDAY token (case-insensitive).
func ParseWeekday(token string) (Weekday, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	for i, t := range weekdayTokens {
		if t == token {
			return Weekday(i), true
		}
	}
	return 0, false
}

// WeekdayOf converts a time.Weekday (Sunday = 0) to a Weekday (Monday = 0).
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// WeekdaySet is a set of weekdays. Iteration order is always Monday-first,
// so any rendering of the set is canonical.
type WeekdaySet uint8

// Weekdays builds a set from the given days, ignoring invalid values.
func Weekdays(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) Has(d Weekday) bool {
	return d.valid() && s&(1<<uint(d)) != 0
}

func (s WeekdaySet) With(d Weekday) WeekdaySet {
	if !d.valid() {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Without(d Weekday) WeekdaySet {
	if !d.valid() {
		return s
	}
	return s &^ (1 << uint(d))
}

func (s WeekdaySet) Toggle(d Weekday) WeekdaySet {
	if s.Has(d) {
		return s.Without(d)
	}
	return s.With(d)
}

func (s WeekdaySet) Empty() bool {
	return s&0x7f == 0
}

// Days lists the members in Monday-first order.
func (s WeekdaySet) Days() []Weekday {
	var out []Weekday
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// String renders the set as a BYDAY value, e.g. "MO,FR,SU".
func (s WeekdaySet) String() string {
	days := s.Days()
	tokens := make([]string, len(days))
	for i, d := range days {
		tokens[i] = d.String()
	}
	return strings.Join(tokens, ",")
}

// TerminationKind discriminates Termination.
type TerminationKind int

const (
	Never TerminationKind = iota
	ByCount
	ByUntil
)

func (k TerminationKind) String() string {
	switch k {
	case ByCount:
		return "count"
	case ByUntil:
		return "until"
	default:
		return "never"
	}
}

// Termination says when a recurrence stops: never, after n occurrences, or at
// the end of a calendar date. Exactly one variant is active; the zero value
// is Never.
type Termination struct {
	kind  TerminationKind
	count int
	until time.Time
}

// Forever is the Never termination.
func Forever() Termination {
	return Termination{}
}

// AfterCount stops after n occurrences. n < 1 yields Forever.
func AfterCount(n int) Termination {
	if n < 1 {
		return Forever()
	}
	return Termination{kind: ByCount, count: n}
}

// OnDate stops at the end of the calendar date of t (its year, month and day
// as seen in t's location). A zero t yields Forever.
func OnDate(t time.Time) Termination {
	if t.IsZero() {
		return Forever()
	}
	return Termination{kind: ByUntil, until: dateOf(t)}
}

func (t Termination) Kind() TerminationKind {
	return t.kind
}

// Count returns n for a ByCount termination.
func (t Termination) Count() (int, bool) {
	return t.count, t.kind == ByCount
}

// Until returns the date (UTC midnight) for a ByUntil termination.
func (t Termination) Until() (time.Time, bool) {
	return t.until, t.kind == ByUntil
}

// Equal reports whether both terminations are the same variant and value.
func (t Termination) Equal(o Termination) bool {
	return t.kind == o.kind && t.count == o.count && t.until.Equal(o.until)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// endOfDay is the inclusive last second of date in UTC.
func endOfDay(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

// Spec is a parsed recurrence rule. Values are immutable; use New or the
// With* methods to derive new ones. The zero Spec does not recur.
type Spec struct {
	freq     Frequency
	interval int
	days     WeekdaySet
	term     Termination
}

// New builds a Spec, normalizing it: an unknown or None frequency yields the
// zero Spec, interval < 1 becomes 1, and weekdays are dropped unless freq is
// Weekly.
func New(freq Frequency, interval int, days WeekdaySet, term Termination) Spec {
	if _, ok := frequencyTokens[freq]; !ok {
		return Spec{}
	}
	if interval < 1 {
		interval = 1
	}
	if freq != Weekly {
		days = 0
	}
	return Spec{freq: freq, interval: interval, days: days & 0x7f, term: term}
}

func (s Spec) Frequency() Frequency {
	return s.freq
}

// Interval is at least 1, also for the zero Spec.
func (s Spec) Interval() int {
	if s.interval < 1 {
		return 1
	}
	return s.interval
}

func (s Spec) Weekdays() WeekdaySet {
	return s.days
}

func (s Spec) Termination() Termination {
	return s.term
}

// Recurring reports whether the spec has a frequency.
func (s Spec) Recurring() bool {
	return s.freq != None
}

// Equal compares specs semantically.
func (s Spec) Equal(o Spec) bool {
	return s.freq == o.freq &&
		s.Interval() == o.Interval() &&
		s.days == o.days &&
		s.term.Equal(o.term)
}

// WithFrequency switches the cadence. The interval is reset to 1 and the
// weekday set survives only if the new frequency is Weekly.
func (s Spec) WithFrequency(f Frequency) Spec {
	days := WeekdaySet(0)
	if f == Weekly {
		days = s.days
	}
	return New(f, 1, days, s.term)
}

func (s Spec) WithInterval(n int) Spec {
	return New(s.freq, n, s.days, s.term)
}

// ToggleWeekday adds or removes d. It is a no-op unless the spec is Weekly.
func (s Spec) ToggleWeekday(d Weekday) Spec {
	return New(s.freq, s.interval, s.days.Toggle(d), s.term)
}

func (s Spec) WithWeekdays(days WeekdaySet) Spec {
	return New(s.freq, s.interval, days, s.term)
}

func (s Spec) WithTermination(t Termination) Spec {
	return New(s.freq, s.interval, s.days, t)
}

// String returns the canonical rule text.
func (s Spec) String() string {
	return Serialize(s)
}
