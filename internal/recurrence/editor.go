package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Delta is one user edit to a rule. Deltas are applied with Reduce.
type Delta interface {
	apply(Spec) Spec
}

// SetFrequency switches the cadence; see Spec.WithFrequency for the reset
// rules.
type SetFrequency struct{ Frequency Frequency }

// SetInterval changes "every n" units.
type SetInterval struct{ Interval int }

// ToggleWeekday flips one day of a weekly rule.
type ToggleWeekday struct{ Day Weekday }

// SetTermination replaces the end condition.
type SetTermination struct{ Termination Termination }

func (d SetFrequency) apply(s Spec) Spec   { return s.WithFrequency(d.Frequency) }
func (d SetInterval) apply(s Spec) Spec    { return s.WithInterval(d.Interval) }
func (d ToggleWeekday) apply(s Spec) Spec  { return s.ToggleWeekday(d.Day) }
func (d SetTermination) apply(s Spec) Spec { return s.WithTermination(d.Termination) }

// Reduce applies d to s and returns the new spec. A nil delta returns s.
func Reduce(s Spec, d Delta) Spec {
	if d == nil {
		return s
	}
	return d.apply(s)
}

// Edit is the round trip a form performs on every interaction: parse the
// current text, apply the edit, write the text back.
func Edit(text string, deltas ...Delta) string {
	s := Parse(text)
	for _, d := range deltas {
		s = Reduce(s, d)
	}
	return Serialize(s)
}

// Form end modes.
const (
	EndNever = "never"
	EndCount = "count"
	EndUntil = "until"
)

const formDateLayout = "2006-01-02"

// FormState is the flat view a recurrence form binds its controls to.
type FormState struct {
	Frequency string   `json:"frequency"`
	Interval  int      `json:"interval"`
	Weekdays  []string `json:"weekdays"`
	End       string   `json:"end"`
	Count     int      `json:"count,omitempty"`
	Until     string   `json:"until,omitempty"`
}

// Project renders s for the form. Frequency is "NONE" for a non-recurring
// spec.
func Project(s Spec) FormState {
	st := FormState{
		Frequency: "NONE",
		Interval:  s.Interval(),
		Weekdays:  []string{},
		End:       EndNever,
	}
	if s.Recurring() {
		st.Frequency = s.freq.String()
	}
	for _, d := range s.days.Days() {
		st.Weekdays = append(st.Weekdays, d.String())
	}
	switch s.term.Kind() {
	case ByCount:
		st.End = EndCount
		st.Count, _ = s.term.Count()
	case ByUntil:
		st.End = EndUntil
		date, _ := s.term.Until()
		st.Until = date.Format(formDateLayout)
	}
	return st
}

// ErrUnknownDelta is returned by DecodeDelta for an unrecognized type.
var ErrUnknownDelta = errors.New("recurrence: unknown delta type")

// DeltaRequest is the wire form of a Delta, as posted by a form.
//
//	{"type":"frequency","frequency":"WEEKLY"}
//	{"type":"interval","interval":2}
//	{"type":"weekday","weekday":"MO"}
//	{"type":"end","end":"count","count":5}
//	{"type":"end","end":"until","until":"2025-12-31"}
type DeltaRequest struct {
	Type      string `json:"type"`
	Frequency string `json:"frequency,omitempty"`
	Interval  int    `json:"interval,omitempty"`
	Weekday   string `json:"weekday,omitempty"`
	End       string `json:"end,omitempty"`
	Count     int    `json:"count,omitempty"`
	Until     string `json:"until,omitempty"`
}

// DecodeDelta turns a DeltaRequest into a Delta.
func DecodeDelta(req DeltaRequest) (Delta, error) {
	switch strings.ToLower(req.Type) {
	case "frequency":
		if strings.EqualFold(req.Frequency, "NONE") || req.Frequency == "" {
			return SetFrequency{Frequency: None}, nil
		}
		f, ok := ParseFrequency(req.Frequency)
		if !ok {
			return nil, fmt.Errorf("recurrence: unknown frequency %q", req.Frequency)
		}
		return SetFrequency{Frequency: f}, nil
	case "interval":
		if req.Interval > MaxInterval {
			return nil, fmt.Errorf("recurrence: interval %d above %d", req.Interval, MaxInterval)
		}
		return SetInterval{Interval: req.Interval}, nil
	case "weekday":
		d, ok := ParseWeekday(req.Weekday)
		if !ok {
			return nil, fmt.Errorf("recurrence: unknown weekday %q", req.Weekday)
		}
		return ToggleWeekday{Day: d}, nil
	case "end":
		switch strings.ToLower(req.End) {
		case EndNever, "":
			return SetTermination{Termination: Forever()}, nil
		case EndCount:
			return SetTermination{Termination: AfterCount(req.Count)}, nil
		case EndUntil:
			date, err := time.Parse(formDateLayout, req.Until)
			if err != nil {
				return nil, fmt.Errorf("recurrence: until date: %w", err)
			}
			return SetTermination{Termination: OnDate(date)}, nil
		}
		return nil, fmt.Errorf("recurrence: unknown end mode %q", req.End)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDelta, req.Type)
}
