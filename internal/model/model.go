package model

import (
	"time"

	"github.com/samber/mo"
)

// Event is a schedule-event record as the backend stores it: an anchor
// start/end plus optional recurrence rule text.
type Event struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Location    string `yaml:"location,omitempty" json:"location,omitempty"`

	// StartTime is the anchor (first) occurrence.
	StartTime time.Time `yaml:"start_time" json:"startTime"`
	// EndTime is optional; without it occurrences are point events
	// (all-day events span the whole day regardless).
	EndTime *time.Time `yaml:"end_time,omitempty" json:"endTime,omitempty"`

	IsAllDay bool `yaml:"is_all_day" json:"isAllDay"`

	// RRule is the recurrence rule text; empty means non-recurring.
	RRule string `yaml:"rrule,omitempty" json:"rrule,omitempty"`
}

// End returns EndTime as an option.
func (e Event) End() mo.Option[time.Time] {
	if e.EndTime == nil {
		return mo.None[time.Time]()
	}
	return mo.Some(*e.EndTime)
}

// Occurrence is a single concrete instance of an Event after expansion,
// normalized into the display timezone.
type Occurrence struct {
	EventID string `json:"event_id"`
	// InstanceKey identifies one occurrence of a recurring event; it is the
	// RFC 3339 local start time.
	InstanceKey string `json:"instance_key"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	AllDay    bool `json:"all_day"`
	Recurring bool `json:"recurring"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
