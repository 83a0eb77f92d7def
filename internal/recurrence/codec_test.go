package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		freq     Frequency
		interval int
		days     []Weekday
		term     Termination
	}{
		{name: "empty", input: "", freq: None, interval: 1, term: Forever()},
		{name: "whitespace", input: "  \n ", freq: None, interval: 1, term: Forever()},
		{name: "garbage", input: "garbage;;;", freq: None, interval: 1, term: Forever()},
		{name: "unsupported freq", input: "FREQ=HOURLY;INTERVAL=2", freq: None, interval: 1, term: Forever()},
		{name: "daily", input: "FREQ=DAILY", freq: Daily, interval: 1, term: Forever()},
		{name: "lowercase keys and values", input: "freq=weekly;byday=mo,we", freq: Weekly, interval: 1, days: []Weekday{Monday, Wednesday}, term: Forever()},
		{name: "rrule prefix", input: "RRULE:FREQ=MONTHLY;INTERVAL=3", freq: Monthly, interval: 3, term: Forever()},
		{name: "lowercase prefix", input: "rrule:FREQ=YEARLY", freq: Yearly, interval: 1, term: Forever()},
		{
			name:     "dtstart line is ignored",
			input:    "DTSTART:20250101T090000Z\nRRULE:FREQ=DAILY;COUNT=3",
			freq:     Daily,
			interval: 1,
			term:     AfterCount(3),
		},
		{
			name:     "dtstart with tzid and crlf",
			input:    "DTSTART;TZID=Asia/Seoul:20250101T090000\r\nRRULE:FREQ=WEEKLY;BYDAY=FR",
			freq:     Weekly,
			interval: 1,
			days:     []Weekday{Friday},
			term:     Forever(),
		},
		{name: "interval zero", input: "FREQ=DAILY;INTERVAL=0", freq: Daily, interval: 1, term: Forever()},
		{name: "interval negative", input: "FREQ=DAILY;INTERVAL=-5", freq: Daily, interval: 1, term: Forever()},
		{name: "interval not numeric", input: "FREQ=DAILY;INTERVAL=two", freq: Daily, interval: 1, term: Forever()},
		{name: "interval too large", input: "FREQ=DAILY;INTERVAL=9223372036854775807", freq: Daily, interval: 1, term: Forever()},
		{name: "interval at limit", input: "FREQ=YEARLY;INTERVAL=10000", freq: Yearly, interval: 10000, term: Forever()},
		{name: "weekday canonical order", input: "FREQ=WEEKLY;BYDAY=SU,MO,FR", freq: Weekly, interval: 1, days: []Weekday{Monday, Friday, Sunday}, term: Forever()},
		{name: "unknown weekday dropped", input: "FREQ=WEEKLY;BYDAY=MO,XX,1TU", freq: Weekly, interval: 1, days: []Weekday{Monday}, term: Forever()},
		{name: "byday without weekly", input: "FREQ=DAILY;BYDAY=MO", freq: Daily, interval: 1, term: Forever()},
		{name: "count", input: "FREQ=DAILY;COUNT=10", freq: Daily, interval: 1, term: AfterCount(10)},
		{name: "count wins over until", input: "FREQ=DAILY;COUNT=5;UNTIL=20251231T235959Z", freq: Daily, interval: 1, term: AfterCount(5)},
		{name: "zero count lets until apply", input: "FREQ=DAILY;COUNT=0;UNTIL=20251231", freq: Daily, interval: 1, term: OnDate(date(2025, 12, 31))},
		{name: "until datetime", input: "FREQ=DAILY;UNTIL=20251231T120000Z", freq: Daily, interval: 1, term: OnDate(date(2025, 12, 31))},
		{name: "until date only", input: "FREQ=DAILY;UNTIL=20250301", freq: Daily, interval: 1, term: OnDate(date(2025, 3, 1))},
		{name: "until malformed time suffix", input: "FREQ=DAILY;UNTIL=20250301Tgarbage", freq: Daily, interval: 1, term: OnDate(date(2025, 3, 1))},
		{name: "until garbage", input: "FREQ=DAILY;UNTIL=2025-03-01", freq: Daily, interval: 1, term: Forever()},
		{name: "until impossible date", input: "FREQ=DAILY;UNTIL=20251340", freq: Daily, interval: 1, term: Forever()},
		{name: "unknown keys ignored", input: "FREQ=DAILY;WKST=SU;BYHOUR=9;X-NAME=foo", freq: Daily, interval: 1, term: Forever()},
		{name: "last duplicate wins", input: "FREQ=DAILY;FREQ=WEEKLY", freq: Weekly, interval: 1, term: Forever()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Parse(tt.input)
			assert.Equal(t, tt.freq, s.Frequency())
			assert.Equal(t, tt.interval, s.Interval())
			assert.Equal(t, tt.days, s.Weekdays().Days())
			assert.True(t, tt.term.Equal(s.Termination()), "termination: got %v", s.Termination().Kind())
		})
	}
}

func TestParseWithWarnings(t *testing.T) {
	_, warns := ParseWithWarnings("FREQ=DAILY")
	assert.Empty(t, warns)

	_, warns = ParseWithWarnings("")
	assert.Empty(t, warns)

	s, warns := ParseWithWarnings("FREQ=WEEKLY;INTERVAL=0;BYDAY=MO,ZZ;COUNT=-1")
	assert.Equal(t, Weekly, s.Frequency())
	require.Len(t, warns, 3)
	keys := []string{warns[0].Key, warns[1].Key, warns[2].Key}
	assert.ElementsMatch(t, []string{"INTERVAL", "BYDAY", "COUNT"}, keys)

	s, warns = ParseWithWarnings("FREQ=MONTHLY;BYMONTHDAY=15;WKST=SU")
	assert.Equal(t, "FREQ=MONTHLY", Serialize(s))
	require.Len(t, warns, 2)
	assert.Equal(t, "BYMONTHDAY", warns[0].Key)
	assert.Equal(t, "WKST", warns[1].Key)

	_, warns = ParseWithWarnings("FREQ=SECONDLY")
	require.Len(t, warns, 1)
	assert.Equal(t, "FREQ", warns[0].Key)
	assert.Contains(t, warns[0].Error(), "SECONDLY")
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{name: "none", spec: Spec{}, want: ""},
		{name: "none ignores other fields", spec: New(None, 3, Weekdays(Monday), AfterCount(2)), want: ""},
		{name: "daily", spec: New(Daily, 1, 0, Forever()), want: "FREQ=DAILY"},
		{name: "interval", spec: New(Daily, 2, 0, Forever()), want: "FREQ=DAILY;INTERVAL=2"},
		{name: "interval clamped", spec: New(Monthly, -4, 0, Forever()), want: "FREQ=MONTHLY"},
		{
			name: "weekly days canonical",
			spec: New(Weekly, 1, Weekdays(Sunday, Friday, Monday), Forever()),
			want: "FREQ=WEEKLY;BYDAY=MO,FR,SU",
		},
		{name: "weekly no days", spec: New(Weekly, 2, 0, Forever()), want: "FREQ=WEEKLY;INTERVAL=2"},
		{name: "days dropped for monthly", spec: New(Monthly, 1, Weekdays(Monday), Forever()), want: "FREQ=MONTHLY"},
		{name: "count", spec: New(Yearly, 1, 0, AfterCount(4)), want: "FREQ=YEARLY;COUNT=4"},
		{name: "count zero", spec: New(Yearly, 1, 0, AfterCount(0)), want: "FREQ=YEARLY"},
		{
			name: "until",
			spec: New(Weekly, 1, Weekdays(Tuesday), OnDate(time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC))),
			want: "FREQ=WEEKLY;BYDAY=TU;UNTIL=20250630T235959Z",
		},
		{
			name: "full order",
			spec: New(Weekly, 3, Weekdays(Thursday, Tuesday), AfterCount(8)),
			want: "FREQ=WEEKLY;INTERVAL=3;BYDAY=TU,TH;COUNT=8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Serialize(tt.spec))
			assert.Equal(t, tt.want, tt.spec.String())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"FREQ=DAILY",
		"FREQ=DAILY;INTERVAL=1",
		"FREQ=DAILY;INTERVAL=4;COUNT=2",
		"FREQ=WEEKLY;BYDAY=SU,SA,MO",
		"FREQ=WEEKLY;INTERVAL=2;BYDAY=WE;UNTIL=20260101T000000Z",
		"RRULE:FREQ=MONTHLY;UNTIL=20251231",
		"FREQ=YEARLY;COUNT=3;UNTIL=20300101T235959Z",
		"DTSTART:20250101T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=TU,TH",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			s := Parse(in)
			text := Serialize(s)

			again := Parse(text)
			assert.True(t, s.Equal(again), "parse(serialize(spec)) differs for %q", text)
			assert.Equal(t, s, again)

			assert.Equal(t, text, Serialize(Parse(text)), "canonical text is not a fixed point")
		})
	}
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,FR", Canonicalize("RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=FR,MO"))
	assert.Equal(t, "", Canonicalize("not a rule"))
	assert.True(t, IsRecurring("FREQ=DAILY"))
	assert.False(t, IsRecurring("FREQ="))
}
