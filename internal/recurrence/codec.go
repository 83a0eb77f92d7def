package recurrence

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	untilDateLayout = "20060102"
	untilSuffix     = "T235959Z"
)

// Warning describes one piece of rule text that Parse could not use and what
// it did instead.
type Warning struct {
	Key    string
	Value  string
	Reason string
}

func (w Warning) Error() string {
	if w.Key == "" {
		return w.Reason
	}
	return fmt.Sprintf("%s=%q: %s", w.Key, w.Value, w.Reason)
}

// Parse reads rule text into a Spec. It never fails: anything it cannot
// interpret degrades towards a non-recurring spec.
func Parse(text string) Spec {
	s, _ := ParseWithWarnings(text)
	return s
}

// ParseWithWarnings is Parse that also reports every ignored or corrected
// component.
//
// Accepted input is "KEY=VALUE;KEY=VALUE", optionally prefixed with "RRULE:"
// and optionally surrounded by other content lines such as "DTSTART:...",
// which are skipped.
func ParseWithWarnings(text string) (Spec, []Warning) {
	var warns []Warning

	body, ok := ruleBody(text)
	if !ok {
		return Spec{}, nil
	}

	fields := make(map[string]string)
	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		if !found {
			warns = append(warns, Warning{Key: key, Reason: "missing '=', ignored"})
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}

	rawFreq, ok := fields["FREQ"]
	if !ok {
		if len(fields) > 0 {
			warns = append(warns, Warning{Key: "FREQ", Reason: "missing, rule treated as non-recurring"})
		}
		return Spec{}, warns
	}
	freq, ok := ParseFrequency(rawFreq)
	if !ok {
		warns = append(warns, Warning{Key: "FREQ", Value: rawFreq, Reason: "unsupported frequency, rule treated as non-recurring"})
		return Spec{}, warns
	}

	interval := 1
	if raw, ok := fields["INTERVAL"]; ok {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			warns = append(warns, Warning{Key: "INTERVAL", Value: raw, Reason: "not an integer, using 1"})
		case n < 1:
			warns = append(warns, Warning{Key: "INTERVAL", Value: raw, Reason: "below 1, using 1"})
		case n > MaxInterval:
			warns = append(warns, Warning{Key: "INTERVAL", Value: raw, Reason: "above " + strconv.Itoa(MaxInterval) + ", using 1"})
		default:
			interval = n
		}
	}

	var days WeekdaySet
	if raw, ok := fields["BYDAY"]; ok {
		for _, token := range strings.Split(raw, ",") {
			d, ok := ParseWeekday(token)
			if !ok {
				warns = append(warns, Warning{Key: "BYDAY", Value: strings.TrimSpace(token), Reason: "unknown weekday, dropped"})
				continue
			}
			days = days.With(d)
		}
		if freq != Weekly && !days.Empty() {
			warns = append(warns, Warning{Key: "BYDAY", Value: raw, Reason: "only used with FREQ=WEEKLY, dropped"})
			days = 0
		}
	}

	term := Forever()
	if raw, ok := fields["COUNT"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			warns = append(warns, Warning{Key: "COUNT", Value: raw, Reason: "not a positive integer, ignored"})
		} else {
			term = AfterCount(n)
		}
	}
	if raw, ok := fields["UNTIL"]; ok {
		if term.Kind() == ByCount {
			warns = append(warns, Warning{Key: "UNTIL", Value: raw, Reason: "COUNT takes precedence, ignored"})
		} else if date, ok := parseUntilDate(raw); ok {
			term = OnDate(date)
		} else {
			warns = append(warns, Warning{Key: "UNTIL", Value: raw, Reason: "no YYYYMMDD date prefix, ignored"})
		}
	}

	for _, key := range slices.Sorted(maps.Keys(fields)) {
		if !supportedKeys[key] {
			warns = append(warns, Warning{Key: key, Value: fields[key], Reason: "not supported, ignored"})
		}
	}

	return New(freq, interval, days, term), warns
}

var supportedKeys = map[string]bool{"FREQ": true, "INTERVAL": true, "BYDAY": true, "COUNT": true, "UNTIL": true}

// ruleBody extracts the RRULE value from text that may carry an "RRULE:"
// prefix and other content lines.
func ruleBody(text string) (string, bool) {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest, hasName := contentLineName(line)
		if !hasName {
			return line, true
		}
		if strings.EqualFold(name, "RRULE") {
			return rest, true
		}
	}
	return "", false
}

// contentLineName splits "NAME:VALUE" (or "NAME;PARAM=..:VALUE") when the part
// before the first ':' contains no '=' before any ';'. Plain rule bodies like
// "FREQ=DAILY" have no name.
func contentLineName(line string) (string, string, bool) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return "", line, false
	}
	head := line[:colon]
	if semi := strings.IndexByte(head, ';'); semi >= 0 {
		head = head[:semi]
	}
	if strings.ContainsRune(head, '=') || head == "" {
		return "", line, false
	}
	return head, line[colon+1:], true
}

func parseUntilDate(raw string) (time.Time, bool) {
	if len(raw) < 8 {
		return time.Time{}, false
	}
	prefix := raw[:8]
	for i := 0; i < len(prefix); i++ {
		if prefix[i] < '0' || prefix[i] > '9' {
			return time.Time{}, false
		}
	}
	date, err := time.Parse(untilDateLayout, prefix)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// Serialize writes the canonical rule text for s, or "" if s does not recur.
// Fields always appear in the order FREQ, INTERVAL, BYDAY, COUNT|UNTIL.
func Serialize(s Spec) string {
	if !s.Recurring() {
		return ""
	}

	parts := []string{"FREQ=" + s.freq.String()}
	if n := s.Interval(); n > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(n))
	}
	if s.freq == Weekly && !s.days.Empty() {
		parts = append(parts, "BYDAY="+s.days.String())
	}
	switch s.term.Kind() {
	case ByCount:
		if n, _ := s.term.Count(); n > 0 {
			parts = append(parts, "COUNT="+strconv.Itoa(n))
		}
	case ByUntil:
		if date, _ := s.term.Until(); !date.IsZero() {
			parts = append(parts, "UNTIL="+date.Format(untilDateLayout)+untilSuffix)
		}
	}
	return strings.Join(parts, ";")
}

// Canonicalize rewrites rule text into its canonical form.
func Canonicalize(text string) string {
	return Serialize(Parse(text))
}

// IsRecurring reports whether text parses to a recurring rule.
func IsRecurring(text string) bool {
	return Parse(text).Recurring()
}
