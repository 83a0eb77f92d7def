package recurrence

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Locale holds the phrases used by Summarize.
type Locale struct {
	Tag language.Tag

	NoRepeat string
	// Every and EveryN render the cadence for interval 1 and n > 1.
	Every  map[Frequency]string
	EveryN map[Frequency]string
	// Weekdays are short names indexed Monday-first.
	Weekdays [7]string
	// Times renders Count(n); Until renders Until(date).
	Times func(n int) string
	Until func(date time.Time) string
	// Separator joins the cadence, weekday list and termination phrases.
	Separator string
	// DaySeparator joins weekday names.
	DaySeparator string
}

var English = &Locale{
	Tag:      language.English,
	NoRepeat: "does not repeat",
	Every: map[Frequency]string{
		Daily:   "every day",
		Weekly:  "every week",
		Monthly: "every month",
		Yearly:  "every year",
	},
	EveryN: map[Frequency]string{
		Daily:   "every %d days",
		Weekly:  "every %d weeks",
		Monthly: "every %d months",
		Yearly:  "every %d years",
	},
	Weekdays: [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
	Times: func(n int) string {
		if n == 1 {
			return "1 time"
		}
		return fmt.Sprintf("%d times", n)
	},
	Until: func(date time.Time) string {
		return "until " + date.Format("Jan 2, 2006")
	},
	Separator:    ", ",
	DaySeparator: ", ",
}

var Korean = &Locale{
	Tag:      language.Korean,
	NoRepeat: "반복 안 함",
	Every: map[Frequency]string{
		Daily:   "매일",
		Weekly:  "매주",
		Monthly: "매월",
		Yearly:  "매년",
	},
	EveryN: map[Frequency]string{
		Daily:   "%d일마다",
		Weekly:  "%d주마다",
		Monthly: "%d개월마다",
		Yearly:  "%d년마다",
	},
	Weekdays: [7]string{"월", "화", "수", "목", "금", "토", "일"},
	Times: func(n int) string {
		return fmt.Sprintf("%d회", n)
	},
	Until: func(date time.Time) string {
		return fmt.Sprintf("%d년 %d월 %d일까지", date.Year(), int(date.Month()), date.Day())
	},
	Separator:    ", ",
	DaySeparator: ", ",
}

var (
	locales       = []*Locale{English, Korean}
	localeMatcher = language.NewMatcher([]language.Tag{English.Tag, Korean.Tag})
)

// LookupLocale picks the supported locale closest to the given BCP 47 tags or
// Accept-Language values. English is the fallback.
func LookupLocale(tags ...string) *Locale {
	_, idx := language.MatchStrings(localeMatcher, tags...)
	if idx < 0 || idx >= len(locales) {
		return English
	}
	return locales[idx]
}

// Summarize renders s as "<cadence>[, <weekdays>][, <termination>]" in loc,
// or in English when loc is nil.
func Summarize(s Spec, loc *Locale) string {
	if loc == nil {
		loc = English
	}
	if !s.Recurring() {
		return loc.NoRepeat
	}

	parts := make([]string, 0, 3)
	if n := s.Interval(); n > 1 {
		parts = append(parts, fmt.Sprintf(loc.EveryN[s.freq], n))
	} else {
		parts = append(parts, loc.Every[s.freq])
	}

	if s.freq == Weekly && !s.days.Empty() {
		days := s.days.Days()
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = loc.Weekdays[d]
		}
		parts = append(parts, strings.Join(names, loc.DaySeparator))
	}

	switch s.term.Kind() {
	case ByCount:
		n, _ := s.term.Count()
		parts = append(parts, loc.Times(n))
	case ByUntil:
		date, _ := s.term.Until()
		parts = append(parts, loc.Until(date))
	}

	return strings.Join(parts, loc.Separator)
}

// SummarizeText parses text and summarizes it.
func SummarizeText(text string, loc *Locale) string {
	return Summarize(Parse(text), loc)
}
