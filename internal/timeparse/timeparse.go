// Package timeparse resolves free-text time expressions ("now", "3 hours
// ago", "yesterday at 9pm", absolute dates) into absolute timestamps relative
// to a reference time. Callers must treat a false return as "could not
// parse"; the resolver never silently defaults to the current time.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reNowLiteral = regexp.MustCompile(`^now[.!?]*$`)

	// Shorthand lead-dash duration: "-30", "-2h", "-1 day". Default unit is
	// minutes.
	reDashShorthand = regexp.MustCompile(`^-(?P<amt>\d+(?:\.\d+)?)\s*(?P<unit>m|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days)?$`)

	reAgo = regexp.MustCompile(`^(?P<amt>\d+(?:\.\d+)?)\s*(?P<unit>m|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days)\s+ago[.!?]*$`)

	reDayRelative = regexp.MustCompile(`^(?P<day>yesterday|today|tomorrow)(?:\s+at\s+(?P<clock>.+))?$`)

	reClock = regexp.MustCompile(`^(?P<h>\d{1,2})(?::(?P<m>\d{2})(?::(?P<s>\d{2}))?)?\s*(?P<mer>am|pm|a\.m\.|p\.m\.)?$`)

	reISODate = regexp.MustCompile(`^(?P<y>\d{4})-(?P<mo>\d{1,2})-(?P<d>\d{1,2})[T ](?P<clock>.+)$`)
	reUSDate  = regexp.MustCompile(`^(?P<mo>\d{1,2})/(?P<d>\d{1,2})/(?P<y>\d{4})\s+(?P<clock>.+)$`)

	reParenComment = regexp.MustCompile(`\([^)]*\)`)
	reOrdinal      = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)
	reTZAbbrev     = regexp.MustCompile(`\b(est|edt|cst|cdt|mst|mdt|pst|pdt|utc|gmt)\b`)
	reZuluSuffix   = regexp.MustCompile(`(\d)z$`)
	reSpaces       = regexp.MustCompile(`\s+`)
)

// nativeLayouts are tried, in order, against the cleaned lower-cased text as
// a catch-all between the shorthand forms and the explicit numeric forms.
// Month and weekday names match case-insensitively in time.Parse, so the
// capitalized tokens below work against the lower-cased input. The am/pm
// token must be the lower-cased "pm" form.
var nativeLayouts = []string{
	"2006-01-02t15:04:05",
	"Jan 2 2006 3:04:05 pm",
	"Jan 2 2006 3:04 pm",
	"Jan 2 2006 3:04pm",
	"Jan 2 2006 15:04:05",
	"Jan 2 2006 15:04",
	"Jan 2, 2006 3:04 pm",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2 2006 3:04 pm",
	"January 2, 2006 3:04 pm",
	"January 2, 2006",
	"January 2 2006",
	"Mon Jan 2 15:04:05 2006",
	"2006-01-02",
	"1/2/2006",
}

// Resolve parses text against ref. The grammar is evaluated in a fixed
// precedence order; notably the dash/ago shorthands are tried before the
// generic date layouts, which would otherwise misread "2 hours ago".
func Resolve(text string, ref time.Time, now time.Time) (time.Time, bool) {
	if now.IsZero() {
		now = time.Now()
	}
	if ref.IsZero() {
		ref = now
	}

	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return ref, true
	}

	if reNowLiteral.MatchString(s) {
		return ref, true
	}

	if m := reDashShorthand.FindStringSubmatch(s); m != nil {
		amt, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return time.Time{}, false
		}
		return ref.Add(-durationFor(amt, m[2])), true
	}

	if m := reAgo.FindStringSubmatch(s); m != nil {
		amt, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return time.Time{}, false
		}
		return ref.Add(-durationFor(amt, m[2])), true
	}

	if m := reDayRelative.FindStringSubmatch(s); m != nil {
		var shift int
		switch m[1] {
		case "yesterday":
			shift = -1
		case "tomorrow":
			shift = 1
		}
		day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location()).AddDate(0, 0, shift)
		clock := strings.TrimSpace(m[2])
		if clock == "" {
			return day, true
		}
		h, min, sec, ok := parseClock(clock)
		if !ok {
			return time.Time{}, false
		}
		return day.Add(time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second), true
	}

	cleaned := cleanDateText(s)
	for _, layout := range nativeLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, ref.Location()); err == nil {
			return t, true
		}
	}

	if m := reISODate.FindStringSubmatch(cleaned); m != nil {
		if t, ok := dateWithClock(m[1], m[2], m[3], m[4], ref.Location()); ok {
			return t, true
		}
	}
	if m := reUSDate.FindStringSubmatch(cleaned); m != nil {
		if t, ok := dateWithClock(m[3], m[1], m[2], m[4], ref.Location()); ok {
			return t, true
		}
	}

	// Time-only: applied against the reference date's calendar day.
	if h, min, sec, ok := parseClock(cleaned); ok {
		day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
		return day.Add(time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second), true
	}

	return time.Time{}, false
}

func durationFor(amt float64, unit string) time.Duration {
	switch unit {
	case "h", "hr", "hrs", "hour", "hours":
		return time.Duration(amt * float64(time.Hour))
	case "d", "day", "days":
		return time.Duration(amt * 24 * float64(time.Hour))
	default:
		return time.Duration(amt * float64(time.Minute))
	}
}

// parseClock parses "H", "H:MM", "H:MM:SS" with an optional am/pm marker.
// 12-hour conversion is hour mod 12 plus 12 when pm; a bare "24" with no
// marker normalizes to 0.
func parseClock(s string) (h, m, sec int, ok bool) {
	mm := reClock.FindStringSubmatch(strings.TrimSpace(s))
	if mm == nil {
		return 0, 0, 0, false
	}
	h, _ = strconv.Atoi(mm[1])
	if mm[2] != "" {
		m, _ = strconv.Atoi(mm[2])
	}
	if mm[3] != "" {
		sec, _ = strconv.Atoi(mm[3])
	}
	mer := mm[4]
	if mer != "" {
		if h > 12 {
			return 0, 0, 0, false
		}
		h = h % 12
		if strings.HasPrefix(mer, "p") {
			h += 12
		}
	} else if h == 24 {
		h = 0
	}
	if h > 23 || m > 59 || sec > 59 {
		return 0, 0, 0, false
	}
	return h, m, sec, true
}

func dateWithClock(y, mo, d, clock string, loc *time.Location) (time.Time, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(mo)
	day, _ := strconv.Atoi(d)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	h, min, sec, ok := parseClock(clock)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, h, min, sec, 0, loc), true
}

// cleanDateText normalizes free-text date strings before the layout table is
// tried: parenthesized comments dropped, ordinal suffixes removed, known
// timezone abbreviations stripped, whitespace collapsed.
func cleanDateText(s string) string {
	s = reParenComment.ReplaceAllString(s, " ")
	s = reOrdinal.ReplaceAllString(s, "$1")
	s = reTZAbbrev.ReplaceAllString(s, " ")
	s = strings.Trim(strings.TrimSpace(s), ".!?")
	s = reZuluSuffix.ReplaceAllString(s, "$1")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
