package command

import (
	"regexp"
	"time"
)

// tsLayout is the timestamp EverQuest writes at the head of every log line.
const tsLayout = "Mon Jan 02 15:04:05 2006"

var reLineTimestamp = regexp.MustCompile(`^\[([^\]]+)\]`)

// LineTime parses the bracketed timestamp prefix of a raw log line.
func LineTime(line string, loc *time.Location) (time.Time, bool) {
	m := reLineTimestamp.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(tsLayout, m[1], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
