package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockLayout is the 12-hour clock format used on the display ("03:04 PM").
const ClockLayout = "03:04 PM"

// DateLayout is the GTFS service date format.
const DateLayout = "20060102"

// DisplayDateLayout formats alert validity dates.
const DisplayDateLayout = "02/01/2006"

// Clock reports the current time. gcache.Clock and gcache.FakeClock satisfy it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ParseGTFSTime parses a GTFS "HH:MM:SS" time into seconds after midnight.
// Hours may exceed 23 for trips running past midnight.
func ParseGTFSTime(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid GTFS time %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid GTFS time %q", s)
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, fmt.Errorf("invalid GTFS time %q", s)
	}
	return v[0]*3600 + v[1]*60 + v[2], nil
}

// TimeOnDay places a seconds-after-midnight offset on the calendar day of ref,
// in ref's location. Hours wrap at 24.
func TimeOnDay(ref time.Time, secs int) time.Time {
	h := (secs / 3600) % 24
	m := (secs % 3600) / 60
	s := secs % 60
	return time.Date(ref.Year(), ref.Month(), ref.Day(), h, m, s, 0, ref.Location())
}

// FormatClock renders t as "03:04 PM".
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// MinutesUntil returns floor((then - now) / 60s).
func MinutesUntil(now time.Time, then int64) int {
	return int(FloorDiv(then-now.Unix(), 60))
}

// ServiceDate formats t as a GTFS service date.
func ServiceDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Iso8601FromUnixSeconds converts a Unix timestamp to ISO8601 format
func Iso8601FromUnixSeconds(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// DisplayDateFromUnixSeconds formats a Unix timestamp as dd/mm/yyyy in loc.
func DisplayDateFromUnixSeconds(sec int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(sec, 0).In(loc).Format(DisplayDateLayout)
}
