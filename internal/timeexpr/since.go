// Package timeexpr parses the "since when" expressions accepted on the
// command line.
package timeexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// "90m", "2h ago", "3d", "1w ago", "1mo"
var agoPattern = regexp.MustCompile(`^(\d+)\s*(mo|w|d|h|m|s)(?:\s+ago)?$`)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseSince resolves s to an instant at or before now.
//
// Accepted forms: a span back from now ("15m", "2h ago", "1mo"), "today",
// "yesterday", a weekday name meaning its most recent midnight ("mon",
// "last friday"), a date (2006-01-02, local midnight), RFC 3339, or unix
// milliseconds.
func ParseSince(s string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}
	input := strings.ToLower(raw)

	switch input {
	case "now":
		return now, nil
	case "today":
		return midnight(now), nil
	case "yesterday":
		return midnight(now).AddDate(0, 0, -1), nil
	}

	if day, ok := weekdays[strings.TrimPrefix(input, "last ")]; ok {
		base := midnight(now)
		back := (int(base.Weekday()) - int(day) + 7) % 7
		if back == 0 && strings.HasPrefix(input, "last ") {
			back = 7
		}
		return base.AddDate(0, 0, -back), nil
	}

	if m := agoPattern.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return time.Time{}, fmt.Errorf("invalid time span %q", raw)
		}
		return back(now, n, m[2]), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", raw, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms), nil
	}

	return time.Time{}, fmt.Errorf("invalid time expression %q (try 2h, yesterday, mon or 2006-01-02)", raw)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func back(now time.Time, n int, unit string) time.Time {
	switch unit {
	case "mo":
		return now.AddDate(0, -n, 0)
	case "w":
		return now.AddDate(0, 0, -7*n)
	case "d":
		return now.AddDate(0, 0, -n)
	case "h":
		return now.Add(-time.Duration(n) * time.Hour)
	case "m":
		return now.Add(-time.Duration(n) * time.Minute)
	default:
		return now.Add(-time.Duration(n) * time.Second)
	}
}
