package util

import (
	"strconv"
	"time"
)

// DateLayout is the canonical trading-date format used across stores.
const DateLayout = "2006-01-02"

// ParseTime tries RFC3339, a plain date, and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if s == "" {
		return def
	}
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// DateOnly truncates t to its calendar day at UTC midnight. Bar dates are
// stored in this form so equality and ordering are purely by trading day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TradingDate formats the calendar day of t in loc as YYYY-MM-DD.
func TradingDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// ClockString formats an hh:mm wall-clock pair.
func ClockString(hour, minute int) string {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
}

// PastCutoff reports whether t (in loc) is at or past the hh:mm session
// cutoff of its own day.
func PastCutoff(t time.Time, loc *time.Location, hour, minute int) bool {
	lt := t.In(loc)
	cut := time.Date(lt.Year(), lt.Month(), lt.Day(), hour, minute, 0, 0, loc)
	return !lt.Before(cut)
}
