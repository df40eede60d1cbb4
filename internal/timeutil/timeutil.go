// Package timeutil holds the business timezone used for report dates and PDF vouchers.
package timeutil

import (
	"fmt"
	"sync/atomic"
	"time"
)

var location atomic.Pointer[time.Location]

func init() {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*60*60+30*60)
	}
	location.Store(loc)
}

// Configure sets the business timezone by IANA name
func Configure(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", name, err)
	}
	location.Store(loc)
	return nil
}

// Location returns the business timezone
func Location() *time.Location {
	return location.Load()
}

// Now returns the current time in the business timezone
func Now() time.Time {
	return time.Now().In(Location())
}

// Format formats t in the business timezone
func Format(t time.Time, layout string) string {
	return t.In(Location()).Format(layout)
}

// StartOfDay returns 00:00:00 of t's day in the business timezone
func StartOfDay(t time.Time) time.Time {
	l := t.In(Location())
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Location())
}

// EndOfDay returns the last nanosecond of t's day in the business timezone
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// ParseDate accepts a plain date (interpreted in the business timezone) or RFC 3339
func ParseDate(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateLayout, value, Location()); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", value)
	}
	return t, nil
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006"
)
