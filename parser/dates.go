package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrMalformedDate reports a date or time fragment that does not match
	// the page's DD-MM-YY / HH:MM format.
	ErrMalformedDate = errors.New("malformed date")
	// ErrInvalidInterval reports a slot whose end time precedes its start.
	ErrInvalidInterval = errors.New("invalid slot interval")
)

// All slot timestamps live in the booking site's locale so "start > now"
// comparisons are well-defined regardless of where the bot runs.
var siteLocation = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.UTC
	}
	return loc
}()

var (
	dateRe  = regexp.MustCompile(`^\d{2}-\d{2}-\d{2}$`)
	clockRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// NormalizeDate parses a DD-MM-YY page fragment into a midnight timestamp
// in the site's timezone.
func NormalizeDate(dateStr string) (time.Time, error) {
	return NormalizeDateTime(dateStr, "")
}

// NormalizeDateTime parses a DD-MM-YY date and an optional HH:MM clock into
// a timestamp in the site's timezone.
func NormalizeDateTime(dateStr, timeStr string) (time.Time, error) {
	if !dateRe.MatchString(dateStr) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, dateStr)
	}

	layout := "02-01-06"
	value := dateStr
	if timeStr != "" {
		if !clockRe.MatchString(timeStr) {
			return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, timeStr)
		}
		layout = "02-01-06 15:04"
		value = dateStr + " " + normalizeClock(timeStr)
	}

	t, err := time.ParseInLocation(layout, value, siteLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, value)
	}
	return t, nil
}

// SlotInterval parses a full slot date cell ("DD-MM-YY HH:MM-HH:MM") into
// its start and end timestamps. An end before the start is surfaced as
// ErrInvalidInterval, never silently swapped: it means a mis-parsed row.
func SlotInterval(slotDate string) (start, end time.Time, err error) {
	dateStr, times, ok := strings.Cut(strings.TrimSpace(slotDate), " ")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, slotDate)
	}
	fromStr, toStr, ok := strings.Cut(strings.TrimSpace(times), "-")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, slotDate)
	}

	if start, err = NormalizeDateTime(dateStr, fromStr); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end, err = NormalizeDateTime(dateStr, toStr); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInterval, slotDate)
	}
	return start, end, nil
}

// normalizeClock pads single-digit hours so "9:00" parses as "09:00".
func normalizeClock(t string) string {
	hour, minute, ok := strings.Cut(t, ":")
	if !ok {
		return t
	}
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + minute
}
