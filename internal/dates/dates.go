// Package dates canonicalizes partial and ISO-8601 date strings to the
// configured canonical format.
package dates

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	// ErrUnrecognized marks input that could not be parsed by any branch.
	// The original string is returned alongside it.
	ErrUnrecognized = errors.New("unrecognized date")
	// ErrInvalidISO marks an ISO-8601 instant that failed to parse.
	ErrInvalidISO = errors.New("invalid ISO-8601 instant")
)

// Normalizer converts dates into one canonical format.
type Normalizer struct {
	format string
	layout string
}

// New returns a Normalizer for the moment-style canonical format.
func New(format string) *Normalizer {
	return &Normalizer{format: format, layout: Layout(format)}
}

// Format returns the moment-style canonical format.
func (n *Normalizer) Format() string { return n.format }

// Layout returns the Go layout of the canonical format.
func (n *Normalizer) Layout() string { return n.layout }

// Normalize canonicalizes value. isEnd selects the period boundary used for
// partial dates: a bare year ends on its last day, a year-month ends on the
// first day of the following month (exclusive boundary).
//
// Unparseable input is returned unchanged together with ErrUnrecognized so
// callers can report a format warning; the value is never dropped.
func (n *Normalizer) Normalize(value string, isEnd bool) (string, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return "", nil
	}

	if year, ok := parseYear(s); ok {
		if isEnd {
			return n.render(time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)), nil
		}
		return n.render(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)), nil
	}

	if year, month, ok := parseYearMonth(s); ok {
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		if isEnd {
			return n.render(start.AddDate(0, 1, 0)), nil
		}
		return n.render(start), nil
	}

	if IsISOInstant(s) {
		return n.NormalizeISO(s)
	}

	if t, err := time.ParseInLocation(n.layout, s, time.UTC); err == nil {
		return n.render(t), nil
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return n.render(t), nil
	}
	return value, fmt.Errorf("%w: %q does not match %s", ErrUnrecognized, value, n.format)
}

// NormalizeISO interprets an ISO-8601 instant with a UTC marker as UTC and
// renders it in the canonical format.
func (n *Normalizer) NormalizeISO(value string) (string, error) {
	s := strings.TrimSpace(value)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return n.render(t.UTC()), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidISO, value)
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"20060102T150405Z07:00",
}

// Valid reports whether value strictly conforms to the canonical format.
func (n *Normalizer) Valid(value string) bool {
	t, err := time.ParseInLocation(n.layout, value, time.UTC)
	if err != nil {
		return false
	}
	return t.Format(n.layout) == value
}

// Parse parses a canonical-format value.
func (n *Normalizer) Parse(value string) (time.Time, bool) {
	t, err := time.ParseInLocation(n.layout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsISOInstant reports whether s looks like an ISO-8601 instant carrying
// both the time designator and the UTC marker.
func IsISOInstant(s string) bool {
	return strings.Contains(s, "T") && strings.Contains(s, "Z")
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (n *Normalizer) render(t time.Time) string {
	return t.Format(n.layout)
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 || !allDigits(s) {
		return 0, false
	}
	y, _ := strconv.Atoi(s)
	return y, true
}

func parseYearMonth(s string) (int, time.Month, bool) {
	if len(s) != 7 || s[4] != '-' || !allDigits(s[:4]) || !allDigits(s[5:]) {
		return 0, 0, false
	}
	y, _ := strconv.Atoi(s[:4])
	m, _ := strconv.Atoi(s[5:])
	if m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, time.Month(m), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
