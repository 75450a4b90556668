package timeline

import (
	"fmt"
	"strings"

	"github.com/starford/marksync/internal/dates"
	"github.com/starford/marksync/internal/models"
)

// LineWarning reports a discarded event line.
type LineWarning struct {
	Line   int
	Text   string
	Reason string
}

func (w LineWarning) String() string {
	return fmt.Sprintf("line %d: %s: %q", w.Line, w.Reason, w.Text)
}

// Parse converts document text into events in document order. Lines whose
// dates cannot be canonicalized are discarded and reported as warnings;
// commentary lines are ignored silently.
func Parse(text string, opts models.SyncOptions, norm *dates.Normalizer) ([]models.TimelineEvent, []LineWarning) {
	g := NewGrammar(opts.Formatting.GroupStartText, opts.Formatting.GroupEndText)

	var (
		events   []models.TimelineEvent
		warnings []LineWarning
		current  *string
	)

	for i, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		switch g.Classify(s) {
		case KindGroupStart:
			name := g.GroupName(s)
			current = &name
		case KindGroupEnd:
			current = nil
		case KindEvent:
			parts, _ := splitEvent(s)
			start, end, err := parseRange(parts.dateRange, opts.Formatting.SupportISODateFormat, norm)
			if err != nil {
				warnings = append(warnings, LineWarning{Line: i + 1, Text: s, Reason: err.Error()})
				continue
			}
			ev := models.TimelineEvent{
				StartDate: start,
				EndDate:   end,
				NoteName:  parts.name,
				Line:      i + 1,
			}
			if current != nil {
				name := *current
				ev.Group = &name
			}
			if parts.tag != "" {
				tag := parts.tag
				ev.Status = &tag
			}
			events = append(events, ev)
		}
	}
	return events, warnings
}

func parseRange(dateRange string, iso bool, norm *dates.Normalizer) (string, string, error) {
	if iso && dates.IsISOInstant(dateRange) {
		return parseISORange(dateRange, norm)
	}

	left, right, found := strings.Cut(dateRange, "/")
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)
	if !found || right == "" {
		right = left
	}
	start, _ := norm.Normalize(left, false)
	end, _ := norm.Normalize(right, true)
	if !norm.Valid(start) {
		return "", "", fmt.Errorf("start date %q does not match %s", left, norm.Format())
	}
	if !norm.Valid(end) {
		return "", "", fmt.Errorf("end date %q does not match %s", right, norm.Format())
	}
	return start, end, nil
}

// parseISORange splits "<instant> / <instant>" on the slash, or
// "<instant>-<instant>" on the hyphen that follows the first UTC marker; a
// lone instant is both start and end.
func parseISORange(dateRange string, norm *dates.Normalizer) (string, string, error) {
	s := strings.Join(strings.Fields(dateRange), "")
	left, right := s, s
	if l, r, found := strings.Cut(s, "/"); found {
		left, right = l, r
		if right == "" {
			right = left
		}
	} else if i := strings.Index(s, "Z-"); i >= 0 {
		left, right = s[:i+1], s[i+2:]
	}
	start, err := norm.NormalizeISO(left)
	if err != nil {
		return "", "", err
	}
	end, err := norm.NormalizeISO(right)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}
