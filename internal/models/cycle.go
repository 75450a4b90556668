package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction selects how far a cycle propagates changes.
type Direction string

const (
	// ToTimeline only writes entries into the timeline document.
	ToTimeline Direction = "toTimeline"
	// Bidirectional additionally applies timeline edits back onto entries.
	Bidirectional Direction = "bidirectional"
)

// ParseDirection accepts the canonical names case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "totimeline", "to-timeline", "to_timeline":
		return ToTimeline, nil
	case "bidirectional", "both":
		return Bidirectional, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// CycleResult summarizes one reconciliation cycle.
type CycleResult struct {
	Direction         Direction `json:"direction"`
	UpdatedEntryCount int       `json:"updated_entry_count"`
	WroteTimeline     bool      `json:"wrote_timeline"`
	Drift             bool      `json:"drift"`
	Warnings          []string  `json:"warnings"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Warnf appends a formatted warning.
func (r *CycleResult) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
