package timeline

import "strings"

// LineKind classifies one line of the timeline document.
type LineKind int

const (
	KindBlank LineKind = iota
	KindGroupStart
	KindGroupEnd
	KindEvent
	KindComment
)

// Grammar recognizes line categories for one pair of group marker texts.
// Marker matching is case-insensitive.
type Grammar struct {
	start string
	end   string
}

// NewGrammar returns a Grammar for the given marker texts.
func NewGrammar(groupStartText, groupEndText string) Grammar {
	return Grammar{
		start: strings.ToLower(strings.TrimSpace(groupStartText)),
		end:   strings.ToLower(strings.TrimSpace(groupEndText)),
	}
}

// Classify returns the category of line. The end marker is checked before
// the start marker so that an end text beginning with the start text is
// still recognized.
func (g Grammar) Classify(line string) LineKind {
	s := strings.TrimSpace(line)
	switch {
	case s == "":
		return KindBlank
	case g.isGroupEnd(s):
		return KindGroupEnd
	case g.isGroupStart(s):
		return KindGroupStart
	}
	if _, ok := splitEvent(s); ok {
		return KindEvent
	}
	return KindComment
}

// GroupName returns the group name carried by a group start line.
func (g Grammar) GroupName(line string) string {
	s := strings.TrimSpace(line)
	return strings.TrimSpace(s[len(g.start):])
}

func (g Grammar) isGroupEnd(s string) bool {
	return strings.ToLower(s) == g.end
}

func (g Grammar) isGroupStart(s string) bool {
	if len(s) <= len(g.start) || !strings.EqualFold(s[:len(g.start)], g.start) {
		return false
	}
	next := s[len(g.start)]
	return (next == ' ' || next == '\t') && strings.TrimSpace(s[len(g.start):]) != ""
}

// eventParts is the raw split of an event line.
type eventParts struct {
	dateRange string
	name      string
	tag       string
}

// splitEvent recognizes `<range>: [[<name>]] (#<tag>)?` without regular
// expressions. The range is everything before the colon that immediately
// precedes the opening brackets, so ranges may themselves contain colons.
func splitEvent(s string) (eventParts, bool) {
	open := strings.Index(s, "[[")
	if open < 0 {
		return eventParts{}, false
	}
	head := strings.TrimSpace(s[:open])
	if !strings.HasSuffix(head, ":") {
		return eventParts{}, false
	}
	dateRange := strings.TrimSpace(strings.TrimSuffix(head, ":"))
	if dateRange == "" {
		return eventParts{}, false
	}
	rest := s[open+2:]
	closing := strings.Index(rest, "]]")
	if closing < 0 {
		return eventParts{}, false
	}
	name := rest[:closing]
	if i := strings.Index(name, "|"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return eventParts{}, false
	}
	return eventParts{
		dateRange: dateRange,
		name:      name,
		tag:       trailingTag(rest[closing+2:]),
	}, true
}

// trailingTag returns the first #token after the link, or "".
func trailingTag(s string) string {
	for _, field := range strings.Fields(s) {
		if !strings.HasPrefix(field, "#") {
			continue
		}
		token := []rune(field[1:])
		n := 0
		for n < len(token) && isTagRune(token[n]) {
			n++
		}
		if n > 0 {
			return string(token[:n])
		}
	}
	return ""
}
