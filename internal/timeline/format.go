// Package timeline renders entries into the timeline document and parses
// the document back into events.
//
// Line grammar:
//
//	<groupStartText> <name>                   group start
//	<groupEndText>                            group end
//	<start>[ / <end>]: [[<name>]][ #<tag>]    event
//
// Anything else is commentary and is ignored by the parser.
package timeline

import (
	"strings"
	"unicode"
)

// StatusTag renders a status value as a tag token. Every run of characters
// the parser does not accept in a tag, whitespace included, becomes a single
// hyphen; leading and trailing runs are dropped. The result always reads
// back unchanged.
func StatusTag(status string) string {
	var b strings.Builder
	pending := false
	for _, r := range status {
		if !isTagRune(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('-')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GroupName canonicalizes a group property value. A wikilink value such as
// "[[Project X|alias]]" yields its target "Project X".
func GroupName(v string) string {
	s := strings.TrimSpace(v)
	if strings.HasPrefix(s, "[[") && strings.HasSuffix(s, "]]") {
		s = s[2 : len(s)-2]
		if i := strings.Index(s, "|"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

func isTagRune(r rune) bool {
	return r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
