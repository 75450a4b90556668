package timeline

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/marksync/internal/dates"
	"github.com/starford/marksync/internal/models"
)

// row is an entry prepared for rendering.
type row struct {
	id     string
	title  string
	start  string
	end    string
	at     time.Time
	dated  bool
	group  string
	status string
}

type group struct {
	name     string
	rows     []row
	earliest time.Time
	dated    bool
}

// Serialize renders validated entries as timeline document text. Output is
// deterministic for a given entry set and option value, and carries no
// leading or trailing blank lines.
func Serialize(entries []models.Entry, opts models.SyncOptions, norm *dates.Normalizer) string {
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, newRow(e, opts, norm))
	}

	var blocks []string
	if h := strings.TrimSpace(opts.Formatting.Header); h != "" {
		blocks = append(blocks, h)
	}

	if !opts.Grouping.Enabled {
		sortRows(rows, opts.Grouping.SortEntriesBy)
		if len(rows) > 0 {
			blocks = append(blocks, renderRows(rows, opts))
		}
		return strings.TrimSpace(strings.Join(blocks, "\n\n"))
	}

	for _, g := range partition(rows, opts.Grouping.SortBy) {
		sortRows(g.rows, opts.Grouping.SortEntriesBy)
		var b strings.Builder
		b.WriteString(opts.Formatting.GroupStartText)
		b.WriteByte(' ')
		b.WriteString(g.name)
		b.WriteByte('\n')
		b.WriteString(renderRows(g.rows, opts))
		b.WriteByte('\n')
		b.WriteString(opts.Formatting.GroupEndText)
		blocks = append(blocks, b.String())
	}
	return strings.TrimSpace(strings.Join(blocks, "\n\n"))
}

// Line renders a single event line.
func Line(start, end, title, status string, showStatus bool) string {
	var b strings.Builder
	b.WriteString(start)
	if end != "" && end != start {
		b.WriteString(" / ")
		b.WriteString(end)
	}
	b.WriteString(": [[")
	b.WriteString(title)
	b.WriteString("]]")
	if showStatus {
		if tag := StatusTag(status); tag != "" {
			b.WriteString(" #")
			b.WriteString(tag)
		}
	}
	return b.String()
}

func newRow(e models.Entry, opts models.SyncOptions, norm *dates.Normalizer) row {
	props := opts.Properties
	start, _ := norm.Normalize(e.Property(props.DateProperty), false)
	end, _ := norm.Normalize(e.Property(props.EndDateProperty), true)
	r := row{
		id:     e.ID,
		title:  e.Title,
		start:  start,
		end:    end,
		group:  GroupName(e.Property(props.GroupProperty)),
		status: e.Property(props.StatusProperty),
	}
	r.at, r.dated = norm.Parse(start)
	return r
}

func renderRows(rows []row, opts models.SyncOptions) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = Line(r.start, r.end, r.title, r.status, opts.Formatting.ShowStatusTags)
	}
	return strings.Join(lines, "\n")
}

func partition(rows []row, sortBy string) []*group {
	byName := make(map[string]*group)
	var groups []*group
	for _, r := range rows {
		name := r.group
		if name == "" {
			name = models.UngroupedName
		}
		g, ok := byName[name]
		if !ok {
			g = &group{name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
		if r.dated && (!g.dated || r.at.Before(g.earliest)) {
			g.earliest = r.at
			g.dated = true
		}
	}
	slices.SortStableFunc(groups, func(a, b *group) int {
		return compareGroups(a, b, sortBy)
	})
	return groups
}

func compareGroups(a, b *group, sortBy string) int {
	aUn, bUn := a.name == models.UngroupedName, b.name == models.UngroupedName
	switch {
	case aUn && bUn:
		return 0
	case aUn:
		return 1
	case bUn:
		return -1
	}

	switch sortBy {
	case models.SortNumber:
		if c := cmp.Compare(numericPrefix(a.name), numericPrefix(b.name)); c != 0 {
			return c
		}
	case models.SortDate:
		switch {
		case a.dated && b.dated:
			if c := a.earliest.Compare(b.earliest); c != 0 {
				return c
			}
		case a.dated:
			return -1
		case b.dated:
			return 1
		}
	}
	return strings.Compare(a.name, b.name)
}

// numericPrefix parses the leading decimal number of s; non-numeric keys
// count as 0.
func numericPrefix(s string) float64 {
	end := 0
	dot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !dot && end > 0 && end+1 < len(s) && s[end+1] >= '0' && s[end+1] <= '9' {
			dot = true
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return n
}

func sortRows(rows []row, by string) {
	slices.SortStableFunc(rows, func(a, b row) int {
		if by == models.SortDate {
			switch {
			case a.dated && b.dated:
				if c := a.at.Compare(b.at); c != 0 {
					return c
				}
			case a.dated:
				return -1
			case b.dated:
				return 1
			}
		}
		if c := compareTitles(a.title, b.title); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
}

func compareTitles(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
