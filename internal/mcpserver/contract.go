package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/marksync/internal/models"
)

// TimelineFormatContract describes the timeline document grammar for the
// given options, so LLM consumers can edit it without breaking a cycle.
func TimelineFormatContract(opts models.SyncOptions) string {
	f := opts.Formatting
	p := opts.Properties
	var b strings.Builder

	b.WriteString("# Timeline Document Format\n\n")
	b.WriteString("The timeline is a plain-text document with one event per line. ")
	b.WriteString("It is regenerated from note frontmatter on every cycle; edits to event lines ")
	b.WriteString("are written back to the matching notes when the cycle is bidirectional.\n\n")

	b.WriteString("## Event lines\n\n")
	b.WriteString("```\n")
	fmt.Fprintf(&b, "<start>: [[Note Name]]\n")
	fmt.Fprintf(&b, "<start> / <end>: [[Note Name]] #status\n")
	b.WriteString("```\n\n")
	fmt.Fprintf(&b, "1. Dates use the `%s` format", f.DateFormat)
	if f.SupportISODateFormat {
		b.WriteString("; ISO ranges such as `2024-01-01/2024-01-05` are also accepted")
	}
	b.WriteString(".\n")
	b.WriteString("2. A partial date (`YYYY` or `YYYY-MM`) is widened: a year ends on Dec 31, a month ends on the first day of the next month.\n")
	fmt.Fprintf(&b, "3. `[[Note Name]]` is the note file name without `.md`; `[[Name|alias]]` is accepted and the alias is ignored.\n")
	fmt.Fprintf(&b, "4. The optional `#tag` becomes the `%s` property (`#in-progress` is `in progress`).\n", p.StatusProperty)
	fmt.Fprintf(&b, "5. Dates are written to the `%s` and `%s` properties.\n\n", p.DateProperty, p.EndDateProperty)

	b.WriteString("## Groups\n\n")
	b.WriteString("```\n")
	fmt.Fprintf(&b, "%s Phase 1\n", f.GroupStartText)
	b.WriteString("2024-01-01 / 2024-01-05: [[Kickoff]]\n")
	fmt.Fprintf(&b, "%s\n", f.GroupEndText)
	b.WriteString("```\n\n")
	fmt.Fprintf(&b, "Markers are matched case-insensitively. Moving an event into a group sets the `%s` property; ", p.GroupProperty)
	b.WriteString("moving it into `Ungrouped` removes the property.\n\n")

	b.WriteString("## Rules\n\n")
	b.WriteString("- Lines that are not events or markers are ignored and dropped on the next write.\n")
	b.WriteString("- An event whose name matches no note, or several notes, is skipped.\n")
	b.WriteString("- New notes appear only by adding the date property to the note itself.\n")
	return b.String()
}
