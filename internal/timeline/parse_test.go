package timeline

import (
	"strings"
	"testing"

	"github.com/starford/marksync/internal/dates"
	"github.com/starford/marksync/internal/models"
)

func TestParse_EventsAndGroups(t *testing.T) {
	opts := models.DefaultSyncOptions()
	doc := strings.Join([]string{
		"title: Roadmap",
		"",
		"GROUP Phase 1",
		"2024-01-01 / 2024-01-31: [[Kickoff]] #in-progress",
		"2024-02: [[Design|the design]]",
		"End Group",
		"2024: [[Loose]]",
		"free-form commentary here",
	}, "\n")

	events, warnings := Parse(doc, opts, norm())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}

	k := events[0]
	if k.NoteName != "Kickoff" || k.StartDate != "2024-01-01" || k.EndDate != "2024-01-31" {
		t.Errorf("kickoff = %+v", k)
	}
	if k.Group == nil || *k.Group != "Phase 1" {
		t.Errorf("kickoff group = %v", k.Group)
	}
	if k.Status == nil || *k.Status != "in-progress" {
		t.Errorf("kickoff status = %v", k.Status)
	}
	if k.Line != 4 {
		t.Errorf("kickoff line = %d", k.Line)
	}

	d := events[1]
	if d.NoteName != "Design" || d.StartDate != "2024-02-01" || d.EndDate != "2024-03-01" {
		t.Errorf("design = %+v", d)
	}
	if d.Status != nil {
		t.Errorf("design status should be nil, got %q", *d.Status)
	}

	l := events[2]
	if l.Group != nil {
		t.Errorf("loose should be outside any group, got %q", *l.Group)
	}
	if l.StartDate != "2024-01-01" || l.EndDate != "2024-12-31" {
		t.Errorf("loose = %+v", l)
	}
}

func TestParse_DiscardsBadDates(t *testing.T) {
	opts := models.DefaultSyncOptions()
	doc := "someday: [[Vague]]\n2024-01-01: [[Fine]]"
	events, warnings := Parse(doc, opts, norm())
	if len(events) != 1 || events[0].NoteName != "Fine" {
		t.Errorf("events = %+v", events)
	}
	if len(warnings) != 1 || warnings[0].Line != 1 {
		t.Errorf("warnings = %+v", warnings)
	}
}

func TestParse_ISORanges(t *testing.T) {
	opts := models.DefaultSyncOptions()
	opts.Formatting.SupportISODateFormat = true
	doc := strings.Join([]string{
		"2024-03-01T09:00:00Z-2024-03-04T17:00:00Z: [[Sprint]]",
		"2024-04-10T08:00:00Z: [[Demo]] #done",
		"2024-05-01T08:00:00Z - 2024-99-01T00:00:00Z: [[Broken]]",
	}, "\n")
	events, warnings := Parse(doc, opts, norm())
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].StartDate != "2024-03-01" || events[0].EndDate != "2024-03-04" {
		t.Errorf("sprint = %+v", events[0])
	}
	if events[1].StartDate != "2024-04-10" || events[1].EndDate != "2024-04-10" {
		t.Errorf("demo = %+v", events[1])
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %+v", warnings)
	}
}

func TestParse_ISOInstantFormatRoundTrip(t *testing.T) {
	opts := models.DefaultSyncOptions()
	opts.Formatting.SupportISODateFormat = true
	opts.Formatting.DateFormat = "YYYY-MM-DDTHH:mm:ssZ"
	n := dates.New(opts.Formatting.DateFormat)

	line := Line("2024-01-01T10:00:00Z", "2024-01-02T10:00:00Z", "Deploy", "", false)
	if line != "2024-01-01T10:00:00Z / 2024-01-02T10:00:00Z: [[Deploy]]" {
		t.Fatalf("line = %q", line)
	}
	events, warnings := Parse(line, opts, n)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v", warnings)
	}
	if len(events) != 1 || events[0].StartDate != "2024-01-01T10:00:00Z" || events[0].EndDate != "2024-01-02T10:00:00Z" {
		t.Errorf("events = %+v", events)
	}
}

func TestParse_CustomMarkers(t *testing.T) {
	opts := models.DefaultSyncOptions()
	opts.Formatting.GroupStartText = "section"
	opts.Formatting.GroupEndText = "section end"
	doc := "section Alpha\n2024-01-01: [[A]]\nsection end\n2024-01-02: [[B]]"
	events, _ := Parse(doc, opts, norm())
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Group == nil || *events[0].Group != "Alpha" {
		t.Errorf("A group = %v", events[0].Group)
	}
	if events[1].Group != nil {
		t.Errorf("B should be ungrouped, got %q", *events[1].Group)
	}
}

func TestClassify(t *testing.T) {
	g := NewGrammar("group", "end group")
	cases := map[string]LineKind{
		"":                        KindBlank,
		"   ":                     KindBlank,
		"group Work":              KindGroupStart,
		"groupies":                KindComment,
		"end group":               KindGroupEnd,
		"2024-01-01: [[X]]":       KindEvent,
		"no link: here":           KindComment,
		": [[Y]]":                 KindComment,
		"2024-01-01: [[unclosed]": KindComment,
	}
	for line, want := range cases {
		if got := g.Classify(line); got != want {
			t.Errorf("Classify(%q) = %v, want %v", line, got, want)
		}
	}
}

func TestRoundTrip_Idempotent(t *testing.T) {
	opts := models.DefaultSyncOptions()
	opts.Grouping.Enabled = true
	opts.Grouping.SortBy = models.SortAlpha
	entries := []models.Entry{
		mk("Kickoff", map[string]any{"date": "2024-01", "endDate": "2024-01", "group": "Phase 1", "status": "in progress"}),
		mk("Launch", map[string]any{"date": "2024-06-01", "endDate": "2024-06-01", "group": "Phase 2", "status": "planned"}),
		mk("Retro", map[string]any{"date": "2024", "endDate": "2024"}),
	}
	first := Serialize(entries, opts, norm())

	events, warnings := Parse(first, opts, norm())
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	rebuilt := make([]models.Entry, 0, len(events))
	for _, ev := range events {
		meta := map[string]any{"date": ev.StartDate, "endDate": ev.EndDate}
		if ev.Group != nil && *ev.Group != models.UngroupedName {
			meta["group"] = *ev.Group
		}
		if ev.Status != nil {
			meta["status"] = *ev.Status
		}
		rebuilt = append(rebuilt, mk(ev.NoteName, meta))
	}
	second := Serialize(rebuilt, opts, norm())
	if first != second {
		t.Errorf("round trip not idempotent:\n%s\n---\n%s", first, second)
	}
}

func TestStatusTagAndGroupName(t *testing.T) {
	if got := StatusTag(" in   progress "); got != "in-progress" {
		t.Errorf("StatusTag = %q", got)
	}
	for in, want := range map[string]string{
		"v1.0":            "v1-0",
		"waiting/blocked": "waiting-blocked",
		"50%":             "50",
		"a / b":           "a-b",
		"%%":              "",
	} {
		tag := StatusTag(in)
		if tag != want {
			t.Errorf("StatusTag(%q) = %q, want %q", in, tag, want)
		}
		if got := trailingTag("#" + tag); tag != "" && got != tag {
			t.Errorf("tag %q reads back as %q", tag, got)
		}
	}
	if got := GroupName("[[Project X|alias]]"); got != "Project X" {
		t.Errorf("GroupName = %q", got)
	}
	if got := GroupName("plain"); got != "plain" {
		t.Errorf("GroupName = %q", got)
	}
}
