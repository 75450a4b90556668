package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/marksync/internal/dates"
	"github.com/starford/marksync/internal/models"
)

var today = time.Date(2024, time.June, 15, 13, 0, 0, 0, time.UTC)

func entry(meta map[string]any) models.Entry {
	return models.Entry{ID: "notes/e.md", Title: "e", Metadata: meta}
}

func validator(opts models.SyncOptions) *Validator {
	return New(opts, dates.New(opts.Formatting.DateFormat), today)
}

func TestCheck_RequiresDates(t *testing.T) {
	v := validator(models.DefaultSyncOptions())
	if err := v.Check(entry(map[string]any{"date": "2024-01-01"})); err == nil {
		t.Error("entry without end date should be rejected")
	}
	if err := v.Check(entry(map[string]any{"endDate": "2024-01-01"})); err == nil {
		t.Error("entry without start date should be rejected")
	}
	if err := v.Check(entry(map[string]any{"date": "2024", "endDate": "2024-02"})); err != nil {
		t.Errorf("partial dates should pass: %v", err)
	}
}

func TestCheck_MalformedDateRejected(t *testing.T) {
	v := validator(models.DefaultSyncOptions())
	err := v.Check(entry(map[string]any{"date": "whenever", "endDate": "2024-01-01"}))
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *Rejection, got %v", err)
	}
	if rej.EntryID != "notes/e.md" {
		t.Errorf("entry id = %q", rej.EntryID)
	}
}

func TestCheck_ExcludedStatus(t *testing.T) {
	opts := models.DefaultSyncOptions()
	opts.Filter.ExcludeStatus = []string{"Done", " cancelled ", ""}
	v := validator(opts)
	base := map[string]any{"date": "2024-01-01", "endDate": "2024-01-02"}

	done := copyMeta(base)
	done["status"] = "DONE"
	if err := v.Check(entry(done)); err == nil {
		t.Error("excluded status should be rejected regardless of case")
	}

	active := copyMeta(base)
	active["status"] = "active"
	if err := v.Check(entry(active)); err != nil {
		t.Errorf("active status should pass: %v", err)
	}

	if err := v.Check(entry(base)); err != nil {
		t.Errorf("missing status should pass: %v", err)
	}
}

func TestCheck_RequiredTags(t *testing.T) {
	opts := models.DefaultSyncOptions()
	opts.Tags.Required = []string{"goal", "focus"}
	meta := map[string]any{"date": "2024-01-01", "endDate": "2024-01-02", "tags": []string{"focus"}}

	if err := validator(opts).Check(entry(meta)); err != nil {
		t.Errorf("require-any with one match should pass: %v", err)
	}

	opts.Tags.RequireAll = true
	if err := validator(opts).Check(entry(meta)); err == nil {
		t.Error("require-all with one match should be rejected")
	}

	meta["tags"] = "Goal, #focus"
	if err := validator(opts).Check(entry(meta)); err != nil {
		t.Errorf("delimited string with both tags should pass: %v", err)
	}
}

func TestCheck_DateFilter(t *testing.T) {
	opts := models.DefaultSyncOptions()
	opts.Filter.EnableDateFilter = true

	opts.Filter.DateFilterType = models.DateFilterFuture
	v := validator(opts)
	if err := v.Check(entry(map[string]any{"date": "2024-06-15", "endDate": "2024-06-20"})); err != nil {
		t.Errorf("start today counts as future: %v", err)
	}
	if err := v.Check(entry(map[string]any{"date": "2024-06-14", "endDate": "2024-06-20"})); err == nil {
		t.Error("past start should be rejected by future filter")
	}

	opts.Filter.DateFilterType = models.DateFilterCurrent
	v = validator(opts)
	if err := v.Check(entry(map[string]any{"date": "2024-06-01", "endDate": "2024-06-15"})); err != nil {
		t.Errorf("interval ending today should be current: %v", err)
	}
	if err := v.Check(entry(map[string]any{"date": "2024-06-16", "endDate": "2024-06-30"})); err == nil {
		t.Error("future interval should not be current")
	}

	opts.Filter.DateFilterType = models.DateFilterAll
	if err := validator(opts).Check(entry(map[string]any{"date": "1990", "endDate": "1990"})); err != nil {
		t.Errorf("all filter should pass: %v", err)
	}
}

func TestEntryTags(t *testing.T) {
	e := entry(map[string]any{"tags": "alpha beta,Gamma"})
	got := EntryTags(e, "tags")
	for _, want := range []string{"alpha", "beta", "gamma"} {
		if _, ok := got[want]; !ok {
			t.Errorf("missing tag %q in %v", want, got)
		}
	}
}

func TestInExcludedFolder(t *testing.T) {
	folders := []string{"archive", "projects/old"}
	cases := map[string]bool{
		"notes/a.md":                  false,
		"notes/archive/a.md":          true,
		"notes/x/archive/a.md":        true,
		"notes/projects/old/a.md":     true,
		"notes/projects/current/a.md": false,
		"notes/archived/a.md":         false,
	}
	for id, want := range cases {
		if got := InExcludedFolder(id, "notes", folders); got != want {
			t.Errorf("InExcludedFolder(%q) = %v, want %v", id, got, want)
		}
	}
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
