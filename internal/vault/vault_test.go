package vault

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/storage"
)

func newStore(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestListEntries(t *testing.T) {
	store := newStore(t)
	_ = store.Write("notes/Kickoff.md", []byte("---\ndate: 2024-01-01\nendDate: 2024-01-02\n---\nbody\n"))
	_ = store.Write("notes/sub/Plain.md", []byte("no frontmatter\n"))
	_ = store.Write("other/Outside.md", []byte("---\ndate: 2024\n---\n"))

	src := NewSource(store)
	entries, err := src.ListEntries(context.Background(), "notes")
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	byTitle := map[string]models.Entry{}
	for _, e := range entries {
		byTitle[e.Title] = e
	}
	k, ok := byTitle["Kickoff"]
	if !ok {
		t.Fatalf("Kickoff missing: %+v", entries)
	}
	if k.ID != "notes/Kickoff.md" || k.Property("date") != "2024-01-01" || k.Checksum == "" {
		t.Errorf("kickoff = %+v", k)
	}
	if byTitle["Plain"].Metadata != nil {
		t.Errorf("plain note should have no metadata")
	}
}

func TestListEntries_Cancelled(t *testing.T) {
	store := newStore(t)
	_ = store.Write("a.md", []byte("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSource(store).ListEntries(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPatchProperties(t *testing.T) {
	store := newStore(t)
	_ = store.Write("n.md", []byte("---\ndate: 2024-01-01\nowner: me\n---\nbody\n"))
	src := NewSource(store)
	ctx := context.Background()

	changed, err := src.PatchProperties(ctx, "n.md", models.Patch{"date": "2024-02-01"})
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	raw, _ := src.ReadRaw(ctx, "n.md")
	if !strings.Contains(raw, "date: 2024-02-01") || !strings.Contains(raw, "owner: me") || !strings.HasSuffix(raw, "body\n") {
		t.Errorf("raw = %q", raw)
	}

	changed, err = src.PatchProperties(ctx, "n.md", models.Patch{"date": "2024-02-01"})
	if err != nil || changed {
		t.Errorf("second patch changed=%v err=%v", changed, err)
	}
}

func TestTitle(t *testing.T) {
	if got := Title("notes/sub/My Note.md"); got != "My Note" {
		t.Errorf("Title = %q", got)
	}
}

func TestTimelineStore(t *testing.T) {
	store := newStore(t)
	ts := NewTimelineStore(store)
	ctx := context.Background()

	ok, err := ts.Exists(ctx, "plans/timeline.md")
	if err != nil || ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if _, err := ts.ReadDocument(ctx, "plans/timeline.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read missing err = %v", err)
	}
	if err := ts.CreateDocument(ctx, "plans/timeline.md", "A"); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := ts.CreateDocument(ctx, "plans/timeline.md", "A"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second create err = %v", err)
	}
	if err := ts.WriteDocument(ctx, "plans/timeline.md", "B"); err != nil {
		t.Fatal(err)
	}
	doc, err := ts.ReadDocument(ctx, "plans/timeline.md")
	if err != nil || doc.Text != "B" || doc.ModifiedAt.IsZero() {
		t.Errorf("doc = %+v err = %v", doc, err)
	}
}
