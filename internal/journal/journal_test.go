package journal

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "marksync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM cycles`).Scan(&count); err != nil {
		t.Fatalf("cycles table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM cycle_warnings`).Scan(&count); err != nil {
		t.Fatalf("cycle_warnings table missing: %v", err)
	}
}

func TestRecordAndGet(t *testing.T) {
	db := testDB(t)
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	res := &models.CycleResult{
		Direction:         models.Bidirectional,
		UpdatedEntryCount: 2,
		WroteTimeline:     true,
		Drift:             true,
		Warnings:          []string{"first", "second"},
		StartedAt:         start,
		FinishedAt:        start.Add(time.Second),
	}
	rec := FromResult("manual", res)
	rec.TimelineChecksum = "abc"

	id, err := db.Record(rec)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := db.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Source != "manual" || got.Direction != models.Bidirectional || got.UpdatedEntryCount != 2 {
		t.Errorf("got %+v", got)
	}
	if !got.WroteTimeline || !got.Drift || got.TimelineChecksum != "abc" {
		t.Errorf("flags lost: %+v", got)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, start)
	}
	if got.WarningCount != 2 || len(got.Warnings) != 2 || got.Warnings[0] != "first" {
		t.Errorf("warnings = %d %v", got.WarningCount, got.Warnings)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get(42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecentAndPrune(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		_, err := db.Record(Record{Source: "interval", Direction: models.ToTimeline, StartedAt: now, FinishedAt: now, Warnings: []string{"w"}})
		if err != nil {
			t.Fatal(err)
		}
	}
	_, _ = db.Record(Record{Source: "manual", Direction: models.ToTimeline, StartedAt: now, FinishedAt: now, Error: "boom"})

	recent, err := db.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	if recent[0].Error != "boom" || recent[0].Source != "manual" {
		t.Errorf("newest first expected, got %+v", recent[0])
	}
	if recent[1].WarningCount != 1 || recent[1].Warnings != nil {
		t.Errorf("recent should carry counts only: %+v", recent[1])
	}

	if err := db.Prune(2); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	all, _ := db.Recent(100)
	if len(all) != 2 {
		t.Errorf("after prune len = %d, want 2", len(all))
	}
	var orphans int
	_ = db.conn.QueryRow(`SELECT count(*) FROM cycle_warnings WHERE cycle_id NOT IN (SELECT id FROM cycles)`).Scan(&orphans)
	if orphans != 0 {
		t.Errorf("orphan warnings = %d", orphans)
	}
}
