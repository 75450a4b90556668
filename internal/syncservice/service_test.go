package syncservice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/reconcile"
	"github.com/starford/marksync/internal/sse"
	"github.com/starford/marksync/internal/testutil"
	"github.com/starford/marksync/internal/trigger"
	"github.com/starford/marksync/internal/vault"
)

type recordingPublisher struct {
	mu     sync.Mutex
	cycles []sse.Cycle
}

func (p *recordingPublisher) PublishCycle(c sse.Cycle) {
	p.mu.Lock()
	p.cycles = append(p.cycles, c)
	p.mu.Unlock()
}

func newService(t *testing.T, opts models.SyncOptions) (*Service, *recordingPublisher) {
	t.Helper()
	_, store := testutil.TestVault(t)
	testutil.WriteFile(t, store, "notes/Kickoff.md", "---\ndate: 2024-01-01\nendDate: 2024-01-05\n---\n")
	ts := vault.NewTimelineStore(store)
	rec := reconcile.New(vault.NewSource(store), ts, reconcile.Paths{Scope: "notes", Timeline: "timeline.md"}, testutil.Logger())
	pub := &recordingPublisher{}
	svc := New(rec, ts, opts, testutil.Logger(),
		WithJournal(testutil.TestJournal(t), 10),
		WithPublisher(pub),
	)
	return svc, pub
}

func TestRunNow_RecordsAndPublishes(t *testing.T) {
	svc, pub := newService(t, models.DefaultSyncOptions())
	if svc.Ready() {
		t.Fatal("service should not be ready before the first cycle")
	}

	res, err := svc.RunNow(context.Background(), "manual", "", false)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if res.Direction != models.Bidirectional || !res.WroteTimeline {
		t.Errorf("result = %+v", res)
	}

	cycles, err := svc.Cycles(10)
	if err != nil || len(cycles) != 1 {
		t.Fatalf("cycles = %v, err = %v", cycles, err)
	}
	if cycles[0].Source != "manual" || cycles[0].TimelineChecksum == "" {
		t.Errorf("journal record = %+v", cycles[0])
	}
	got, err := svc.Cycle(cycles[0].ID)
	if err != nil || got.ID != cycles[0].ID {
		t.Errorf("Cycle(%d) = %+v, %v", cycles[0].ID, got, err)
	}

	if len(pub.cycles) != 1 || pub.cycles[0].ID != cycles[0].ID {
		t.Errorf("published = %+v", pub.cycles)
	}

	st := svc.Status()
	if !svc.Ready() || st.CompletedRuns != 1 || st.LastCycle == nil || st.Running {
		t.Errorf("status = %+v", st)
	}
}

func TestRunNow_FailureIsJournaled(t *testing.T) {
	opts := models.DefaultSyncOptions()
	opts.Formatting.GroupEndText = opts.Formatting.GroupStartText
	svc, pub := newService(t, opts)

	_, err := svc.RunNow(context.Background(), "manual", models.ToTimeline, false)
	if !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	cycles, _ := svc.Cycles(10)
	if len(cycles) != 1 || cycles[0].Error == "" {
		t.Errorf("failure not journaled: %+v", cycles)
	}
	if len(pub.cycles) != 1 || pub.cycles[0].Error == "" {
		t.Errorf("failure not published: %+v", pub.cycles)
	}
}

func TestRunNow_DryRunNotJournaled(t *testing.T) {
	svc, _ := newService(t, models.DefaultSyncOptions())
	res, err := svc.RunNow(context.Background(), "cli", models.ToTimeline, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.WroteTimeline {
		t.Error("dry run wrote the timeline")
	}
	cycles, _ := svc.Cycles(10)
	if len(cycles) != 0 {
		t.Errorf("dry run journaled: %+v", cycles)
	}
	if svc.Options().Debug.DryRun {
		t.Error("dry run leaked into the service options")
	}
}

func TestTriggerAndTimeline(t *testing.T) {
	svc, _ := newService(t, models.DefaultSyncOptions())
	ctx := context.Background()

	if _, err := svc.Timeline(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Timeline before first cycle err = %v", err)
	}

	svc.Trigger(ctx, trigger.Request{Source: "interval"})

	view, err := svc.Timeline(ctx)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if view.Text != "2024-01-01 / 2024-01-05: [[Kickoff]]" {
		t.Errorf("text = %q", view.Text)
	}
	if len(view.Events) != 1 || view.Events[0].NoteName != "Kickoff" {
		t.Errorf("events = %+v", view.Events)
	}
}

func TestRunNow_Busy(t *testing.T) {
	svc, _ := newService(t, models.DefaultSyncOptions())
	svc.cycleMu.Lock()
	defer svc.cycleMu.Unlock()
	if _, err := svc.RunNow(context.Background(), "manual", "", false); !errors.Is(err, apperr.ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
}
