// Package syncservice coordinates reconciliation cycles with the journal and
// the notification broker.
package syncservice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/checksum"
	"github.com/starford/marksync/internal/dates"
	"github.com/starford/marksync/internal/journal"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/reconcile"
	"github.com/starford/marksync/internal/sse"
	"github.com/starford/marksync/internal/timeline"
	"github.com/starford/marksync/internal/trigger"
)

// Publisher receives cycle notifications.
type Publisher interface {
	PublishCycle(c sse.Cycle)
}

// DocumentReader reads the timeline document.
type DocumentReader interface {
	ReadDocument(ctx context.Context, path string) (models.Document, error)
}

// Status is the externally visible service state.
type Status struct {
	Running       bool            `json:"running"`
	Direction     string          `json:"default_direction"`
	TimelinePath  string          `json:"timeline_path"`
	LastTimeline  string          `json:"last_timeline_checksum,omitempty"`
	LastCycle     *journal.Record `json:"last_cycle,omitempty"`
	CompletedRuns int             `json:"completed_runs"`
}

// TimelineView is the timeline document together with its parsed events.
type TimelineView struct {
	Path       string                 `json:"path"`
	Text       string                 `json:"text"`
	ModifiedAt time.Time              `json:"modified_at"`
	Events     []models.TimelineEvent `json:"events"`
	Warnings   []string               `json:"warnings"`
}

// Service runs cycles one at a time and keeps the last result.
type Service struct {
	rec     *reconcile.Reconciler
	docs    DocumentReader
	journal journal.Journal
	pub     Publisher
	opts    models.SyncOptions
	keep    int
	logger  *slog.Logger

	cycleMu sync.Mutex

	mu      sync.RWMutex
	running bool
	last    *journal.Record
	runs    int
}

// Option configures a Service.
type Option func(*Service)

// WithJournal records every cycle in j.
func WithJournal(j journal.Journal, keep int) Option {
	return func(s *Service) {
		s.journal = j
		s.keep = keep
	}
}

// WithPublisher announces every cycle on p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// New creates a Service. opts is copied and never mutated.
func New(rec *reconcile.Reconciler, docs DocumentReader, opts models.SyncOptions, logger *slog.Logger, options ...Option) *Service {
	s := &Service{
		rec:    rec,
		docs:   docs,
		opts:   opts.Clone(),
		logger: logger,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Options returns a copy of the engine options.
func (s *Service) Options() models.SyncOptions { return s.opts.Clone() }

// DefaultDirection is the direction used by triggered cycles.
func (s *Service) DefaultDirection() models.Direction {
	if s.opts.Bidirectional {
		return models.Bidirectional
	}
	return models.ToTimeline
}

// RunNow runs a cycle immediately. It fails with apperr.ErrBusy if a cycle
// is already running. An empty dir selects the default direction.
func (s *Service) RunNow(ctx context.Context, source string, dir models.Direction, dryRun bool) (*models.CycleResult, error) {
	if !s.cycleMu.TryLock() {
		return nil, apperr.ErrBusy
	}
	defer s.cycleMu.Unlock()
	return s.run(ctx, source, dir, dryRun)
}

// Trigger runs a cycle for a coalesced trigger request, waiting for any
// cycle in flight. Failures are logged and journaled, not returned.
func (s *Service) Trigger(ctx context.Context, req trigger.Request) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	_, _ = s.run(ctx, req.Source, "", false)
}

func (s *Service) run(ctx context.Context, source string, dir models.Direction, dryRun bool) (*models.CycleResult, error) {
	if dir == "" {
		dir = s.DefaultDirection()
	}
	opts := s.opts.Clone()
	dryRun = dryRun || opts.Debug.DryRun
	opts.Debug.DryRun = dryRun

	s.setRunning(true)
	defer s.setRunning(false)

	started := time.Now()
	res, err := s.rec.RunCycle(ctx, opts, dir)
	if errors.Is(err, apperr.ErrBusy) {
		return nil, err
	}

	var rec journal.Record
	if err != nil {
		rec = journal.Record{
			Source:     source,
			Direction:  dir,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Error:      err.Error(),
		}
		s.logger.Error("sync: cycle failed",
			slog.String("source", source),
			slog.String("direction", string(dir)),
			slog.String("error", err.Error()))
	} else {
		rec = journal.FromResult(source, res)
		if res.Drift {
			s.logger.Warn("sync: timeline changed externally, write skipped",
				slog.String("source", source))
		}
		s.logger.Info("sync: cycle completed",
			slog.String("source", source),
			slog.String("direction", string(dir)),
			slog.Int("updated", res.UpdatedEntryCount),
			slog.Bool("wrote_timeline", res.WroteTimeline),
			slog.Int("warnings", len(res.Warnings)))
	}
	rec.TimelineChecksum = checksum.Text(s.rec.State().LastTimeline())

	if s.journal != nil && !dryRun {
		id, jerr := s.journal.Record(rec)
		if jerr != nil {
			s.logger.Warn("sync: journal record failed", slog.String("error", jerr.Error()))
		} else {
			rec.ID = id
			if s.keep > 0 {
				if perr := s.journal.Prune(s.keep); perr != nil {
					s.logger.Warn("sync: journal prune failed", slog.String("error", perr.Error()))
				}
			}
		}
	}

	if s.pub != nil {
		s.pub.PublishCycle(sse.Cycle{
			ID:                rec.ID,
			Source:            rec.Source,
			Direction:         string(rec.Direction),
			UpdatedEntryCount: rec.UpdatedEntryCount,
			WroteTimeline:     rec.WroteTimeline,
			Drift:             rec.Drift,
			WarningCount:      rec.WarningCount,
			Error:             rec.Error,
		})
	}

	s.mu.Lock()
	s.last = &rec
	s.runs++
	s.mu.Unlock()
	return res, err
}

func (s *Service) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

// Status returns the current service state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Running:       s.running,
		Direction:     string(s.DefaultDirection()),
		TimelinePath:  s.rec.Paths().Timeline,
		LastCycle:     s.last,
		CompletedRuns: s.runs,
	}
	st.LastTimeline = checksum.Text(s.rec.State().LastTimeline())
	return st
}

// Ready reports whether at least one cycle has finished.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs > 0
}

// Timeline reads the timeline document and parses it with the engine
// options.
func (s *Service) Timeline(ctx context.Context) (*TimelineView, error) {
	path := s.rec.Paths().Timeline
	doc, err := s.docs.ReadDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	events, warnings := timeline.Parse(doc.Text, s.opts, dates.New(s.opts.Formatting.DateFormat))
	view := &TimelineView{
		Path:       path,
		Text:       doc.Text,
		ModifiedAt: doc.ModifiedAt,
		Events:     nonNilSlice(events),
		Warnings:   make([]string, 0, len(warnings)),
	}
	for _, w := range warnings {
		view.Warnings = append(view.Warnings, w.String())
	}
	return view, nil
}

// Cycles returns the most recent journaled cycles.
func (s *Service) Cycles(limit int) ([]journal.Record, error) {
	if s.journal == nil {
		return []journal.Record{}, nil
	}
	return s.journal.Recent(limit)
}

// Cycle returns one journaled cycle with its warnings.
func (s *Service) Cycle(id int64) (*journal.Record, error) {
	if s.journal == nil {
		return nil, apperr.ErrNotFound
	}
	return s.journal.Get(id)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
