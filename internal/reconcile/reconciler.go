// Package reconcile runs sync cycles between vault entries and the timeline
// document.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/dates"
	"github.com/starford/marksync/internal/filter"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/parser"
	"github.com/starford/marksync/internal/timeline"
)

// EntrySource lists entries and patches their properties.
type EntrySource interface {
	ListEntries(ctx context.Context, scope string) ([]models.Entry, error)
	ReadRaw(ctx context.Context, id string) (string, error)
	PatchProperties(ctx context.Context, id string, patch models.Patch) (bool, error)
}

// TimelineStore holds the timeline document.
type TimelineStore interface {
	ReadDocument(ctx context.Context, path string) (models.Document, error)
	WriteDocument(ctx context.Context, path, text string) error
	Exists(ctx context.Context, path string) (bool, error)
	CreateDocument(ctx context.Context, path, text string) error
}

// Paths locates the entries and the timeline document.
type Paths struct {
	// Scope is the folder entries are collected from; "" is the whole vault.
	Scope string
	// Timeline is the path of the timeline document.
	Timeline string
}

// Reconciler owns the sync state and runs one cycle at a time.
type Reconciler struct {
	src    EntrySource
	store  TimelineStore
	paths  Paths
	logger *slog.Logger
	now    func() time.Time

	running sync.Mutex
	state   SyncState
}

// New creates a Reconciler.
func New(src EntrySource, store TimelineStore, paths Paths, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		src:    src,
		store:  store,
		paths:  paths,
		logger: logger,
		now:    time.Now,
	}
}

// State exposes the last observed snapshot.
func (r *Reconciler) State() *SyncState { return &r.state }

// Paths returns the configured locations.
func (r *Reconciler) Paths() Paths { return r.paths }

// cycle carries the per-run values; opts is never mutated.
type cycle struct {
	opts   models.SyncOptions
	norm   *dates.Normalizer
	dir    models.Direction
	dryRun bool
	res    *models.CycleResult
	log    *slog.Logger
}

// RunCycle runs one reconciliation cycle. Entry- and line-level problems are
// reported as warnings on the result; store failures and invalid options
// abort the cycle with an error and leave the sync state untouched. A cycle
// requested while another is running fails with apperr.ErrBusy.
func (r *Reconciler) RunCycle(ctx context.Context, opts models.SyncOptions, dir models.Direction) (*models.CycleResult, error) {
	if !r.running.TryLock() {
		return nil, apperr.ErrBusy
	}
	defer r.running.Unlock()

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("reconcile: %w: %v", apperr.ErrInvalidConfig, err)
	}
	if dir != models.ToTimeline && dir != models.Bidirectional {
		return nil, fmt.Errorf("reconcile: %w: unknown direction %q", apperr.ErrInvalidConfig, dir)
	}

	c := &cycle{
		opts:   opts,
		norm:   dates.New(opts.Formatting.DateFormat),
		dir:    dir,
		dryRun: opts.Debug.DryRun,
		res:    &models.CycleResult{Direction: dir, StartedAt: r.now(), Warnings: []string{}},
		log:    r.logger.With(slog.String("direction", string(dir))),
	}

	entries, err := r.collect(ctx, c)
	if err != nil {
		return nil, err
	}
	valid := r.validate(c, entries)
	text := timeline.Serialize(valid, opts, c.norm)

	observed, err := r.compareAndWrite(ctx, c, text)
	if err != nil {
		return nil, err
	}

	if dir == models.Bidirectional {
		observed, err = r.applyTimeline(ctx, c, entries, observed)
		if err != nil {
			return nil, err
		}
	}

	if !c.dryRun {
		r.state.setLastTimeline(observed)
	}
	c.res.FinishedAt = r.now()
	c.log.Debug("reconcile: cycle finished",
		slog.Int("entries", len(entries)),
		slog.Int("valid", len(valid)),
		slog.Int("updated", c.res.UpdatedEntryCount),
		slog.Bool("wrote_timeline", c.res.WroteTimeline),
		slog.Bool("drift", c.res.Drift),
	)
	return c.res, nil
}

// collect lists entries in scope, drops excluded folders and the timeline
// document itself, and merges inline properties when enabled.
func (r *Reconciler) collect(ctx context.Context, c *cycle) ([]models.Entry, error) {
	listed, err := r.src.ListEntries(ctx, r.paths.Scope)
	if err != nil {
		return nil, storeErr("list", r.paths.Scope, err)
	}

	entries := make([]models.Entry, 0, len(listed))
	for _, e := range listed {
		if e.ID == r.paths.Timeline {
			continue
		}
		if filter.InExcludedFolder(e.ID, r.paths.Scope, c.opts.Filter.ExcludeFolders) {
			c.log.Debug("reconcile: excluded folder", slog.String("entry", e.ID))
			continue
		}
		if c.opts.Properties.AllowInline {
			inline, err := r.inline(ctx, e)
			if err != nil {
				return nil, err
			}
			e = mergeInline(e, inline)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Reconciler) inline(ctx context.Context, e models.Entry) (map[string]string, error) {
	if m, ok := r.state.marker(e.ID); ok && e.Checksum != "" && m.checksum == e.Checksum {
		return m.inline, nil
	}
	raw, err := r.src.ReadRaw(ctx, e.ID)
	if err != nil {
		return nil, storeErr("read", e.ID, err)
	}
	res, err := parser.Parse([]byte(raw))
	if err != nil {
		return nil, storeErr("read", e.ID, err)
	}
	r.state.setMarker(e.ID, marker{checksum: e.Checksum, inline: res.Inline})
	return res.Inline, nil
}

// mergeInline fills keys the frontmatter lacks. The entry's map is copied so
// the source data is never mutated.
func mergeInline(e models.Entry, inline map[string]string) models.Entry {
	if len(inline) == 0 {
		return e
	}
	meta := make(map[string]any, len(e.Metadata)+len(inline))
	maps.Copy(meta, e.Metadata)
	for k, v := range inline {
		if models.PropertyString(meta[k]) == "" {
			meta[k] = v
		}
	}
	e.Metadata = meta
	return e
}

func (r *Reconciler) validate(c *cycle, entries []models.Entry) []models.Entry {
	v := filter.New(c.opts, c.norm, r.now())
	valid := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if err := v.Check(e); err != nil {
			var rej *filter.Rejection
			if errors.As(err, &rej) {
				c.log.Debug("reconcile: entry rejected", slog.String("entry", rej.EntryID), slog.String("reason", rej.Reason))
				c.res.Warnf("skipped %s: %s", rej.EntryID, rej.Reason)
				continue
			}
			c.res.Warnf("skipped %s: %v", e.ID, err)
			continue
		}
		valid = append(valid, e)
	}
	return valid
}

// compareAndWrite reads the current document, checks for drift and writes
// the serialized text when it differs. It returns the text the reconciler
// now knows to be stored.
func (r *Reconciler) compareAndWrite(ctx context.Context, c *cycle, text string) (string, error) {
	path := r.paths.Timeline
	exists, err := r.store.Exists(ctx, path)
	if err != nil {
		return "", storeErr("stat", path, err)
	}

	if !exists {
		if c.dryRun {
			c.res.Warnf("dry run: would create %s", path)
			return text, nil
		}
		if err := r.store.CreateDocument(ctx, path, text); err != nil {
			return "", storeErr("create", path, err)
		}
		c.res.WroteTimeline = true
		c.log.Info("reconcile: timeline created", slog.String("path", path))
		return text, nil
	}

	doc, err := r.store.ReadDocument(ctx, path)
	if err != nil {
		return "", storeErr("read", path, err)
	}

	last := r.state.LastTimeline()
	if c.dir == models.Bidirectional && last != "" && doc.Text != last {
		c.res.Drift = true
		c.res.Warnf("drift: %s changed since the last sync; timeline write skipped", path)
		c.log.Warn("reconcile: drift detected", slog.String("path", path))
		return doc.Text, nil
	}

	if strings.TrimSpace(doc.Text) == strings.TrimSpace(text) {
		return doc.Text, nil
	}
	if c.dryRun {
		c.res.Warnf("dry run: would write %s", path)
		return doc.Text, nil
	}
	if err := r.store.WriteDocument(ctx, path, text); err != nil {
		return "", storeErr("write", path, err)
	}
	r.state.setLastTimeline(text)
	c.res.WroteTimeline = true
	c.log.Info("reconcile: timeline written", slog.String("path", path))
	return text, nil
}

// applyTimeline re-reads the document, parses it and patches entries. It
// returns the text that was read.
func (r *Reconciler) applyTimeline(ctx context.Context, c *cycle, entries []models.Entry, observed string) (string, error) {
	path := r.paths.Timeline
	text := observed
	if !c.dryRun {
		doc, err := r.store.ReadDocument(ctx, path)
		if err != nil {
			return "", storeErr("read", path, err)
		}
		text = doc.Text
	}

	events, warnings := timeline.Parse(text, c.opts, c.norm)
	for _, w := range warnings {
		c.log.Debug("reconcile: timeline line discarded", slog.Int("line", w.Line), slog.String("reason", w.Reason))
		c.res.Warnf("timeline %s", w.String())
	}

	byTitle := make(map[string][]models.Entry, len(entries))
	for _, e := range entries {
		byTitle[e.Title] = append(byTitle[e.Title], e)
	}

	for _, ev := range events {
		matches := byTitle[ev.NoteName]
		switch len(matches) {
		case 0:
			continue
		case 1:
		default:
			c.res.Warnf("timeline line %d: %q matches %d entries; skipped", ev.Line, ev.NoteName, len(matches))
			continue
		}
		e := matches[0]
		patch := buildPatch(e, ev, c.opts, c.norm)
		if len(patch) == 0 {
			continue
		}
		if c.dryRun {
			c.res.Warnf("dry run: would update %s (%s)", e.ID, strings.Join(patchKeys(patch), ", "))
			continue
		}
		changed, err := r.src.PatchProperties(ctx, e.ID, patch)
		if err != nil {
			return "", storeErr("patch", e.ID, err)
		}
		if changed {
			r.state.forget(e.ID)
			c.res.UpdatedEntryCount++
			c.log.Debug("reconcile: entry updated", slog.String("entry", e.ID))
		}
	}
	return text, nil
}
