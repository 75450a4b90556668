// Package filter decides which entries qualify for the timeline.
package filter

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/marksync/internal/dates"
	"github.com/starford/marksync/internal/models"
)

// Rejection explains why an entry was excluded from a cycle.
type Rejection struct {
	EntryID string
	Reason  string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.EntryID, r.Reason)
}

func reject(e models.Entry, format string, args ...any) *Rejection {
	return &Rejection{EntryID: e.ID, Reason: fmt.Sprintf(format, args...)}
}

// Validator checks entries against one immutable option set.
type Validator struct {
	opts     models.SyncOptions
	norm     *dates.Normalizer
	excluded map[string]struct{}
	required []string
	today    time.Time
}

// New returns a Validator. today is truncated to day granularity.
func New(opts models.SyncOptions, norm *dates.Normalizer, today time.Time) *Validator {
	return &Validator{
		opts:     opts,
		norm:     norm,
		excluded: opts.ExcludedStatuses(),
		required: opts.RequiredTags(),
		today:    dates.Day(today),
	}
}

// Check returns nil when the entry qualifies, otherwise a *Rejection.
func (v *Validator) Check(e models.Entry) error {
	props := v.opts.Properties

	rawStart := e.Property(props.DateProperty)
	rawEnd := e.Property(props.EndDateProperty)
	if rawStart == "" {
		return reject(e, "missing %s", props.DateProperty)
	}
	if rawEnd == "" {
		return reject(e, "missing %s", props.EndDateProperty)
	}
	start, err := v.norm.Normalize(rawStart, false)
	if err != nil || !v.norm.Valid(start) {
		return reject(e, "%s %q does not match %s", props.DateProperty, rawStart, v.norm.Format())
	}
	end, err := v.norm.Normalize(rawEnd, true)
	if err != nil || !v.norm.Valid(end) {
		return reject(e, "%s %q does not match %s", props.EndDateProperty, rawEnd, v.norm.Format())
	}

	if status := e.Property(props.StatusProperty); status != "" && len(v.excluded) > 0 {
		if _, ok := v.excluded[strings.ToLower(status)]; ok {
			return reject(e, "status %q is excluded", status)
		}
	}

	if len(v.required) > 0 && !v.tagsMatch(e) {
		mode := "any"
		if v.opts.Tags.RequireAll {
			mode = "all"
		}
		return reject(e, "tags do not include %s of %s", mode, strings.Join(v.required, ", "))
	}

	if v.opts.Filter.EnableDateFilter && !v.inDateWindow(start, end) {
		return reject(e, "outside %s date filter", v.opts.Filter.DateFilterType)
	}
	return nil
}

func (v *Validator) tagsMatch(e models.Entry) bool {
	have := EntryTags(e, v.opts.Properties.TagsProperty)
	if v.opts.Tags.RequireAll {
		for _, t := range v.required {
			if _, ok := have[t]; !ok {
				return false
			}
		}
		return true
	}
	for _, t := range v.required {
		if _, ok := have[t]; ok {
			return true
		}
	}
	return false
}

func (v *Validator) inDateWindow(start, end string) bool {
	s, ok := v.norm.Parse(start)
	if !ok {
		return false
	}
	switch v.opts.Filter.DateFilterType {
	case models.DateFilterFuture:
		return !dates.Day(s).Before(v.today)
	case models.DateFilterCurrent:
		e, ok := v.norm.Parse(end)
		if !ok {
			return false
		}
		return !dates.Day(s).After(v.today) && !dates.Day(e).Before(v.today)
	default:
		return true
	}
}

// EntryTags normalizes the entry's tag property into a lower-cased set.
// The value may be a list, or a comma- or space-delimited string.
func EntryTags(e models.Entry, property string) map[string]struct{} {
	out := make(map[string]struct{})
	if e.Metadata == nil {
		return out
	}
	for _, t := range models.PropertyList(e.Metadata[property]) {
		t = strings.ToLower(strings.TrimPrefix(t, "#"))
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

// InExcludedFolder reports whether id, relative to scope, sits below a
// folder whose name is in folders.
func InExcludedFolder(id, scope string, folders []string) bool {
	if len(folders) == 0 {
		return false
	}
	rel := strings.TrimPrefix(path.Clean(filepath.ToSlash(id)), path.Clean(filepath.ToSlash(scope))+"/")
	dir := path.Dir(rel)
	if dir == "." {
		return false
	}
	segments := strings.Split(dir, "/")
	for _, f := range folders {
		f = strings.Trim(strings.TrimSpace(filepath.ToSlash(f)), "/")
		if f == "" {
			continue
		}
		if strings.Contains(f, "/") {
			if dir == f || strings.HasPrefix(dir, f+"/") {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if seg == f {
				return true
			}
		}
	}
	return false
}
