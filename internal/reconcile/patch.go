package reconcile

import (
	"sort"

	"github.com/starford/marksync/internal/dates"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/timeline"
)

// buildPatch compares one event with its entry and returns the property
// changes allowed by the field toggles. Values are compared after
// canonicalization so that equivalent notations are not rewritten.
func buildPatch(e models.Entry, ev models.TimelineEvent, opts models.SyncOptions, norm *dates.Normalizer) models.Patch {
	props := opts.Properties
	patch := models.Patch{}

	if opts.Fields.SyncDates {
		if start, _ := norm.Normalize(e.Property(props.DateProperty), false); start != ev.StartDate {
			patch[props.DateProperty] = ev.StartDate
		}
		if end, _ := norm.Normalize(e.Property(props.EndDateProperty), true); end != ev.EndDate {
			patch[props.EndDateProperty] = ev.EndDate
		}
	}

	if opts.Fields.SyncStatus && ev.Status != nil {
		if timeline.StatusTag(e.Property(props.StatusProperty)) != *ev.Status {
			patch[props.StatusProperty] = *ev.Status
		}
	}

	if opts.Fields.SyncGroup && ev.Group != nil {
		current := timeline.GroupName(e.Property(props.GroupProperty))
		switch {
		case *ev.Group == models.UngroupedName:
			if e.HasProperty(props.GroupProperty) {
				patch[props.GroupProperty] = nil
			}
		case current != *ev.Group:
			patch[props.GroupProperty] = *ev.Group
		}
	}
	return patch
}

func patchKeys(p models.Patch) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
