package models

import (
	"errors"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Group sort modes.
const (
	SortDate   = "date"
	SortAlpha  = "alpha"
	SortNumber = "number"
)

// Date filter modes.
const (
	DateFilterAll     = "all"
	DateFilterFuture  = "future"
	DateFilterCurrent = "current"
)

// UngroupedName is the sentinel group for entries without a group value.
const UngroupedName = "Ungrouped"

// SyncOptions is the engine configuration. It is treated as an immutable
// value for the duration of a cycle; use Clone before handing it to
// another goroutine.
type SyncOptions struct {
	// Bidirectional selects the default direction of triggered cycles.
	Bidirectional bool             `yaml:"bidirectional"`
	Properties    PropertyConfig   `yaml:"properties"`
	Grouping      GroupingConfig   `yaml:"grouping"`
	Formatting    FormattingConfig `yaml:"formatting"`
	Filter        FilterConfig     `yaml:"filter"`
	Tags          TagConfig        `yaml:"tags"`
	Fields        FieldSyncConfig  `yaml:"fields"`
	Debug         DebugConfig      `yaml:"debug"`
}

// PropertyConfig maps engine concepts onto frontmatter property names.
type PropertyConfig struct {
	DateProperty    string `yaml:"date"`
	EndDateProperty string `yaml:"end_date"`
	GroupProperty   string `yaml:"group"`
	StatusProperty  string `yaml:"status"`
	TagsProperty    string `yaml:"tags"`
	// AllowInline lets `key:: value` body lines supplement the frontmatter.
	AllowInline bool `yaml:"allow_inline"`
}

// GroupingConfig controls partitioning and ordering of the timeline.
type GroupingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SortBy        string `yaml:"sort_by"`
	SortEntriesBy string `yaml:"sort_entries_by"`
}

// FormattingConfig controls how lines are rendered.
type FormattingConfig struct {
	// DateFormat is a moment-style token string such as YYYY-MM-DD.
	DateFormat           string `yaml:"date_format"`
	GroupStartText       string `yaml:"group_start_text"`
	GroupEndText         string `yaml:"group_end_text"`
	ShowStatusTags       bool   `yaml:"show_status_tags"`
	SupportISODateFormat bool   `yaml:"support_iso_date_format"`
	Header               string `yaml:"header"`
}

// FilterConfig excludes entries from the timeline.
type FilterConfig struct {
	ExcludeStatus    []string `yaml:"exclude_status"`
	EnableDateFilter bool     `yaml:"enable_date_filter"`
	DateFilterType   string   `yaml:"date_filter_type"`
	ExcludeFolders   []string `yaml:"exclude_folders"`
}

// TagConfig restricts the timeline to tagged entries.
type TagConfig struct {
	Required   []string `yaml:"required"`
	RequireAll bool     `yaml:"require_all"`
}

// FieldSyncConfig toggles which fields flow back from the timeline.
type FieldSyncConfig struct {
	SyncDates  bool `yaml:"sync_dates"`
	SyncStatus bool `yaml:"sync_status"`
	SyncGroup  bool `yaml:"sync_group"`
}

// DebugConfig holds diagnostics switches.
type DebugConfig struct {
	Enabled  bool   `yaml:"enabled"`
	LogLevel string `yaml:"log_level"`
	DryRun   bool   `yaml:"dry_run"`
}

// DefaultSyncOptions returns the defaults of a fresh installation.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		Bidirectional: true,
		Properties: PropertyConfig{
			DateProperty:    "date",
			EndDateProperty: "endDate",
			GroupProperty:   "group",
			StatusProperty:  "status",
			TagsProperty:    "tags",
		},
		Grouping: GroupingConfig{
			SortBy:        SortDate,
			SortEntriesBy: SortDate,
		},
		Formatting: FormattingConfig{
			DateFormat:     "YYYY-MM-DD",
			GroupStartText: "group",
			GroupEndText:   "end group",
			ShowStatusTags: true,
		},
		Filter: FilterConfig{
			DateFilterType: DateFilterAll,
		},
		Fields: FieldSyncConfig{
			SyncDates:  true,
			SyncStatus: true,
			SyncGroup:  true,
		},
		Debug: DebugConfig{
			LogLevel: "error",
		},
	}
}

// Clone returns a deep copy.
func (o SyncOptions) Clone() SyncOptions {
	o.Filter.ExcludeStatus = slices.Clone(o.Filter.ExcludeStatus)
	o.Filter.ExcludeFolders = slices.Clone(o.Filter.ExcludeFolders)
	o.Tags.Required = slices.Clone(o.Tags.Required)
	return o
}

// Validate validates the engine configuration.
func (o *SyncOptions) Validate() error {
	if err := validation.ValidateStruct(&o.Properties,
		validation.Field(&o.Properties.DateProperty, validation.Required),
		validation.Field(&o.Properties.EndDateProperty, validation.Required),
		validation.Field(&o.Properties.GroupProperty, validation.Required),
		validation.Field(&o.Properties.StatusProperty, validation.Required),
		validation.Field(&o.Properties.TagsProperty, validation.Required),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&o.Grouping,
		validation.Field(&o.Grouping.SortBy, validation.Required, validation.In(SortDate, SortAlpha, SortNumber)),
		validation.Field(&o.Grouping.SortEntriesBy, validation.Required, validation.In(SortDate, SortAlpha)),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&o.Formatting,
		validation.Field(&o.Formatting.DateFormat, validation.Required, validation.By(dateFormatRule)),
		validation.Field(&o.Formatting.GroupStartText, validation.Required),
		validation.Field(&o.Formatting.GroupEndText, validation.Required),
	); err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(o.Formatting.GroupStartText), strings.TrimSpace(o.Formatting.GroupEndText)) {
		return errors.New("formatting: group_start_text and group_end_text must differ")
	}
	if err := validation.ValidateStruct(&o.Filter,
		validation.Field(&o.Filter.DateFilterType, validation.In(DateFilterAll, DateFilterFuture, DateFilterCurrent)),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&o.Debug,
		validation.Field(&o.Debug.LogLevel, validation.In("error", "warn", "info", "debug")),
	)
}

func dateFormatRule(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, "/[]#") {
		return errors.New("must not contain '/', '[', ']' or '#'")
	}
	return nil
}

// ExcludedStatuses returns the lower-cased status exclusion set.
func (o SyncOptions) ExcludedStatuses() map[string]struct{} {
	return lowerSet(o.Filter.ExcludeStatus)
}

// RequiredTags returns the lower-cased required tag list without blanks.
func (o SyncOptions) RequiredTags() []string {
	var out []string
	for _, t := range o.Tags.Required {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func lowerSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}
