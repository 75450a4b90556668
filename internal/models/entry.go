// Package models defines the domain types for marksync.
package models

import "time"

// Entry is one syncable note with dated metadata.
type Entry struct {
	// ID is the vault-relative path of the note (stable reference).
	ID string `json:"id"`
	// Title is the file name without the .md extension.
	Title string `json:"title"`
	// Metadata maps property names to values. Scalars are kept as their
	// source text; sequences of scalars become []string.
	Metadata   map[string]any `json:"metadata,omitempty"`
	Checksum   string         `json:"checksum"`
	ModifiedAt time.Time      `json:"modified_at"`
}

// Property returns the named property as a trimmed string.
// List values are joined with ", ". Missing properties yield "".
func (e Entry) Property(name string) string {
	if e.Metadata == nil || name == "" {
		return ""
	}
	return PropertyString(e.Metadata[name])
}

// HasProperty reports whether the property is present with a non-empty value.
func (e Entry) HasProperty(name string) bool {
	return e.Property(name) != ""
}

// TimelineEvent is one dated line parsed from the timeline document.
type TimelineEvent struct {
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	NoteName  string  `json:"note_name"`
	Group     *string `json:"group,omitempty"`
	Status    *string `json:"status,omitempty"`
	// Line is the 1-based line number in the document, kept for diagnostics.
	Line int `json:"line"`
}

// FileMeta is a lightweight vault listing record.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the timeline document as read from the store.
type Document struct {
	Text       string    `json:"text"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Patch maps property names to new values. A nil value deletes the property
// if present; keys not in the patch are left untouched.
type Patch map[string]any
