// Package vault adapts a storage.Provider to the entry source and timeline
// store used by the reconciler.
package vault

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/starford/marksync/internal/checksum"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/parser"
	"github.com/starford/marksync/internal/storage"
)

// Source lists vault notes as entries and patches their frontmatter.
type Source struct {
	store storage.Provider
}

// NewSource creates a Source over store.
func NewSource(store storage.Provider) *Source {
	return &Source{store: store}
}

// ListEntries returns every note under scope. The entry ID is the
// vault-relative path and the title is the file name without extension.
func (s *Source) ListEntries(ctx context.Context, scope string) ([]models.Entry, error) {
	metas, err := s.store.List(scope)
	if err != nil {
		return nil, fmt.Errorf("vault: list %q: %w", scope, err)
	}
	entries := make([]models.Entry, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			return nil, fmt.Errorf("vault: read %s: %w", m.Path, err)
		}
		res, err := parser.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("vault: parse %s: %w", m.Path, err)
		}
		entries = append(entries, models.Entry{
			ID:         m.Path,
			Title:      Title(m.Path),
			Metadata:   res.Frontmatter,
			Checksum:   checksum.Sum(data),
			ModifiedAt: m.UpdatedAt,
		})
	}
	return entries, nil
}

// ReadRaw returns the full text of the note.
func (s *Source) ReadRaw(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := s.store.Read(id)
	if err != nil {
		return "", fmt.Errorf("vault: read %s: %w", id, err)
	}
	return string(data), nil
}

// PatchProperties applies patch to the note's frontmatter. Keys not in the
// patch and the note body are preserved. It reports whether the note was
// rewritten.
func (s *Source) PatchProperties(ctx context.Context, id string, patch models.Patch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, err := s.store.Read(id)
	if err != nil {
		return false, fmt.Errorf("vault: read %s: %w", id, err)
	}
	out, changed, err := parser.PatchFrontmatter(data, patch)
	if err != nil {
		return false, fmt.Errorf("vault: patch %s: %w", id, err)
	}
	if !changed {
		return false, nil
	}
	if err := s.store.Write(id, out); err != nil {
		return false, fmt.Errorf("vault: write %s: %w", id, err)
	}
	return true, nil
}

// Title derives the display title of a note from its path.
func Title(p string) string {
	return strings.TrimSuffix(path.Base(p), ".md")
}
