package vault

import (
	"context"
	"fmt"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/storage"
)

// TimelineStore reads and replaces the timeline document.
type TimelineStore struct {
	store storage.Provider
}

// NewTimelineStore creates a TimelineStore over store.
func NewTimelineStore(store storage.Provider) *TimelineStore {
	return &TimelineStore{store: store}
}

// ReadDocument returns the document text and its modification time.
func (t *TimelineStore) ReadDocument(ctx context.Context, path string) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return models.Document{}, err
	}
	meta, err := t.store.Stat(path)
	if err != nil {
		return models.Document{}, err
	}
	data, err := t.store.Read(path)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{Text: string(data), ModifiedAt: meta.UpdatedAt}, nil
}

// WriteDocument replaces the whole document.
func (t *TimelineStore) WriteDocument(ctx context.Context, path, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.store.Write(path, []byte(text))
}

// Exists reports whether the document exists.
func (t *TimelineStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return t.store.Exists(path)
}

// CreateDocument creates the document and any missing parent directories.
// It fails with apperr.ErrAlreadyExists if the document is present.
func (t *TimelineStore) CreateDocument(ctx context.Context, path, text string) error {
	ok, err := t.Exists(ctx, path)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("vault: create %s: %w", path, apperr.ErrAlreadyExists)
	}
	return t.store.Write(path, []byte(text))
}
