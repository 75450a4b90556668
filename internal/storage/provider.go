// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/marksync/internal/models"

// Provider is the interface for vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parent
	// directories as needed.
	Write(path string, content []byte) error
	// Stat returns metadata for the file at path. A missing file yields an
	// error wrapping apperr.ErrNotFound.
	Stat(path string) (models.FileMeta, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
}
