// Package storage defines the vault file-system abstraction. Document
// content lives as <id>.md files in a flat vault directory; the file system
// is the source of truth for content, the SQLite index for everything else.
package storage

import "github.com/starford/othala/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every document file in the vault.
	List() ([]models.DocumentMetadata, error)
	// Read returns the raw content of the document with the given id.
	Read(id string) ([]byte, error)
	// Write atomically writes content for the document with the given id.
	Write(id string, content []byte) error
	// Remove deletes the document file. Used only by index reconciliation;
	// ordinary deletes are soft and leave the file in place.
	Remove(id string) error
	// Exists reports whether a file for id is present.
	Exists(id string) bool
}
