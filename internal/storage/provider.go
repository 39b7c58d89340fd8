// Package storage defines the file-system abstraction used to discover
// documents and write collection output.
package storage

import "github.com/starford/siphon/internal/models"

// Provider is the interface for rooted file operations. All paths are
// relative to the provider root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns every file under dir whose name ends in ext, in lexical
	// path order.
	List(dir, ext string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
}
