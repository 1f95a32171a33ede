// Package storage defines the corpus file-system abstraction.
package storage

// Provider is the interface for corpus file operations.
type Provider interface {
	// Root returns the absolute corpus root directory.
	Root() string
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path (relative to the root).
	// Readers observe either the old or the new content, never a mix.
	Write(path string, content []byte) error
}
