// Package apperr defines the error taxonomy of a maintenance run.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrRunFailure marks errors that abort a whole run.
	ErrRunFailure = errors.New("run failure")
	// ErrUnterminatedTOC is returned when a TOC start marker has no end marker.
	ErrUnterminatedTOC = errors.New("toc start marker without end marker")
)

// ScanFailure reports a subtree that could not be enumerated.
type ScanFailure struct {
	Path string
	Err  error
}

func (e *ScanFailure) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanFailure) Unwrap() error { return e.Err }

// ParseFailure reports a malformed front matter block.
type ParseFailure struct {
	Path string
	Err  error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// WriteFailure reports a document whose repaired content could not be saved.
// The file on disk is unchanged.
type WriteFailure struct {
	Path string
	Err  error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteFailure) Unwrap() error { return e.Err }

// RunFailure wraps err so that errors.Is(err, ErrRunFailure) holds.
func RunFailure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRunFailure, fmt.Sprintf(format, args...))
}
