// Package scanner enumerates the documents of a corpus.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/ansuz/internal/apperr"
)

// Options controls which entries a walk yields.
type Options struct {
	// Extensions lists the document extensions, compared case-insensitively.
	Extensions []string
	// SkipPrefixes drops any file or directory whose name starts with one of them.
	SkipPrefixes []string
	// ExcludeDirs prunes directories with these names at any depth.
	ExcludeDirs []string
	// Quarantine prunes these directory names directly under the root.
	Quarantine []string
	// Exclude holds doublestar patterns matched against corpus-relative paths.
	Exclude []string
}

// Scanner walks one corpus root.
type Scanner struct {
	root string
	opts Options
	exts map[string]struct{}
}

// New returns a scanner for root. A missing or unreadable root is a run failure.
func New(root string, opts Options) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.RunFailure("resolve root %s: %v", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperr.RunFailure("stat root: %v", err)
	}
	if !info.IsDir() {
		return nil, apperr.RunFailure("root is not a directory: %s", abs)
	}
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("scanner: invalid exclude pattern %q", p)
		}
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &Scanner{root: abs, opts: opts, exts: exts}, nil
}

// Root returns the absolute root the scanner walks.
func (s *Scanner) Root() string { return s.root }

// Walk returns a fresh traversal of the corpus. Each element is either a
// corpus-relative document path with a nil error, or a subtree that could
// not be read with an *apperr.ScanFailure. A root that cannot be read, or a
// cancelled ctx, ends the sequence with an error wrapping apperr.ErrRunFailure.
func (s *Scanner) Walk(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		_ = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				yield("", apperr.RunFailure("scan cancelled: %v", err))
				return filepath.SkipAll
			}
			if p == s.root {
				if walkErr != nil {
					yield("", apperr.RunFailure("read root: %v", walkErr))
					return filepath.SkipAll
				}
				return nil
			}

			rel, err := filepath.Rel(s.root, p)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if walkErr != nil {
				if !yield(rel, &apperr.ScanFailure{Path: rel, Err: walkErr}) {
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if s.skipDir(rel, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.wantFile(rel, d.Name()) {
				return nil
			}
			if !yield(rel, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Collect drains a walk into document paths and scan failures. A run
// failure stops collection and is returned as err.
func (s *Scanner) Collect(ctx context.Context) (paths []string, failures []error, err error) {
	for p, walkErr := range s.Walk(ctx) {
		if walkErr == nil {
			paths = append(paths, p)
			continue
		}
		var sf *apperr.ScanFailure
		if errors.As(walkErr, &sf) {
			failures = append(failures, walkErr)
			continue
		}
		return paths, failures, walkErr
	}
	return paths, failures, nil
}

// Prunes reports whether a walk skips the directory rel or one of its
// ancestors.
func (s *Scanner) Prunes(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i := range parts {
		if s.skipDir(strings.Join(parts[:i+1], "/"), parts[i]) {
			return true
		}
	}
	return false
}

// Includes reports whether a walk would yield the file rel, without
// touching the file system.
func (s *Scanner) Includes(rel string) bool {
	rel = filepath.ToSlash(rel)
	dir, name := path.Split(rel)
	if dir != "" && s.Prunes(strings.TrimSuffix(dir, "/")) {
		return false
	}
	return s.wantFile(rel, name)
}

func (s *Scanner) skipDir(rel, name string) bool {
	if s.hasSkipPrefix(name) {
		return true
	}
	if slices.Contains(s.opts.ExcludeDirs, name) {
		return true
	}
	if !strings.Contains(rel, "/") && slices.Contains(s.opts.Quarantine, name) {
		return true
	}
	return s.excluded(rel)
}

func (s *Scanner) wantFile(rel, name string) bool {
	if s.hasSkipPrefix(name) {
		return false
	}
	if _, ok := s.exts[strings.ToLower(filepath.Ext(name))]; !ok {
		return false
	}
	return !s.excluded(rel)
}

func (s *Scanner) hasSkipPrefix(name string) bool {
	for _, prefix := range s.opts.SkipPrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
