package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// tempPattern names in-flight writes. The leading dot keeps them out of
// scans that skip hidden files.
const tempPattern = ".ansuz-tmp-*"

const defaultMode fs.FileMode = 0o644

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute corpus root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if err := listable(abs); err != nil {
		return nil, fmt.Errorf("storage: read root: %w", err)
	}
	return &FS{root: abs}, nil
}

// listable fails when dir exists but its entries cannot be read, which
// os.Stat alone does not detect.
func listable(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if _, err := d.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Root returns the absolute corpus root.
func (f *FS) Root() string { return f.root }

// resolve maps a corpus-relative slash path onto the file system. Paths
// that are absolute or climb out of the root are rejected.
func (f *FS) resolve(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("storage: path outside corpus root: %q", rel)
	}
	return filepath.Join(f.root, local), nil
}

// Read returns the raw bytes of a corpus file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces the file at path with content. The new bytes go to a
// temporary sibling that is synced and renamed over the target, so the
// target is never observed half-written. An existing file keeps its
// permission bits.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if abs, err = f.target(abs); err != nil {
		return fmt.Errorf("storage: resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", path, err)
	}
	mode, err := modeOf(abs)
	if err != nil {
		return fmt.Errorf("storage: stat %s: %w", path, err)
	}
	if err := replace(abs, content, mode); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// target follows a symlinked document to the file it names, so the
// rename replaces that file and the link survives. Links resolving
// outside the corpus root are refused.
func (f *FS) target(abs string) (string, error) {
	info, err := os.Lstat(abs)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return abs, nil
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	root, err := filepath.EvalSymlinks(f.root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("symlink leaves corpus root: %s", resolved)
	}
	return resolved, nil
}

func modeOf(abs string) (fs.FileMode, error) {
	info, err := os.Stat(abs)
	switch {
	case err == nil:
		return info.Mode().Perm(), nil
	case errors.Is(err, fs.ErrNotExist):
		return defaultMode, nil
	default:
		return 0, err
	}
}

// replace performs tmp → chmod → fsync → rename. The temporary file is
// removed on every failure path.
func replace(abs string, content []byte, mode fs.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(abs), tempPattern)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), abs)
}
