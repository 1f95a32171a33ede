// Package watch re-runs maintenance when corpus files change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/apperr"
)

// DefaultDebounce is the quiet period after the last relevant event
// before a run starts.
const DefaultDebounce = 300 * time.Millisecond

// Matcher decides which paths matter. Paths are corpus-relative.
type Matcher interface {
	// Includes reports whether a change to the file rel should trigger a run.
	Includes(rel string) bool
	// Prunes reports whether the directory rel is outside the corpus.
	Prunes(rel string) bool
}

// RunFunc performs one maintenance pass.
type RunFunc func(ctx context.Context) error

// Option configures Watch.
type Option func(*watcher)

// WithDebounce sets the quiet period before a run.
func WithDebounce(d time.Duration) Option {
	return func(w *watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *watcher) { w.logger = l }
}

type watcher struct {
	root     string
	match    Matcher
	run      RunFunc
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// Watch runs once, then again after every burst of relevant changes under
// root, until ctx is cancelled. Runs never overlap: changes seen during a
// run schedule exactly one more run. Directories created at runtime are
// added to the watch list.
//
// A run that fails with apperr.ErrRunFailure stops the watch and its error
// is returned. Other run errors are logged. Cancellation returns nil.
func Watch(ctx context.Context, root string, match Matcher, run RunFunc, opts ...Option) error {
	w := &watcher{
		root:     root,
		match:    match,
		run:      run,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	w.fsw = fsw

	if err := w.addDirs(root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", root))
	return w.loop(ctx)
}

func (w *watcher) loop(ctx context.Context) error {
	done := make(chan error, 1)
	running, pending := false, false
	start := func() {
		running = true
		go func() { done <- w.run(ctx) }()
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Reset(w.debounce)
		}
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	start()
	for {
		select {
		case <-ctx.Done():
			if running {
				<-done
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerC:
			timerC = nil
			if running {
				pending = true
				continue
			}
			start()

		case err := <-done:
			running = false
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				if errors.Is(err, apperr.ErrRunFailure) {
					return err
				}
				w.logger.Error("watcher: run failed", slog.String("error", err.Error()))
			}
			if pending {
				pending = false
				start()
			}

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// handle reports whether ev should trigger a run.
func (w *watcher) handle(ev fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	if ev.Has(fsnotify.Create) {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if w.match.Prunes(rel) {
				return false
			}
			if addErr := w.addDirs(ev.Name); addErr != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", rel),
					slog.String("error", addErr.Error()))
				return false
			}
			w.logger.Debug("watcher: watching new dir", slog.String("path", rel))
			// Files may have landed before the watch was added.
			return true
		}
	}

	if !w.match.Includes(rel) {
		return false
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	w.logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
	return true
}

// addDirs adds dir and its subdirectories to the watcher, skipping pruned
// directories.
func (w *watcher) addDirs(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root {
			rel, relErr := filepath.Rel(w.root, p)
			if relErr == nil && w.match.Prunes(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(p)
	})
}
