package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/testutil"
)

// suffixMatcher includes .md files and prunes dot directories.
type suffixMatcher struct{}

func (suffixMatcher) Includes(rel string) bool { return strings.HasSuffix(rel, ".md") }

func (suffixMatcher) Prunes(rel string) bool { return strings.HasPrefix(filepath.Base(rel), ".") }

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type harness struct {
	runs   atomic.Int32
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, root string, run RunFunc) *harness {
	t.Helper()
	h := &harness{done: make(chan error, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	if run == nil {
		run = func(context.Context) error {
			h.runs.Add(1)
			return nil
		}
	}
	go func() {
		h.done <- Watch(ctx, root, suffixMatcher{}, run,
			WithDebounce(50*time.Millisecond),
			WithLogger(testutil.Logger()))
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("watch did not stop")
		}
	})
	return h
}

func TestWatch_InitialRunThenRerunOnChange(t *testing.T) {
	root := testutil.Corpus(t, map[string]string{"a.md": "# A\n"})
	h := start(t, root, nil)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return h.runs.Load() >= 1
	}, "initial run did not happen")

	// Let the watcher settle before producing events.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("# Changed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return h.runs.Load() >= 2
	}, "change did not trigger a run")
}

func TestWatch_IgnoresUnmatchedFiles(t *testing.T) {
	root := testutil.Corpus(t, map[string]string{"a.md": "# A\n"})
	h := start(t, root, nil)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return h.runs.Load() == 1
	}, "initial run did not happen")
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "image.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if got := h.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestWatch_BurstIsDebounced(t *testing.T) {
	root := testutil.Corpus(t, nil)
	h := start(t, root, nil)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return h.runs.Load() == 1
	}, "initial run did not happen")
	time.Sleep(100 * time.Millisecond)

	for i := range 10 {
		name := filepath.Join(root, "n"+string(rune('a'+i))+".md")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return h.runs.Load() >= 2
	}, "burst did not trigger a run")
	time.Sleep(300 * time.Millisecond)
	if got := h.runs.Load(); got > 3 {
		t.Errorf("runs = %d, a burst should collapse into few runs", got)
	}
}

func TestWatch_NewDirectoryWatched(t *testing.T) {
	root := testutil.Corpus(t, nil)
	h := start(t, root, nil)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return h.runs.Load() == 1
	}, "initial run did not happen")
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return h.runs.Load() >= 2
	}, "new directory did not trigger a run")

	before := h.runs.Load()
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "deep.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return h.runs.Load() > before
	}, "file in new directory did not trigger a run")
}

func TestWatch_RunFailureStops(t *testing.T) {
	root := testutil.Corpus(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := func(context.Context) error { return apperr.RunFailure("root gone") }
	err := Watch(ctx, root, suffixMatcher{}, run, WithLogger(testutil.Logger()))
	if !errors.Is(err, apperr.ErrRunFailure) {
		t.Fatalf("err = %v, want ErrRunFailure", err)
	}
}

func TestWatch_CancelReturnsNil(t *testing.T) {
	root := testutil.Corpus(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, suffixMatcher{}, func(context.Context) error { return nil },
			WithLogger(testutil.Logger()))
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
