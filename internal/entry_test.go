package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/pkg/exitcode"
)

const stale = "---\ntitle: Guide\ncreated: 2024-01-02T00:00:00Z\ntags: [ops]\n---\n<!-- toc -->\n<!-- tocstop -->\n\n## Install\n"

func testConfig(root string) *Config {
	cfg := NewDefaultConfig()
	cfg.Corpus.Root = root
	return cfg
}

func TestRunMaintain_ApplyAndExport(t *testing.T) {
	root := testutil.Corpus(t, map[string]string{"guide.md": stale})
	cfg := testConfig(root)
	cfg.App.Format = FormatJSON
	export := filepath.Join(t.TempDir(), "index.db")

	var out bytes.Buffer
	err := RunMaintain(context.Background(),
		WithConfig(cfg),
		WithFix(true),
		WithExportPath(export),
		WithOutput(&out),
		WithLogOutput(io.Discard),
	)
	if err != nil {
		t.Fatalf("RunMaintain: %v", err)
	}

	var rep struct {
		Mode    string   `json:"mode"`
		Changed []string `json:"changed"`
	}
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out.String())
	}
	if rep.Mode != "apply" || len(rep.Changed) != 1 {
		t.Errorf("report = %+v", rep)
	}
	if got := testutil.ReadFile(t, root, "guide.md"); !strings.Contains(got, "- [Install](#install)\n") {
		t.Errorf("toc not refreshed:\n%s", got)
	}

	db, err := index.Open(export)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	paths, err := db.ByTag(context.Background(), "ops")
	if err != nil || len(paths) != 1 || paths[0] != "guide.md" {
		t.Errorf("exported ByTag = %v, %v", paths, err)
	}
}

func TestRunMaintain_FailOnFindings(t *testing.T) {
	root := testutil.Corpus(t, map[string]string{"guide.md": stale})

	err := RunMaintain(context.Background(),
		WithConfig(testConfig(root)),
		WithFailOnFindings(true),
		WithOutput(io.Discard),
		WithLogOutput(io.Discard),
	)
	if !errors.Is(err, ErrFindings) || exitcode.From(err) != exitcode.FindingsPresent {
		t.Fatalf("err = %v (code %d)", err, exitcode.From(err))
	}

	err = RunMaintain(context.Background(),
		WithConfig(testConfig(root)),
		WithOutput(io.Discard),
		WithLogOutput(io.Discard),
	)
	if err != nil {
		t.Fatalf("findings alone must not fail: %v", err)
	}
}

func TestRunMaintain_MissingRoot(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "absent"))
	err := RunMaintain(context.Background(),
		WithConfig(cfg),
		WithOutput(io.Discard),
		WithLogOutput(io.Discard),
	)
	if exitcode.From(err) != exitcode.FileSystemError {
		t.Fatalf("err = %v (code %d)", err, exitcode.From(err))
	}
}

func TestRunMaintain_UnreadableRoot(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced here")
	}
	root := testutil.Corpus(t, map[string]string{"guide.md": stale})
	if err := os.Chmod(root, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	for name, run := range map[string]func(context.Context, ...Option) error{
		"maintain": RunMaintain,
		"drift":    RunDrift,
	} {
		err := run(context.Background(),
			WithConfig(testConfig(root)),
			WithOutput(io.Discard),
			WithLogOutput(io.Discard),
		)
		if exitcode.From(err) != exitcode.FileSystemError {
			t.Errorf("%s: err = %v (code %d)", name, err, exitcode.From(err))
		}
	}
}

func TestRunMaintain_RequiresConfig(t *testing.T) {
	err := RunMaintain(context.Background(), WithLogOutput(io.Discard))
	if exitcode.From(err) != exitcode.ConfigError {
		t.Fatalf("err = %v", err)
	}
}

func TestRunMaintain_BadJSONSchemaIsConfigError(t *testing.T) {
	root := testutil.Corpus(t, map[string]string{"guide.md": stale})
	schemaPath := filepath.Join(t.TempDir(), "fm.json")
	if err := os.WriteFile(schemaPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(root)
	cfg.Schema.JSONSchema = schemaPath

	err := RunMaintain(context.Background(),
		WithConfig(cfg),
		WithOutput(io.Discard),
		WithLogOutput(io.Discard),
	)
	if exitcode.From(err) != exitcode.ConfigError {
		t.Fatalf("err = %v (code %d)", err, exitcode.From(err))
	}
}

func TestRunMaintain_RequiredFieldsFromConfig(t *testing.T) {
	root := testutil.Corpus(t, map[string]string{"guide.md": stale})
	cfg := testConfig(root)
	cfg.Schema.RequiredFields = []string{"owner"}

	var out bytes.Buffer
	err := RunMaintain(context.Background(),
		WithConfig(cfg),
		WithOutput(&out),
		WithLogOutput(io.Discard),
	)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "owner: Unfixable [flagged]") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestRunDrift(t *testing.T) {
	root := testutil.Corpus(t, map[string]string{
		"a/x.md": stale,
		"b/x.md": stale,
	})

	var out bytes.Buffer
	err := RunDrift(context.Background(),
		WithConfig(testConfig(root)),
		WithFailOnFindings(true),
		WithOutput(&out),
		WithLogOutput(io.Discard),
	)
	if exitcode.From(err) != exitcode.FindingsPresent {
		t.Fatalf("err = %v", err)
	}
	if !strings.HasPrefix(out.String(), "duplicate check: 1 group(s): x.md\n") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestRunDrift_CancelledIsRunFailure(t *testing.T) {
	root := testutil.Corpus(t, nil)
	cfg := testConfig(root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunDrift(ctx,
		WithConfig(cfg),
		WithOutput(io.Discard),
		WithLogOutput(io.Discard),
	)
	if !errors.Is(err, apperr.ErrRunFailure) || exitcode.From(err) != exitcode.GeneralError {
		t.Fatalf("err = %v (code %d)", err, exitcode.From(err))
	}
}
