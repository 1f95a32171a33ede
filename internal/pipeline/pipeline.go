// Package pipeline composes the maintenance stages into one run:
// scan, duplicate detection, parse and index, TOC refresh, front matter
// validation, and the final write.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/duplicates"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/report"
	"github.com/starford/ansuz/internal/scanner"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/toc"
)

// TOCField names findings about a document's TOC block.
const TOCField = "toc"

const bomMark = "\ufeff"

// Options configures a run. Zero values fall back to defaults.
type Options struct {
	Scanner     scanner.Options
	TOC         *toc.Synthesizer
	Validator   *schema.Validator
	IndexFields []string
	// Fix applies repairs. Without it the run only reports.
	Fix bool
	// Workers bounds per-document parallelism.
	Workers int
	Logger  *slog.Logger
}

func (o *Options) setDefaults() {
	if len(o.Scanner.Extensions) == 0 {
		o.Scanner.Extensions = []string{".md"}
	}
	if o.TOC == nil {
		o.TOC = toc.New("", "", 0)
	}
	if o.Validator == nil {
		o.Validator = schema.New(schema.DefaultFields())
	}
	if o.IndexFields == nil {
		o.IndexFields = index.DefaultFields
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// outcome is the per-document result slot, written by exactly one worker.
type outcome struct {
	doc      *models.Document
	readErr  error
	stale    bool
	changed  bool
	writeErr error
}

// Run performs one maintenance pass over the store's corpus. Per-document
// failures are recorded in the report and the run continues. The returned
// error is non-nil only for run failures (apperr.ErrRunFailure): an
// unusable root or a cancelled context.
func Run(ctx context.Context, store storage.Provider, opts Options) (*report.Report, error) {
	opts.setDefaults()
	log := opts.Logger.With(slog.String("root", store.Root()), slog.Bool("fix", opts.Fix))
	started := time.Now()

	paths, failures, err := scan(ctx, store, opts.Scanner)
	if err != nil {
		return nil, err
	}

	rep := report.New(store.Root(), opts.Fix)
	rep.Documents = len(paths)
	for _, f := range failures {
		var sf *apperr.ScanFailure
		if errors.As(f, &sf) {
			rep.AddFailure(report.StageScan, sf.Path, sf.Err)
			log.Warn("subtree skipped", slog.String("path", sf.Path), slog.String("error", sf.Err.Error()))
		}
	}
	log.Debug("scan complete", slog.Int("documents", len(paths)), slog.Int("scan_failures", len(failures)))

	if groups := duplicates.Detect(paths); len(groups) > 0 {
		rep.Duplicates = groups
	}
	log.Debug("duplicate detection complete", slog.Int("groups", len(rep.Duplicates)))

	outs := make([]outcome, len(paths))
	err = forEach(ctx, opts.Workers, len(paths), func(i int) {
		outs[i] = load(store, paths[i], opts.TOC)
	})
	if err != nil {
		return nil, cancelled(err)
	}

	docs := make([]*models.Document, len(outs))
	for i := range outs {
		docs[i] = outs[i].doc
	}
	rep.Index = index.Build(docs, opts.IndexFields)
	log.Debug("index built", slog.Int("entries", rep.Index.Len()), slog.Int("tags", len(rep.Index.Tags())))

	err = forEach(ctx, opts.Workers, len(outs), func(i int) {
		if outs[i].doc != nil {
			maintain(store, &outs[i], opts)
		}
	})
	if err != nil {
		return nil, cancelled(err)
	}

	for i := range outs {
		o := &outs[i]
		p := paths[i]
		if o.readErr != nil {
			rep.AddFailure(report.StageRead, p, o.readErr)
			log.Warn("document unreadable", slog.String("path", p), slog.String("error", o.readErr.Error()))
			continue
		}
		if o.doc.ParseErr != nil {
			log.Warn("front matter malformed", slog.String("path", p), slog.String("error", o.doc.ParseErr.Error()))
		}
		if o.doc.TOC != nil {
			rep.TOC.Blocks++
		}
		if o.stale {
			rep.TOC.Stale = append(rep.TOC.Stale, p)
		}
		rep.AddFindings(o.doc.Findings...)
		if o.writeErr != nil {
			rep.AddFailure(report.StageWrite, p, o.writeErr)
			log.Warn("document not written", slog.String("path", p), slog.String("error", o.writeErr.Error()))
		}
		if o.changed {
			rep.Changed = append(rep.Changed, p)
		}
	}

	log.Info("maintenance run complete",
		slog.Int("documents", rep.Documents),
		slog.Int("findings", rep.Counts.Total()),
		slog.Int("changed", len(rep.Changed)),
		slog.Int("failures", len(rep.Failures)),
		slog.Duration("elapsed", time.Since(started)))
	return rep, nil
}

// Drift runs the read-only duplicate check and then a maintenance pass.
// A run failure in either step aborts the check.
func Drift(ctx context.Context, store storage.Provider, opts Options) (*report.Drift, error) {
	opts.setDefaults()

	paths, _, err := scan(ctx, store, opts.Scanner)
	if err != nil {
		return nil, fmt.Errorf("drift: duplicate check: %w", err)
	}
	groups := duplicates.Detect(paths)
	if groups == nil {
		groups = []models.DuplicateGroup{}
	}
	opts.Logger.Info("duplicate check complete", slog.Int("groups", len(groups)))

	rep, err := Run(ctx, store, opts)
	if err != nil {
		return nil, fmt.Errorf("drift: maintenance step: %w", err)
	}
	return &report.Drift{Duplicates: groups, Maintenance: rep}, nil
}

func scan(ctx context.Context, store storage.Provider, opts scanner.Options) ([]string, []error, error) {
	sc, err := scanner.New(store.Root(), opts)
	if err != nil {
		if errors.Is(err, apperr.ErrRunFailure) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", apperr.ErrRunFailure, err)
	}
	return sc.Collect(ctx)
}

// forEach calls fn for 0..n-1 on at most workers goroutines. Each index
// is handled exactly once; cancellation stops scheduling new indexes.
func forEach(ctx context.Context, workers, n int, fn func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrRunFailure, err)
}

// load reads and parses one document and records the outline and TOC
// block the index needs.
func load(store storage.Provider, p string, synth *toc.Synthesizer) outcome {
	raw, err := store.Read(p)
	if err != nil {
		return outcome{readErr: err}
	}

	res := parser.Parse(raw)
	doc := &models.Document{
		Path:           p,
		Basename:       path.Base(p),
		Raw:            raw,
		Head:           res.Head,
		FrontMatter:    res.FrontMatter,
		HasFrontMatter: res.HasFrontMatter,
		Body:           res.Body,
		State:          models.StateParsed,
	}
	if res.Err != nil {
		doc.ParseErr = &apperr.ParseFailure{Path: p, Err: res.Err}
		doc.State = models.StateUnparsed
		doc.AddFinding(models.Finding{
			Field:      schema.FrontMatterField,
			Kind:       models.Unfixable,
			Detail:     res.Err.Error(),
			Resolution: models.Flagged,
		})
	}
	doc.Headings = synth.Outline(doc.Body)
	// An unterminated block is reported by the TOC stage.
	doc.TOC, _ = synth.Locate(doc.Body)
	return outcome{doc: doc}
}

// maintain refreshes the TOC, validates the front matter and, in fix
// mode, writes the document once if its bytes changed.
func maintain(store storage.Provider, o *outcome, opts Options) {
	doc := o.doc

	res, tocErr := opts.TOC.Refresh(doc.Body)
	if tocErr != nil {
		doc.AddFinding(models.Finding{
			Field:      TOCField,
			Kind:       models.Unfixable,
			Detail:     tocErr.Error(),
			Resolution: models.Flagged,
		})
	} else {
		doc.Headings = res.Headings
		doc.TOC = res.Block
		if res.Changed {
			o.stale = true
			doc.Body = res.Body
		}
	}

	opts.Validator.Validate(doc, opts.Fix)
	if tocErr != nil {
		doc.State = models.StateFlagged
	}

	content, err := assemble(doc)
	if err != nil {
		o.writeErr = &apperr.WriteFailure{Path: doc.Path, Err: err}
		unapply(doc)
		return
	}
	if bytes.Equal(content, doc.Raw) {
		return
	}
	o.changed = true
	if !opts.Fix {
		return
	}
	if err := store.Write(doc.Path, content); err != nil {
		o.writeErr = &apperr.WriteFailure{Path: doc.Path, Err: err}
		o.changed = false
		unapply(doc)
	}
}

// assemble joins the front matter block and the body. The original block
// is kept byte for byte unless the validator changed it.
func assemble(doc *models.Document) ([]byte, error) {
	if !doc.FrontMatterDirty {
		return []byte(doc.Head + doc.Body), nil
	}

	head, err := parser.Render(doc.FrontMatter)
	if err != nil {
		return nil, err
	}
	body := doc.Body
	var bom string
	switch {
	case strings.HasPrefix(doc.Head, bomMark):
		bom = bomMark
	case doc.Head == "" && strings.HasPrefix(body, bomMark):
		bom, body = bomMark, strings.TrimPrefix(body, bomMark)
	}
	if bytes.Contains(doc.Raw, []byte("\r\n")) {
		head = strings.ReplaceAll(head, "\n", "\r\n")
	}
	return []byte(bom + head + body), nil
}

// unapply marks repairs of a document that could not be written as
// not applied.
func unapply(doc *models.Document) {
	for i := range doc.Findings {
		if doc.Findings[i].Resolution == models.Fixed {
			doc.Findings[i].Resolution = models.Fixable
		}
	}
	if doc.State == models.StateFixed {
		doc.State = models.StateValidated
	}
}
