// Package report collects the outcome of a maintenance run and renders it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// Mode names how a run treats repairs.
type Mode string

const (
	DryRun Mode = "dry-run"
	Apply  Mode = "apply"
)

// Failure stages.
const (
	StageScan  = "scan"
	StageRead  = "read"
	StageWrite = "write"
)

// Failure is a per-document or per-subtree error the run recovered from.
type Failure struct {
	Stage string `json:"stage"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Counts tallies findings by resolution.
type Counts struct {
	Fixed   int `json:"fixed"`
	Fixable int `json:"fixable"`
	Flagged int `json:"flagged"`
}

// Total returns the number of findings.
func (c Counts) Total() int { return c.Fixed + c.Fixable + c.Flagged }

// TOCSummary describes the table-of-contents stage.
type TOCSummary struct {
	// Blocks is the number of documents carrying a TOC block.
	Blocks int `json:"blocks"`
	// Stale lists documents whose block did not match their headings.
	Stale []string `json:"stale"`
}

// Report is the summary of one maintenance run.
type Report struct {
	Root       string                  `json:"root"`
	Mode       Mode                    `json:"mode"`
	Documents  int                     `json:"documents"`
	Duplicates []models.DuplicateGroup `json:"duplicates"`
	TOC        TOCSummary              `json:"toc"`
	Findings   []models.Finding        `json:"findings"`
	Counts     Counts                  `json:"counts"`
	// Changed lists documents rewritten in apply mode, or those a dry run
	// would rewrite.
	Changed  []string  `json:"changed"`
	Failures []Failure `json:"failures"`

	// Index is the metadata index built during the run.
	Index *index.CorpusIndex `json:"-"`
}

// New returns an empty report for a run over root.
func New(root string, fix bool) *Report {
	mode := DryRun
	if fix {
		mode = Apply
	}
	return &Report{
		Root:       root,
		Mode:       mode,
		Duplicates: []models.DuplicateGroup{},
		Findings:   []models.Finding{},
		Changed:    []string{},
		Failures:   []Failure{},
		TOC:        TOCSummary{Stale: []string{}},
	}
}

// AddFailure records a recovered error.
func (r *Report) AddFailure(stage, path string, err error) {
	r.Failures = append(r.Failures, Failure{Stage: stage, Path: path, Error: err.Error()})
}

// AddFindings appends findings and updates the counts.
func (r *Report) AddFindings(findings ...models.Finding) {
	for _, f := range findings {
		switch f.Resolution {
		case models.Fixed:
			r.Counts.Fixed++
		case models.Fixable:
			r.Counts.Fixable++
		case models.Flagged:
			r.Counts.Flagged++
		}
		r.Findings = append(r.Findings, f)
	}
}

// FindingsFor returns the findings recorded against path.
func (r *Report) FindingsFor(path string) []models.Finding {
	var out []models.Finding
	for _, f := range r.Findings {
		if f.Path == path {
			out = append(out, f)
		}
	}
	return out
}

// HasFindings reports whether the run found any drift: duplicate names,
// stale TOC blocks, front matter findings or recovered failures.
func (r *Report) HasFindings() bool {
	return len(r.Duplicates) > 0 ||
		len(r.TOC.Stale) > 0 ||
		len(r.Findings) > 0 ||
		len(r.Failures) > 0
}

// Write renders the report in the named format ("text" or "json").
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		return r.WriteJSON(w)
	case "", "text":
		return r.WriteText(w)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText renders a human-readable summary.
func (r *Report) WriteText(w io.Writer) error {
	p := &printer{w: w}

	p.printf("maintenance report (%s): %s\n", r.Mode, r.Root)
	p.printf("documents: %d\n", r.Documents)
	p.printf("toc blocks: %d, stale: %d\n", r.TOC.Blocks, len(r.TOC.Stale))
	p.printf("findings: %d (fixed %d, fixable %d, flagged %d)\n",
		r.Counts.Total(), r.Counts.Fixed, r.Counts.Fixable, r.Counts.Flagged)
	verb := "changed"
	if r.Mode == DryRun {
		verb = "would change"
	}
	p.printf("%s: %d\n", verb, len(r.Changed))

	if len(r.Duplicates) > 0 {
		p.printf("\nduplicate basenames (%d):\n", len(r.Duplicates))
		for _, g := range r.Duplicates {
			p.printf("  %s (%d)\n", g.Basename, g.Count)
			for _, path := range g.Paths {
				p.printf("    %s\n", path)
			}
		}
	}

	if len(r.TOC.Stale) > 0 {
		p.printf("\nstale toc:\n")
		for _, path := range r.TOC.Stale {
			p.printf("  %s\n", path)
		}
	}

	if len(r.Findings) > 0 {
		p.printf("\nfindings:\n")
		last := ""
		for _, f := range r.Findings {
			if f.Path != last {
				p.printf("  %s\n", f.Path)
				last = f.Path
			}
			p.printf("    %s: %s [%s] %s\n", f.Field, f.Kind, f.Resolution, f.Detail)
		}
	}

	if len(r.Changed) > 0 {
		p.printf("\n%s:\n", verb)
		for _, path := range r.Changed {
			p.printf("  %s\n", path)
		}
	}

	if len(r.Failures) > 0 {
		p.printf("\nfailures:\n")
		for _, f := range r.Failures {
			p.printf("  %s %s: %s\n", f.Stage, f.Path, f.Error)
		}
	}
	return p.err
}

// Drift is the outcome of a drift check: the read-only duplicate pass
// followed by a maintenance run.
type Drift struct {
	Duplicates  []models.DuplicateGroup `json:"duplicates"`
	Maintenance *Report                 `json:"maintenance"`
}

// HasFindings reports whether either step found drift.
func (d *Drift) HasFindings() bool {
	return len(d.Duplicates) > 0 || (d.Maintenance != nil && d.Maintenance.HasFindings())
}

// Write renders the drift outcome in the named format.
func (d *Drift) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "", "text":
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}

	p := &printer{w: w}
	if len(d.Duplicates) == 0 {
		p.printf("duplicate check: ok\n")
	} else {
		names := make([]string, 0, len(d.Duplicates))
		for _, g := range d.Duplicates {
			names = append(names, g.Basename)
		}
		p.printf("duplicate check: %d group(s): %s\n", len(d.Duplicates), strings.Join(names, ", "))
	}
	p.printf("\n")
	if p.err != nil {
		return p.err
	}
	return d.Maintenance.WriteText(w)
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
