// Package toc regenerates table-of-contents blocks from a document's headings.
package toc

import (
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// Default block markers.
const (
	DefaultStart    = "<!-- toc -->"
	DefaultEnd      = "<!-- tocstop -->"
	DefaultMaxDepth = 6
)

// Synthesizer builds outlines and refreshes TOC blocks.
type Synthesizer struct {
	Start    string
	End      string
	MaxDepth int
}

// New returns a Synthesizer, substituting defaults for zero values.
func New(start, end string, maxDepth int) *Synthesizer {
	if start == "" {
		start = DefaultStart
	}
	if end == "" {
		end = DefaultEnd
	}
	if maxDepth <= 0 || maxDepth > 6 {
		maxDepth = DefaultMaxDepth
	}
	return &Synthesizer{Start: start, End: end, MaxDepth: maxDepth}
}

// Outline returns the body's headings with document-unique slugs.
func (s *Synthesizer) Outline(body string) []models.Heading {
	headings := parser.Headings(body)
	slugs := newSlugger()
	for i := range headings {
		headings[i].Slug = slugs.next(headings[i].Text)
	}
	return headings
}

// Render returns the TOC block for headings, markers included, each line
// terminated by eol. Level-1 headings and headings deeper than MaxDepth are
// left out.
func (s *Synthesizer) Render(headings []models.Heading, eol string) string {
	return strings.Join(s.renderLines(headings), eol) + eol
}

func (s *Synthesizer) renderLines(headings []models.Heading) []string {
	minLevel := 0
	for _, h := range headings {
		if s.rendered(h) && (minLevel == 0 || h.Level < minLevel) {
			minLevel = h.Level
		}
	}

	lines := []string{s.Start}
	for _, h := range headings {
		if !s.rendered(h) {
			continue
		}
		indent := strings.Repeat("  ", h.Level-minLevel)
		lines = append(lines, indent+"- ["+escapeLinkText(h.Text)+"](#"+h.Slug+")")
	}
	return append(lines, s.End)
}

func (s *Synthesizer) rendered(h models.Heading) bool {
	return h.Level > 1 && h.Level <= s.MaxDepth
}

// Result is the outcome of Refresh.
type Result struct {
	Body     string
	Changed  bool
	Headings []models.Heading
	// Block is the location of the TOC in the returned body, nil if absent.
	Block *models.TOCBlock
}

// Refresh replaces an existing TOC block with one rendered from the body's
// current headings. A body without a start marker is returned untouched.
// A start marker without an end marker yields apperr.ErrUnterminatedTOC and
// the body untouched.
func (s *Synthesizer) Refresh(body string) (Result, error) {
	headings := s.Outline(body)
	res := Result{Body: body, Headings: headings}

	lines := strings.SplitAfter(body, "\n")
	start, end, err := s.locate(lines)
	if err != nil || start < 0 {
		return res, err
	}

	eol := "\n"
	if strings.HasSuffix(lines[start], "\r\n") {
		eol = "\r\n"
	}
	block := s.renderLines(headings)
	rendered := strings.Join(block, eol)
	// An end marker on the last line without a terminator stays that way.
	if strings.HasSuffix(lines[end], "\n") {
		rendered += eol
	}

	var b strings.Builder
	for _, l := range lines[:start] {
		b.WriteString(l)
	}
	b.WriteString(rendered)
	for _, l := range lines[end+1:] {
		b.WriteString(l)
	}

	res.Body = b.String()
	res.Changed = res.Body != body
	res.Block = &models.TOCBlock{StartLine: start + 1, EndLine: start + len(block)}
	return res, nil
}

// Locate reports the existing TOC block of body as it stands, without
// rendering anything. It returns nil when the body has no block.
func (s *Synthesizer) Locate(body string) (*models.TOCBlock, error) {
	start, end, err := s.locate(strings.SplitAfter(body, "\n"))
	if err != nil || start < 0 {
		return nil, err
	}
	return &models.TOCBlock{StartLine: start + 1, EndLine: end + 1}, nil
}

// locate returns the line indexes of the start and end markers outside
// fenced and indented code, or start = -1 when the body has no TOC block.
func (s *Synthesizer) locate(lines []string) (start, end int, err error) {
	start = -1
	var fence fenceTracker
	for i, line := range lines {
		if fence.feed(line) || indented(line) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case start < 0 && trimmed == s.Start:
			start = i
		case start >= 0 && trimmed == s.End:
			return start, i, nil
		}
	}
	if start >= 0 {
		return -1, -1, apperr.ErrUnterminatedTOC
	}
	return -1, -1, nil
}

func escapeLinkText(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)
	return r.Replace(text)
}
