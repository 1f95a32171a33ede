// Package index folds parsed documents into a corpus-wide metadata index.
package index

import (
	"path"
	"slices"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// DefaultFields are the classification fields projected besides title,
// tags and created.
var DefaultFields = []string{"category", "status", "type", "owner"}

// Entry is the metadata summary of one document.
type Entry struct {
	Path         string         `json:"path"`
	Title        string         `json:"title,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Created      *time.Time     `json:"created,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	Basename     string         `json:"basename"`
	Dir          string         `json:"dir"`
	HeadingCount int            `json:"heading_count"`
	HasTOC       bool           `json:"has_toc"`
	Checksum     string         `json:"checksum"`
	ParseError   string         `json:"parse_error,omitempty"`
}

// CorpusIndex maps document paths to their metadata and tags to paths.
// It is built fresh for each run and is not safe for concurrent mutation.
type CorpusIndex struct {
	entries  map[string]*Entry
	order    []string
	tags     map[string][]string
	tagOrder []string
}

// Build indexes docs in order. Sparse or unparseable front matter still
// yields an entry with the projected fields absent.
func Build(docs []*models.Document, fields []string) *CorpusIndex {
	idx := &CorpusIndex{
		entries: make(map[string]*Entry, len(docs)),
		tags:    make(map[string][]string),
	}
	for _, doc := range docs {
		if doc != nil {
			idx.Add(doc, fields)
		}
	}
	return idx
}

// Add folds one document into the index, replacing an earlier entry for
// the same path.
func (idx *CorpusIndex) Add(doc *models.Document, fields []string) {
	e := &Entry{
		Path:         doc.Path,
		Basename:     path.Base(doc.Path),
		Dir:          path.Dir(doc.Path),
		HeadingCount: len(doc.Headings),
		HasTOC:       doc.TOC != nil,
		Checksum:     checksum.Sum(doc.Raw),
	}
	if doc.ParseErr != nil {
		e.ParseError = doc.ParseErr.Error()
	}

	fm := doc.FrontMatter
	if n, ok := parser.Lookup(fm, "title"); ok {
		e.Title, _ = parser.String(n)
	}
	if n, ok := parser.Lookup(fm, "tags"); ok {
		e.Tags = dedupe(parser.Strings(n))
	}
	if n, ok := parser.Lookup(fm, "created"); ok {
		if ts, ok := parser.Time(n); ok {
			e.Created = &ts
		}
	}
	for _, name := range fields {
		if n, ok := parser.Lookup(fm, name); ok {
			if e.Fields == nil {
				e.Fields = make(map[string]any)
			}
			e.Fields[name] = parser.Value(n)
		}
	}

	if old, exists := idx.entries[doc.Path]; exists {
		idx.untag(old)
	} else {
		idx.order = append(idx.order, doc.Path)
	}
	idx.entries[doc.Path] = e
	for _, tag := range e.Tags {
		if _, seen := idx.tags[tag]; !seen {
			idx.tagOrder = append(idx.tagOrder, tag)
		}
		if !slices.Contains(idx.tags[tag], doc.Path) {
			idx.tags[tag] = append(idx.tags[tag], doc.Path)
		}
	}
}

func (idx *CorpusIndex) untag(e *Entry) {
	for _, tag := range e.Tags {
		idx.tags[tag] = slices.DeleteFunc(idx.tags[tag], func(p string) bool { return p == e.Path })
	}
}

// Len returns the number of indexed documents.
func (idx *CorpusIndex) Len() int { return len(idx.order) }

// Get returns the entry for path.
func (idx *CorpusIndex) Get(path string) (Entry, bool) {
	e, ok := idx.entries[path]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Paths returns indexed paths in the order documents were added.
func (idx *CorpusIndex) Paths() []string {
	return slices.Clone(idx.order)
}

// Entries returns all entries in the order documents were added.
func (idx *CorpusIndex) Entries() []Entry {
	out := make([]Entry, 0, len(idx.order))
	for _, p := range idx.order {
		out = append(out, *idx.entries[p])
	}
	return out
}

// ByTag returns the paths carrying tag, in first-seen order.
func (idx *CorpusIndex) ByTag(tag string) []string {
	return slices.Clone(idx.tags[strings.TrimSpace(tag)])
}

// Tags returns every tag with at least one document, in first-seen order.
func (idx *CorpusIndex) Tags() []string {
	out := make([]string, 0, len(idx.tagOrder))
	for _, t := range idx.tagOrder {
		if len(idx.tags[t]) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func dedupe(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
