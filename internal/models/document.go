// Package models defines the domain types shared by the maintenance stages.
package models

import "gopkg.in/yaml.v3"

// Document is the per-run record of one corpus file.
type Document struct {
	Path     string `json:"path"`
	Basename string `json:"basename"`

	// Raw is the file content as read at the start of the run.
	Raw []byte `json:"-"`
	// Head is the verbatim front matter block, delimiters included.
	// Empty when the document has none.
	Head string `json:"-"`
	// FrontMatter is the decoded mapping node, nil when absent or malformed.
	FrontMatter    *yaml.Node `json:"-"`
	HasFrontMatter bool       `json:"has_front_matter"`
	// ParseErr is set when the front matter block could not be decoded.
	ParseErr error  `json:"-"`
	Body     string `json:"-"`

	Headings []Heading  `json:"headings,omitempty"`
	TOC      *TOCBlock  `json:"toc,omitempty"`
	Findings []Finding  `json:"findings,omitempty"`
	State    State      `json:"state"`
	// FrontMatterDirty is set once the validator changed FrontMatter.
	FrontMatterDirty bool `json:"-"`
}

// AddFinding appends f to the document's findings, stamping its path.
func (d *Document) AddFinding(f Finding) {
	f.Path = d.Path
	d.Findings = append(d.Findings, f)
}

// Heading is one structural heading in body order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Slug  string `json:"slug"`
}

// TOCBlock is the line range of a materialized table of contents,
// both marker lines included.
type TOCBlock struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// State tracks a document through the validator.
type State string

const (
	StateUnparsed  State = "unparsed"
	StateParsed    State = "parsed"
	StateValidated State = "validated"
	StateFixed     State = "fixed"
	StateFlagged   State = "flagged"
)

// DuplicateGroup lists paths sharing one case-insensitive basename.
type DuplicateGroup struct {
	Basename string   `json:"basename"`
	Paths    []string `json:"paths"`
	Count    int      `json:"count"`
}
