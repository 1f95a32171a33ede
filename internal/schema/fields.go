// Package schema validates front matter against a declarative field table
// and applies the deterministic repairs the table allows.
package schema

import (
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Type is the expected shape of a front matter value.
type Type int

const (
	String Type = iota
	StringList
	Timestamp
	Bool
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case StringList:
		return "list of strings"
	case Timestamp:
		return "timestamp"
	case Bool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Context is what a default generator may look at.
type Context struct {
	Path string
	Now  time.Time
}

// DefaultFunc returns the value for an absent field, or false when it has none.
type DefaultFunc func(Context) (*yaml.Node, bool)

// Field is one row of the schema table.
type Field struct {
	Name     string
	Required bool
	Type     Type
	Default  DefaultFunc
}

// DefaultFields is the built-in schema.
func DefaultFields() []Field {
	return []Field{
		{Name: "title", Required: true, Type: String, Default: TitleFromPath},
		{Name: "created", Required: true, Type: Timestamp, Default: CreatedNow},
		{Name: "tags", Type: StringList},
		{Name: "description", Type: String},
		{Name: "draft", Type: Bool},
	}
}

// WithRequired appends required string fields that have no default. An
// existing field of the same name is marked required instead.
func WithRequired(fields []Field, names ...string) []Field {
	out := append([]Field(nil), fields...)
next:
	for _, name := range names {
		for i := range out {
			if out[i].Name == name {
				out[i].Required = true
				continue next
			}
		}
		out = append(out, Field{Name: name, Required: true, Type: String})
	}
	return out
}

// TitleFromPath derives a title from the document's file name:
// "getting-started.md" becomes "Getting Started".
func TitleFromPath(c Context) (*yaml.Node, bool) {
	stem := strings.TrimSuffix(path.Base(c.Path), path.Ext(c.Path))
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(stem))
	if len(words) == 0 {
		return nil, false
	}
	title := cases.Title(language.English, cases.NoLower).String(strings.Join(words, " "))
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: title}, true
}

// CreatedNow stamps the current time in UTC.
func CreatedNow(c Context) (*yaml.Node, bool) {
	if c.Now.IsZero() {
		return nil, false
	}
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!timestamp",
		Value: c.Now.UTC().Format(time.RFC3339),
	}, true
}
