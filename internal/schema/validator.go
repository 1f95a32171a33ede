package schema

import (
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// FrontMatterField names findings about the block as a whole.
const FrontMatterField = "(front matter)"

// Validator checks documents against a field table.
type Validator struct {
	fields []Field
	json   *jsonschema.Schema
	now    func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock replaces time.Now for default generators.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithJSONSchema adds a compiled JSON Schema checked after the field table.
func WithJSONSchema(s *jsonschema.Schema) Option {
	return func(v *Validator) { v.json = s }
}

// New returns a validator for fields.
func New(fields []Field, opts ...Option) *Validator {
	v := &Validator{fields: fields, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate records findings on doc. With fix set, repairs are applied to
// doc.FrontMatter and doc.FrontMatterDirty is raised; otherwise the
// document is left as it was and repairable findings are marked Fixable.
// Documents whose front matter failed to parse are only flagged.
func (v *Validator) Validate(doc *models.Document, fix bool) {
	if doc.ParseErr != nil {
		doc.State = models.StateFlagged
		return
	}
	doc.State = models.StateParsed

	repaired := models.Fixable
	if fix {
		repaired = models.Fixed
	}

	fm := doc.FrontMatter
	if fm == nil {
		fm = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	// Work on a copy so a dry run never mutates the document.
	work := cloneMapping(fm)
	ctx := Context{Path: doc.Path, Now: v.now()}

	var changed, flagged bool
	for _, f := range v.fields {
		val, present := parser.Lookup(work, f.Name)
		if present && isNull(val) {
			// Defaults fill only keys that are wholly absent.
			if f.Required {
				flagged = true
				doc.AddFinding(models.Finding{
					Field:      f.Name,
					Kind:       models.Unfixable,
					Detail:     "required field is null",
					Resolution: models.Flagged,
				})
			}
			continue
		}

		if !present {
			if !f.Required {
				continue
			}
			if f.Default != nil {
				if node, ok := f.Default(ctx); ok {
					parser.Set(work, f.Name, node)
					changed = true
					doc.AddFinding(models.Finding{
						Field:      f.Name,
						Kind:       models.MissingRequired,
						Detail:     fmt.Sprintf("required field absent; default %q", node.Value),
						Resolution: repaired,
					})
					continue
				}
			}
			flagged = true
			doc.AddFinding(models.Finding{
				Field:      f.Name,
				Kind:       models.Unfixable,
				Detail:     "required field absent and has no safe default",
				Resolution: models.Flagged,
			})
			continue
		}

		if matches(val, f.Type) {
			continue
		}
		if node, ok := coerce(val, f.Type); ok {
			parser.Set(work, f.Name, node)
			changed = true
			doc.AddFinding(models.Finding{
				Field:      f.Name,
				Kind:       models.TypeMismatch,
				Detail:     fmt.Sprintf("%s coerced to %s", describe(val), f.Type),
				Resolution: repaired,
			})
			continue
		}
		flagged = true
		doc.AddFinding(models.Finding{
			Field:      f.Name,
			Kind:       models.TypeMismatch,
			Detail:     fmt.Sprintf("expected %s, found %s", f.Type, describe(val)),
			Resolution: models.Flagged,
		})
	}

	if !doc.HasFrontMatter && changed {
		doc.AddFinding(models.Finding{
			Field:      FrontMatterField,
			Kind:       models.MissingRequired,
			Detail:     "document has no front matter block",
			Resolution: repaired,
		})
	}

	if v.json != nil {
		// A dry run reports on the block as it is on disk.
		checked := fm
		if fix {
			checked = work
		}
		for _, issue := range jsonSchemaIssues(v.json, checked) {
			flagged = true
			doc.AddFinding(models.Finding{
				Field:      issue.Location,
				Kind:       models.Unfixable,
				Detail:     issue.Message,
				Resolution: models.Flagged,
			})
		}
	}

	doc.State = models.StateValidated
	if fix && changed {
		doc.FrontMatter = work
		doc.HasFrontMatter = true
		doc.FrontMatterDirty = true
	}
	switch {
	case flagged:
		doc.State = models.StateFlagged
	case fix && changed:
		doc.State = models.StateFixed
	}
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func matches(n *yaml.Node, t Type) bool {
	switch t {
	case String:
		_, ok := parser.String(n)
		return ok
	case StringList:
		if n.Kind != yaml.SequenceNode {
			return false
		}
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode || isNull(item) {
				return false
			}
		}
		return true
	case Timestamp:
		_, ok := parser.Time(n)
		return ok
	case Bool:
		return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!bool"
	}
	return false
}

// coerce applies the only repairs that never guess content:
// a string becomes a one-element list and a one-element list becomes a string.
func coerce(n *yaml.Node, t Type) (*yaml.Node, bool) {
	switch t {
	case StringList:
		if _, ok := parser.String(n); ok {
			item := *n
			return &yaml.Node{
				Kind:    yaml.SequenceNode,
				Tag:     "!!seq",
				Content: []*yaml.Node{&item},
			}, true
		}
	case String:
		if n.Kind == yaml.SequenceNode && len(n.Content) == 1 {
			if _, ok := parser.String(n.Content[0]); ok {
				item := *n.Content[0]
				return &item, true
			}
		}
	}
	return nil, false
}

func describe(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar " + n.ShortTag()
	case yaml.SequenceNode:
		return fmt.Sprintf("sequence of %d", len(n.Content))
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown node"
}

// cloneMapping copies the top-level pairs; value nodes are shared because
// repairs replace values rather than edit them.
func cloneMapping(n *yaml.Node) *yaml.Node {
	c := *n
	c.Content = append([]*yaml.Node(nil), n.Content...)
	return &c
}
