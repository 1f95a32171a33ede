package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/ansuz/internal/models"
)

// Headings returns the structural headings of a Markdown body in document
// order. Heading-like lines inside fenced or indented code are not headings.
// Slugs are left empty.
func Headings(body string) []models.Heading {
	src := []byte(body)
	// One engine per call; documents are parsed from concurrent workers.
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []models.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		plainText(h, src, &b)
		out = append(out, models.Heading{
			Level: h.Level,
			Text:  strings.Join(strings.Fields(b.String()), " "),
		})
		return ast.WalkSkipChildren, nil
	})
	return out
}

// plainText collects the visible text of an inline subtree.
func plainText(n ast.Node, src []byte, b *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(src))
		case *ast.RawHTML:
		default:
			plainText(c, src, b)
		}
	}
}
