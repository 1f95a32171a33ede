// Package parser splits Markdown documents into front matter and body and
// extracts the body's heading outline.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	delim   = "---"
	altEnd  = "..."
	bomMark = "\ufeff"
)

// ErrUnterminated is reported when the opening marker has no closing marker.
var ErrUnterminated = errors.New("front matter block is not terminated")

// Result holds the output of parsing a Markdown file.
type Result struct {
	// FrontMatter is the decoded mapping node. Nil when the document has no
	// front matter or the block failed to decode.
	FrontMatter *yaml.Node
	// Head is the verbatim front matter block including both marker lines.
	Head string
	// Body is everything after Head.
	Body string
	// HasFrontMatter reports whether the document starts with the opening marker.
	HasFrontMatter bool
	// Err is the decode error for a malformed block. Body is still usable.
	Err error
}

// Parse splits data at a leading front matter block. Decode failures never
// abort: Err is set and Body falls back to the text after the first closing
// marker, or the full text when there is none.
func Parse(data []byte) Result {
	text := string(data)

	first, rest, _ := cutLine(strings.TrimPrefix(text, bomMark))
	if trimLine(first) != delim {
		return Result{Body: text}
	}
	headStart := len(text) - len(rest)

	offset := headStart
	for remaining := rest; remaining != ""; {
		line, next, _ := cutLine(remaining)
		lineEnd := offset + len(remaining) - len(next)
		if t := trimLine(line); t == delim || t == altEnd {
			block := text[headStart:offset]
			res := Result{
				Head:           text[:lineEnd],
				Body:           text[lineEnd:],
				HasFrontMatter: true,
			}
			res.FrontMatter, res.Err = decode(block)
			return res
		}
		offset = lineEnd
		remaining = next
	}

	return Result{Body: text, HasFrontMatter: true, Err: ErrUnterminated}
}

// decode parses a YAML block into a mapping node with unique keys.
func decode(block string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("front matter is not a mapping (line %d)", root.Line)
	}
	seen := make(map[string]int, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if prev, dup := seen[key.Value]; dup {
			return nil, fmt.Errorf("line %d: mapping key %q already defined at line %d", key.Line, key.Value, prev)
		}
		seen[key.Value] = key.Line
	}
	// Keep comments attached to the document so they survive a rewrite.
	if root.HeadComment == "" {
		root.HeadComment = doc.HeadComment
	}
	if root.FootComment == "" {
		root.FootComment = doc.FootComment
	}
	return root, nil
}

// Render serializes a front matter mapping back into a delimited block.
func Render(fm *yaml.Node) (string, error) {
	var b strings.Builder
	b.WriteString(delim + "\n")
	if fm != nil && len(fm.Content) > 0 {
		enc := yaml.NewEncoder(&b)
		enc.SetIndent(2)
		if err := enc.Encode(fm); err != nil {
			return "", fmt.Errorf("parser: encode front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("parser: encode front matter: %w", err)
		}
	}
	b.WriteString(delim + "\n")
	return b.String(), nil
}

// cutLine returns the first line of s without its terminator and the rest
// after it. ok is false when s has no newline.
func cutLine(s string) (line, rest string, ok bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

func trimLine(line string) string {
	return strings.TrimRight(line, " \t\r")
}
