package parser

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Lookup returns the value node stored under key in a mapping node.
func Lookup(fm *yaml.Node, key string) (*yaml.Node, bool) {
	if fm == nil || fm.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(fm.Content); i += 2 {
		if fm.Content[i].Value == key {
			return fm.Content[i+1], true
		}
	}
	return nil, false
}

// Set stores value under key, replacing an existing value in place or
// appending the pair at the end to keep key order stable.
func Set(fm *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(fm.Content); i += 2 {
		if fm.Content[i].Value == key {
			fm.Content[i+1] = value
			return
		}
	}
	fm.Content = append(fm.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

// Keys returns the mapping keys in document order.
func Keys(fm *yaml.Node) []string {
	if fm == nil || fm.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]string, 0, len(fm.Content)/2)
	for i := 0; i+1 < len(fm.Content); i += 2 {
		out = append(out, fm.Content[i].Value)
	}
	return out
}

// String returns the value of a string scalar.
func String(n *yaml.Node) (string, bool) {
	if n == nil || n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return "", false
	}
	return n.Value, true
}

// Strings returns the values of a scalar or a sequence of scalars.
// A lone scalar yields a one-element slice.
func Strings(n *yaml.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" || n.Value == "" {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind == yaml.ScalarNode && item.ShortTag() != "!!null" && item.Value != "" {
				out = append(out, item.Value)
			}
		}
		return out
	}
	return nil
}

// Time decodes a timestamp scalar. Quoted ISO-8601 strings are accepted too.
func Time(n *yaml.Node) (time.Time, bool) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return time.Time{}, false
	}
	switch n.ShortTag() {
	case "!!timestamp", "!!str":
	default:
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, n.Value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Same layouts yaml.v3 recognises as !!timestamp.
var timeLayouts = []string{
	"2006-1-2T15:4:5.999999999Z07:00",
	"2006-1-2t15:4:5.999999999Z07:00",
	"2006-1-2 15:4:5.999999999",
	"2006-1-2",
	time.RFC3339Nano,
}

// Value decodes any node into plain Go values (maps, slices, scalars).
func Value(n *yaml.Node) any {
	if n == nil {
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return n.Value
	}
	return v
}
