package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/parser"
)

const jsonSchemaResource = "frontmatter.schema.json"

// LoadJSONSchema compiles the JSON Schema stored at path.
func LoadJSONSchema(path string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return CompileJSONSchema(data)
}

// CompileJSONSchema compiles a JSON Schema document.
func CompileJSONSchema(data []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(jsonSchemaResource, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("schema: add resource: %w", err)
	}
	s, err := compiler.Compile(jsonSchemaResource)
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return s, nil
}

type issue struct {
	Location string
	Message  string
}

// jsonSchemaIssues validates fm and flattens the error tree into its leaves.
func jsonSchemaIssues(s *jsonschema.Schema, fm *yaml.Node) []issue {
	payload, err := jsonValue(fm)
	if err != nil {
		return []issue{{Location: FrontMatterField, Message: err.Error()}}
	}
	err = s.Validate(payload)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []issue{{Location: FrontMatterField, Message: err.Error()}}
	}

	var out []issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			out = append(out, issue{
				Location: location(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(verr)
	return out
}

// jsonValue converts YAML values (timestamps, ints, nested maps) into the
// plain JSON model the validator expects.
func jsonValue(fm *yaml.Node) (any, error) {
	raw, err := json.Marshal(parser.Value(fm))
	if err != nil {
		return nil, fmt.Errorf("front matter is not representable as JSON: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v == nil {
		v = map[string]any{}
	}
	return v, nil
}

// location turns a JSON pointer into a field name: "/tags/0" → "tags[0]".
func location(pointer string) string {
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return FrontMatterField
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p != "" && strings.Trim(p, "0123456789") == "" {
			b.WriteString("[" + p + "]")
			continue
		}
		b.WriteString("." + p)
	}
	return b.String()
}
