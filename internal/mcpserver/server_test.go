package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	_, store := testutil.Store(t, map[string]string{
		"a/x.md":      "---\ntitle: A\ncreated: 2024-01-02T00:00:00Z\ntags: [ops, infra]\n---\n# A\n",
		"b/x.md":      "---\ntitle: B\ncreated: 2024-01-02T00:00:00Z\ntags: [ops]\n---\n# B\n",
		"untitled.md": "# Untitled\n\n<!-- toc -->\n<!-- tocstop -->\n\n## Part\n",
	})
	rep, err := pipeline.Run(context.Background(), store, pipeline.Options{Logger: testutil.Logger()})
	if err != nil {
		t.Fatal(err)
	}
	return New(rep, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "corpus_report":
		result, err = srv.corpusReport(ctx, req)
	case "list_duplicates":
		result, err = srv.listDuplicates(ctx, req)
	case "get_document":
		result, err = srv.getDocument(ctx, req)
	case "lookup_tag":
		result, err = srv.lookupTag(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCorpusReport(t *testing.T) {
	srv := testServer(t)

	text := resultText(callTool(t, srv, "corpus_report", map[string]interface{}{}))
	if !strings.Contains(text, "documents: 3") || !strings.Contains(text, "x.md (2)") {
		t.Errorf("report = %q", text)
	}

	r := callTool(t, srv, "corpus_report", map[string]interface{}{"format": "json"})
	var decoded map[string]any
	if err := json.Unmarshal([]byte(resultText(r)), &decoded); err != nil {
		t.Fatalf("json report: %v", err)
	}
	if decoded["mode"] != "dry-run" {
		t.Errorf("mode = %v", decoded["mode"])
	}

	if r := callTool(t, srv, "corpus_report", map[string]interface{}{"format": "xml"}); !r.IsError {
		t.Error("expected error for unknown format")
	}
}

func TestListDuplicates(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "list_duplicates", map[string]interface{}{}))
	if !strings.Contains(text, `"a/x.md"`) || !strings.Contains(text, `"b/x.md"`) {
		t.Errorf("duplicates = %q", text)
	}
}

func TestGetDocument(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_document", map[string]interface{}{"path": "a/x.md"})
	var view documentView
	if err := json.Unmarshal([]byte(resultText(r)), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Entry.Title != "A" || len(view.Entry.Tags) != 2 {
		t.Errorf("entry = %+v", view.Entry)
	}
	if len(view.Duplicates) != 1 || view.Duplicates[0] != "b/x.md" {
		t.Errorf("duplicates = %v", view.Duplicates)
	}

	r = callTool(t, srv, "get_document", map[string]interface{}{"path": "untitled.md"})
	view = documentView{}
	if err := json.Unmarshal([]byte(resultText(r)), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !view.StaleTOC || len(view.Findings) == 0 {
		t.Errorf("untitled view = %+v", view)
	}
}

func TestGetDocumentMissing(t *testing.T) {
	srv := testServer(t)
	if r := callTool(t, srv, "get_document", map[string]interface{}{"path": "nope.md"}); !r.IsError {
		t.Error("expected error for missing document")
	}
	if r := callTool(t, srv, "get_document", map[string]interface{}{}); !r.IsError {
		t.Error("expected error without path")
	}
}

func TestLookupTag(t *testing.T) {
	srv := testServer(t)

	text := resultText(callTool(t, srv, "lookup_tag", map[string]interface{}{"tag": "ops"}))
	if text != "a/x.md\nb/x.md" {
		t.Errorf("ops = %q", text)
	}
	text = resultText(callTool(t, srv, "lookup_tag", map[string]interface{}{"tag": "none"}))
	if text != `no documents tagged "none"` {
		t.Errorf("none = %q", text)
	}
}
