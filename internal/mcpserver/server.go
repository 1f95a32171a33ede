// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the results of a maintenance run as read-only tools over stdio.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/report"
)

// Server wraps the MCP server with corpus tools.
type Server struct {
	mcp *server.MCPServer
	rep *report.Report
}

// documentView is the get_document payload.
type documentView struct {
	Entry      index.Entry      `json:"entry"`
	Findings   []models.Finding `json:"findings"`
	Duplicates []string         `json:"duplicates,omitempty"`
	StaleTOC   bool             `json:"stale_toc"`
}

// New creates a new MCP server over rep. rep must carry its index.
func New(rep *report.Report, version string) *Server {
	s := &Server{rep: rep}

	s.mcp = server.NewMCPServer(
		"ansuz",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("corpus_report",
		mcp.WithDescription("Summary of the last maintenance run: counts, duplicate basenames, stale TOC blocks, findings and failures."),
		mcp.WithString("format", mcp.Description("Output format: text (default) or json")),
	), s.corpusReport)

	s.mcp.AddTool(mcp.NewTool("list_duplicates",
		mcp.WithDescription("List groups of documents sharing a case-insensitive file name."),
	), s.listDuplicates)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Indexed metadata and findings of one document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Corpus-relative path (e.g. guide/intro.md)")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("lookup_tag",
		mcp.WithDescription("List the documents carrying a tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag to look up")),
	), s.lookupTag)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) corpusReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := "text"
	if f, err := req.RequireString("format"); err == nil && f != "" {
		format = f
	}
	var buf bytes.Buffer
	if err := s.rep.Write(&buf, format); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) listDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if len(s.rep.Duplicates) == 0 {
		return mcp.NewToolResultText("no duplicate basenames"), nil
	}
	out, _ := json.MarshalIndent(s.rep.Duplicates, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, ok := s.rep.Index.Get(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}

	view := documentView{Entry: entry, Findings: s.rep.FindingsFor(path)}
	if view.Findings == nil {
		view.Findings = []models.Finding{}
	}
	for _, g := range s.rep.Duplicates {
		for _, p := range g.Paths {
			if p == path {
				view.Duplicates = others(g.Paths, path)
			}
		}
	}
	for _, p := range s.rep.TOC.Stale {
		if p == path {
			view.StaleTOC = true
		}
	}

	out, _ := json.MarshalIndent(view, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) lookupTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := s.rep.Index.ByTag(tag)
	if len(paths) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no documents tagged %q", tag)), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func others(paths []string, self string) []string {
	var out []string
	for _, p := range paths {
		if p != self {
			out = append(out, p)
		}
	}
	return out
}
