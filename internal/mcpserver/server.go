// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes collection tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/siphon/internal/apperr"
	"github.com/starford/siphon/internal/builder"
	"github.com/starford/siphon/internal/collection"
	"github.com/starford/siphon/internal/frontmatter"
	"github.com/starford/siphon/internal/poem"
)

const formatURI = "siphon://document-format"

// Service is what the tools need from the builder.
type Service interface {
	Build(ctx context.Context) (*builder.Report, error)
	Collections(ctx context.Context) (*collection.Index, error)
	Preview(ctx context.Context, name string) (collection.Record, string, error)
	Poem(ctx context.Context, name string) (builder.PoemView, error)
}

// Server wraps the MCP server with collection tools.
type Server struct {
	mcp *server.MCPServer
	svc Service
}

// New creates a new MCP server with all tools registered.
func New(svc Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Siphon",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List every collection from the latest build with its member poems in order."),
	), s.listCollections)

	s.mcp.AddTool(mcp.NewTool("render_collection",
		mcp.WithDescription("Render the collection document for one collection without writing it."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Collection name as written in poem headers")),
	), s.renderCollection)

	s.mcp.AddTool(mcp.NewTool("read_poem",
		mcp.WithDescription("Read a poem by its member name. Draft sections are left out when draft cleaning is enabled."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Member name as listed in collection documents")),
	), s.readPoem)

	s.mcp.AddTool(mcp.NewTool("parse_front_matter",
		mcp.WithDescription("Parse the header of a document and return its fields in order. "+
			"Read the format first via the siphon://document-format resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full document text")),
	), s.parseFrontMatter)

	s.mcp.AddTool(mcp.NewTool("build",
		mcp.WithDescription("Rebuild all collection documents from the source poems."),
	), s.build)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Document Format",
			mcp.WithResourceDescription("Header dialect used by poems and collection documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

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

type collectionEntry struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type parsed struct {
	Fields      []field  `json:"fields"`
	Published   bool     `json:"published"`
	Collections []string `json:"collections"`
}

func (s *Server) listCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, err := s.svc.Collections(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if idx.Len() == 0 {
		return mcp.NewToolResultText("no collections found"), nil
	}
	out := make([]collectionEntry, 0, idx.Len())
	for _, name := range idx.Names() {
		out = append(out, collectionEntry{Name: name, Members: idx.Members(name)})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) renderCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, text, err := s.svc.Preview(ctx, name)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no such collection: %s", name)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) readPoem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.Poem(ctx, name)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no such poem: %s", name)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(view.Text), nil
}

func (s *Server) parseFrontMatter(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	md, err := frontmatter.Parse(content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := parsed{
		Fields:      make([]field, 0, md.Len()),
		Published:   poem.IsPublished(md),
		Collections: poem.Collections(md),
	}
	for _, k := range md.Keys() {
		v, _ := md.Get(k)
		out.Fields = append(out.Fields, field{Key: k, Value: v})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) build(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Build(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}
