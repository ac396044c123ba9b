// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/docstore"
	"github.com/starford/othala/internal/tree"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *docstore.Service
	tree *tree.Projection
}

// New creates a new MCP server with all Othala tools registered.
func New(svc *docstore.Service, proj *tree.Projection) *Server {
	s := &Server{svc: svc, tree: proj}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full Markdown content of a document by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id (UUID)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new Markdown document. "+
			"Content MUST follow the canonical document format (YAML frontmatter with title, "+
			"optional tags, Markdown body). Read the contract first via the "+
			"get_document_contract tool or the othala://document-format resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Othala document format contract")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("update_document",
		mcp.WithDescription("Replace the content of an existing document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id (UUID)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
	), s.updateDocument)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical Othala document format contract. "+
			"Call this before creating or updating documents to ensure correct structure."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List live documents, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag filter (empty for all)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("list_tree",
		mcp.WithDescription("List one level of the workspace tree. The root starts with the synthetic Uncategorized folder."),
		mcp.WithString("parent", mcp.Description("Parent node id (empty for root)")),
	), s.listTree)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical Markdown document format that all documents must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
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

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.CreateDocument(ctx, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", doc.ID)), nil
}

func (s *Server) updateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.UpdateDocument(ctx, id, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", id)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := ""
	if v, err := req.RequireString("tag"); err == nil {
		tag = v
	}

	metas, err := s.svc.ListDocuments(ctx, tag)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, m := range metas {
		lines = append(lines, fmt.Sprintf("%s\t%s", m.ID, m.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parent := ""
	if v, err := req.RequireString("parent"); err == nil {
		parent = v
	}
	nodes, err := s.tree.ListChildren(parent)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(nodes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
