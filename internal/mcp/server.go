// Package mcp exposes document Q&A as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/citedoc/internal/elasticsearch"
	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	OwnerID string // every tool call acts as this owner
}

// Chat answers questions about stored documents.
type Chat interface {
	Ask(ctx context.Context, ownerID, documentID, question string) (*qa.Result, error)
	Summarize(ctx context.Context, ownerID, documentID string) (*qa.Summary, error)
	Document(ctx context.Context, ownerID, documentID string) (*models.Document, error)
	Documents(ctx context.Context, ownerID string) ([]models.Document, error)
}

// Searcher searches the document library.
type Searcher interface {
	Search(ctx context.Context, ownerID, query string, limit int) ([]elasticsearch.Hit, error)
}

// Server wraps the MCP server with document tools.
type Server struct {
	mcpServer *server.MCPServer
	chat      Chat
	library   Searcher // nil if library search disabled
	ownerID   string
}

// NewServer creates a new MCP server with document tools. library may be nil.
func NewServer(config Config, chat Chat, library Searcher) (*Server, error) {
	if config.OwnerID == "" {
		return nil, fmt.Errorf("owner is required")
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		chat:      chat,
		library:   library,
		ownerID:   config.OwnerID,
	}

	askTool := mcp.NewTool("ask_document",
		mcp.WithDescription("Ask a question about an uploaded document. The answer cites pages and sections of the document."),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("ID of the document to ask about"),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question in natural language"),
		),
	)
	mcpServer.AddTool(askTool, s.askHandler)

	summarizeTool := mcp.NewTool("summarize_document",
		mcp.WithDescription("Generate a fresh executive summary of an uploaded document"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("ID of the document to summarize"),
		),
	)
	mcpServer.AddTool(summarizeTool, s.summarizeHandler)

	listTool := mcp.NewTool("list_documents",
		mcp.WithDescription("List uploaded documents with their summaries, newest first"),
	)
	mcpServer.AddTool(listTool, s.listHandler)

	getDocTool := mcp.NewTool("get_document",
		mcp.WithDescription("Get metadata and summary of an uploaded document by ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document ID to retrieve"),
		),
	)
	mcpServer.AddTool(getDocTool, s.getDocumentHandler)

	searchTool := mcp.NewTool("search_documents",
		mcp.WithDescription("Search uploaded documents by query. Returns matching document IDs with summaries."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	return s, nil
}

// toolError converts a service error into a tool result without leaking
// internal causes.
func toolError(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return mcp.NewToolResultError("Document not found. Please re-upload the document.")
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrBusy):
		return mcp.NewToolResultError(err.Error())
	default:
		slog.Error("mcp tool failed", "action", action, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s failed", action))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// askHandler handles the ask_document tool call.
func (s *Server) askHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}

	result, err := s.chat.Ask(ctx, s.ownerID, documentID, question)
	if err != nil {
		return toolError("ask", err), nil
	}
	return jsonResult(result)
}

// summarizeHandler handles the summarize_document tool call.
func (s *Server) summarizeHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}

	summary, err := s.chat.Summarize(ctx, s.ownerID, documentID)
	if err != nil {
		return toolError("summarize", err), nil
	}
	return jsonResult(summary)
}

// listHandler handles the list_documents tool call.
func (s *Server) listHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.chat.Documents(ctx, s.ownerID)
	if err != nil {
		return toolError("list", err), nil
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return jsonResult(docs)
}

// getDocumentHandler handles the get_document tool call.
func (s *Server) getDocumentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.chat.Document(ctx, s.ownerID, id)
	if err != nil {
		return toolError("get document", err), nil
	}
	return jsonResult(doc)
}

// searchHandler handles the search_documents tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.library == nil {
		return mcp.NewToolResultError("library search is disabled"), nil
	}

	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	limit := req.GetInt("limit", 10)

	hits, err := s.library.Search(ctx, s.ownerID, query, limit)
	if err != nil {
		return toolError("search", err), nil
	}
	if hits == nil {
		hits = []elasticsearch.Hit{}
	}
	return jsonResult(hits)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
