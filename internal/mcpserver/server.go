// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Laguz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/pageservice"
	"github.com/varga/laguz/internal/storage"
)

// Server wraps the MCP server with Laguz tools.
type Server struct {
	mcp   *server.MCPServer
	pages *pageservice.Service
	store storage.Provider
}

// New creates a new MCP server with all Laguz tools registered.
func New(pages *pageservice.Service, store storage.Provider) *Server {
	s := &Server{pages: pages, store: store}

	s.mcp = server.NewMCPServer(
		"Laguz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search through page and journal blocks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read a user page as outline markdown."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Page name (e.g. Projects)")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("read_journal",
		mcp.WithDescription("Read a journal page as outline markdown."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Journal date in yyyy_mm_dd form")),
	), s.readJournal)

	s.mcp.AddTool(mcp.NewTool("append_blocks",
		mcp.WithDescription("Append outline blocks to the end of a user page. "+
			"Content MUST follow the canonical outline format (dash-prefixed blocks, "+
			"TAB indentation, [[wikilinks]]). Read the contract first via the "+
			"get_page_format tool or the laguz://page-format resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Page name to append to")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Outline markdown following the Laguz page format contract")),
	), s.appendBlocks)

	s.mcp.AddTool(mcp.NewTool("get_page_format",
		mcp.WithDescription("Returns the canonical Laguz outline page format contract. "+
			"Call this before appending blocks to ensure correct structure."),
	), s.getPageFormat)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List all user page names."),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all pages that reference the specified page."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Page name to find backlinks for")),
	), s.getBacklinks)

	// Resource: page format contract.
	s.mcp.AddResource(
		mcp.NewResource("laguz://page-format", "Page Format Contract",
			mcp.WithResourceDescription("Canonical outline page format that appended blocks must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPageFormatResource,
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

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.pages.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.renderPage(ctx, outline.UserPageID(name))
}

func (s *Server) readJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := time.Parse("2006_01_02", date); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid journal date: %s", date)), nil
	}
	return s.renderPage(ctx, outline.JournalPageID(date))
}

// renderPage loads a page and serializes it back to outline markdown.
func (s *Server) renderPage(ctx context.Context, pageID string) (*mcp.CallToolResult, error) {
	dto, err := s.pages.LoadPage(ctx, pageID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", outline.PageName(pageID))), nil
	}
	flat := make([]outline.FlatBlockDTO, len(dto.Blocks))
	for i, b := range dto.Blocks {
		flat[i] = outline.FlatBlockDTO{Markdown: b.Content.OriginalText, Indentation: b.Indentation}
	}
	return mcp.NewToolResultText(string(storage.EncodePage(flat))), nil
}

func (s *Server) appendBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	blocks := storage.DecodePage([]byte(content))
	if len(blocks) == 0 {
		return mcp.NewToolResultError("content contains no blocks"), nil
	}
	page, err := s.pages.AppendBlocks(ctx, outline.UserPageID(name), blocks)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("appended %d blocks to %s (%d total)", len(blocks), name, len(page.Blocks))), nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.store.ListNames(storage.PagesDir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasSuffix(n, ".md") {
			pages = append(pages, strings.TrimSuffix(n, ".md"))
		}
	}
	return mcp.NewToolResultText(strings.Join(pages, "\n")), nil
}

func (s *Server) getPageFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PageFormatContract), nil
}

func (s *Server) readPageFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "laguz://page-format",
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.pages.Backlinks(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}
