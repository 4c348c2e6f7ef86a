package mcpserver

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/varga/laguz/internal/index"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/pageservice"
	"github.com/varga/laguz/internal/storage"
)

func testServer(t *testing.T) (*Server, *pageservice.Service) {
	t.Helper()

	graphDir := t.TempDir()
	store, err := storage.NewFS(graphDir)
	if err != nil {
		t.Fatal(err)
	}

	dbFile, err := os.CreateTemp("", "laguz-mcp-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	svc := pageservice.NewService(store, db)
	srv := New(svc, store)
	return srv, svc
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
	case "search_pages":
		result, err = srv.searchPages(ctx, req)
	case "read_page":
		result, err = srv.readPage(ctx, req)
	case "read_journal":
		result, err = srv.readJournal(ctx, req)
	case "append_blocks":
		result, err = srv.appendBlocks(ctx, req)
	case "list_pages":
		result, err = srv.listPages(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
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

func savePage(t *testing.T, svc *pageservice.Service, name string, markdown ...string) {
	t.Helper()
	blocks := make([]outline.FlatBlockDTO, len(markdown))
	for i, m := range markdown {
		blocks[i] = outline.FlatBlockDTO{Markdown: m}
	}
	if _, err := svc.SavePage(context.Background(), outline.UserPageID(name), blocks); err != nil {
		t.Fatal(err)
	}
}

func TestAppendAndReadPage(t *testing.T) {
	srv, svc := testServer(t)
	savePage(t, svc, "Projects", "existing block")

	r := callTool(t, srv, "append_blocks", map[string]interface{}{
		"name":    "Projects",
		"content": "- new block\n\t- child",
	})
	text := resultText(r)
	if text != "appended 2 blocks to Projects (3 total)" {
		t.Errorf("append result = %q", text)
	}

	r = callTool(t, srv, "read_page", map[string]interface{}{"name": "Projects"})
	text = resultText(r)
	if !strings.Contains(text, "- existing block") || !strings.Contains(text, "\t- child") {
		t.Errorf("read result = %q", text)
	}
}

func TestAppendRejectsEmptyContent(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "append_blocks", map[string]interface{}{
		"name":    "Projects",
		"content": "",
	})
	if !r.IsError {
		t.Error("expected error for empty content")
	}
}

func TestReadJournalValidatesDate(t *testing.T) {
	srv, svc := testServer(t)
	if _, err := svc.SavePage(context.Background(), outline.JournalPageID("2024_03_01"), []outline.FlatBlockDTO{{Markdown: "daily"}}); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "read_journal", map[string]interface{}{"date": "2024_03_01"})
	if !strings.Contains(resultText(r), "- daily") {
		t.Errorf("journal = %q", resultText(r))
	}

	r = callTool(t, srv, "read_journal", map[string]interface{}{"date": "march 1st"})
	if !r.IsError {
		t.Error("expected error for malformed date")
	}
}

func TestSearchPages(t *testing.T) {
	srv, svc := testServer(t)
	savePage(t, svc, "Budget", "quarterly budget review")

	r := callTool(t, srv, "search_pages", map[string]interface{}{"query": "budget"})
	if !strings.Contains(resultText(r), "Budget") {
		t.Errorf("search = %q", resultText(r))
	}
}

func TestListPages(t *testing.T) {
	srv, svc := testServer(t)
	savePage(t, svc, "Alpha", "a")
	savePage(t, svc, "Beta", "b")

	r := callTool(t, srv, "list_pages", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "Alpha") || !strings.Contains(text, "Beta") {
		t.Errorf("list = %q", text)
	}
	if strings.Contains(text, ".md") {
		t.Errorf("list leaks file extensions: %q", text)
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, svc := testServer(t)
	savePage(t, svc, "Ref", "points at [[Home]]")

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"name": "Home"})
	if got := resultText(r); got != "Ref" {
		t.Errorf("backlinks = %q, want Ref", got)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"name": "Nothing"})
	if got := resultText(r); got != "no backlinks found" {
		t.Errorf("empty backlinks = %q", got)
	}
}
