package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/varga/laguz/internal/assist"
	"github.com/varga/laguz/internal/editor"
	"github.com/varga/laguz/internal/index"
	"github.com/varga/laguz/internal/notify"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/pageservice"
	"github.com/varga/laguz/internal/pagestore"
	"github.com/varga/laguz/internal/storage"
	"github.com/varga/laguz/internal/templates"
)

// encoded form of the Home user-page id for path segments.
const homePageIDEscaped = "%25%25user-page%2FHome"

// testEnv sets up a temp graph, SQLite DB, the full editing stack, and the
// router. authToken="" means auth disabled.
func testEnv(t *testing.T, authToken string) (http.Handler, Deps) {
	t.Helper()

	graphDir := t.TempDir()
	fs, err := storage.NewFS(graphDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "laguz-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := pageservice.NewService(fs, db)
	broker := notify.NewBroker(time.Hour)
	t.Cleanup(broker.Close)
	store := pagestore.NewStore(svc, broker)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := editor.NewBus(store, svc, broker, logger)
	bus.SetOpenDelay(time.Millisecond)
	tmpl := templates.NewManager(fs, svc)
	ctrl := assist.NewController(bus, store, assist.IndexSearcher{Pages: svc}, assist.ServiceMeta{Pages: svc}, tmpl, logger)
	ctrl.SetDebounce(5 * time.Millisecond)

	deps := Deps{
		Pages:     svc,
		Store:     store,
		Bus:       bus,
		Assist:    ctrl,
		Templates: tmpl,
		Broker:    broker,
		GraphRoot: graphDir,
	}
	return NewRouter(deps, authToken != "", authToken), deps
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func savePage(t *testing.T, router http.Handler, name string, markdown ...string) {
	t.Helper()
	blocks := make([]outline.FlatBlockDTO, len(markdown))
	for i, m := range markdown {
		blocks[i] = outline.FlatBlockDTO{Markdown: m}
	}
	w := doJSON(t, router, http.MethodPost, "/pages/"+name, SavePageRequest{Blocks: blocks})
	if w.Code != http.StatusOK {
		t.Fatalf("save %s = %d, body = %s", name, w.Code, w.Body.String())
	}
}

func TestSaveAndGetPage(t *testing.T) {
	router, _ := testEnv(t, "")

	savePage(t, router, "Home", "[ ] buy milk", "plain text")

	w := doJSON(t, router, http.MethodGet, "/pages/Home", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	page := decode[outline.PageDTO](t, w)
	if len(page.Blocks) != 2 {
		t.Fatalf("blocks = %d", len(page.Blocks))
	}
	if page.Blocks[0].Content.OriginalText != "[ ] buy milk" {
		t.Errorf("original = %q", page.Blocks[0].Content.OriginalText)
	}
	if strings.Contains(page.Blocks[0].Content.PreparedMarkdown, "[ ]") {
		t.Errorf("todo marker not stripped: %q", page.Blocks[0].Content.PreparedMarkdown)
	}
}

func TestGetMissingPageIsEmptyNotFound(t *testing.T) {
	router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/pages/Ghost", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	page := decode[outline.PageDTO](t, w)
	if len(page.Blocks) != 1 || page.Blocks[0].Content.OriginalText != "" {
		t.Errorf("missing page = %+v, want one empty block", page.Blocks)
	}
}

func TestJournalDateValidation(t *testing.T) {
	router, _ := testEnv(t, "")

	if w := doJSON(t, router, http.MethodGet, "/journal/not-a-date", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d", w.Code)
	}

	body := SavePageRequest{Blocks: []outline.FlatBlockDTO{{Markdown: "daily note"}}}
	if w := doJSON(t, router, http.MethodPost, "/journal/2024_03_01", body); w.Code != http.StatusOK {
		t.Fatalf("save journal = %d", w.Code)
	}
	w := doJSON(t, router, http.MethodGet, "/journal/2024_03_01", nil)
	page := decode[outline.PageDTO](t, w)
	if len(page.Blocks) != 1 || page.Blocks[0].Content.OriginalText != "daily note" {
		t.Errorf("journal = %+v", page.Blocks)
	}
}

func TestSaveBlockByID(t *testing.T) {
	router, _ := testEnv(t, "")
	savePage(t, router, "Home", "first", "second")

	w := doJSON(t, router, http.MethodPost, "/pagesbyid/"+homePageIDEscaped+"/block/2", SaveBlockRequest{Markdown: "changed"})
	if w.Code != http.StatusOK {
		t.Fatalf("save block = %d, body = %s", w.Code, w.Body.String())
	}
	block := decode[outline.BlockDTO](t, w)
	if block.Content.OriginalText != "changed" {
		t.Errorf("block = %+v", block)
	}

	// Out-of-range block number.
	if w := doJSON(t, router, http.MethodPost, "/pagesbyid/"+homePageIDEscaped+"/block/9", SaveBlockRequest{Markdown: "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("out of range = %d", w.Code)
	}

	// Page that has no file yet.
	if w := doJSON(t, router, http.MethodPost, "/pagesbyid/%25%25user-page%2FGhost/block/1", SaveBlockRequest{Markdown: "x"}); w.Code != http.StatusNotFound {
		t.Errorf("missing page = %d", w.Code)
	}
}

func TestParse(t *testing.T) {
	router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/parse", ParseRequest{Markdown: "**bold** text"})
	if w.Code != http.StatusOK {
		t.Fatalf("parse = %d", w.Code)
	}
	resp := decode[ParseResponse](t, w)
	if resp.Block.Content.OriginalText != "**bold** text" {
		t.Errorf("block = %+v", resp.Block)
	}
	if !strings.Contains(resp.HTML, "<strong>") {
		t.Errorf("html = %q", resp.HTML)
	}
}

func TestRenamePageRewritesReferences(t *testing.T) {
	router, _ := testEnv(t, "")
	savePage(t, router, "Old", "content")
	savePage(t, router, "Ref", "see [[Old]]")

	w := doJSON(t, router, http.MethodPost, "/rename-page", RenamePageRequest{OldName: "Old", NewName: "New"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/pages/Ref", nil)
	page := decode[outline.PageDTO](t, w)
	if got := page.Blocks[0].Content.OriginalText; got != "see [[New]]" {
		t.Errorf("referrer = %q", got)
	}

	// Renaming a page that never existed.
	if w := doJSON(t, router, http.MethodPost, "/rename-page", RenamePageRequest{OldName: "Ghost", NewName: "Whatever"}); w.Code != http.StatusNotFound {
		t.Errorf("ghost rename = %d", w.Code)
	}
}

func TestDeletePage(t *testing.T) {
	router, _ := testEnv(t, "")
	savePage(t, router, "Gone", "bye")

	if w := doJSON(t, router, http.MethodDelete, "/pages/Gone", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/pages/Gone", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", w.Code)
	}
}

func TestSearchAndMetaInfo(t *testing.T) {
	router, _ := testEnv(t, "")
	savePage(t, router, "Budget", "quarterly budget review")

	w := doJSON(t, router, http.MethodPost, "/search", SearchRequest{Query: "budget"})
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	res := decode[SearchResponse](t, w)
	if len(res.Pages) != 1 || res.Pages[0].PageName != "Budget" {
		t.Errorf("search result = %+v", res)
	}

	w = doJSON(t, router, http.MethodGet, "/metainfo", nil)
	meta := decode[pageservice.MetaInfo](t, w)
	found := false
	for _, tag := range meta.Tags {
		if tag == "Budget" {
			found = true
		}
	}
	if !found {
		t.Errorf("tags = %v", meta.Tags)
	}
}

func TestBacklinks(t *testing.T) {
	router, _ := testEnv(t, "")
	savePage(t, router, "Ref", "points at [[Home]]")

	w := doJSON(t, router, http.MethodGet, "/backlinks/Home", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	var resp struct {
		Backlinks []string `json:"backlinks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Backlinks) != 1 || resp.Backlinks[0] != "Ref" {
		t.Errorf("backlinks = %v", resp.Backlinks)
	}
}

func TestTemplatesEndpoints(t *testing.T) {
	router, deps := testEnv(t, "")
	path := filepath.Join(deps.GraphRoot, storage.TemplatesDir, "Weekly_Review.md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("- wins\n- blockers"), 0o644); err != nil {
		t.Fatal(err)
	}
	savePage(t, router, "Home", "intro")

	w := doJSON(t, router, http.MethodGet, "/templates", nil)
	var list struct {
		Templates []templates.Template `json:"templates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Templates) != 1 || list.Templates[0].Title != "Weekly Review" {
		t.Fatalf("templates = %+v", list.Templates)
	}

	w = doJSON(t, router, http.MethodPost, "/templates/insert", InsertTemplateRequest{
		TemplateID:  list.Templates[0].ID,
		PageID:      outline.UserPageID("Home"),
		BlockNumber: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("insert = %d, body = %s", w.Code, w.Body.String())
	}
	page := decode[outline.PageDTO](t, w)
	if len(page.Blocks) != 3 || page.Blocks[1].Content.OriginalText != "wins" {
		t.Errorf("page after insert = %+v", page.Blocks)
	}
}

func TestFavouritesToggle(t *testing.T) {
	router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/favourites/Home", nil)
	var toggled struct {
		Favourite bool `json:"favourite"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &toggled); err != nil {
		t.Fatal(err)
	}
	if !toggled.Favourite {
		t.Fatalf("first toggle = %+v", toggled)
	}

	w = doJSON(t, router, http.MethodGet, "/favourites", nil)
	var favs struct {
		Favourites []string `json:"favourites"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &favs); err != nil {
		t.Fatal(err)
	}
	if len(favs.Favourites) != 1 || favs.Favourites[0] != "Home" {
		t.Errorf("favourites = %v", favs.Favourites)
	}
}

func TestMediaUploadAndServe(t *testing.T) {
	router, deps := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "pic.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("png-bytes")); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}

	assets := chi.NewRouter()
	assets.Get("/assets/{filename}", AssetsHandler(deps.GraphRoot, deps.Broker))
	req = httptest.NewRequest(http.MethodGet, "/assets/pic.png", nil)
	w = httptest.NewRecorder()
	assets.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "png-bytes" {
		t.Errorf("serve = %d body = %q", w.Code, w.Body.String())
	}
}

func TestMediaUploadRejectsTraversal(t *testing.T) {
	router, _ := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "../evil.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("x"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("traversal upload = %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router, _ := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/metainfo", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metainfo", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d", w.Code)
	}
}

type editorPageResponse struct {
	PageID string           `json:"pageId"`
	Blocks []EditorBlockDTO `json:"blocks"`
}

func loadEditorPage(t *testing.T, router http.Handler, pageID string) editorPageResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/editor/load", map[string]string{"pageId": pageID})
	if w.Code != http.StatusOK {
		t.Fatalf("editor load = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[editorPageResponse](t, w)
}

// waitChange blocks until the broker delivers a change of the given kind.
// Bus operations persist asynchronously and publish on completion, so this is
// the signal that a reload will observe the new content.
func waitChange(t *testing.T, ch chan notify.Change, kind string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-ch:
			if c.Kind == kind {
				return
			}
		case <-deadline:
			t.Fatalf("no %q change arrived", kind)
		}
	}
}

func TestEditorFlow(t *testing.T) {
	router, deps := testEnv(t, "")
	savePage(t, router, "Home", "first", "second")
	pageID := outline.UserPageID("Home")

	page := loadEditorPage(t, router, pageID)
	if len(page.Blocks) != 2 {
		t.Fatalf("blocks = %+v", page.Blocks)
	}

	ch := deps.Broker.Subscribe()
	defer deps.Broker.Unsubscribe(ch)

	// Open the first block and append an empty sibling after it.
	if w := doJSON(t, router, http.MethodPost, "/editor/open", BlockRef{PageID: pageID, BlockID: page.Blocks[0].BlockID}); w.Code != http.StatusNoContent {
		t.Fatalf("open = %d", w.Code)
	}
	w := doJSON(t, router, http.MethodPost, "/editor/new-block", NewBlockRequest{
		PageID:   pageID,
		BlockID:  page.Blocks[0].BlockID,
		Position: "after",
		Token:    "req-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("new block = %d, body = %s", w.Code, w.Body.String())
	}
	waitChange(t, ch, "block.changed")

	page = loadEditorPage(t, router, pageID)
	if len(page.Blocks) != 3 || page.Blocks[1].OriginalText != "" {
		t.Fatalf("after new block = %+v", page.Blocks)
	}

	// Commit raw text into the fresh block and wait for the save to land.
	target := page.Blocks[1]
	if w := doJSON(t, router, http.MethodPost, "/editor/focus-out", FocusOutRequest{
		PageID:  pageID,
		BlockID: target.BlockID,
		Text:    "[ ] follow up",
	}); w.Code != http.StatusAccepted {
		t.Fatalf("focus-out = %d", w.Code)
	}
	waitChange(t, ch, "block.changed")

	page = loadEditorPage(t, router, pageID)
	if len(page.Blocks) != 3 || page.Blocks[1].OriginalText != "[ ] follow up" {
		t.Errorf("after focus-out = %+v", page.Blocks)
	}
}

func TestAssistFlowOverHTTP(t *testing.T) {
	router, deps := testEnv(t, "")
	savePage(t, router, "Home", "note")
	pageID := outline.UserPageID("Home")
	page := loadEditorPage(t, router, pageID)

	ch := deps.Broker.Subscribe()
	defer deps.Broker.Unsubscribe(ch)

	if w := doJSON(t, router, http.MethodPost, "/editor/open", BlockRef{PageID: pageID, BlockID: page.Blocks[0].BlockID}); w.Code != http.StatusNoContent {
		t.Fatalf("open = %d", w.Code)
	}

	// Ctrl+Space with an open target enters insert mode.
	w := doJSON(t, router, http.MethodPost, "/assist/key", KeyRequest{Key: " ", Ctrl: true})
	state := decode[AssistStateResponse](t, w)
	if state.Mode != "insert" || state.Effect != "consumed" {
		t.Fatalf("state = %+v", state)
	}

	w = doJSON(t, router, http.MethodGet, "/assist/menu", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("menu = %d", w.Code)
	}
	var menu struct {
		Sections []assist.Section `json:"sections"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &menu); err != nil {
		t.Fatal(err)
	}
	if len(menu.Sections) == 0 || menu.Sections[0].Title != assist.TitleActions {
		t.Fatalf("sections = %+v", menu.Sections)
	}

	// Filter down to the todos query and confirm it into the open block. The
	// filter takes effect after the debounce interval.
	for _, r := range "query todos" {
		doJSON(t, router, http.MethodPost, "/assist/key", KeyRequest{Key: string(r)})
	}
	time.Sleep(50 * time.Millisecond)
	w = doJSON(t, router, http.MethodPost, "/assist/confirm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm = %d, body = %s", w.Code, w.Body.String())
	}
	cmd := decode[ConfirmResponse](t, w)
	if cmd.Kind != "insert-text" || !strings.Contains(cmd.Text, "query: todos") {
		t.Fatalf("cmd = %+v", cmd)
	}
	waitChange(t, ch, "block.changed")

	page = loadEditorPage(t, router, pageID)
	if !strings.Contains(page.Blocks[0].OriginalText, "query: todos") {
		t.Errorf("block = %q", page.Blocks[0].OriginalText)
	}
}
