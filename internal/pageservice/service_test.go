package pageservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/varga/laguz/internal/apperr"
	"github.com/varga/laguz/internal/index"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/storage"
)

func testService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "laguz-test-*.db")
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
	return NewService(store, db)
}

func TestLoadPage_MissingFileYieldsEmptyBlock(t *testing.T) {
	s := testService(t)
	page, err := s.LoadPage(context.Background(), outline.UserPageID("Nope"))
	if err != nil {
		t.Fatalf("LoadPage: %v", err)
	}
	if len(page.Blocks) != 1 || page.Blocks[0].Content.OriginalText != "" {
		t.Errorf("page = %+v", page)
	}
}

func TestSaveAndLoadPage(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	id := outline.UserPageID("Projects")

	page, err := s.SavePage(ctx, id, []outline.FlatBlockDTO{
		{Markdown: "[ ] kickoff", Indentation: 0},
		{Markdown: "notes", Indentation: 1},
	})
	if err != nil {
		t.Fatalf("SavePage: %v", err)
	}
	if len(page.Blocks) != 2 {
		t.Fatalf("blocks = %d", len(page.Blocks))
	}
	if page.Blocks[0].Content.PreparedMarkdown != "kickoff" {
		t.Errorf("prepared = %q, want todo marker stripped", page.Blocks[0].Content.PreparedMarkdown)
	}
	if page.Blocks[1].Indentation != 1 {
		t.Errorf("indentation = %d", page.Blocks[1].Indentation)
	}

	// Saved pages are searchable.
	res, err := s.Search(ctx, "kickoff", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Pages) != 1 || res.Pages[0].PageName != "Projects" {
		t.Errorf("search result = %+v", res)
	}
}

func TestSaveBlock_ReplacesAndValidates(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	id := outline.UserPageID("Home")

	if _, err := s.SavePage(ctx, id, []outline.FlatBlockDTO{
		{Markdown: "one"}, {Markdown: "two", Indentation: 1},
	}); err != nil {
		t.Fatal(err)
	}

	blk, err := s.SaveBlock(ctx, id, 2, "[x] done thing")
	if err != nil {
		t.Fatalf("SaveBlock: %v", err)
	}
	if blk.Content.PreparedMarkdown != "done thing" || blk.Indentation != 1 {
		t.Errorf("block = %+v", blk)
	}

	page, _ := s.LoadPage(ctx, id)
	if page.Blocks[1].Content.OriginalText != "[x] done thing" {
		t.Errorf("persisted = %q", page.Blocks[1].Content.OriginalText)
	}
}

func TestSaveBlock_OutOfRange(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	id := outline.UserPageID("Home")
	if _, err := s.SavePage(ctx, id, []outline.FlatBlockDTO{{Markdown: "only"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveBlock(ctx, id, 2, "nope"); !errors.Is(err, apperr.ErrInvalidBlockState) {
		t.Errorf("err = %v, want ErrInvalidBlockState", err)
	}
	if _, err := s.SaveBlock(ctx, outline.UserPageID("Ghost"), 1, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEmbedResolution(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, err := s.SavePage(ctx, outline.UserPageID("Source"), []outline.FlatBlockDTO{
		{Markdown: "first"}, {Markdown: "second line"},
	}); err != nil {
		t.Fatal(err)
	}

	blk := s.ValidateBlock(ctx, "see [[Source#2]]", 0)
	if len(blk.ReferencedContent) != 1 {
		t.Fatalf("referenced = %+v", blk.ReferencedContent)
	}
	rc := blk.ReferencedContent[0]
	if rc.Content.OriginalText != "second line" || rc.Reference.BlockNumber != 2 {
		t.Errorf("referenced content = %+v", rc)
	}
	if rc.Reference.FileID != outline.UserPageID("Source") {
		t.Errorf("fileId = %q", rc.Reference.FileID)
	}

	// Out-of-range embeds are dropped, not errors.
	blk = s.ValidateBlock(ctx, "see [[Source#9]]", 0)
	if len(blk.ReferencedContent) != 0 {
		t.Errorf("expected unresolvable embed to be dropped, got %+v", blk.ReferencedContent)
	}
}

func TestRenamePage_RewritesReferences(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, err := s.SavePage(ctx, outline.UserPageID("Old"), []outline.FlatBlockDTO{{Markdown: "content"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePage(ctx, outline.UserPageID("Referrer"), []outline.FlatBlockDTO{
		{Markdown: "see [[Old]] and [[Old#1]]"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.RenamePage(ctx, "Old", "New"); err != nil {
		t.Fatalf("RenamePage: %v", err)
	}

	page, err := s.LoadPage(ctx, outline.UserPageID("New"))
	if err != nil || len(page.Blocks) != 1 {
		t.Fatalf("renamed page: %+v err=%v", page, err)
	}
	ref, _ := s.LoadPage(ctx, outline.UserPageID("Referrer"))
	got := ref.Blocks[0].Content.OriginalText
	if !strings.Contains(got, "[[New]]") || !strings.Contains(got, "[[New#1]]") {
		t.Errorf("referrer text = %q", got)
	}

	if err := s.RenamePage(ctx, "Ghost", "Other"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("rename missing = %v, want ErrNotFound", err)
	}
}

func TestDeletePage(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	id := outline.UserPageID("Temp")
	if _, err := s.SavePage(ctx, id, []outline.FlatBlockDTO{{Markdown: "x"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeletePage(ctx, id); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	meta, err := s.Meta(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Tags) != 0 {
		t.Errorf("tags after delete = %v", meta.Tags)
	}
	if err := s.DeletePage(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestMeta_ListsMediaAndTemplates(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	fs := s.store.(*storage.FS)
	if err := os.MkdirAll(filepath.Join(fs.Root(), storage.MediaDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fs.Root(), storage.MediaDir, "pic.png"), []byte{1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.store.Write(filepath.Join(storage.TemplatesDir, "Meeting.md"), []byte("- agenda\n")); err != nil {
		t.Fatal(err)
	}

	meta, err := s.Meta(ctx)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if len(meta.Media) != 1 || meta.Media[0] != "pic.png" {
		t.Errorf("media = %v", meta.Media)
	}
	if len(meta.Templates) != 1 || meta.Templates[0] != "Meeting" {
		t.Errorf("templates = %v", meta.Templates)
	}
}

func TestFavourites_ToggleAndLoadFlag(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	on, err := s.ToggleFavourite(ctx, "Home")
	if err != nil || !on {
		t.Fatalf("toggle on = %v err=%v", on, err)
	}
	page, _ := s.LoadPage(ctx, outline.UserPageID("Home"))
	if !page.IsFavourite {
		t.Error("expected favourite flag on load")
	}

	off, _ := s.ToggleFavourite(ctx, "Home")
	if off {
		t.Error("expected toggle off")
	}
	page, _ = s.LoadPage(ctx, outline.UserPageID("Home"))
	if page.IsFavourite {
		t.Error("favourite flag should be cleared")
	}
}

type writeFailProvider struct {
	storage.Provider
	err error
}

func (p writeFailProvider) Write(string, []byte) error { return p.err }

func TestFavourites_ToggleSurfacesWriteFailure(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	wantErr := errors.New("disk full")
	s.store = writeFailProvider{Provider: s.store, err: wantErr}

	on, err := s.ToggleFavourite(ctx, "Home")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if on {
		t.Error("failed toggle should not report the page as favourite")
	}
}

func TestBuiltinPages(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	if _, err := s.SavePage(ctx, outline.UserPageID("Alpha"), []outline.FlatBlockDTO{{Markdown: "x"}}); err != nil {
		t.Fatal(err)
	}

	page, err := s.BuiltinPage(ctx, "user-page-overview")
	if err != nil {
		t.Fatalf("BuiltinPage: %v", err)
	}
	if len(page.Blocks) != 2 || page.Blocks[1].Content.OriginalText != "[[Alpha]]" {
		t.Errorf("overview = %+v", page.Blocks)
	}

	if _, err := s.BuiltinPage(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown builtin = %v, want ErrNotFound", err)
	}
}
