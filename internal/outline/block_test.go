package outline

import (
	"errors"
	"testing"

	"github.com/varga/laguz/internal/apperr"
)

func mkBlocks(indents ...int) []*Block {
	out := make([]*Block, len(indents))
	for i, d := range indents {
		out[i] = EmptyBlock(NewBlockID("t"), d)
	}
	return out
}

func TestNewBlock_NegativeIndentation(t *testing.T) {
	_, err := NewBlock("b1", BlockContent{}, -1)
	if !errors.Is(err, apperr.ErrInvalidBlockState) {
		t.Fatalf("err = %v, want ErrInvalidBlockState", err)
	}
}

func TestNewBlock_EmptyID(t *testing.T) {
	_, err := NewBlock("", BlockContent{}, 0)
	if !errors.Is(err, apperr.ErrInvalidBlockState) {
		t.Fatalf("err = %v, want ErrInvalidBlockState", err)
	}
}

func TestNewBlockID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewBlockID("page/1")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestHasChildren(t *testing.T) {
	blocks := mkBlocks(0, 1, 2, 0)
	want := []bool{true, true, false, false}
	for i, w := range want {
		if got := HasChildren(blocks, i); got != w {
			t.Errorf("HasChildren(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestHasChildren_EqualIndentIsNotChild(t *testing.T) {
	blocks := mkBlocks(0, 1, 1, 0)
	if !HasChildren(blocks, 0) {
		t.Errorf("HasChildren(0) = false, want true")
	}
	if HasChildren(blocks, 1) {
		t.Errorf("HasChildren(1) = true, want false (equal indentation)")
	}
}

func TestIsVisible_CollapsedAncestorHidesDescendants(t *testing.T) {
	blocks := mkBlocks(0, 1, 2, 1, 0)
	blocks[1].Collapsed = true

	want := []bool{true, true, false, true, true}
	for i, w := range want {
		if got := IsVisible(blocks, i); got != w {
			t.Errorf("IsVisible(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestIsVisible_CollapsedRootHidesSubtree(t *testing.T) {
	blocks := mkBlocks(0, 1, 2, 1, 0)
	blocks[0].Collapsed = true

	want := []bool{true, false, false, false, true}
	for i, w := range want {
		if got := IsVisible(blocks, i); got != w {
			t.Errorf("IsVisible(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestFromPageDTO_AssignsFreshIDs(t *testing.T) {
	dto := PageDTO{Blocks: []BlockDTO{
		{Content: BlockContentDTO{OriginalText: "a"}, Indentation: 0},
		{Content: BlockContentDTO{OriginalText: "b"}, Indentation: 1},
	}}
	p1, err := FromPageDTO(dto, "Home", UserPageID("Home"))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := FromPageDTO(dto, "Home", UserPageID("Home"))
	if err != nil {
		t.Fatal(err)
	}
	if p1.Blocks[0].ID == p2.Blocks[0].ID {
		t.Errorf("reload reused block id %s", p1.Blocks[0].ID)
	}
	if p1.Blocks[0].ID == p1.Blocks[1].ID {
		t.Errorf("sibling blocks share id %s", p1.Blocks[0].ID)
	}
}

func TestFromPageDTO_RejectsNegativeIndentation(t *testing.T) {
	dto := PageDTO{Blocks: []BlockDTO{{Indentation: -2}}}
	if _, err := FromPageDTO(dto, "Home", UserPageID("Home")); !errors.Is(err, apperr.ErrInvalidBlockState) {
		t.Fatalf("err = %v, want ErrInvalidBlockState", err)
	}
}

func TestPageIDNamespaces(t *testing.T) {
	if got := UserPageID("Home"); got != "%%user-page/Home" {
		t.Errorf("UserPageID = %q", got)
	}
	if got := JournalPageID("2024_03_01"); got != "%%journal-page/2024_03_01" {
		t.Errorf("JournalPageID = %q", got)
	}
	if !IsUserPage(UserPageID("Home")) || IsJournalPage(UserPageID("Home")) {
		t.Errorf("namespace predicates disagree for user page")
	}
	if PageName(JournalPageID("2024_03_01")) != "2024_03_01" {
		t.Errorf("PageName did not strip journal prefix")
	}
}

func TestFlatten_DocumentOrder(t *testing.T) {
	blocks := mkBlocks(0, 1)
	blocks[0].Content.OriginalText = "first"
	blocks[1].Content.OriginalText = "second"
	flat := Flatten(blocks)
	if len(flat) != 2 || flat[0].Markdown != "first" || flat[1].Markdown != "second" {
		t.Errorf("Flatten = %+v", flat)
	}
	if flat[1].Indentation != 1 {
		t.Errorf("indentation lost: %+v", flat[1])
	}
}
