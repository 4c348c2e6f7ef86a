package storage

import (
	"reflect"
	"testing"

	"github.com/varga/laguz/internal/outline"
)

func TestEncodeDecodePage_RoundTrip(t *testing.T) {
	blocks := []outline.FlatBlockDTO{
		{Markdown: "first block", Indentation: 0},
		{Markdown: "child\nwith a second line", Indentation: 1},
		{Markdown: "grandchild", Indentation: 2},
		{Markdown: "back to root", Indentation: 0},
	}
	got := DecodePage(EncodePage(blocks))
	if !reflect.DeepEqual(got, blocks) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, blocks)
	}
}

func TestEncodePage_Format(t *testing.T) {
	data := EncodePage([]outline.FlatBlockDTO{
		{Markdown: "a", Indentation: 0},
		{Markdown: "b", Indentation: 1},
	})
	want := "- a\n\t- b\n"
	if string(data) != want {
		t.Errorf("encoded = %q, want %q", string(data), want)
	}
}

func TestDecodePage_Empty(t *testing.T) {
	if blocks := DecodePage(nil); len(blocks) != 0 {
		t.Errorf("expected no blocks, got %v", blocks)
	}
}

func TestDecodePage_EmptyBlockBullet(t *testing.T) {
	blocks := DecodePage([]byte("- a\n-\n"))
	if len(blocks) != 2 || blocks[1].Markdown != "" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestDecodePage_HandEditedPreamble(t *testing.T) {
	blocks := DecodePage([]byte("stray line\n- real block\n"))
	if len(blocks) != 2 {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].Markdown != "stray line" || blocks[0].Indentation != 0 {
		t.Errorf("preamble block = %+v", blocks[0])
	}
}

func TestEncodePage_ContinuationLinesKeepBlockShape(t *testing.T) {
	// A continuation line that itself looks like a bullet must not split the
	// block on reload.
	blocks := []outline.FlatBlockDTO{{Markdown: "list:\n- not a block", Indentation: 0}}
	got := DecodePage(EncodePage(blocks))
	if len(got) != 1 {
		t.Fatalf("blocks = %+v", got)
	}
	if got[0].Markdown != "list:\n- not a block" {
		t.Errorf("markdown = %q", got[0].Markdown)
	}
}
