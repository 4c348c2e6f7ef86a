// Package outline defines the block and page domain types for Laguz.
package outline

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/varga/laguz/internal/apperr"
)

// BlockContent holds the two derived forms of a block's text. OriginalText is
// the user-authored source; PreparedMarkdown has any directive prefix (such as
// a todo marker) stripped for rendering. The two are always re-derived
// together, never edited independently.
type BlockContent struct {
	OriginalText     string `json:"originalText"`
	PreparedMarkdown string `json:"preparedMarkdown"`
}

// Reference points at a specific block on a specific page. BlockNumber is
// 1-based: the persistence layer addresses blocks by position, not identity.
type Reference struct {
	SourcePageID   string `json:"fileId"`
	SourcePageName string `json:"fileName"`
	BlockNumber    int    `json:"blockNumber"`
}

// ReferencedBlockContent is a content snapshot pulled in from another page.
type ReferencedBlockContent struct {
	Content   BlockContent `json:"content"`
	Reference Reference    `json:"reference"`
}

// Block is one outline unit of text with an indentation depth. A block with
// indentation d is a child of the nearest preceding block with indentation
// less than d.
type Block struct {
	ID                string
	Content           BlockContent
	Indentation       int
	Collapsed         bool
	HasDynamicContent bool
	ReferencedContent []ReferencedBlockContent
}

// NewBlock constructs a block, rejecting negative indentation and empty ids.
func NewBlock(id string, content BlockContent, indentation int) (*Block, error) {
	if id == "" {
		return nil, fmt.Errorf("outline: empty block id: %w", apperr.ErrInvalidBlockState)
	}
	if indentation < 0 {
		return nil, fmt.Errorf("outline: block %s: indentation %d: %w", id, indentation, apperr.ErrInvalidBlockState)
	}
	return &Block{ID: id, Content: content, Indentation: indentation}, nil
}

// EmptyBlock returns a fresh empty block at the given indentation. The caller
// supplies the id, typically via NewBlockID.
func EmptyBlock(id string, indentation int) *Block {
	if indentation < 0 {
		indentation = 0
	}
	return &Block{ID: id, Indentation: indentation}
}

// NewBlockID derives a fresh identity from a neighbor's identity plus a
// random suffix, so concurrent creation never collides and identities are
// never reused within a page session.
func NewBlockID(neighborID string) string {
	return neighborID + "_" + newIDSuffix()
}

func newIDSuffix() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Clone returns a deep copy of the block. Store commits always replace whole
// block lists, so mutation happens on copies.
func (b *Block) Clone() *Block {
	c := *b
	if b.ReferencedContent != nil {
		c.ReferencedContent = make([]ReferencedBlockContent, len(b.ReferencedContent))
		copy(c.ReferencedContent, b.ReferencedContent)
	}
	return &c
}

// HasChildren reports whether the block at index i has child blocks: true iff
// the immediately following block strictly increases indentation.
func HasChildren(blocks []*Block, i int) bool {
	if i < 0 || i >= len(blocks)-1 {
		return false
	}
	return blocks[i+1].Indentation > blocks[i].Indentation
}

// IsVisible reports whether the block at index i is shown. A block is hidden
// iff any ancestor (nearest preceding block with strictly lower indentation,
// walking outward until depth 0) is collapsed. The first block and blocks at
// indentation 0 are always visible.
func IsVisible(blocks []*Block, i int) bool {
	if i <= 0 || i >= len(blocks) {
		return true
	}
	depth := blocks[i].Indentation
	for j := i - 1; j >= 0 && depth > 0; j-- {
		if blocks[j].Indentation < depth {
			if blocks[j].Collapsed {
				return false
			}
			depth = blocks[j].Indentation
		}
	}
	return true
}

// IndexOf returns the position of the block with the given id, or -1.
func IndexOf(blocks []*Block, id string) int {
	for i, b := range blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}
