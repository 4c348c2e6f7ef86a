package api

import "github.com/varga/laguz/internal/outline"

// SavePageRequest carries the full ordered block list of a page.
type SavePageRequest struct {
	Blocks []outline.FlatBlockDTO `json:"blocks"`
}

// SaveBlockRequest replaces the markdown of one block addressed by its
// 1-based running number.
type SaveBlockRequest struct {
	Markdown string `json:"markdown"`
}

// ParseRequest asks for a render-only validation of one block.
type ParseRequest struct {
	Markdown    string `json:"markdown"`
	Indentation int    `json:"indentation"`
}

// ParseResponse returns the validated block plus its rendered HTML.
type ParseResponse struct {
	Block outline.BlockDTO `json:"block"`
	HTML  string           `json:"html"`
}

// RenamePageRequest renames a user page and rewrites inbound references.
type RenamePageRequest struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// SearchRequest is a free-text search over indexed block lines.
type SearchRequest struct {
	Query string `json:"query"`
}

// FindingDTO is one search hit.
type FindingDTO struct {
	PageName    string `json:"pageName"`
	BlockNumber int    `json:"blockNumber"`
	TextLine    string `json:"textLine"`
}

// SearchResponse partitions hits into user-page and journal matches.
type SearchResponse struct {
	Pages    []FindingDTO `json:"pages"`
	Journals []FindingDTO `json:"journals"`
}

// InsertTemplateRequest splices a template's blocks into a page after the
// given 1-based block number (0 prepends).
type InsertTemplateRequest struct {
	TemplateID  string `json:"templateId"`
	PageID      string `json:"pageId"`
	BlockNumber int    `json:"blockNumber"`
}

// EditorBlockDTO is one addressable block of a cached page.
type EditorBlockDTO struct {
	BlockID           string `json:"blockId"`
	Indentation       int    `json:"indentation"`
	OriginalText      string `json:"originalText"`
	PreparedMarkdown  string `json:"preparedMarkdown"`
	HasDynamicContent bool   `json:"hasDynamicContent"`
}

// BlockRef addresses one block of a cached page.
type BlockRef struct {
	PageID  string `json:"pageId"`
	BlockID string `json:"blockId"`
}

// FocusOutRequest commits the raw text of an editing session.
type FocusOutRequest struct {
	PageID  string `json:"pageId"`
	BlockID string `json:"blockId"`
	Text    string `json:"text"`
}

// NewBlockRequest creates an empty sibling next to the target block. Token
// makes retried requests idempotent.
type NewBlockRequest struct {
	PageID   string `json:"pageId"`
	BlockID  string `json:"blockId"`
	Position string `json:"position"` // "before" or "after"
	Token    string `json:"token"`
}

// IndentRequest shifts one block's indentation.
type IndentRequest struct {
	PageID    string `json:"pageId"`
	BlockID   string `json:"blockId"`
	Direction string `json:"direction"` // "increase" or "decrease"
}

// KeyRequest is one keystroke forwarded to the content assist.
type KeyRequest struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
}

// AssistStateResponse reports the assist session after a keystroke.
type AssistStateResponse struct {
	Effect string `json:"effect"`
	Mode   string `json:"mode"`
	Buffer string `json:"buffer"`
	Cursor int    `json:"cursor"`
}

// ConfirmResponse reports the command a confirmation resolved to.
type ConfirmResponse struct {
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	PageName string `json:"pageName,omitempty"`
	Name     string `json:"name,omitempty"`
	StayOpen bool   `json:"stayOpen"`
}
