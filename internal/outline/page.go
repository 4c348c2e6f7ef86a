package outline

import (
	"strings"
	"time"
)

// Page id namespace prefixes. A page's identity is the concatenation of its
// namespace prefix and name; renaming a user page changes its identity.
const (
	UserPagePrefix    = "%%user-page/"
	JournalPagePrefix = "%%journal-page/"
	BuiltinPagePrefix = "%%builtin/"
)

// Page is an ordered sequence of blocks under one logical document identity.
type Page struct {
	Name        string
	PageID      string
	Title       string
	IsFavourite bool
	Blocks      []*Block
}

// EmptyPage returns a placeholder page for a page id that has not been loaded
// yet.
func EmptyPage(pageID string) *Page {
	return &Page{
		Name:   PageName(pageID),
		PageID: pageID,
		Blocks: []*Block{},
	}
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() *Page {
	return &Page{
		Name:        p.Name,
		PageID:      p.PageID,
		Title:       p.Title,
		IsFavourite: p.IsFavourite,
		Blocks:      p.CloneBlocks(),
	}
}

// CloneBlocks returns a shallow page copy with a fresh block slice whose
// elements are deep copies. Mutating pipelines work on the copy and commit
// the whole list back.
func (p *Page) CloneBlocks() []*Block {
	out := make([]*Block, len(p.Blocks))
	for i, b := range p.Blocks {
		out[i] = b.Clone()
	}
	return out
}

// UserPageID returns the page id for a user page name.
func UserPageID(name string) string { return UserPagePrefix + name }

// JournalPageID returns the page id for a journal date (yyyy_mm_dd).
func JournalPageID(date string) string { return JournalPagePrefix + date }

// BuiltinPageID returns the page id for a built-in generated page.
func BuiltinPageID(name string) string { return BuiltinPagePrefix + name }

// IsUserPage reports whether the id belongs to the user-page namespace.
func IsUserPage(pageID string) bool { return strings.HasPrefix(pageID, UserPagePrefix) }

// IsJournalPage reports whether the id belongs to the journal namespace.
func IsJournalPage(pageID string) bool { return strings.HasPrefix(pageID, JournalPagePrefix) }

// IsBuiltinPage reports whether the id belongs to the built-in namespace.
func IsBuiltinPage(pageID string) bool { return strings.HasPrefix(pageID, BuiltinPagePrefix) }

// PageName strips the namespace prefix from a page id. Unknown prefixes are
// returned unchanged.
func PageName(pageID string) string {
	for _, prefix := range []string{UserPagePrefix, JournalPagePrefix, BuiltinPagePrefix} {
		if strings.HasPrefix(pageID, prefix) {
			return strings.TrimPrefix(pageID, prefix)
		}
	}
	return pageID
}

// JournalDate formats a time as a journal page name (yyyy_mm_dd).
func JournalDate(t time.Time) string {
	return t.Format("2006_01_02")
}
