package assist

import (
	"fmt"
	"strings"
)

// Section titles. Confirmation dispatches on these, so they are fixed.
const (
	TitleActions         = "Actions"
	TitleQueries         = "Insert Query"
	TitleInsertReference = "Insert Reference"
	TitleInsertMedia     = "Insert Media"
	TitleNavigateTo      = "Navigate to"
	TitleSearchPages     = "Search results in pages"
	TitleSearchJournals  = "Search results in journals"
	TitleAddLink         = "Add Link"
	TitleNewPage         = "Create new page"
	TitleNewTag          = "Insert new tag"
	TitleMediaSubmenu    = "Submenu: Insert media"
	TitleTemplateSubmenu = "Submenu: Insert template"
)

// Action item names.
const (
	ActionDeleteBlock    = "Delete block"
	ActionDeletePage     = "Delete page"
	ActionNewBlockAfter  = "Insert block after current block"
	ActionInsertTemplate = "Insert template"
)

// Query item names and the snippet each inserts.
var querySnippets = []struct {
	Name    string
	Snippet string
}{
	{"query page hierarchy", `{query: page-hierarchy root:"myRootTag" display:"inplace-list" }`},
	{"query references", `{query: references-to target:"myTag" display:"inplace-list" }`},
	{"query progress of todos", `{query: todo-progress tag:"myTag" }`},
	{"query todos", `{query: todos tag:"myTag" state:"todo" display:"referenced-list" }`},
	{"query inline file content", `{query: insert-file-content target-file:"myFile" display:"inline-text" }`},
	{"query blocks", `{query: blocks tag:"myTag" display:"cards" }`},
	{"query create a kanban board", `{query: board title:"My first Kanban" tag:"kanban" columnKey:"state" columnValues:"TODO,DOING,DONE" priorityKey:"priority" display:"link" } `},
	{"query plot property over time", `{query: plot-property propertyKey:"myPropertyKey" title:"This is my plot" width:"1200" height:"400" startingAt:"1999-01-01" endingAt:"2050-12-31" display:"linechart" }`},
}

// NoTemplatesFound is shown in the template submenu when the list is empty.
const NoTemplatesFound = "No templates found. Press enter or esc to close this menu"

// Item is one selectable menu entry.
type Item struct {
	Name      string   `json:"name"`
	Highlight bool     `json:"highlight"`
	Finding   *Finding `json:"finding,omitempty"`
}

// Section is a titled group of items.
type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Finding is one search hit shown in Search mode.
type Finding struct {
	PageName    string `json:"pageName"`
	BlockNumber int    `json:"blockNumber"`
	TextLine    string `json:"textLine"`
	Journal     bool   `json:"journal"`
}

// DomainInfo is the read-only domain data menus are built from.
type DomainInfo struct {
	Tags  []string
	Media []string
}

// SearchData carries externally computed search results; Search mode never
// filters locally.
type SearchData struct {
	Pages    []Finding
	Journals []Finding
}

// Resolve is the pure menu-resolution function: base sections for the mode,
// local filtering, one synthetic trailing section, and exactly one
// highlighted item.
func Resolve(s State, filter string, info DomainInfo, search SearchData, submenu Section) []Section {
	sections := baseSections(s.Mode, info, search, submenu)
	if s.Mode != Search && s.Mode != Submenu {
		sections = filterSections(sections, filter)
	}
	sections = appendSynthetic(sections, s.Mode, filter, info.Tags, submenu)
	highlight(sections, s.Cursor)
	return sections
}

func baseSections(mode Mode, info DomainInfo, search SearchData, submenu Section) []Section {
	switch mode {
	case Insert:
		return []Section{
			actionsSection(),
			queriesSection(),
			{Title: TitleInsertReference, Items: nameItems(info.Tags)},
			{Title: TitleInsertMedia, Items: nameItems(info.Media)},
		}
	case Navigate:
		return []Section{{Title: TitleNavigateTo, Items: nameItems(info.Tags)}}
	case InsertTag:
		return []Section{{Title: TitleInsertReference, Items: nameItems(info.Tags)}}
	case Search:
		return []Section{
			{Title: TitleSearchPages, Items: findingItems(search.Pages)},
			{Title: TitleSearchJournals, Items: findingItems(search.Journals)},
		}
	case Submenu:
		return []Section{submenu}
	default:
		return nil
	}
}

func actionsSection() Section {
	return Section{Title: TitleActions, Items: []Item{
		{Name: ActionDeleteBlock},
		{Name: ActionDeletePage},
		{Name: ActionNewBlockAfter},
		{Name: ActionInsertTemplate},
	}}
}

func queriesSection() Section {
	items := make([]Item, len(querySnippets))
	for i, q := range querySnippets {
		items[i] = Item{Name: q.Name}
	}
	return Section{Title: TitleQueries, Items: items}
}

// QuerySnippet returns the insertable text for a query item name.
func QuerySnippet(name string) (string, bool) {
	for _, q := range querySnippets {
		if q.Name == name {
			return q.Snippet, true
		}
	}
	return "", false
}

func nameItems(names []string) []Item {
	items := make([]Item, len(names))
	for i, n := range names {
		items[i] = Item{Name: n}
	}
	return items
}

func findingItems(findings []Finding) []Item {
	items := make([]Item, len(findings))
	for i := range findings {
		f := findings[i]
		items[i] = Item{Name: FormatFinding(f), Finding: &f}
	}
	return items
}

// FormatFinding renders a search hit as "Page#3: text line". Placeholder
// findings with no page name show just the text.
func FormatFinding(f Finding) string {
	if f.PageName == "" {
		return f.TextLine
	}
	return fmt.Sprintf("%s#%d: %s", f.PageName, f.BlockNumber, f.TextLine)
}

// filterSections keeps items whose name contains the filter text
// case-insensitively. Sections left without items are dropped.
func filterSections(sections []Section, filter string) []Section {
	needle := strings.ToLower(filter)
	out := make([]Section, 0, len(sections))
	for _, sec := range sections {
		kept := make([]Item, 0, len(sec.Items))
		for _, it := range sec.Items {
			if strings.Contains(strings.ToLower(it.Name), needle) {
				kept = append(kept, it)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, Section{Title: sec.Title, Items: kept})
	}
	return out
}

// appendSynthetic adds the mode's trailing section. Navigate only offers
// page creation when the filter is non-blank and no existing tag matches it
// case-insensitively (a substring hit counts as a match).
func appendSynthetic(sections []Section, mode Mode, filter string, tags []string, submenu Section) []Section {
	switch mode {
	case Insert:
		return append(sections, Section{Title: TitleAddLink, Items: []Item{
			{Name: fmt.Sprintf("Add tag [[%s]]", filter)},
		}})
	case Navigate:
		trimmed := strings.ToLower(strings.TrimSpace(filter))
		if trimmed == "" {
			return sections
		}
		for _, tag := range tags {
			if strings.Contains(strings.ToLower(tag), trimmed) {
				return sections
			}
		}
		return append(sections, Section{Title: TitleNewPage, Items: []Item{
			{Name: fmt.Sprintf("Navigate to page %s", filter)},
		}})
	case InsertTag:
		return append(sections, Section{Title: TitleNewTag, Items: []Item{
			{Name: fmt.Sprintf("Insert tag [[%s]]", filter)},
		}})
	case Submenu:
		return []Section{submenu}
	default:
		return sections
	}
}

// highlight marks the item whose running 0-based position equals cursor. A
// cursor beyond the total falls back to the last item of the last non-empty
// section, so a menu with any items always has exactly one highlight.
func highlight(sections []Section, cursor int) {
	pos := 0
	done := false
	for si := range sections {
		for ii := range sections[si].Items {
			if pos == cursor {
				sections[si].Items[ii].Highlight = true
				done = true
			} else {
				sections[si].Items[ii].Highlight = false
			}
			pos++
		}
	}
	if done {
		return
	}
	for si := len(sections) - 1; si >= 0; si-- {
		items := sections[si].Items
		if len(items) > 0 {
			items[len(items)-1].Highlight = true
			return
		}
	}
}

// Highlighted returns the highlighted item and its section.
func Highlighted(sections []Section) (Section, Item, bool) {
	for _, sec := range sections {
		for _, it := range sec.Items {
			if it.Highlight {
				return sec, it, true
			}
		}
	}
	return Section{}, Item{}, false
}
