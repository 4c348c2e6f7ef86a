package assist

import "fmt"

// CommandKind classifies what a confirmation dispatches.
type CommandKind int

const (
	// CmdNone: nothing to do (e.g. confirming the "type more" placeholder).
	CmdNone CommandKind = iota
	// CmdInsertText splices literal text into the open block.
	CmdInsertText
	// CmdNavigate routes to a user page.
	CmdNavigate
	// CmdNavigateJournal routes to a journal entry.
	CmdNavigateJournal
	// CmdDeleteBlock removes the open block.
	CmdDeleteBlock
	// CmdDeletePage removes the current page.
	CmdDeletePage
	// CmdNewBlockAfter creates a block after the open one.
	CmdNewBlockAfter
	// CmdOpenMediaSubmenu stays open and shows media suggestions.
	CmdOpenMediaSubmenu
	// CmdOpenTemplateSubmenu stays open and shows the template list.
	CmdOpenTemplateSubmenu
	// CmdInsertTemplate splices a template into the page.
	CmdInsertTemplate
)

// Command is the single concrete action a confirmation resolves to.
// StayOpen is true only for submenu-opening commands; every other dispatch
// closes the assist session.
type Command struct {
	Kind     CommandKind
	Text     string // CmdInsertText payload
	PageName string // navigation target
	Name     string // media or template name for submenu commands
	StayOpen bool
}

// Confirm resolves the highlighted item of the current menu into a command.
// The highlight is re-derived here, at dispatch time, because menu contents
// are reactive.
func Confirm(s State, sections []Section) Command {
	sec, item, ok := Highlighted(sections)
	if !ok {
		return Command{Kind: CmdNone}
	}

	switch s.Mode {
	case Navigate:
		if sec.Title == TitleNewPage {
			return Command{Kind: CmdNavigate, PageName: s.Buffer}
		}
		return Command{Kind: CmdNavigate, PageName: item.Name}

	case InsertTag:
		if sec.Title == TitleNewTag {
			return Command{Kind: CmdInsertText, Text: fmt.Sprintf("[%s]] ", s.Buffer)}
		}
		return Command{Kind: CmdInsertText, Text: fmt.Sprintf("[%s]] ", item.Name)}

	case Search:
		if item.Finding == nil || item.Finding.PageName == "" {
			return Command{Kind: CmdNone}
		}
		if item.Finding.Journal {
			return Command{Kind: CmdNavigateJournal, PageName: item.Finding.PageName}
		}
		return Command{Kind: CmdNavigate, PageName: item.Finding.PageName}

	default:
		return confirmInsert(s, sec, item)
	}
}

func confirmInsert(s State, sec Section, item Item) Command {
	switch sec.Title {
	case TitleInsertReference:
		return Command{Kind: CmdInsertText, Text: fmt.Sprintf("[[%s]] ", item.Name)}

	case TitleInsertMedia:
		return Command{Kind: CmdOpenMediaSubmenu, Name: item.Name, StayOpen: true}

	case TitleActions:
		switch item.Name {
		case ActionDeleteBlock:
			return Command{Kind: CmdDeleteBlock}
		case ActionDeletePage:
			return Command{Kind: CmdDeletePage}
		case ActionNewBlockAfter:
			return Command{Kind: CmdNewBlockAfter}
		case ActionInsertTemplate:
			return Command{Kind: CmdOpenTemplateSubmenu, StayOpen: true}
		}
		return Command{Kind: CmdNone}

	case TitleAddLink:
		return Command{Kind: CmdInsertText, Text: fmt.Sprintf("[[%s]] ", s.Buffer)}

	case TitleQueries:
		if snippet, ok := QuerySnippet(item.Name); ok {
			return Command{Kind: CmdInsertText, Text: snippet}
		}
		return Command{Kind: CmdNone}

	case TitleMediaSubmenu:
		return Command{Kind: CmdInsertText, Text: mediaEmbed(s.Buffer)}

	case TitleTemplateSubmenu:
		if item.Name == NoTemplatesFound {
			return Command{Kind: CmdNone}
		}
		return Command{Kind: CmdInsertTemplate, Name: item.Name}
	}
	return Command{Kind: CmdNone}
}

// mediaEmbed is the inplace markdown for a chosen media file. The buffer
// holds the file name chosen in the parent menu.
func mediaEmbed(name string) string {
	return fmt.Sprintf("![%s](/assets/%s) ", name, name)
}
