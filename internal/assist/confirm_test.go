package assist

import "testing"

func resolveAndConfirm(s State, filter string, search SearchData, submenu Section) Command {
	return Confirm(s, Resolve(s, filter, testInfo, search, submenu))
}

func TestConfirm_InsertReference(t *testing.T) {
	// Cursor lands on "Home" inside Insert Reference (Actions 4 + Queries 8).
	cmd := resolveAndConfirm(State{Mode: Insert, Cursor: 12}, "", SearchData{}, Section{})
	if cmd.Kind != CmdInsertText || cmd.Text != "[[Home]] " {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestConfirm_AddLinkUsesBufferText(t *testing.T) {
	s := State{Mode: Insert, Buffer: "zzzz", Cursor: 99}
	cmd := resolveAndConfirm(s, "zzzz", SearchData{}, Section{})
	if cmd.Kind != CmdInsertText || cmd.Text != "[[zzzz]] " {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestConfirm_QuerySnippet(t *testing.T) {
	s := State{Mode: Insert, Buffer: "query todos", Cursor: 0}
	sections := Resolve(s, "query todos", testInfo, SearchData{}, Section{})
	cmd := Confirm(s, sections)
	if cmd.Kind != CmdInsertText || cmd.Text != `{query: todos tag:"myTag" state:"todo" display:"referenced-list" }` {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestConfirm_Actions(t *testing.T) {
	cases := []struct {
		cursor int
		kind   CommandKind
		stay   bool
	}{
		{0, CmdDeleteBlock, false},
		{1, CmdDeletePage, false},
		{2, CmdNewBlockAfter, false},
		{3, CmdOpenTemplateSubmenu, true},
	}
	for _, tc := range cases {
		cmd := resolveAndConfirm(State{Mode: Insert, Cursor: tc.cursor}, "", SearchData{}, Section{})
		if cmd.Kind != tc.kind || cmd.StayOpen != tc.stay {
			t.Errorf("cursor %d: cmd = %+v, want kind %v stay %v", tc.cursor, cmd, tc.kind, tc.stay)
		}
	}
}

func TestConfirm_MediaOpensSubmenu(t *testing.T) {
	// Insert Media starts after Actions (4) + Queries (8) + References (2).
	cmd := resolveAndConfirm(State{Mode: Insert, Cursor: 14}, "", SearchData{}, Section{})
	if cmd.Kind != CmdOpenMediaSubmenu || cmd.Name != "pic.png" || !cmd.StayOpen {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestConfirm_Navigate(t *testing.T) {
	cmd := resolveAndConfirm(State{Mode: Navigate, Cursor: 1}, "", SearchData{}, Section{})
	if cmd.Kind != CmdNavigate || cmd.PageName != "Projects" {
		t.Errorf("cmd = %+v", cmd)
	}

	// Synthetic entry navigates to the typed name.
	s := State{Mode: Navigate, Buffer: "Proj2", Cursor: 0}
	cmd = resolveAndConfirm(s, "Proj2", SearchData{}, Section{})
	if cmd.Kind != CmdNavigate || cmd.PageName != "Proj2" {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestConfirm_InsertTag(t *testing.T) {
	cmd := resolveAndConfirm(State{Mode: InsertTag, Cursor: 0}, "", SearchData{}, Section{})
	if cmd.Kind != CmdInsertText || cmd.Text != "[Home]] " {
		t.Errorf("existing tag cmd = %+v", cmd)
	}

	s := State{Mode: InsertTag, Buffer: "fresh", Cursor: 99}
	cmd = resolveAndConfirm(s, "fresh", SearchData{}, Section{})
	if cmd.Kind != CmdInsertText || cmd.Text != "[fresh]] " {
		t.Errorf("new tag cmd = %+v", cmd)
	}
}

func TestConfirm_SearchNavigation(t *testing.T) {
	search := SearchData{
		Pages:    []Finding{{PageName: "Projects", BlockNumber: 2, TextLine: "budget"}},
		Journals: []Finding{{PageName: "2024_03_01", BlockNumber: 1, TextLine: "log", Journal: true}},
	}
	cmd := resolveAndConfirm(State{Mode: Search, Cursor: 0}, "budg", search, Section{})
	if cmd.Kind != CmdNavigate || cmd.PageName != "Projects" {
		t.Errorf("page hit = %+v", cmd)
	}
	cmd = resolveAndConfirm(State{Mode: Search, Cursor: 1}, "budg", search, Section{})
	if cmd.Kind != CmdNavigateJournal || cmd.PageName != "2024_03_01" {
		t.Errorf("journal hit = %+v", cmd)
	}

	// The "type more" placeholder confirms to nothing.
	cmd = resolveAndConfirm(State{Mode: Search}, "ab", placeholderSearch(), Section{})
	if cmd.Kind != CmdNone {
		t.Errorf("placeholder cmd = %+v", cmd)
	}
}

func TestConfirm_TemplateSubmenu(t *testing.T) {
	sub := Section{Title: TitleTemplateSubmenu, Items: []Item{{Name: "Meeting"}}}
	cmd := resolveAndConfirm(State{Mode: Submenu}, "", SearchData{}, sub)
	if cmd.Kind != CmdInsertTemplate || cmd.Name != "Meeting" {
		t.Errorf("cmd = %+v", cmd)
	}

	empty := Section{Title: TitleTemplateSubmenu, Items: []Item{{Name: NoTemplatesFound}}}
	cmd = resolveAndConfirm(State{Mode: Submenu}, "", SearchData{}, empty)
	if cmd.Kind != CmdNone {
		t.Errorf("no-templates cmd = %+v", cmd)
	}
}

func TestConfirm_MediaSubmenuInsertsEmbed(t *testing.T) {
	s := State{Mode: Submenu, Buffer: "pic.png"}
	sub := mediaSubmenu("pic.png")
	cmd := resolveAndConfirm(s, "pic.png", SearchData{}, sub)
	if cmd.Kind != CmdInsertText || cmd.Text != "![pic.png](/assets/pic.png) " {
		t.Errorf("cmd = %+v", cmd)
	}
}
