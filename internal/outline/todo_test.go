package outline

import "testing"

func TestToggleTodo(t *testing.T) {
	if got := ToggleTodo("[ ] buy milk"); got != "[x] buy milk" {
		t.Errorf("toggle open = %q", got)
	}
	if got := ToggleTodo("[x] buy milk"); got != "[ ] buy milk" {
		t.Errorf("toggle done = %q", got)
	}
	if got := ToggleTodo("plain text"); got != "plain text" {
		t.Errorf("toggle plain = %q", got)
	}
}

func TestChopTodo(t *testing.T) {
	if got := ChopTodo("[ ] buy milk"); got != "buy milk" {
		t.Errorf("chop = %q", got)
	}
	if got := ChopTodo("no marker"); got != "no marker" {
		t.Errorf("chop without marker = %q", got)
	}
}

func TestIsTodo(t *testing.T) {
	if !IsTodo("[ ] a") || !IsTodo("[x] a") {
		t.Errorf("markers not recognized")
	}
	if IsTodo("[y] a") || IsTodoDone("[ ] a") {
		t.Errorf("false positives")
	}
}
