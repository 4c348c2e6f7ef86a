// Package assist implements the content-assist popup: a keystroke-driven
// state machine, a pure menu-resolution function, and the confirmation
// dispatch that turns a highlighted item into one concrete editing command.
package assist

import "strings"

// Mode is the closed set of content-assist states.
type Mode int

const (
	Closed Mode = iota
	Insert
	Navigate
	InsertTag
	Search
	Submenu
)

func (m Mode) String() string {
	switch m {
	case Insert:
		return "insert"
	case Navigate:
		return "navigate"
	case InsertTag:
		return "insert-tag"
	case Search:
		return "search"
	case Submenu:
		return "submenu"
	default:
		return "closed"
	}
}

// KeyEvent is one raw keystroke. Key follows DOM naming: single characters
// for printable keys, names like "Escape", "Enter", "Backspace", "ArrowDown"
// otherwise.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
}

// Effect tells the caller what a keystroke did.
type Effect int

const (
	// EffectNone: key not consumed; let it propagate.
	EffectNone Effect = iota
	// EffectConsumed: state updated, nothing else to do.
	EffectConsumed
	// EffectConfirm: the highlighted item must be resolved and dispatched
	// now. The confirmation carries no payload: menu contents are reactive,
	// so the listener re-derives the highlight at dispatch time.
	EffectConfirm
)

// State is the transient assist session: reset to Closed/empty on every
// open/close transition, never persisted.
type State struct {
	Mode   Mode   `json:"mode"`
	Buffer string `json:"buffer"`
	Cursor int    `json:"cursor"`
}

// HandleKey is the pure transition function (state, key) -> (state, effect).
// hasOpenTarget says whether a block is currently the active edit target; it
// decides whether the open chord lands in Insert or Navigate.
func HandleKey(s State, ev KeyEvent, hasOpenTarget bool) (State, Effect) {
	if isSearchChord(ev) {
		return State{Mode: Search}, EffectConsumed
	}

	if s.Mode == Closed {
		if isOpenChord(ev) {
			if hasOpenTarget {
				return State{Mode: Insert}, EffectConsumed
			}
			return State{Mode: Navigate}, EffectConsumed
		}
		// Keys not recognized while closed are not swallowed.
		return s, EffectNone
	}

	switch ev.Key {
	case "Escape":
		return State{}, EffectConsumed

	case "Backspace":
		if ev.Ctrl {
			s.Buffer = ""
		} else if s.Buffer != "" {
			s.Buffer = s.Buffer[:len(s.Buffer)-1]
		}
		return s, EffectConsumed

	case "ArrowDown":
		s.Cursor++
		return s, EffectConsumed

	case "ArrowUp":
		if s.Cursor > 0 {
			s.Cursor--
		}
		return s, EffectConsumed

	case "Enter":
		return s, EffectConfirm
	}

	if len(ev.Key) == 1 {
		// Typing the reference bracket twice in a row switches Insert into
		// tag insertion.
		if s.Mode == Insert && ev.Key == "[" && strings.HasSuffix(s.Buffer, "[") {
			return State{Mode: InsertTag}, EffectConsumed
		}
		s.Buffer += ev.Key
		s.Cursor = 0
		return s, EffectConsumed
	}

	// Unrecognized non-printable keys are consumed while open.
	return s, EffectConsumed
}

// OpenSubmenu programmatically forces Submenu mode, overwriting the buffer
// (e.g. with the chosen media name) and resetting the cursor.
func OpenSubmenu(buffer string) State {
	return State{Mode: Submenu, Buffer: buffer}
}

// ForceClose programmatically closes the session, clearing buffer and cursor.
func ForceClose() State {
	return State{}
}

// Open chord: Ctrl+Space.
func isOpenChord(ev KeyEvent) bool {
	return ev.Key == " " && ev.Ctrl
}

// Search chord: Ctrl+Shift+F, reachable from any state.
func isSearchChord(ev KeyEvent) bool {
	return ev.Ctrl && ev.Shift && (ev.Key == "f" || ev.Key == "F")
}
