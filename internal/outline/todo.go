package outline

import "strings"

// Todo marker directives. A block whose text starts with one of these renders
// as a checkbox; the marker is stripped from the prepared markdown.
const (
	TodoOpenMarker = "[ ] "
	TodoDoneMarker = "[x] "
)

// IsTodo reports whether text carries a todo marker (open or done).
func IsTodo(text string) bool {
	return strings.HasPrefix(text, TodoOpenMarker) || strings.HasPrefix(text, TodoDoneMarker)
}

// IsTodoDone reports whether text carries a done marker.
func IsTodoDone(text string) bool {
	return strings.HasPrefix(text, TodoDoneMarker)
}

// ChopTodo strips the leading todo marker for rendering.
func ChopTodo(text string) string {
	if IsTodo(text) {
		return text[len(TodoOpenMarker):]
	}
	return text
}

// ToggleTodo flips the todo state marker in the original text by replacing
// the state character in place. Text without a marker is returned unchanged.
func ToggleTodo(originalText string) string {
	switch {
	case strings.HasPrefix(originalText, TodoOpenMarker):
		return replaceAt(originalText, 1, "x")
	case strings.HasPrefix(originalText, TodoDoneMarker):
		return replaceAt(originalText, 1, " ")
	default:
		return originalText
	}
}

func replaceAt(s string, index int, replacement string) string {
	return s[:index] + replacement + s[index+len(replacement):]
}
