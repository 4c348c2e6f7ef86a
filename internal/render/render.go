// Package render converts prepared block markdown to HTML for display
// endpoints.
package render

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
)

// HTML converts prepared markdown to an HTML fragment. On conversion failure
// the raw text is returned escaped, so a malformed block never breaks the
// surrounding page.
func HTML(markdown string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return html.EscapeString(markdown)
	}
	return buf.String()
}
