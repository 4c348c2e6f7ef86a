package storage

import (
	"strings"

	"github.com/varga/laguz/internal/outline"
)

// Page files store one block per bullet: tabs encode indentation, "- " starts
// a block, and continuation lines are indented two further spaces. This keeps
// the files readable as plain Markdown outlines.

// EncodePage serializes flat blocks into the on-disk outline format.
func EncodePage(blocks []outline.FlatBlockDTO) []byte {
	var sb strings.Builder
	for _, b := range blocks {
		tabs := strings.Repeat("\t", b.Indentation)
		lines := strings.Split(b.Markdown, "\n")
		sb.WriteString(tabs)
		sb.WriteString("- ")
		sb.WriteString(lines[0])
		sb.WriteString("\n")
		for _, line := range lines[1:] {
			sb.WriteString(tabs)
			sb.WriteString("  ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return []byte(sb.String())
}

// DecodePage parses the on-disk outline format back into flat blocks.
// Malformed lines before the first bullet are tolerated and start a block at
// indentation 0, so hand-edited files never fail to load.
func DecodePage(data []byte) []outline.FlatBlockDTO {
	var out []outline.FlatBlockDTO
	if len(data) == 0 {
		return out
	}

	text := strings.TrimSuffix(string(data), "\n")
	for _, line := range strings.Split(text, "\n") {
		depth := 0
		for depth < len(line) && line[depth] == '\t' {
			depth++
		}
		rest := line[depth:]

		if strings.HasPrefix(rest, "- ") {
			out = append(out, outline.FlatBlockDTO{Markdown: rest[2:], Indentation: depth})
			continue
		}
		if rest == "-" {
			out = append(out, outline.FlatBlockDTO{Markdown: "", Indentation: depth})
			continue
		}

		cont := strings.TrimPrefix(rest, "  ")
		if len(out) == 0 {
			out = append(out, outline.FlatBlockDTO{Markdown: cont, Indentation: 0})
			continue
		}
		last := &out[len(out)-1]
		last.Markdown += "\n" + cont
	}
	return out
}
