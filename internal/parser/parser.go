// Package parser turns raw block text into renderable prepared markdown plus
// detected outgoing references, tags, and the dynamic-content flag.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/varga/laguz/internal/outline"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	queryRe    = regexp.MustCompile(`\{query:\s*[a-z-]+`)
)

// Embed is a wikilink carrying a block number ([[Page#3]]): the referenced
// block's content is pulled into the referencing block.
type Embed struct {
	PageName    string
	BlockNumber int // 1-based
}

// Result holds the output of parsing one block of raw text.
type Result struct {
	PreparedMarkdown  string
	Links             []string
	Tags              []string
	Embeds            []Embed
	HasDynamicContent bool
}

// ParseBlock analyzes raw block text. The prepared markdown is the original
// with any todo directive prefix stripped; links and embeds come from
// [[wikilink]] syntax, tags from #tag syntax. A {query: ...} directive marks
// the block as dynamic: its rendering depends on external state and must be
// re-evaluated when other blocks change.
func ParseBlock(raw string) *Result {
	res := &Result{
		PreparedMarkdown:  outline.ChopTodo(raw),
		HasDynamicContent: queryRe.MatchString(raw),
	}

	seen := make(map[string]struct{})
	for _, m := range wikilinkRe.FindAllStringSubmatch(raw, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		// Aliased links keep only the target ([[Page|alias]]).
		if idx := strings.Index(target, "|"); idx >= 0 {
			target = strings.TrimSpace(target[:idx])
		}
		if name, num, ok := splitEmbed(target); ok {
			res.Embeds = append(res.Embeds, Embed{PageName: name, BlockNumber: num})
			target = name
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		res.Links = append(res.Links, target)
	}

	for _, m := range tagRe.FindAllStringSubmatch(raw, -1) {
		if _, dup := seen["#"+m[1]]; dup {
			continue
		}
		seen["#"+m[1]] = struct{}{}
		res.Tags = append(res.Tags, m[1])
	}

	return res
}

// splitEmbed recognizes the Page#n form inside a wikilink.
func splitEmbed(target string) (string, int, bool) {
	idx := strings.LastIndex(target, "#")
	if idx <= 0 || idx == len(target)-1 {
		return target, 0, false
	}
	num, err := strconv.Atoi(target[idx+1:])
	if err != nil || num < 1 {
		return target, 0, false
	}
	return strings.TrimSpace(target[:idx]), num, true
}
