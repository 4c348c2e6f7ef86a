package mcpserver

// PageFormatContract describes the canonical outline page format that LLM
// consumers should follow when appending to pages.
const PageFormatContract = `# Laguz Page Format Contract

Every page stored in Laguz is an outline: an ordered list of blocks.

## Structure

` + "```" + `markdown
- First top-level block
	- Indented child block (one TAB per level)
	- Another child
- Second top-level block
  spanning multiple lines
` + "```" + `

## Rules

1. **Every block starts with ` + "`" + `- ` + "`" + `** after its indentation.
2. **Indentation is TABs**, one per nesting level. Spaces do not nest.
3. **Continuation lines** of a multi-line block carry two extra spaces of
   alignment and no dash.
4. **Wikilinks** use double brackets: ` + "`" + `[[Other Page]]` + "`" + `. The target is the
   page name as shown, spaces allowed, no ` + "`" + `.md` + "`" + ` extension.
5. **Todos** start the block text with ` + "`" + `[ ] ` + "`" + ` (open) or ` + "`" + `[x] ` + "`" + ` (done).
6. **Block embeds** reference one block of another page: ` + "`" + `[[Page#3]]` + "`" + `
   (1-based block number).
7. **Journals** are named by date: ` + "`" + `yyyy_mm_dd` + "`" + `.
8. **Media** lives in the shared ` + "`" + `media/` + "`" + ` directory and is referenced
   with an absolute path: ` + "`" + `![name](/assets/name.png)` + "`" + `.

## Example

` + "```" + `markdown
- [[Weekly Review]] for [[Projects]]
	- [ ] collect status updates
	- [x] book the room
- Notes
  carried over from [[2025_01_20#2]]
` + "```" + `
`
