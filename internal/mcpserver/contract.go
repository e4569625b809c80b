package mcpserver

// LinkFormat describes how notelinker finds mentions and how apply_links
// rewrites them, for LLM consumers of the tools.
const LinkFormat = `# notelinker Link Format

A **mention** is a place in a note's prose where the title or an alias of
another note appears as a whole word. notelinker reports each mention as a
link object and can rewrite it into a wikilink.

## Link object

` + "```" + `json
{"source": "alan turing.md", "target": "turing machine.md", "byte_start": 189, "byte_end": 203}
` + "```" + `

- ` + "`" + `source` + "`" + ` is the note containing the mention.
- ` + "`" + `target` + "`" + ` is the note whose name was matched.
- ` + "`" + `byte_start` + "`" + ` and ` + "`" + `byte_end` + "`" + ` are UTF-8 byte offsets into the source
  text (end exclusive).

## Names

1. The **title** of a note is its file name without ` + "`" + `.md` + "`" + `.
2. **Aliases** come from the front-matter ` + "`" + `aliases` + "`" + ` list:

` + "```" + `markdown
---
aliases:
  - turing
  - Alan Mathison Turing
---
` + "```" + `

3. When several names match at the same place, the longest one wins.
4. A note never links to itself.
5. Entries of the front-matter ` + "`" + `bad_links` + "`" + ` list suppress links whose target
   path ends with the entry.

## Where mentions are looked for

Only plain prose is scanned: headings, list items, paragraphs, block quotes
and emphasis. Existing links, ` + "`" + `[bracketed]` + "`" + ` text, inline code, code blocks
and math are never touched.

## Rewriting

` + "`" + `apply_links` + "`" + ` replaces the mention text with ` + "`" + `[[target|text]]` + "`" + `, where
` + "`" + `target` + "`" + ` is the target path with forward slashes and without ` + "`" + `.md` + "`" + `.
Links are applied in source order; a link overlapping an earlier one is
skipped. Pass ` + "`" + `if_match` + "`" + ` (the note checksum) to refuse the rewrite when
the note changed since it was scanned.
`
