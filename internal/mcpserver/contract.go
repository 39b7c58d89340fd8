package mcpserver

// FormatContract describes the header dialect poems and collection
// documents are written in.
const FormatContract = `# Siphon Document Format

Poems and collection documents open with a header block bounded by two
` + "`---`" + ` lines. The opening delimiter MUST be the very first thing in the file.

## Header lines

- ` + "`key: value`" + ` sets a field. Only the first colon separates key from value,
  so ` + "`time: 10:30`" + ` stores ` + "`10:30`" + `.
- ` + "`- item`" + ` appends to the field on the line before it. Items are joined with
  ", " so a list and an inline ` + "`a, b`" + ` value read the same.
- A list item before any field is an error. So is a line with no colon.
- A key given twice keeps its first position and its last value.

## Poems

` + "```" + `markdown
---
publish: true
collections:
- summer
- sea
---

poem body
` + "```" + `

Only ` + "`publish: true`" + ` (exactly, lowercase) publishes a poem. Anything after a
third ` + "`---`" + ` is a draft. read_poem leaves drafts out when draft cleaning is on.

## Collection documents

` + "```" + `markdown
---
title: Summer
created: 2021-06-20
poems:
- 2021-05-30
---

description
` + "```" + `

` + "`title`" + ` and ` + "`created`" + ` are required. ` + "`poems`" + ` is rewritten on every build
from the published poems, in discovery order.
`
