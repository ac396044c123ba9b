package mcpserver

// DocumentFormatContract describes the canonical Markdown document format
// that LLM consumers should follow when creating or updating documents.
const DocumentFormatContract = `# Othala Document Format Contract

Every Markdown document stored in Othala MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – falls back to the first H1
tags:                               # OPTIONAL – YAML list; used for filtering
  - tag-one
  - tag-two
---

Body text in standard Markdown.

Inline #hashtags in the body are also picked up as tags.
` + "```" + `

## Rules

1. **Identity is server-assigned.** Documents are addressed by UUID, never by
   file name; do not invent ids or paths.
2. **Title resolution:** the frontmatter ` + "`" + `title` + "`" + ` wins; otherwise the first
   ` + "`" + `# Heading` + "`" + ` is used; otherwise the document is untitled.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `, ` + "`" + `meeting-notes` + "`" + `).
   Frontmatter tags and inline ` + "`" + `#hashtags` + "`" + ` are merged and de-duplicated.
4. **Placement is separate from content.** A document's position in the
   workspace tree is managed through tree operations, not through the file;
   an unplaced document appears under the synthetic Uncategorized folder.
5. **Deletion is soft.** Deleted documents keep their content and can be
   restored; update_document on a deleted document fails.
6. **Encoding** is UTF-8 with a trailing newline.
7. **No HTML** unless absolutely necessary; prefer Markdown equivalents.

## Example

` + "```" + `markdown
---
title: Weekly standup 2026-08-17
tags:
  - meeting-notes
  - project-x
---

# Weekly standup 2026-08-17

Attendees: Alice, Bob.

## Action items

- Alice to review the design doc #followup
- Bob to update the roadmap
` + "```" + `
`
