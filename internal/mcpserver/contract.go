package mcpserver

// NoteFormatContract describes the note shape and creation rules that LLM
// consumers should follow when creating notes.
const NoteFormatContract = `# Notehub Note Format Contract

Every note stored in the notes service has exactly these fields.

## Fields

| Field       | Type   | Set by  | Rules                                                   |
|-------------|--------|---------|---------------------------------------------------------|
| ` + "`id`" + `        | string | service | Opaque identifier. Use it with read_note / delete_note. |
| ` + "`title`" + `     | string | caller  | REQUIRED. 3 to 50 characters.                           |
| ` + "`content`" + `   | string | caller  | OPTIONAL. At most 500 characters. Plain text.           |
| ` + "`tag`" + `       | string | caller  | REQUIRED. One of Work, Personal, Meeting, Shopping, Todo. |
| ` + "`createdAt`" + ` | string | service | RFC 3339 timestamp.                                     |
| ` + "`updatedAt`" + ` | string | service | RFC 3339 timestamp.                                     |

## Rules

1. **Tags are case-sensitive.** ` + "`work`" + ` is rejected; use ` + "`Work`" + `.
2. **Lengths are counted in characters**, not bytes.
3. **Notes are immutable.** To change a note, delete it and create a new one.
4. **Listing** returns 12 notes per page, newest first. ` + "`search`" + ` matches title or
   content case-insensitively; an empty tag or ` + "`all`" + ` lists every tag.
5. A page beyond the last one is empty; ` + "`totalPages`" + ` is 0 when nothing matches.

## Example

` + "```" + `json
{
  "title": "Weekly standup",
  "content": "Roadmap review, hiring update.",
  "tag": "Meeting"
}
` + "```" + `
`
