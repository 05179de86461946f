package summary

import "encoding/json"

// Schema is the response format for a summary reply.
var Schema = json.RawMessage(`{
  "name": "chapter_summary",
  "strict": true,
  "schema": {
    "type": "object",
    "properties": {
      "title": {"type": "string"},
      "key_events": {"type": "array", "items": {"type": "string"}},
      "main_characters": {"type": "array", "items": {"type": "string"}},
      "themes": {"type": "array", "items": {"type": "string"}},
      "cultural_significance": {"type": "string"},
      "narrative_summary": {"type": "string"}
    },
    "required": ["title", "key_events", "main_characters", "themes", "cultural_significance", "narrative_summary"],
    "additionalProperties": false
  }
}`)
