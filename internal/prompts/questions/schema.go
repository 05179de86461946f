package questions

import "encoding/json"

// ListSchema is the response format for question replies. Items are only
// checked for being objects here; each record is validated on its own later
// so one bad item does not discard the rest.
var ListSchema = json.RawMessage(`{
  "name": "question_list",
  "strict": false,
  "schema": {
    "type": "object",
    "properties": {
      "summary": {"type": "object"},
      "questions": {"type": "array", "items": {"type": "object"}}
    },
    "required": ["questions"]
  }
}`)
