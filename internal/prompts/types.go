// Package prompts provides prompt management with embedded defaults and
// file-based overrides.
//
// Embedded .tmpl files in the stage subpackages are the source of truth.
// An operator may drop a file named <key>.tmpl into the prompts override
// directory to replace one without rebuilding.
//
// Every render carries the SHA-256 of the template text it used (CID) so
// recorded LLM calls can be traced back to the exact prompt version.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: stages.questions.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
	Partial     bool     // Only {{define}} blocks; parsed into every template
}

// ResolvedPrompt is the template text that will be used for a key.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	CID        string   `json:"cid"`
}

// Rendered is a prompt after template execution.
type Rendered struct {
	Key  string `json:"key"`
	Text string `json:"text"`
	CID  string `json:"cid"`
}
