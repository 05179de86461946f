// Package summary holds the chapter summary prompt used when the combined
// summary-and-questions reply cannot be parsed.
package summary

import (
	_ "embed"

	"github.com/jackzampolin/itihasa/internal/prompts"
	"github.com/jackzampolin/itihasa/internal/types"
)

//go:embed user.tmpl
var userPromptTmpl string

// UserPromptKey is the prompt key of the summary prompt.
const UserPromptKey = "stages.summary.user"

// RegisterPrompts registers the summary prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Chapter summary prompt",
	})
}

type promptData struct {
	Chapter prompts.ChapterView
	Pass    *types.ThematicPass
}

// UserPrompt renders the summary prompt for a chapter.
func UserPrompt(r *prompts.Resolver, src *types.ChapterSource, limits prompts.Limits) (*prompts.Rendered, error) {
	return r.Render(UserPromptKey, promptData{Chapter: prompts.NewChapterView(src, src.Verses, limits)})
}
