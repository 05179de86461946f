// Package questions holds the question generation prompts: standard
// (summary plus questions for a whole chapter), per-pass and hard.
package questions

import (
	_ "embed"

	"github.com/jackzampolin/itihasa/internal/prompts"
	"github.com/jackzampolin/itihasa/internal/segment"
	"github.com/jackzampolin/itihasa/internal/themes"
	"github.com/jackzampolin/itihasa/internal/types"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed standard.tmpl
var standardTmpl string

//go:embed pass.tmpl
var passTmpl string

//go:embed hard.tmpl
var hardTmpl string

//go:embed partials.tmpl
var partialsTmpl string

// Prompt keys
const (
	SystemPromptKey   = "stages.questions.system"
	StandardPromptKey = "stages.questions.standard"
	PassPromptKey     = "stages.questions.pass"
	HardPromptKey     = "stages.questions.hard"
	PartialsKey       = "stages.questions.partials"
)

// Default question counts.
const (
	DefaultStandardCount = 10
	DefaultPassCount     = 5
)

// RegisterPrompts registers the question prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Question generation system prompt - Ramayana scholar and quiz writer",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         StandardPromptKey,
		Text:        standardTmpl,
		Description: "Whole-chapter summary plus questions",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         PassPromptKey,
		Text:        passTmpl,
		Description: "Questions scoped to one thematic pass",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         HardPromptKey,
		Text:        hardTmpl,
		Description: "Hard questions from the chapter theme's prompts",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         PartialsKey,
		Text:        partialsTmpl,
		Description: "Constraint and output-shape blocks shared by question prompts",
		Partial:     true,
	})
}

// Options tunes one question prompt.
type Options struct {
	Count  int
	Limits prompts.Limits
}

// DifficultyMix is the requested number of questions per difficulty.
type DifficultyMix struct {
	Easy   int
	Medium int
	Hard   int
}

// CategoryCount is the requested number of questions for one category.
type CategoryCount struct {
	Category types.Category
	Count    int
}

type promptData struct {
	Chapter    prompts.ChapterView
	Pass       *types.ThematicPass
	Theme      themes.Theme
	Count      int
	Difficulty DifficultyMix
	Categories []CategoryCount
}

// MixFor splits n questions into roughly 40% easy, 40% medium and 20% hard.
func MixFor(n int) DifficultyMix {
	if n <= 0 {
		return DifficultyMix{}
	}
	hard := n / 5
	easy := (n - hard + 1) / 2
	return DifficultyMix{Easy: easy, Medium: n - hard - easy, Hard: hard}
}

// CategoriesFor spreads n questions across the allowed categories, giving
// the remainder to categories in display order.
func CategoriesFor(n int) []CategoryCount {
	k := len(types.Categories)
	out := make([]CategoryCount, 0, k)
	for i, c := range types.Categories {
		count := n / k
		if i < n%k {
			count++
		}
		if count > 0 {
			out = append(out, CategoryCount{Category: c, Count: count})
		}
	}
	return out
}

func newData(src *types.ChapterSource, verses []types.Verse, theme themes.Theme, opts Options, def int) promptData {
	count := opts.Count
	if count <= 0 {
		count = def
	}
	return promptData{
		Chapter:    prompts.NewChapterView(src, verses, opts.Limits),
		Theme:      theme,
		Count:      count,
		Difficulty: MixFor(count),
		Categories: CategoriesFor(count),
	}
}

// System renders the system prompt.
func System(r *prompts.Resolver) (*prompts.Rendered, error) {
	return r.Render(SystemPromptKey, nil)
}

// Standard renders the whole-chapter prompt asking for a summary and questions.
func Standard(r *prompts.Resolver, src *types.ChapterSource, theme themes.Theme, opts Options) (*prompts.Rendered, error) {
	return r.Render(StandardPromptKey, newData(src, src.Verses, theme, opts, DefaultStandardCount))
}

// Pass renders the prompt for one thematic pass.
func Pass(r *prompts.Resolver, src *types.ChapterSource, pass types.ThematicPass, theme themes.Theme, opts Options) (*prompts.Rendered, error) {
	data := newData(src, segment.Slice(src, pass), theme, opts, DefaultPassCount)
	data.Pass = &pass
	return r.Render(PassPromptKey, data)
}

// Hard renders the hard-question prompt. One question is requested per
// theme prompt unless opts.Count says otherwise.
func Hard(r *prompts.Resolver, src *types.ChapterSource, theme themes.Theme, opts Options) (*prompts.Rendered, error) {
	if opts.Count <= 0 {
		opts.Count = len(theme.HardPrompts)
	}
	data := newData(src, src.Verses, theme, opts, 1)
	data.Difficulty = DifficultyMix{Hard: data.Count}
	return r.Render(HardPromptKey, data)
}

// FullChapterPass is the pass name used when questions are requested for the
// whole chapter without a summary.
const FullChapterPass = "full_chapter"

// Questions renders a questions-only prompt covering the whole chapter.
func Questions(r *prompts.Resolver, src *types.ChapterSource, theme themes.Theme, opts Options) (*prompts.Rendered, error) {
	if opts.Count <= 0 {
		opts.Count = DefaultStandardCount
	}
	pass := types.ThematicPass{
		Name:  FullChapterPass,
		Start: 1,
		End:   len(src.Verses),
		Focus: theme.Focus,
	}
	return Pass(r, src, pass, theme, opts)
}
