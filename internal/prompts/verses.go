package prompts

import (
	"strings"
	"text/template"

	"github.com/jackzampolin/itihasa/internal/types"
)

// Default input budget for a single generation request.
const (
	MaxVerses           = 40
	MaxOriginalChars    = 300
	MaxTranslationChars = 500
)

// Limits bounds how much chapter text goes into one prompt.
type Limits struct {
	MaxVerses           int
	MaxOriginalChars    int
	MaxTranslationChars int
}

// DefaultLimits returns the default input budget.
func DefaultLimits() Limits {
	return Limits{
		MaxVerses:           MaxVerses,
		MaxOriginalChars:    MaxOriginalChars,
		MaxTranslationChars: MaxTranslationChars,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxVerses <= 0 {
		l.MaxVerses = d.MaxVerses
	}
	if l.MaxOriginalChars <= 0 {
		l.MaxOriginalChars = d.MaxOriginalChars
	}
	if l.MaxTranslationChars <= 0 {
		l.MaxTranslationChars = d.MaxTranslationChars
	}
	return l
}

// ChapterView is the chapter data templates see.
type ChapterView struct {
	EpicID          string
	Book            string
	BookTitle       string
	Sarga           int
	SourceReference string
	TotalVerses     int
	Verses          []types.Verse
	Truncated       bool
}

// NewChapterView builds the template view of verses from src, capped and
// truncated per field according to limits.
func NewChapterView(src *types.ChapterSource, verses []types.Verse, limits Limits) ChapterView {
	limits = limits.withDefaults()

	title := src.Book
	if b, ok := types.LookupBook(src.Book); ok {
		title = b.Title
	}

	view := ChapterView{
		EpicID:          src.EpicID,
		Book:            src.Book,
		BookTitle:       title,
		Sarga:           src.Sarga,
		SourceReference: src.SourceReference(),
		TotalVerses:     len(src.Verses),
	}

	if len(verses) > limits.MaxVerses {
		verses = verses[:limits.MaxVerses]
		view.Truncated = true
	}
	view.Verses = make([]types.Verse, len(verses))
	for i, v := range verses {
		view.Verses[i] = types.Verse{
			Number:      v.Number,
			Original:    Truncate(v.Original, limits.MaxOriginalChars),
			Translation: Truncate(v.Translation, limits.MaxTranslationChars),
		}
	}
	return view
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// Funcs are available to every prompt template.
var Funcs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}
