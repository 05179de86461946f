// Package themes stores per-chapter prompt customization in a versioned TOML
// file. A chapter without an entry falls back to a generic theme.
package themes

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/types"
)

// CurrentVersion is the version written to a new themes file.
const CurrentVersion = 1

// Theme customizes generation for one chapter.
type Theme struct {
	Title       string   `toml:"title" json:"title" yaml:"title"`
	Focus       string   `toml:"focus" json:"focus" yaml:"focus"`
	HardPrompts []string `toml:"hard_prompts" json:"hard_prompts" yaml:"hard_prompts"`
	Generated   bool     `toml:"generated,omitempty" json:"generated,omitempty" yaml:"generated,omitempty"`
}

// File is the on-disk theme table.
type File struct {
	Version  int              `toml:"version" json:"version"`
	Chapters map[string]Theme `toml:"chapters" json:"chapters"`
}

// ChapterID is the table key of a chapter.
func ChapterID(book string, sarga int) string {
	return fmt.Sprintf("%s_%d", book, sarga)
}

// New returns an empty theme table.
func New() *File {
	return &File{Version: CurrentVersion, Chapters: map[string]Theme{}}
}

// Load reads the theme table. A missing file yields an empty table.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read themes: %w", err)
	}

	f := New()
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse themes %s: %w", path, err)
	}
	if f.Chapters == nil {
		f.Chapters = map[string]Theme{}
	}
	return f, nil
}

// Save writes the theme table atomically.
func Save(path string, f *File) error {
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode themes: %w", err)
	}
	return home.WriteFile(path, data)
}

// Lookup returns the configured theme for a chapter, or the generic theme.
// The bool reports whether an entry was configured.
func (f *File) Lookup(book string, sarga int) (Theme, bool) {
	if f != nil {
		if t, ok := f.Chapters[ChapterID(book, sarga)]; ok {
			if len(t.HardPrompts) == 0 {
				t.HardPrompts = Generic(book, sarga).HardPrompts
			}
			return t, true
		}
	}
	return Generic(book, sarga), false
}

// With returns a copy of f with the theme set for the chapter and the
// version bumped. f is not modified.
func (f *File) With(book string, sarga int, t Theme) *File {
	out := &File{Version: CurrentVersion, Chapters: map[string]Theme{}}
	if f != nil {
		out.Version = f.Version + 1
		for k, v := range f.Chapters {
			out.Chapters[k] = v
		}
	}
	out.Chapters[ChapterID(book, sarga)] = t
	return out
}

// Keys returns the configured chapter ids, sorted.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.Chapters))
	for k := range f.Chapters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bookTitle(book string) string {
	if b, ok := types.LookupBook(book); ok {
		return b.Title
	}
	return book
}

// Generic is the fallback theme for chapters without an entry.
func Generic(book string, sarga int) Theme {
	title := bookTitle(book)
	return Theme{
		Title: fmt.Sprintf("%s, Sarga %d", title, sarga),
		Focus: "the chapter's characters, events, moral teachings and cultural context",
		HardPrompts: []string{
			"Which dharmic dilemma in this sarga has no simple answer, and how do the characters resolve it?",
			"How does this sarga connect to events earlier or later in the " + title + "?",
			"Which ritual, custom or social institution described here would a modern reader most likely misunderstand?",
		},
	}
}

// AutoConfigure derives a theme from chapter metadata and its opening verse.
// It does not touch any table; callers persist the result with With and Save.
func AutoConfigure(src *types.ChapterSource) Theme {
	t := Generic(src.Book, src.Sarga)
	t.Generated = true

	for _, v := range src.Verses {
		if !v.Usable() {
			continue
		}
		opening := firstSentence(v.Translation)
		if opening != "" {
			t.Focus = fmt.Sprintf("events following: %s", opening)
			t.HardPrompts = append(t.HardPrompts,
				fmt.Sprintf("What is the significance of the opening of this sarga (%q) for the story that follows?", opening))
		}
		break
	}
	return t
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".;!?"); i > 0 {
		s = s[:i]
	}
	const max = 120
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return strings.TrimSpace(s)
}
