// Package types provides shared types used across multiple packages.
// This package has no dependencies on other itihasa packages to avoid import cycles.
package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultEpicID is the epic every book in the lookup table belongs to.
const DefaultEpicID = "ramayana"

// Verse is one numbered verse of a chapter.
type Verse struct {
	Number      int    `json:"number"`
	Original    string `json:"original"`
	Translation string `json:"translation"`
}

// Usable reports whether both text fields are present.
func (v Verse) Usable() bool {
	return strings.TrimSpace(v.Original) != "" && strings.TrimSpace(v.Translation) != ""
}

// ChapterKey identifies a chapter (sarga) of a book within an epic.
type ChapterKey struct {
	EpicID string `json:"epic_id"`
	Book   string `json:"book"`
	Sarga  int    `json:"sarga"`
}

func (k ChapterKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.EpicID, k.Book, k.Sarga)
}

// ChapterSource is one scraped chapter.
// It is written once by the fetcher and never modified afterwards.
type ChapterSource struct {
	EpicID      string    `json:"epic_id"`
	Book        string    `json:"book"`
	Sarga       int       `json:"sarga"`
	Verses      []Verse   `json:"verses"`
	SourceURL   string    `json:"source_url"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Key returns the chapter key.
func (c *ChapterSource) Key() ChapterKey {
	return ChapterKey{EpicID: c.EpicID, Book: c.Book, Sarga: c.Sarga}
}

// SourceReference returns the human-readable citation used on generated records.
func (c *ChapterSource) SourceReference() string {
	if b, ok := LookupBook(c.Book); ok {
		return fmt.Sprintf("Valmiki Ramayana, %s, Sarga %d", b.Title, c.Sarga)
	}
	return fmt.Sprintf("%s %s, Sarga %d", c.EpicID, c.Book, c.Sarga)
}

// ThematicPass is a verse-range slice of a chapter used to bound one generation request.
// Start and End are 1-based and inclusive. A pass with Start > End is empty.
type ThematicPass struct {
	Name     string   `json:"name"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Focus    string   `json:"focus"`
	Category Category `json:"category"`
}

// Empty reports whether the pass covers no verses.
func (p ThematicPass) Empty() bool {
	return p.Start > p.End
}

// Len returns the number of verses covered.
func (p ThematicPass) Len() int {
	if p.Empty() {
		return 0
	}
	return p.End - p.Start + 1
}

// Tag returns the tag stamped on records generated from this pass.
func (p ThematicPass) Tag() *PassTag {
	return &PassTag{Name: p.Name, Start: p.Start, End: p.End}
}

// PassTag records which pass produced a question.
type PassTag struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// ChapterSummary is the narrative summary of one chapter.
type ChapterSummary struct {
	EpicID               string   `json:"epic_id"`
	Book                 string   `json:"kanda"`
	Sarga                int      `json:"sarga"`
	Title                string   `json:"title"`
	KeyEvents            []string `json:"key_events"`
	MainCharacters       []string `json:"main_characters"`
	Themes               []string `json:"themes"`
	CulturalSignificance string   `json:"cultural_significance"`
	NarrativeSummary     string   `json:"narrative_summary"`
	SourceReference      string   `json:"source_reference"`
}

// Key returns the chapter key.
func (s *ChapterSummary) Key() ChapterKey {
	return ChapterKey{EpicID: s.EpicID, Book: s.Book, Sarga: s.Sarga}
}

// ImportBatch groups records submitted together. It is used for traceability
// only; the importer never rolls a batch back.
type ImportBatch struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Chapter   ChapterKey `json:"chapter"`
	Source    string     `json:"source"`
}
