package types

// Category is the subject matter of a question.
type Category string

const (
	CategoryCharacters Category = "characters"
	CategoryEvents     Category = "events"
	CategoryThemes     Category = "themes"
	CategoryCulture    Category = "culture"
)

// DefaultCategory is used when a generated category cannot be salvaged.
const DefaultCategory = CategoryThemes

// Categories lists the allowed categories in display order.
var Categories = []Category{CategoryCharacters, CategoryEvents, CategoryThemes, CategoryCulture}

// Valid reports whether c is one of the allowed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCharacters, CategoryEvents, CategoryThemes, CategoryCulture:
		return true
	}
	return false
}

// Difficulty is the difficulty level of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the allowed difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// QuestionRecord is one generated multiple-choice quiz item.
// Records are append-only once imported.
type QuestionRecord struct {
	ID               string     `json:"id,omitempty"`
	EpicID           string     `json:"epic_id"`
	Book             string     `json:"kanda"`
	Sarga            int        `json:"sarga"`
	Category         Category   `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	QuestionText     string     `json:"question_text"`
	Options          []string   `json:"options"`
	CorrectAnswerID  int        `json:"correct_answer_id"`
	Explanation      string     `json:"basic_explanation"`
	OriginalQuote    string     `json:"original_quote,omitempty"`
	QuoteTranslation string     `json:"quote_translation,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	CrossEpicTags    []string   `json:"cross_epic_tags,omitempty"`
	SourceReference  string     `json:"source_reference,omitempty"`
	Pass             *PassTag   `json:"pass,omitempty"`
}

// Key returns the chapter key of the record.
func (q *QuestionRecord) Key() ChapterKey {
	return ChapterKey{EpicID: q.EpicID, Book: q.Book, Sarga: q.Sarga}
}

// CorrectOption returns the text of the correct option, or "" if the index is out of range.
func (q *QuestionRecord) CorrectOption() string {
	if q.CorrectAnswerID < 0 || q.CorrectAnswerID >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectAnswerID]
}
