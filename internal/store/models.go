package store

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/types"
)

// QuestionModel is a row of the questions table.
type QuestionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID               string    `bun:"id,pk,type:uuid" json:"id"`
	EpicID           string    `bun:"epic_id,notnull" json:"epic_id"`
	Book             string    `bun:"kanda,notnull" json:"kanda"`
	Sarga            int       `bun:"sarga,notnull" json:"sarga"`
	Category         string    `bun:"category,notnull" json:"category"`
	Difficulty       string    `bun:"difficulty,notnull" json:"difficulty"`
	QuestionText     string    `bun:"question_text,notnull" json:"question_text"`
	Options          []string  `bun:"options,type:jsonb,notnull" json:"options"`
	CorrectAnswerID  int       `bun:"correct_answer_id,notnull" json:"correct_answer_id"`
	Explanation      string    `bun:"basic_explanation,notnull" json:"basic_explanation"`
	OriginalQuote    string    `bun:"original_quote,nullzero" json:"original_quote,omitempty"`
	QuoteTranslation string    `bun:"quote_translation,nullzero" json:"quote_translation,omitempty"`
	Tags             []string  `bun:"tags,array" json:"tags"`
	CrossEpicTags    []string  `bun:"cross_epic_tags,array" json:"cross_epic_tags"`
	SourceReference  string    `bun:"source_reference,nullzero" json:"source_reference,omitempty"`
	ContentHash      string    `bun:"content_hash,notnull,unique" json:"content_hash"`
	BatchID          string    `bun:"batch_id,nullzero" json:"batch_id,omitempty"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
}

// SummaryModel is a row of the chapter_summaries table.
type SummaryModel struct {
	bun.BaseModel `bun:"table:chapter_summaries,alias:cs"`

	ID                   int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	EpicID               string    `bun:"epic_id,notnull,unique:chapter" json:"epic_id"`
	Book                 string    `bun:"kanda,notnull,unique:chapter" json:"kanda"`
	Sarga                int       `bun:"sarga,notnull,unique:chapter" json:"sarga"`
	Title                string    `bun:"title,notnull" json:"title"`
	KeyEvents            []string  `bun:"key_events,array" json:"key_events"`
	MainCharacters       []string  `bun:"main_characters,array" json:"main_characters"`
	Themes               []string  `bun:"themes,array" json:"themes"`
	CulturalSignificance string    `bun:"cultural_significance,nullzero" json:"cultural_significance,omitempty"`
	NarrativeSummary     string    `bun:"narrative_summary,notnull" json:"narrative_summary"`
	SourceReference      string    `bun:"source_reference,nullzero" json:"source_reference,omitempty"`
	CreatedAt            time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
}

// NewQuestionModel builds the row for a record. The id is left to the caller.
func NewQuestionModel(batchID string, q *types.QuestionRecord) *QuestionModel {
	return &QuestionModel{
		ID:               q.ID,
		EpicID:           q.EpicID,
		Book:             q.Book,
		Sarga:            q.Sarga,
		Category:         string(q.Category),
		Difficulty:       string(q.Difficulty),
		QuestionText:     q.QuestionText,
		Options:          q.Options,
		CorrectAnswerID:  q.CorrectAnswerID,
		Explanation:      q.Explanation,
		OriginalQuote:    q.OriginalQuote,
		QuoteTranslation: q.QuoteTranslation,
		Tags:             nonNil(q.Tags),
		CrossEpicTags:    nonNil(q.CrossEpicTags),
		SourceReference:  q.SourceReference,
		ContentHash:      quiz.ContentHash(q.Key(), q.QuestionText),
		BatchID:          batchID,
	}
}

// Record converts the row back to a question record.
func (m *QuestionModel) Record() types.QuestionRecord {
	return types.QuestionRecord{
		ID:               m.ID,
		EpicID:           m.EpicID,
		Book:             m.Book,
		Sarga:            m.Sarga,
		Category:         types.Category(m.Category),
		Difficulty:       types.Difficulty(m.Difficulty),
		QuestionText:     m.QuestionText,
		Options:          m.Options,
		CorrectAnswerID:  m.CorrectAnswerID,
		Explanation:      m.Explanation,
		OriginalQuote:    m.OriginalQuote,
		QuoteTranslation: m.QuoteTranslation,
		Tags:             m.Tags,
		CrossEpicTags:    m.CrossEpicTags,
		SourceReference:  m.SourceReference,
	}
}

// NewSummaryModel builds the row for a summary.
func NewSummaryModel(s *types.ChapterSummary) *SummaryModel {
	return &SummaryModel{
		EpicID:               s.EpicID,
		Book:                 s.Book,
		Sarga:                s.Sarga,
		Title:                s.Title,
		KeyEvents:            nonNil(s.KeyEvents),
		MainCharacters:       nonNil(s.MainCharacters),
		Themes:               nonNil(s.Themes),
		CulturalSignificance: s.CulturalSignificance,
		NarrativeSummary:     s.NarrativeSummary,
		SourceReference:      s.SourceReference,
	}
}

// Summary converts the row back to a chapter summary.
func (m *SummaryModel) Summary() types.ChapterSummary {
	return types.ChapterSummary{
		EpicID:               m.EpicID,
		Book:                 m.Book,
		Sarga:                m.Sarga,
		Title:                m.Title,
		KeyEvents:            m.KeyEvents,
		MainCharacters:       m.MainCharacters,
		Themes:               m.Themes,
		CulturalSignificance: m.CulturalSignificance,
		NarrativeSummary:     m.NarrativeSummary,
		SourceReference:      m.SourceReference,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
