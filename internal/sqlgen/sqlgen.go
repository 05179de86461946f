// Package sqlgen renders quiz records as PostgreSQL insert statements for
// review-and-apply imports.
package sqlgen

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Table names in the backend store.
const (
	QuestionsTable = "questions"
	SummariesTable = "chapter_summaries"
)

// QuestionColumns is the column order of rendered question inserts.
var QuestionColumns = []string{
	"epic_id", "kanda", "sarga", "category", "difficulty", "question_text",
	"options", "correct_answer_id", "basic_explanation", "original_quote",
	"quote_translation", "tags", "cross_epic_tags", "source_reference", "content_hash",
}

// SummaryColumns is the column order of rendered summary inserts.
var SummaryColumns = []string{
	"epic_id", "kanda", "sarga", "title", "key_events", "main_characters",
	"themes", "cultural_significance", "narrative_summary", "source_reference",
}

// Literal quotes s as a SQL string literal, doubling embedded quotes.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// NullableLiteral is Literal, or NULL for a blank string.
func NullableLiteral(s string) string {
	if strings.TrimSpace(s) == "" {
		return "NULL"
	}
	return Literal(s)
}

// ArrayLiteral renders a text array. An empty list renders as an empty
// typed array so the column type is never ambiguous.
func ArrayLiteral(items []string) string {
	if len(items) == 0 {
		return "ARRAY[]::text[]"
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = Literal(item)
	}
	return "ARRAY[" + strings.Join(quoted, ", ") + "]"
}

// JSONLiteral renders v as a jsonb literal.
func JSONLiteral(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Literal(string(data)) + "::jsonb", nil
}

// InsertQuestion renders one question insert. Conflicts on content_hash are
// ignored so re-applying a file does not duplicate rows.
func InsertQuestion(q *types.QuestionRecord) (string, error) {
	options, err := JSONLiteral(q.Options)
	if err != nil {
		return "", fmt.Errorf("render options: %w", err)
	}
	values := []string{
		Literal(q.EpicID),
		Literal(q.Book),
		strconv.Itoa(q.Sarga),
		Literal(string(q.Category)),
		Literal(string(q.Difficulty)),
		Literal(q.QuestionText),
		options,
		strconv.Itoa(q.CorrectAnswerID),
		Literal(q.Explanation),
		NullableLiteral(q.OriginalQuote),
		NullableLiteral(q.QuoteTranslation),
		ArrayLiteral(q.Tags),
		ArrayLiteral(q.CrossEpicTags),
		NullableLiteral(q.SourceReference),
		Literal(quiz.ContentHash(q.Key(), q.QuestionText)),
	}
	return fmt.Sprintf("INSERT INTO %s (%s)\nVALUES (%s)\nON CONFLICT (content_hash) DO NOTHING;",
		QuestionsTable, strings.Join(QuestionColumns, ", "), strings.Join(values, ", ")), nil
}

// InsertSummary renders the summary insert.
func InsertSummary(s *types.ChapterSummary) string {
	values := []string{
		Literal(s.EpicID),
		Literal(s.Book),
		strconv.Itoa(s.Sarga),
		Literal(s.Title),
		ArrayLiteral(s.KeyEvents),
		ArrayLiteral(s.MainCharacters),
		ArrayLiteral(s.Themes),
		NullableLiteral(s.CulturalSignificance),
		Literal(s.NarrativeSummary),
		NullableLiteral(s.SourceReference),
	}
	return fmt.Sprintf("INSERT INTO %s (%s)\nVALUES (%s)\nON CONFLICT (epic_id, kanda, sarga) DO NOTHING;",
		SummariesTable, strings.Join(SummaryColumns, ", "), strings.Join(values, ", "))
}

// Script collects rendered statements for one chapter.
type Script struct {
	Chapter    types.ChapterKey
	statements []string
}

// NewScript starts a script for a chapter.
func NewScript(key types.ChapterKey) *Script {
	return &Script{Chapter: key}
}

// AddQuestion appends a question insert.
func (s *Script) AddQuestion(q *types.QuestionRecord) error {
	stmt, err := InsertQuestion(q)
	if err != nil {
		return err
	}
	s.statements = append(s.statements, stmt)
	return nil
}

// AddSummary appends the summary insert.
func (s *Script) AddSummary(sum *types.ChapterSummary) {
	s.statements = append(s.statements, InsertSummary(sum))
}

// Len returns the number of statements.
func (s *Script) Len() int {
	return len(s.statements)
}

// VerifyQuery counts the chapter's questions after the script is applied.
func VerifyQuery(key types.ChapterKey) string {
	return fmt.Sprintf("SELECT count(*) FROM %s WHERE epic_id = %s AND kanda = %s AND sarga = %d;",
		QuestionsTable, Literal(key.EpicID), Literal(key.Book), key.Sarga)
}

// String renders the statements inside one transaction, followed by the
// verification count query.
func (s *Script) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\nBEGIN;\n\n", s.Chapter)
	for _, stmt := range s.statements {
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	b.WriteString("COMMIT;\n\n")
	b.WriteString(VerifyQuery(s.Chapter))
	b.WriteString("\n")
	return b.String()
}
