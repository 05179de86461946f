package quiz

import (
	"math"

	"github.com/jackzampolin/itihasa/internal/types"
)

// PublicQuestion is a question as shown to a quiz taker: no answer, no
// explanation.
type PublicQuestion struct {
	ID           string           `json:"id"`
	EpicID       string           `json:"epic_id"`
	Book         string           `json:"kanda"`
	Sarga        int              `json:"sarga"`
	Category     types.Category   `json:"category"`
	Difficulty   types.Difficulty `json:"difficulty"`
	QuestionText string           `json:"question_text"`
	Options      []string         `json:"options"`
}

// Public strips the answer from a record.
func Public(q *types.QuestionRecord) PublicQuestion {
	return PublicQuestion{
		ID:           q.ID,
		EpicID:       q.EpicID,
		Book:         q.Book,
		Sarga:        q.Sarga,
		Category:     q.Category,
		Difficulty:   q.Difficulty,
		QuestionText: q.QuestionText,
		Options:      append([]string(nil), q.Options...),
	}
}

// Answer is one submitted answer.
type Answer struct {
	QuestionID string `json:"question_id"`
	Selected   int    `json:"selected"`
}

// AnswerResult grades one answer.
type AnswerResult struct {
	QuestionID       string `json:"question_id"`
	Selected         int    `json:"selected"`
	CorrectAnswerID  int    `json:"correct_answer_id"`
	CorrectAnswer    string `json:"correct_answer"`
	Correct          bool   `json:"correct"`
	Explanation      string `json:"basic_explanation"`
	OriginalQuote    string `json:"original_quote,omitempty"`
	QuoteTranslation string `json:"quote_translation,omitempty"`
	SourceReference  string `json:"source_reference,omitempty"`
}

// Score is the graded submission. Unknown lists question ids that did not
// resolve to a record; they do not count toward the total.
type Score struct {
	Correct    int            `json:"correct"`
	Total      int            `json:"total"`
	Percentage float64        `json:"percentage"`
	Results    []AnswerResult `json:"results"`
	Unknown    []string       `json:"unknown,omitempty"`
}

// Grade scores answers against the records returned by lookup. A repeated
// question id is graded once, on its first answer.
func Grade(answers []Answer, lookup func(id string) (*types.QuestionRecord, bool)) Score {
	s := Score{Results: []AnswerResult{}}
	seen := make(map[string]bool, len(answers))

	for _, a := range answers {
		if seen[a.QuestionID] {
			continue
		}
		seen[a.QuestionID] = true

		q, ok := lookup(a.QuestionID)
		if !ok {
			s.Unknown = append(s.Unknown, a.QuestionID)
			continue
		}
		r := AnswerResult{
			QuestionID:       q.ID,
			Selected:         a.Selected,
			CorrectAnswerID:  q.CorrectAnswerID,
			CorrectAnswer:    q.CorrectOption(),
			Correct:          a.Selected == q.CorrectAnswerID,
			Explanation:      q.Explanation,
			OriginalQuote:    q.OriginalQuote,
			QuoteTranslation: q.QuoteTranslation,
			SourceReference:  q.SourceReference,
		}
		if r.Correct {
			s.Correct++
		}
		s.Total++
		s.Results = append(s.Results, r)
	}

	if s.Total > 0 {
		s.Percentage = math.Round(float64(s.Correct)/float64(s.Total)*1000) / 10
	}
	return s
}
