// Package quiz holds the record rules shared by the generator and the importer:
// decoding of generated items, legacy upgrade, category coercion, validation
// and deduplication.
package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/itihasa/internal/types"
)

// Kind tells which schema a raw question was written in.
type Kind int

const (
	KindStandard Kind = iota + 1
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// StandardQuestion is the current generated-question schema.
type StandardQuestion struct {
	Category         string         `json:"category"`
	Difficulty       string         `json:"difficulty"`
	QuestionText     string         `json:"question_text"`
	Options          []string       `json:"options"`
	CorrectAnswerID  *int           `json:"correct_answer_id"`
	Explanation      string         `json:"basic_explanation"`
	AltExplanation   string         `json:"explanation,omitempty"`
	OriginalQuote    string         `json:"original_quote,omitempty"`
	QuoteTranslation string         `json:"quote_translation,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	CrossEpicTags    []string       `json:"cross_epic_tags,omitempty"`
	SourceReference  string         `json:"source_reference,omitempty"`
	Pass             *types.PassTag `json:"pass,omitempty"`
}

// LegacyAnswer is one answer of a legacy question.
type LegacyAnswer struct {
	Answer    string `json:"answer"`
	IsCorrect bool   `json:"isCorrect"`
}

// LegacyQuestion is the older schema with per-answer correctness flags.
type LegacyQuestion struct {
	Category         string         `json:"category"`
	Difficulty       string         `json:"difficulty"`
	Question         string         `json:"question"`
	Answers          []LegacyAnswer `json:"answers"`
	Explanation      string         `json:"explanation"`
	OriginalQuote    string         `json:"original_quote,omitempty"`
	QuoteTranslation string         `json:"quote_translation,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	CrossEpicTags    []string       `json:"cross_epic_tags,omitempty"`
	SourceReference  string         `json:"source_reference,omitempty"`
}

// RawQuestion is a decoded question in either schema. The kind is decided
// once, when the JSON is decoded.
type RawQuestion struct {
	kind     Kind
	standard *StandardQuestion
	legacy   *LegacyQuestion
}

// NewStandard wraps a standard question.
func NewStandard(q StandardQuestion) RawQuestion {
	return RawQuestion{kind: KindStandard, standard: &q}
}

// FromRecord wraps an already typed record, such as a reviewed row, so it
// goes through the same normalization as freshly decoded input.
func FromRecord(q *types.QuestionRecord) RawQuestion {
	correct := q.CorrectAnswerID
	return NewStandard(StandardQuestion{
		Category:         string(q.Category),
		Difficulty:       string(q.Difficulty),
		QuestionText:     q.QuestionText,
		Options:          q.Options,
		CorrectAnswerID:  &correct,
		Explanation:      q.Explanation,
		OriginalQuote:    q.OriginalQuote,
		QuoteTranslation: q.QuoteTranslation,
		Tags:             q.Tags,
		CrossEpicTags:    q.CrossEpicTags,
		SourceReference:  q.SourceReference,
		Pass:             q.Pass,
	})
}

// NewLegacy wraps a legacy question.
func NewLegacy(q LegacyQuestion) RawQuestion {
	return RawQuestion{kind: KindLegacy, legacy: &q}
}

// Kind returns the schema the question was written in.
func (r RawQuestion) Kind() Kind {
	return r.kind
}

// UnmarshalJSON detects the schema from the fields present.
func (r *RawQuestion) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("question is not an object: %w", err)
	}

	_, hasText := probe["question_text"]
	_, hasOptions := probe["options"]
	_, hasQuestion := probe["question"]
	_, hasAnswers := probe["answers"]

	switch {
	case hasText || hasOptions:
		var q StandardQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return fmt.Errorf("decode standard question: %w", err)
		}
		*r = NewStandard(q)
	case hasQuestion || hasAnswers:
		var q LegacyQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return fmt.Errorf("decode legacy question: %w", err)
		}
		*r = NewLegacy(q)
	default:
		return fmt.Errorf("question has neither question_text/options nor question/answers")
	}
	return nil
}

// MarshalJSON writes the question in its own schema.
func (r RawQuestion) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case KindStandard:
		return json.Marshal(r.standard)
	case KindLegacy:
		return json.Marshal(r.legacy)
	default:
		return []byte("null"), nil
	}
}

// Upgrade returns the question in the standard schema. A legacy question must
// have exactly one correct answer.
func (r RawQuestion) Upgrade() (StandardQuestion, error) {
	switch r.kind {
	case KindStandard:
		return *r.standard, nil
	case KindLegacy:
		return upgradeLegacy(*r.legacy)
	default:
		return StandardQuestion{}, &ValidationError{Field: "question", Reason: "empty record"}
	}
}

func upgradeLegacy(l LegacyQuestion) (StandardQuestion, error) {
	correct := -1
	options := make([]string, len(l.Answers))
	for i, a := range l.Answers {
		options[i] = a.Answer
		if a.IsCorrect {
			if correct >= 0 {
				return StandardQuestion{}, &ValidationError{Field: "answers", Reason: "more than one answer marked correct"}
			}
			correct = i
		}
	}
	if correct < 0 {
		return StandardQuestion{}, &ValidationError{Field: "answers", Reason: "no answer marked correct"}
	}

	return StandardQuestion{
		Category:         l.Category,
		Difficulty:       l.Difficulty,
		QuestionText:     l.Question,
		Options:          options,
		CorrectAnswerID:  &correct,
		Explanation:      l.Explanation,
		OriginalQuote:    l.OriginalQuote,
		QuoteTranslation: l.QuoteTranslation,
		Tags:             l.Tags,
		CrossEpicTags:    l.CrossEpicTags,
		SourceReference:  l.SourceReference,
	}, nil
}

// ItemError is a decode failure of one element of a question list.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// DecodeList decodes a question list given either as a bare array or as an
// object with a "questions" array. Items that fail to decode are reported
// individually and do not stop the rest.
func DecodeList(data []byte) ([]RawQuestion, []error, error) {
	data = bytes.TrimSpace(data)
	var items []json.RawMessage

	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Questions []json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, nil, fmt.Errorf("decode question list: %w", err)
		}
		if wrapper.Questions == nil {
			return nil, nil, fmt.Errorf("decode question list: object has no questions array")
		}
		items = wrapper.Questions
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, fmt.Errorf("decode question list: %w", err)
	}

	out := make([]RawQuestion, 0, len(items))
	var errs []error
	for i, item := range items {
		var q RawQuestion
		if err := json.Unmarshal(item, &q); err != nil {
			errs = append(errs, &ItemError{Index: i, Err: err})
			continue
		}
		out = append(out, q)
	}
	return out, errs, nil
}
