package quiz

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jackzampolin/itihasa/internal/types"
)

// ValidationError reports why a record was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CoerceCategory keeps the first token of a multi-valued category
// ("themes|culture" -> themes) and maps anything outside the allowed set to
// types.DefaultCategory. An empty value stays empty so the validator can
// report it as missing.
func CoerceCategory(s string) types.Category {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || unicode.IsSpace(r)
	})
	if len(tokens) == 0 {
		return types.DefaultCategory
	}
	c := types.Category(tokens[0])
	if !c.Valid() {
		return types.DefaultCategory
	}
	return c
}

// Normalize upgrades a raw question and fills in the chapter context.
// Category coercion happens here; nothing is rejected except a legacy record
// without exactly one correct answer.
func Normalize(raw RawQuestion, key types.ChapterKey, sourceRef string) (types.QuestionRecord, error) {
	sq, err := raw.Upgrade()
	if err != nil {
		return types.QuestionRecord{}, err
	}

	correct := -1
	if sq.CorrectAnswerID != nil {
		correct = *sq.CorrectAnswerID
	}
	explanation := strings.TrimSpace(sq.Explanation)
	if explanation == "" {
		explanation = strings.TrimSpace(sq.AltExplanation)
	}
	ref := strings.TrimSpace(sq.SourceReference)
	if ref == "" {
		ref = sourceRef
	}

	options := make([]string, len(sq.Options))
	for i, o := range sq.Options {
		options[i] = strings.TrimSpace(o)
	}

	return types.QuestionRecord{
		EpicID:           key.EpicID,
		Book:             key.Book,
		Sarga:            key.Sarga,
		Category:         CoerceCategory(sq.Category),
		Difficulty:       types.Difficulty(strings.ToLower(strings.TrimSpace(sq.Difficulty))),
		QuestionText:     strings.TrimSpace(sq.QuestionText),
		Options:          options,
		CorrectAnswerID:  correct,
		Explanation:      explanation,
		OriginalQuote:    strings.TrimSpace(sq.OriginalQuote),
		QuoteTranslation: strings.TrimSpace(sq.QuoteTranslation),
		Tags:             cleanList(sq.Tags),
		CrossEpicTags:    cleanList(sq.CrossEpicTags),
		SourceReference:  ref,
		Pass:             sq.Pass,
	}, nil
}

// Validate checks a record against the import invariants.
func Validate(q *types.QuestionRecord) error {
	switch {
	case q.EpicID == "" || q.Book == "" || q.Sarga < 1:
		return &ValidationError{Field: "chapter", Reason: "epic, book and sarga are required"}
	case q.QuestionText == "":
		return &ValidationError{Field: "question_text", Reason: "required"}
	case q.Explanation == "":
		return &ValidationError{Field: "basic_explanation", Reason: "required"}
	case q.Category == "":
		return &ValidationError{Field: "category", Reason: "required"}
	case q.Difficulty == "":
		return &ValidationError{Field: "difficulty", Reason: "required"}
	case len(q.Options) != types.OptionCount:
		return &ValidationError{Field: "options", Reason: fmt.Sprintf("want %d options, got %d", types.OptionCount, len(q.Options))}
	case q.CorrectAnswerID < 0 || q.CorrectAnswerID >= len(q.Options):
		return &ValidationError{Field: "correct_answer_id", Reason: fmt.Sprintf("%d out of range", q.CorrectAnswerID)}
	case !q.Category.Valid():
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("%q not allowed", q.Category)}
	case !q.Difficulty.Valid():
		return &ValidationError{Field: "difficulty", Reason: fmt.Sprintf("%q not allowed", q.Difficulty)}
	}
	for i, o := range q.Options {
		if o == "" {
			return &ValidationError{Field: "options", Reason: fmt.Sprintf("option %d is empty", i)}
		}
	}
	return nil
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
