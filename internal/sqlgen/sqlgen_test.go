package sqlgen

import (
	"strings"
	"testing"

	"github.com/jackzampolin/itihasa/internal/types"
)

// unquote reverses Literal the way the database reads a string literal.
func unquote(t *testing.T, lit string) string {
	t.Helper()
	if len(lit) < 2 || lit[0] != '\'' || lit[len(lit)-1] != '\'' {
		t.Fatalf("not a literal: %s", lit)
	}
	body := lit[1 : len(lit)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\'' {
			if i+1 >= len(body) || body[i+1] != '\'' {
				t.Fatalf("unescaped quote at %d in %s", i, lit)
			}
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

func TestLiteral(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"Rama's exile",
		"''",
		"'leading and trailing'",
		"Sita said, 'I will follow you.'",
		"रामस्य 'धर्म'",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			if got := unquote(t, Literal(in)); got != in {
				t.Errorf("round trip = %q, want %q", got, in)
			}
		})
	}
}

func TestNullableLiteral(t *testing.T) {
	if got := NullableLiteral("  "); got != "NULL" {
		t.Errorf("NullableLiteral(blank) = %s", got)
	}
	if got := NullableLiteral("x"); got != "'x'" {
		t.Errorf("NullableLiteral(x) = %s", got)
	}
}

func TestArrayLiteral(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, "ARRAY[]::text[]"},
		{[]string{"dharma"}, "ARRAY['dharma']"},
		{[]string{"Rama's bow", "exile"}, "ARRAY['Rama''s bow', 'exile']"},
	}
	for _, tt := range tests {
		if got := ArrayLiteral(tt.in); got != tt.want {
			t.Errorf("ArrayLiteral(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestInsertQuestion(t *testing.T) {
	q := &types.QuestionRecord{
		EpicID:          "ramayana",
		Book:            "ayodhya",
		Sarga:           12,
		Category:        types.CategoryEvents,
		Difficulty:      types.DifficultyHard,
		QuestionText:    "Why does Dasharatha keep Kaikeyi's boons?",
		Options:         []string{"Duty", "Fear", "Love", "Pride"},
		CorrectAnswerID: 0,
		Explanation:     "A king's word is dharma.",
		Tags:            []string{"boons"},
	}
	stmt, err := InsertQuestion(q)
	if err != nil {
		t.Fatalf("InsertQuestion() error = %v", err)
	}
	for _, want := range []string{
		"INSERT INTO questions",
		"'Why does Dasharatha keep Kaikeyi''s boons?'",
		`'["Duty","Fear","Love","Pride"]'::jsonb`,
		"ARRAY['boons']",
		"ARRAY[]::text[]",
		"NULL",
		"ON CONFLICT (content_hash) DO NOTHING",
	} {
		if !strings.Contains(stmt, want) {
			t.Errorf("statement missing %q:\n%s", want, stmt)
		}
	}
}

func TestScript(t *testing.T) {
	key := types.ChapterKey{EpicID: "ramayana", Book: "bala", Sarga: 1}
	s := NewScript(key)
	s.AddSummary(&types.ChapterSummary{EpicID: "ramayana", Book: "bala", Sarga: 1, Title: "Narada's visit", NarrativeSummary: "n"})
	if err := s.AddQuestion(&types.QuestionRecord{EpicID: "ramayana", Book: "bala", Sarga: 1, Options: []string{"a", "b", "c", "d"}}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d", s.Len())
	}
	out := s.String()
	if !strings.HasPrefix(out, "-- ramayana/bala/1\nBEGIN;") {
		t.Errorf("script header:\n%s", out)
	}
	if !strings.Contains(out, "'Narada''s visit'") || !strings.Contains(out, "COMMIT;") {
		t.Errorf("script body:\n%s", out)
	}
	if !strings.HasSuffix(out, VerifyQuery(key)+"\n") {
		t.Errorf("script should end with verify query:\n%s", out)
	}
}
