package cleanup

import (
	"context"
	"math"
	"testing"

	"github.com/jackzampolin/itihasa/internal/store"
	"github.com/jackzampolin/itihasa/internal/types"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"Who is Rama?", "  who is   RAMA? ", 1},
		{"abcd", "abce", 0.75},
		{"abc", "", 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func q(id, book string, sarga int, text string) types.QuestionRecord {
	return types.QuestionRecord{
		ID: id, EpicID: "ramayana", Book: book, Sarga: sarga,
		Category: types.CategoryEvents, Difficulty: types.DifficultyEasy,
		QuestionText: text, Options: []string{"a", "b", "c", "d"}, Explanation: "e",
	}
}

func TestFindNearDuplicates(t *testing.T) {
	qs := []types.QuestionRecord{
		q("1", "bala", 1, "Which sage tells Valmiki the story of Rama?"),
		q("2", "bala", 1, "which sage tells  VALMIKI the story of Rama?"),
		q("3", "bala", 1, "Which sage told Valmiki the story of Rama?"),
		q("4", "bala", 1, "Where does Valmiki bathe?"),
		// Same text in a different chapter is not a duplicate.
		q("5", "bala", 2, "Which sage tells Valmiki the story of Rama?"),
	}

	pairs := FindNearDuplicates(qs, 0)
	if len(pairs) != 2 {
		t.Fatalf("pairs = %+v", pairs)
	}
	for _, p := range pairs {
		if p.KeepID != "1" {
			t.Errorf("earlier record should be kept: %+v", p)
		}
		if p.Similarity < DefaultThreshold {
			t.Errorf("pair below threshold: %+v", p)
		}
	}
	if pairs[0].DropID != "2" || pairs[1].DropID != "3" {
		t.Errorf("drop order = %s, %s", pairs[0].DropID, pairs[1].DropID)
	}

	if got := FindNearDuplicates(qs, 1); len(got) != 1 {
		t.Errorf("exact threshold pairs = %+v", got)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	keep := s.Insert(q("", "sundara", 5, "How does Hanuman enter Lanka?"))
	s.Insert(q("", "sundara", 5, "How does Hanuman enter Lanka ?"))
	s.Insert(q("", "sundara", 5, "What does Hanuman give Sita?"))

	rep, err := Run(ctx, s, Options{EpicID: "ramayana", DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Scanned != 3 || len(rep.Pairs) != 1 || rep.Merged != 0 {
		t.Errorf("dry run report = %+v", rep)
	}
	if n, _ := s.CountQuestions(ctx, types.ChapterKey{EpicID: "ramayana", Book: "sundara", Sarga: 5}); n != 3 {
		t.Errorf("dry run changed the store: %d rows", n)
	}

	rep, err = Run(ctx, s, Options{EpicID: "ramayana"})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Merged != 1 || len(rep.Errors) != 0 {
		t.Errorf("report = %+v", rep)
	}
	if _, err := s.GetQuestion(ctx, keep); err != nil {
		t.Errorf("kept record missing: %v", err)
	}
	if n, _ := s.CountQuestions(ctx, types.ChapterKey{EpicID: "ramayana", Book: "sundara", Sarga: 5}); n != 2 {
		t.Errorf("rows after merge = %d, want 2", n)
	}
}
