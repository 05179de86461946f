package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/review"
	"github.com/jackzampolin/itihasa/internal/store"
	"github.com/jackzampolin/itihasa/internal/types"
)

var chapter = types.ChapterKey{EpicID: "ramayana", Book: "ayodhya", Sarga: 18}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func raw(text string, options ...string) quiz.RawQuestion {
	if len(options) == 0 {
		options = []string{"Kaikeyi", "Kausalya", "Sumitra", "Manthara"}
	}
	correct := 0
	return quiz.NewStandard(quiz.StandardQuestion{
		Category:        "Characters",
		Difficulty:      "medium",
		QuestionText:    text,
		Options:         options,
		CorrectAnswerID: &correct,
		Explanation:     "Kaikeyi asks Dasharatha for her two boons.",
	})
}

func fourQuestions() []quiz.RawQuestion {
	return []quiz.RawQuestion{
		raw("Who reminds Dasharatha of the two boons?"),
		raw("Who first poisons Kaikeyi's mind?"),
		raw("Whose son is to be crowned instead of Rama?"),
		raw("Who is Rama's mother?"),
	}
}

func summary() *types.ChapterSummary {
	return &types.ChapterSummary{
		Title:            "Kaikeyi's demand",
		KeyEvents:        []string{"Kaikeyi claims her boons"},
		NarrativeSummary: "Kaikeyi demands Rama's exile and Bharata's coronation.",
	}
}

func newDirect(t *testing.T, s store.Store) *Importer {
	t.Helper()
	im, err := New(Config{Mode: ModeDirect, Store: s, Retry: true, MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: discard()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return im
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Mode: ModeDirect}); err == nil {
		t.Error("direct mode without store should fail")
	}
	if _, err := New(Config{Mode: ModeRender}); err == nil {
		t.Error("render mode without output dir should fail")
	}
	if _, err := ParseMode("bulk"); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestImport_Direct(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	im := newDirect(t, s)

	rep, err := im.Import(ctx, Input{Chapter: chapter, Questions: fourQuestions(), Summary: summary()})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if rep.Attempted != 4 || rep.Imported != 4 || rep.Failed != 0 || !rep.Summary {
		t.Errorf("report = %+v", rep)
	}
	if rep.Verification != nil {
		t.Errorf("unexpected verification warning: %s", rep.Verification)
	}
	if rep.BatchID == "" {
		t.Error("batch id not set")
	}

	qs, _ := s.ListQuestions(ctx, store.ForChapter(chapter))
	if len(qs) != 4 || qs[0].Category != types.CategoryCharacters || qs[0].SourceReference == "" {
		t.Errorf("stored = %+v", qs)
	}
	sum, err := s.GetSummary(ctx, chapter)
	if err != nil || sum.Book != "ayodhya" || sum.SourceReference == "" {
		t.Errorf("summary = %+v, %v", sum, err)
	}
}

func TestImport_InvalidRecordSkipped(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	im := newDirect(t, s)

	qs := fourQuestions()
	qs = append(qs, raw("Which option is missing?", "a", "b", "c"))

	rep, err := im.Import(ctx, Input{Chapter: chapter, Questions: qs})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if rep.Attempted != 5 || rep.Imported != 4 || rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 || !strings.Contains(rep.Errors[0], "options") {
		t.Errorf("errors = %v", rep.Errors)
	}
	if n, _ := s.CountQuestions(ctx, chapter); n != 4 {
		t.Errorf("stored %d questions, want 4", n)
	}
}

func TestImport_RerunSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	im := newDirect(t, s)

	if _, err := im.Import(ctx, Input{Chapter: chapter, Questions: fourQuestions(), Summary: summary()}); err != nil {
		t.Fatal(err)
	}
	rep, err := im.Import(ctx, Input{Chapter: chapter, Questions: fourQuestions(), Summary: summary()})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Imported != 0 || rep.SkippedDuplicates != 4 || rep.Failed != 0 || rep.Summary {
		t.Errorf("report = %+v", rep)
	}
	if rep.Verification != nil {
		t.Errorf("verification = %s", rep.Verification)
	}
	if n, _ := s.CountQuestions(ctx, chapter); n != 4 {
		t.Errorf("stored %d questions after rerun, want 4", n)
	}
}

func TestImport_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.FailInserts = 2
	s.InsertErr = errors.New("connection reset")
	im := newDirect(t, s)

	rep, err := im.Import(ctx, Input{Chapter: chapter, Questions: fourQuestions()[:1]})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Imported != 1 || rep.Failed != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestImport_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.FailInserts = 3
	s.InsertErr = errors.New("connection reset")
	im := newDirect(t, s)

	rep, err := im.Import(ctx, Input{Chapter: chapter, Questions: fourQuestions()[:2]})
	if err != nil {
		t.Fatal(err)
	}
	// The first record uses up all three failures; the second succeeds.
	if rep.Imported != 1 || rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 || !strings.Contains(rep.Errors[0], "after 3 attempts") {
		t.Errorf("errors = %v", rep.Errors)
	}
}

// driftingStore reports one extra row on every count after the first.
type driftingStore struct {
	*store.MemoryStore
	counts int
}

func (d *driftingStore) CountQuestions(ctx context.Context, key types.ChapterKey) (int, error) {
	n, err := d.MemoryStore.CountQuestions(ctx, key)
	d.counts++
	if d.counts > 1 {
		n++
	}
	return n, err
}

func TestImport_VerificationWarning(t *testing.T) {
	s := &driftingStore{MemoryStore: store.NewMemoryStore()}
	im := newDirect(t, s)

	rep, err := im.Import(context.Background(), Input{Chapter: chapter, Questions: fourQuestions()})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Verification == nil || rep.Verification.Expected != 4 || rep.Verification.Actual != 5 {
		t.Errorf("verification = %+v", rep.Verification)
	}
}

func TestImport_Render(t *testing.T) {
	dir := t.TempDir()
	im, err := New(Config{Mode: ModeRender, SQLDir: dir, Logger: discard()})
	if err != nil {
		t.Fatal(err)
	}

	qs := fourQuestions()
	qs = append(qs, raw("Broken", "only one"))
	rep, err := im.Import(context.Background(), Input{Chapter: chapter, Questions: qs, Summary: summary()})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if rep.Imported != 4 || rep.Failed != 1 || !rep.Summary {
		t.Errorf("report = %+v", rep)
	}
	if !strings.HasSuffix(rep.SQLPath, "ayodhya_sarga_18_import.sql") {
		t.Errorf("SQLPath = %s", rep.SQLPath)
	}
	data, err := os.ReadFile(rep.SQLPath)
	if err != nil {
		t.Fatal(err)
	}
	sql := string(data)
	if got := strings.Count(sql, "INSERT INTO questions"); got != 4 {
		t.Errorf("question inserts = %d, want 4", got)
	}
	if !strings.Contains(sql, "'Who first poisons Kaikeyi''s mind?'") {
		t.Errorf("quote not escaped:\n%s", sql)
	}
	if !strings.Contains(sql, "INSERT INTO chapter_summaries") {
		t.Error("summary insert missing")
	}
}

func TestFromFiles(t *testing.T) {
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := types.ChapterKey{EpicID: "ramayana", Book: "bala", Sarga: 1}

	if _, err := FromFiles(h, key); err == nil {
		t.Error("expected error with no files")
	}

	standard := `[{"category":"events","difficulty":"easy","question_text":"Q1?","options":["a","b","c","d"],"correct_answer_id":1,"basic_explanation":"e"}, 42]`
	legacy := `{"questions":[{"category":"themes","difficulty":"hard","question":"Q2?","explanation":"e",
		"answers":[{"answer":"a"},{"answer":"b","isCorrect":true},{"answer":"c"},{"answer":"d"}]}]}`
	writes := map[home.Kind]string{
		home.KindQuestions:     standard,
		home.KindHardQuestions: legacy,
		home.KindSummary:       `{"title":"t","narrative_summary":"n","key_events":[" a ",""]}`,
	}
	for kind, body := range writes {
		if err := home.WriteFile(h.ChapterFile("bala", 1, kind), []byte(body)); err != nil {
			t.Fatal(err)
		}
	}

	in, err := FromFiles(h, key)
	if err != nil {
		t.Fatalf("FromFiles() error = %v", err)
	}
	if len(in.Questions) != 2 || len(in.DecodeErrors) != 1 || in.Summary == nil {
		t.Fatalf("input = %+v", in)
	}
	if in.Questions[1].Kind() != quiz.KindLegacy {
		t.Errorf("second question kind = %v", in.Questions[1].Kind())
	}
	if len(in.Summary.KeyEvents) != 1 {
		t.Errorf("summary key events = %v", in.Summary.KeyEvents)
	}

	s := store.NewMemoryStore()
	rep, err := newDirect(t, s).Import(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Attempted != 3 || rep.Imported != 2 || rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	q, _ := s.ListQuestions(context.Background(), store.QuestionFilter{Difficulty: types.DifficultyHard})
	if len(q) != 1 || q[0].CorrectAnswerID != 1 {
		t.Errorf("upgraded legacy question = %+v", q)
	}
}

func TestFromReview(t *testing.T) {
	ctx := context.Background()
	surface := review.NewCSVSurface(t.TempDir())

	var records []types.QuestionRecord
	for i := 0; i < 3; i++ {
		records = append(records, types.QuestionRecord{
			EpicID: chapter.EpicID, Book: chapter.Book, Sarga: chapter.Sarga,
			Category: types.CategoryEvents, Difficulty: types.DifficultyEasy,
			QuestionText:    fmt.Sprintf("Reviewed question %d?", i),
			Options:         []string{"a", "b", "c", "d"},
			CorrectAnswerID: i,
			Explanation:     "e",
		})
	}
	if _, err := review.Stage(ctx, surface, chapter, nil, records); err != nil {
		t.Fatal(err)
	}
	for _, i := range []int{0, 2} {
		if err := surface.SetStatus(ctx, chapter, review.RowID(&records[i]), review.StatusApproved); err != nil {
			t.Fatal(err)
		}
	}

	in, err := FromReview(ctx, surface, chapter)
	if err != nil {
		t.Fatalf("FromReview() error = %v", err)
	}
	if len(in.Questions) != 2 || in.Summary != nil || in.Source != SourceReview {
		t.Errorf("input = %+v", in)
	}

	rep, err := newDirect(t, store.NewMemoryStore()).Import(ctx, in)
	if err != nil || rep.Imported != 2 {
		t.Errorf("report = %+v, %v", rep, err)
	}
}
