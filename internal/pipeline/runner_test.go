package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/itihasa/internal/generate"
	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/providers"
	"github.com/jackzampolin/itihasa/internal/review"
	"github.com/jackzampolin/itihasa/internal/segment"
	"github.com/jackzampolin/itihasa/internal/types"
)

type fakeFetcher struct {
	verses int
	fail   map[int]bool
	calls  []int
}

func (f *fakeFetcher) Fetch(ctx context.Context, book string, sarga int) (*types.ChapterSource, error) {
	f.calls = append(f.calls, sarga)
	if f.fail[sarga] {
		return nil, fmt.Errorf("site unavailable")
	}
	src := &types.ChapterSource{EpicID: types.DefaultEpicID, Book: book, Sarga: sarga}
	for i := 1; i <= f.verses; i++ {
		src.Verses = append(src.Verses, types.Verse{
			Number:      i,
			Original:    "रामो विग्रहवान् धर्मः",
			Translation: fmt.Sprintf("Verse %d: Rama is righteousness incarnate.", i),
		})
	}
	return src, nil
}

func question(text string) string {
	return fmt.Sprintf(`{"category":"events","difficulty":"easy","question_text":%q,
		"options":["Rama","Lakshmana","Bharata","Shatrughna"],"correct_answer_id":0,
		"basic_explanation":"Rama is the eldest son."}`, text)
}

func list(items ...string) string {
	return `{"questions":[` + strings.Join(items, ",") + `]}`
}

const summary = `{"title":"Rama's virtues","key_events":["Narada lists Rama's virtues"],
	"main_characters":["Rama"],"themes":["dharma"],"cultural_significance":"c",
	"narrative_summary":"Narada describes Rama to Valmiki."}`

func combined(prefix string) string {
	return `{"summary":` + summary + `,"questions":[` +
		question(prefix+" who is the eldest son of Dasharatha?") + `,` +
		question(prefix+" who follows Rama into exile?") + `]}`
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(t *testing.T, f Fetcher, client providers.LLMClient, surface review.Surface, sleep func(context.Context, time.Duration) error) (*Runner, *home.Dir) {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	gen, err := generate.New(generate.Config{
		Client:        client,
		StandardCount: 2,
		PassCount:     1,
		RetryDelay:    time.Millisecond,
		Logger:        quiet(),
	})
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner(Config{
		Fetcher:    f,
		Generator:  gen,
		Home:       h,
		Review:     surface,
		BatchDelay: time.Second,
		Logger:     quiet(),
		Sleep:      sleep,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r, h
}

func TestNewRunner_Requires(t *testing.T) {
	if _, err := NewRunner(Config{}); err == nil {
		t.Error("expected error without fetcher")
	}
}

func TestRunChapter_Full(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = []string{
		combined("Standard:"),
		list(question("Pass one: who names Rama?")),
		list(question("Pass two: where does Narada speak?")),
		list(question("Pass three: which virtue is named last?")),
		list(question("Hard: why is Rama called the ideal man?")),
	}
	surface := review.NewCSVSurface(t.TempDir())
	r, h := newTestRunner(t, &fakeFetcher{verses: 3}, mock, surface, nil)

	rep, err := r.RunChapter(context.Background(), "bala", 1, Options{Deep: true, Stage: true})
	if err != nil {
		t.Fatalf("RunChapter() error = %v", err)
	}
	if mock.RequestCount() != 5 {
		t.Errorf("requests = %d, want 5", mock.RequestCount())
	}
	want := []string{StageFetch, StageGenerate, StageDeep, StageWrite, StageReview}
	if strings.Join(rep.Stages, ",") != strings.Join(want, ",") {
		t.Errorf("stages = %v, want %v", rep.Stages, want)
	}
	if rep.Verses != 3 || rep.Questions != 2 || rep.HardQuestions != 4 || !rep.Summary {
		t.Errorf("report = %+v", rep)
	}
	if rep.Generation.Calls != 5 || rep.Generation.Succeeded != 5 {
		t.Errorf("generation report = %+v", rep.Generation)
	}
	for _, kind := range []home.Kind{home.KindVerses, home.KindSummary, home.KindQuestions, home.KindHardQuestions} {
		if rep.Files[string(kind)] == "" {
			t.Errorf("missing %s file in report", kind)
		}
	}

	var written []types.QuestionRecord
	if err := home.ReadJSON(h.ChapterFile("bala", 1, home.KindHardQuestions), &written); err != nil {
		t.Fatal(err)
	}
	if len(written) != 4 || written[0].Pass == nil {
		t.Errorf("hard questions file = %+v", written)
	}

	if rep.Review == nil || rep.Review.QuestionsStaged != 6 || !rep.Review.SummaryStaged {
		t.Errorf("review report = %+v", rep.Review)
	}
}

func TestRunChapter_NoVerses(t *testing.T) {
	mock := providers.NewMockClient()
	r, h := newTestRunner(t, &fakeFetcher{verses: 0}, mock, nil, nil)

	path := h.ChapterFile("bala", 1, home.KindVerses)
	earlier := types.ChapterSource{EpicID: types.DefaultEpicID, Book: "bala", Sarga: 1,
		Verses: []types.Verse{{Number: 1, Original: "रामः", Translation: "An earlier fetch of this sarga."}}}
	if err := home.WriteJSON(path, &earlier); err != nil {
		t.Fatal(err)
	}

	rep, err := r.RunChapter(context.Background(), "bala", 1, Options{})
	if !errors.Is(err, segment.ErrNoVerses) {
		t.Fatalf("RunChapter() error = %v, want ErrNoVerses", err)
	}
	if rep.FailedStage != StageFetch || rep.OK() {
		t.Errorf("report = %+v", rep)
	}
	if mock.RequestCount() != 0 {
		t.Error("no provider call expected for an empty chapter")
	}
	if rep.Files[string(home.KindVerses)] != path {
		t.Errorf("verses file = %q, want %q", rep.Files[string(home.KindVerses)], path)
	}
	var src types.ChapterSource
	if err := home.ReadJSON(path, &src); err != nil {
		t.Fatalf("verses file should be written for an empty chapter: %v", err)
	}
	if len(src.Verses) != 0 {
		t.Errorf("verses file still holds %d verses from the earlier fetch", len(src.Verses))
	}
}

func TestRunChapter_StageWithoutSurface(t *testing.T) {
	r, _ := newTestRunner(t, &fakeFetcher{verses: 1}, providers.NewMockClient(), nil, nil)
	if _, err := r.RunChapter(context.Background(), "bala", 1, Options{Stage: true}); err == nil {
		t.Error("expected error when staging without a surface")
	}
}

func TestRunBatch_ContinuesPastFailure(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = combined("Batch:")
	fetcher := &fakeFetcher{verses: 2, fail: map[int]bool{2: true}}
	var slept []time.Duration
	r, h := newTestRunner(t, fetcher, mock, nil, func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	rep, err := r.RunBatch(context.Background(), "ayodhya", 1, 3, Options{})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if rep.Succeeded != 2 || rep.Failed != 1 || len(rep.Chapters) != 3 {
		t.Errorf("batch report = %+v", rep)
	}
	if rep.Questions != 4 {
		t.Errorf("questions = %d, want 4", rep.Questions)
	}
	if len(slept) != 2 || slept[0] != time.Second {
		t.Errorf("sleeps = %v, want two of 1s", slept)
	}
	if rep.Chapters[1].FailedStage != StageFetch {
		t.Errorf("failed chapter = %+v", rep.Chapters[1])
	}
	var qs []types.QuestionRecord
	if err := home.ReadJSON(h.ChapterFile("ayodhya", 3, home.KindQuestions), &qs); err != nil || len(qs) != 2 {
		t.Errorf("sarga 3 questions = %d, err = %v", len(qs), err)
	}
}

func TestRunBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := providers.NewMockClient()
	mock.ResponseText = combined("Cancel:")
	fetcher := &fakeFetcher{verses: 1}
	r, _ := newTestRunner(t, fetcher, mock, nil, func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	rep, err := r.RunBatch(ctx, "bala", 1, 5, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunBatch() error = %v, want context.Canceled", err)
	}
	if len(fetcher.calls) != 1 || len(rep.Chapters) != 1 {
		t.Errorf("chapters run = %v", fetcher.calls)
	}
}

func TestRunBatch_InvalidRange(t *testing.T) {
	r, _ := newTestRunner(t, &fakeFetcher{}, providers.NewMockClient(), nil, nil)
	if _, err := r.RunBatch(context.Background(), "bala", 3, 2, Options{}); err == nil {
		t.Error("expected error for reversed range")
	}
}
