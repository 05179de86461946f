package generate

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

	"github.com/jackzampolin/itihasa/internal/providers"
	"github.com/jackzampolin/itihasa/internal/themes"
	"github.com/jackzampolin/itihasa/internal/types"
)

func testChapter(n int) *types.ChapterSource {
	src := &types.ChapterSource{EpicID: types.DefaultEpicID, Book: "bala", Sarga: 1}
	for i := 1; i <= n; i++ {
		src.Verses = append(src.Verses, types.Verse{
			Number:      i,
			Original:    "तपःस्वाध्यायनिरतं",
			Translation: fmt.Sprintf("Verse %d: Valmiki asks Narada about the ideal man.", i),
		})
	}
	return src
}

func question(text, category string) string {
	return fmt.Sprintf(`{
		"category": %q,
		"difficulty": "medium",
		"question_text": %q,
		"options": ["Narada", "Valmiki", "Rama", "Sita"],
		"correct_answer_id": 0,
		"basic_explanation": "Narada answers Valmiki's question in the first sarga."
	}`, category, text)
}

func list(items ...string) string {
	return `{"questions": [` + strings.Join(items, ",") + `]}`
}

const summaryJSON = `{
	"title": "Narada's narration",
	"key_events": ["Valmiki asks Narada about the ideal man"],
	"main_characters": ["Valmiki", "Narada"],
	"themes": ["dharma"],
	"cultural_significance": "Frames the epic as an answer to a question.",
	"narrative_summary": "Valmiki asks Narada whether any man alive has every virtue, and Narada tells of Rama."
}`

func newTestGenerator(t *testing.T, client providers.LLMClient, diag string) (*Generator, *int) {
	t.Helper()
	sleeps := 0
	g, err := New(Config{
		Client:         client,
		PassCount:      2,
		StandardCount:  2,
		MaxAttempts:    3,
		RetryDelay:     time.Millisecond,
		DiagnosticsDir: diag,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps++
			return ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, &sleeps
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without client")
	}
}

func TestDeep_PassesAndHard(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = []string{
		list(question("Who does Valmiki question about the ideal man?", "characters"),
			question("Where is Valmiki's hermitage located?", "culture")),
		list(question("What event prompts Narada's visit to Valmiki?", "events")),
		list(question("Which virtue does Narada name first in Rama?", "themes")),
		// The hard reply repeats a pass question and adds one new one.
		list(question("Who does Valmiki question about the ideal man?", "characters"),
			question("Why does Valmiki seek a single ideal human being?", "themes")),
	}
	g, sleeps := newTestGenerator(t, mock, t.TempDir())

	res, err := g.Deep(context.Background(), testChapter(3), themes.Generic("bala", 1))
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}

	if mock.RequestCount() != 4 {
		t.Errorf("requests = %d, want 4", mock.RequestCount())
	}
	if *sleeps != 3 {
		t.Errorf("sleeps between calls = %d, want 3", *sleeps)
	}
	if len(res.Questions) != 5 {
		t.Fatalf("questions = %d, want 5", len(res.Questions))
	}
	if res.Report.Duplicates != 1 || res.Report.Succeeded != 4 || res.Report.Failed != 0 {
		t.Errorf("report = %+v", res.Report)
	}

	first := res.Questions[0]
	if first.Pass == nil || first.Pass.Name != "characters_setting" || first.Pass.Start != 1 || first.Pass.End != 1 {
		t.Errorf("first question pass tag = %+v", first.Pass)
	}
	last := res.Questions[len(res.Questions)-1]
	if last.Pass == nil || last.Pass.Name != HardPassName {
		t.Errorf("hard question pass tag = %+v", last.Pass)
	}
	if first.Book != "bala" || first.Sarga != 1 || first.SourceReference == "" {
		t.Errorf("chapter context not attached: %+v", first)
	}
}

func TestDeep_BadReplyContinues(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = []string{
		list(question("Who does Valmiki question about the ideal man?", "characters")),
		"I'm sorry, here are some questions: <ul><li>none</li></ul>",
		list(question("Which virtue does Narada name first in Rama?", "themes")),
		list(question("Why does Valmiki seek a single ideal human being?", "themes")),
	}
	diag := t.TempDir()
	g, _ := newTestGenerator(t, mock, diag)

	res, err := g.Deep(context.Background(), testChapter(3), themes.Generic("bala", 1))
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}
	if len(res.Questions) != 3 {
		t.Errorf("questions = %d, want 3", len(res.Questions))
	}
	if res.Report.Failed != 1 || len(res.Report.Errors) != 1 {
		t.Errorf("report = %+v", res.Report)
	}

	entries, err := os.ReadDir(diag)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("diagnostic files = %d, want 1", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "bala_sarga_1_pass_events_actions_") || !strings.HasSuffix(name, "_raw.txt") {
		t.Errorf("diagnostic file name = %q", name)
	}
	data, _ := os.ReadFile(diag + "/" + name)
	if !strings.Contains(string(data), "<ul>") {
		t.Errorf("diagnostic file should hold the raw reply, got %q", data)
	}
}

func TestDeep_AllFail(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true
	mock.FailStatus = 400
	g, _ := newTestGenerator(t, mock, "")

	res, err := g.Deep(context.Background(), testChapter(2), themes.Generic("bala", 1))
	if err == nil {
		t.Fatal("expected error when every request fails")
	}
	// Two non-empty passes plus the hard request.
	if res.Report.Calls != 3 || res.Report.Failed != 3 {
		t.Errorf("report = %+v", res.Report)
	}
}

func TestDeep_NoVerses(t *testing.T) {
	g, _ := newTestGenerator(t, providers.NewMockClient(), "")
	if _, err := g.Deep(context.Background(), &types.ChapterSource{Book: "bala", Sarga: 1}, themes.Theme{}); err == nil {
		t.Error("expected error for chapter without verses")
	}
}

func TestCall_RetriesRateLimit(t *testing.T) {
	mock := providers.NewMockClient()
	mock.FailFirst = 2
	mock.FailStatus = 429
	mock.ResponseText = summaryJSON
	g, _ := newTestGenerator(t, mock, "")

	res, err := g.Summary(context.Background(), testChapter(2))
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("requests = %d, want 3", mock.RequestCount())
	}
	if res.Summary == nil || res.Summary.Title != "Narada's narration" || res.Summary.Book != "bala" {
		t.Errorf("summary = %+v", res.Summary)
	}
	if res.Report.Calls != 1 || res.Report.Succeeded != 1 {
		t.Errorf("report = %+v", res.Report)
	}
}

func TestCall_ClientErrorNotRetried(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true
	mock.FailStatus = 400
	g, _ := newTestGenerator(t, mock, "")

	_, err := g.Summary(context.Background(), testChapter(2))
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want GenerationError", err)
	}
	if genErr.Kind != KindStatus || genErr.StatusCode != 400 || genErr.Payload != "mock failure" {
		t.Errorf("GenerationError = %+v", genErr)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.RequestCount())
	}
}

func TestSummary_SchemaMismatch(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `{"title": "only a title"}`
	g, _ := newTestGenerator(t, mock, "")

	_, err := g.Summary(context.Background(), testChapter(1))
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != KindParse {
		t.Errorf("error = %v, want parse GenerationError", err)
	}
}

func TestStandard_Combined(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `{"summary": ` + summaryJSON + `, "questions": [` +
		question("Who does Valmiki question about the ideal man?", "characters") + `,` +
		question("Where is Valmiki's hermitage located?", "Culture | Themes") + `]}`
	g, _ := newTestGenerator(t, mock, "")

	res, err := g.Standard(context.Background(), testChapter(4), themes.Generic("bala", 1))
	if err != nil {
		t.Fatalf("Standard() error = %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.RequestCount())
	}
	if res.Report.Fallback {
		t.Error("combined reply should not fall back")
	}
	if res.Summary == nil || len(res.Questions) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Questions[1].Category != types.CategoryCulture {
		t.Errorf("category = %q, want coerced culture", res.Questions[1].Category)
	}
	if res.Questions[0].Pass != nil {
		t.Errorf("standard questions should carry no pass tag")
	}
}

func TestStandard_TruncatedReplyKeepsCompleteQuestions(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "```json\n" + `{"summary": ` + summaryJSON + `, "questions": [` +
		question("Who does Valmiki question about the ideal man?", "characters") + `,` +
		question("Where is Valmiki's hermitage located?", "culture") + `,
		{"category": "events", "question_text": "What does Narada`
	g, _ := newTestGenerator(t, mock, "")

	res, err := g.Standard(context.Background(), testChapter(4), themes.Generic("bala", 1))
	if err != nil {
		t.Fatalf("Standard() error = %v", err)
	}
	if res.Report.Fallback || res.Summary == nil {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Questions) != 2 {
		t.Errorf("questions = %d, want the 2 complete ones", len(res.Questions))
	}
}

func TestStandard_Fallback(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = []string{
		"```json\n{\"summary\": {\"title\": \"cut off",
		summaryJSON,
		list(question("Who does Valmiki question about the ideal man?", "characters")),
	}
	g, _ := newTestGenerator(t, mock, t.TempDir())

	res, err := g.Standard(context.Background(), testChapter(4), themes.Generic("bala", 1))
	if err != nil {
		t.Fatalf("Standard() error = %v", err)
	}
	if !res.Report.Fallback {
		t.Error("expected fallback")
	}
	if mock.RequestCount() != 3 {
		t.Errorf("requests = %d, want 3", mock.RequestCount())
	}
	if res.Summary == nil || len(res.Questions) != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.Report.Calls != 3 || res.Report.Failed != 1 || res.Report.Succeeded != 2 {
		t.Errorf("report = %+v", res.Report)
	}
}

func TestStandard_RejectsInvalidQuestions(t *testing.T) {
	bad := `{"category": "events", "difficulty": "easy", "question_text": "Three options only?",
		"options": ["a", "b", "c"], "correct_answer_id": 0, "basic_explanation": "x"}`
	mock := providers.NewMockClient()
	mock.ResponseText = `{"summary": ` + summaryJSON + `, "questions": [` +
		question("Who does Valmiki question about the ideal man?", "characters") + `,` + bad + `]}`
	g, _ := newTestGenerator(t, mock, "")

	res, err := g.Standard(context.Background(), testChapter(2), themes.Generic("bala", 1))
	if err != nil {
		t.Fatalf("Standard() error = %v", err)
	}
	if len(res.Questions) != 1 || res.Report.Rejected != 1 {
		t.Errorf("questions = %d, report = %+v", len(res.Questions), res.Report)
	}
}

func TestStandard_Temperature(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name string
		temp *float64
		want float64
	}{
		{"unset uses default", nil, DefaultTemperature},
		{"explicit zero kept", &zero, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := providers.NewMockClient()
			mock.ResponseText = `{"summary": ` + summaryJSON + `, "questions": []}`
			g, err := New(Config{
				Client:      mock,
				Temperature: tt.temp,
				Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
			})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if _, err := g.Standard(context.Background(), testChapter(2), themes.Generic("bala", 1)); err != nil {
				t.Fatalf("Standard() error = %v", err)
			}
			reqs := mock.Requests()
			if len(reqs) != 1 || reqs[0].Temperature == nil {
				t.Fatalf("requests = %+v", reqs)
			}
			if got := *reqs[0].Temperature; got != tt.want {
				t.Errorf("temperature = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStandard_PromptCarriesChapter(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `{"summary": ` + summaryJSON + `, "questions": []}`
	g, _ := newTestGenerator(t, mock, "")

	if _, err := g.Standard(context.Background(), testChapter(2), themes.Generic("bala", 1)); err != nil {
		t.Fatalf("Standard() error = %v", err)
	}
	reqs := mock.Requests()
	if len(reqs) != 1 || len(reqs[0].Messages) != 2 {
		t.Fatalf("requests = %+v", reqs)
	}
	user := reqs[0].Messages[1].Content
	if !strings.Contains(user, "Valmiki asks Narada") {
		t.Errorf("user prompt missing verse text:\n%s", user)
	}
	if reqs[0].ResponseFormat == nil || reqs[0].ResponseFormat.Type != "json_object" {
		t.Errorf("response format = %+v", reqs[0].ResponseFormat)
	}
}
