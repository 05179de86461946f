package llmcall

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackzampolin/itihasa/internal/providers"
)

func TestFromChatResult(t *testing.T) {
	if FromChatResult(nil, RecordOptions{}) != nil {
		t.Error("nil result should give nil call")
	}

	temp := 0.3
	call := FromChatResult(&providers.ChatResult{
		Content:          `{"questions":[]}`,
		PromptTokens:     120,
		CompletionTokens: 40,
		CostUSD:          0.001,
		ExecutionTime:    1500 * time.Millisecond,
		Provider:         "openrouter",
		ModelUsed:        "anthropic/claude-sonnet-4",
		Attempts:         2,
		Success:          false,
		ErrorMessage:     "boom",
	}, RecordOptions{Book: "bala", Sarga: 1, Stage: "deep", Pass: "events_actions", PromptKey: "stages.questions.pass", PromptCID: "abc", Temperature: &temp})

	if call.ID == "" || call.LatencyMs != 1500 || call.InputTokens != 120 {
		t.Errorf("call = %+v", call)
	}
	if call.Error != "boom" || call.Pass != "events_actions" || *call.Temperature != 0.3 {
		t.Errorf("call = %+v", call)
	}
}

func TestSinkAndStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls", "llm_calls.jsonl")
	sink := NewSink(SinkConfig{Path: path, BatchSize: 100, FlushInterval: time.Hour})
	sink.Start(context.Background())
	rec := NewRecorder(sink)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"stages.questions.standard", "stages.questions.pass", "stages.questions.pass"} {
		rec.RecordCall(&Call{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Book:      "bala",
			Sarga:     1,
			PromptKey: key,
			Success:   i != 2,
		})
	}
	rec.RecordCall(&Call{ID: "z", Timestamp: base, Book: "ayodhya", Sarga: 2, PromptKey: "stages.summary.user", Success: true})

	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	store := NewStore(path)
	all, err := store.List(QueryFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("List() returned %d calls, want 4", len(all))
	}
	if all[0].ID != "c" {
		t.Errorf("newest first: got %s", all[0].ID)
	}

	failed := false
	got, _ := store.List(QueryFilter{Book: "bala", Success: &failed})
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("failed bala calls = %+v", got)
	}

	got, _ = store.List(QueryFilter{Book: "bala", Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("paged = %+v", got)
	}

	counts, err := store.CountByPromptKey("bala")
	if err != nil {
		t.Fatal(err)
	}
	if counts["stages.questions.pass"] != 2 || counts["stages.summary.user"] != 0 {
		t.Errorf("counts = %v", counts)
	}

	call, err := store.Get("z")
	if err != nil || call.Book != "ayodhya" {
		t.Errorf("Get() = %+v, %v", call, err)
	}
	if _, err := store.Get("missing"); err == nil {
		t.Error("expected not found")
	}

	sink.Stop()
	sink.Send(&Call{ID: "late"})
	sink.Stop()
}

func TestStop_FlushesPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm_calls.jsonl")
	sink := NewSink(SinkConfig{Path: path, FlushInterval: time.Hour})
	sink.Start(context.Background())
	sink.Send(&Call{ID: "one", Timestamp: time.Now()})
	sink.Stop()

	calls, err := NewStore(path).List(QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 {
		t.Errorf("got %d calls after Stop, want 1", len(calls))
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Record(&providers.ChatResult{}, RecordOptions{})
	NewRecorder(nil).RecordCall(&Call{})
}

func TestStore_MissingFile(t *testing.T) {
	calls, err := NewStore(filepath.Join(t.TempDir(), "none.jsonl")).List(QueryFilter{})
	if err != nil || len(calls) != 0 {
		t.Errorf("List() = %v, %v", calls, err)
	}
}
