package themes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/itihasa/internal/types"
)

func TestLoad_Missing(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "themes.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Version != CurrentVersion || len(f.Chapters) != 0 {
		t.Errorf("got %+v", f)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes.toml")
	doc := `version = 3

[chapters.bala_1]
title = "Narada's narration"
focus = "the qualities of the ideal man"
hard_prompts = ["Why does Valmiki ask about a single ideal man?"]

[chapters.bala_2]
title = "The curse of the krauncha bird"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Version != 3 {
		t.Errorf("Version = %d", f.Version)
	}

	theme, ok := f.Lookup("bala", 1)
	if !ok {
		t.Fatal("expected configured theme")
	}
	if theme.Focus != "the qualities of the ideal man" || len(theme.HardPrompts) != 1 {
		t.Errorf("theme = %+v", theme)
	}

	theme, ok = f.Lookup("bala", 2)
	if !ok || len(theme.HardPrompts) == 0 {
		t.Errorf("entry without hard prompts should inherit generic ones: %+v", theme)
	}

	theme, ok = f.Lookup("bala", 9)
	if ok {
		t.Error("bala_9 should not be configured")
	}
	if !strings.Contains(theme.Title, "Bala Kanda") {
		t.Errorf("generic title = %q", theme.Title)
	}
}

func TestWith_DoesNotMutate(t *testing.T) {
	f := New()
	next := f.With("ayodhya", 4, Theme{Title: "t"})

	if len(f.Chapters) != 0 {
		t.Error("original table was modified")
	}
	if next.Version != f.Version+1 {
		t.Errorf("Version = %d", next.Version)
	}
	if _, ok := next.Lookup("ayodhya", 4); !ok {
		t.Error("new entry missing")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes.toml")
	src := &types.ChapterSource{
		EpicID: "ramayana",
		Book:   "sundara",
		Sarga:  1,
		Verses: []types.Verse{{Number: 1, Original: "ततो रावणनीतायाः", Translation: "Hanuman then resolved to search for Sita. He leapt."}},
	}

	auto := AutoConfigure(src)
	if !auto.Generated {
		t.Error("auto theme should be marked generated")
	}
	if !strings.Contains(auto.Focus, "Hanuman then resolved") {
		t.Errorf("Focus = %q", auto.Focus)
	}

	if err := Save(path, New().With("sundara", 1, auto)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, ok := loaded.Lookup("sundara", 1)
	if !ok || got.Focus != auto.Focus || len(got.HardPrompts) != len(auto.HardPrompts) {
		t.Errorf("round trip = %+v, want %+v", got, auto)
	}
	if keys := loaded.Keys(); len(keys) != 1 || keys[0] != "sundara_1" {
		t.Errorf("Keys() = %v", keys)
	}
}
