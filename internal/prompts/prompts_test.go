package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/itihasa/internal/types"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain", "{{.Name}} has {{ .Count }} items in {{.Book.Title}} ({{.Name}})", []string{"Book.Title", "Count", "Name"}},
		{"trim markers", "{{- .Chapter.Book -}} / {{- if .Pass }}{{ .Pass.Start }}{{ end }}", []string{"Chapter.Book", "Pass", "Pass.Start"}},
		{"range rebinds dot", "{{range .Chapter.Verses}}[{{.Number}}] {{$.Theme.Name}}{{end}}", []string{"Chapter.Verses", "Chapter.Verses.Number", "Theme.Name"}},
		{"else keeps outer dot", "{{with .Pass}}{{.End}}{{else}}{{.Chapter.TotalVerses}}{{end}}", []string{"Chapter.TotalVerses", "Pass", "Pass.End"}},
		{"define blocks", `{{define "x"}}{{.Chapter.Sarga}}{{end}}{{template "x" .}}`, []string{"Chapter.Sarga"}},
		{"no fields", "static text", nil},
		{"unparsable", "{{.Name", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractVariables(tt.text)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ExtractVariables() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChapterPartial_Variables(t *testing.T) {
	r := NewResolver(nil)
	p, ok := r.GetEmbedded(ChapterPartialKey)
	if !ok {
		t.Fatal("chapter partial not registered")
	}
	vars := strings.Join(p.Variables, ",")
	for _, want := range []string{"Chapter.Book", "Chapter.Verses.Number", "Chapter.Verses.Translation", "Pass.Start"} {
		if !strings.Contains(vars, want) {
			t.Errorf("variables %v missing %s", p.Variables, want)
		}
	}
}

func TestResolver_Render(t *testing.T) {
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "test.greeting", Text: "Namaste {{.Name}}"})

	out, err := r.Render("test.greeting", struct{ Name string }{"Rama"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.Text != "Namaste Rama" {
		t.Errorf("Text = %q", out.Text)
	}
	if out.CID != HashText("Namaste {{.Name}}") {
		t.Error("CID should be the hash of the template text")
	}

	if _, err := r.Render("test.missing", nil); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestResolver_Partials(t *testing.T) {
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "test.partials", Text: `{{define "bye"}}Bye {{.Name}}{{end}}`, Partial: true})
	r.Register(EmbeddedPrompt{Key: "test.main", Text: `Hi. {{template "bye" .}}`})

	out, err := r.Render("test.main", struct{ Name string }{"Sita"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.Text != "Hi. Bye Sita" {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestResolver_Overrides(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "test.greeting", Text: "Namaste {{.Name}}"})

	if n, err := r.LoadOverrides(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Fatalf("missing dir: n=%d err=%v", n, err)
	}

	os.WriteFile(filepath.Join(dir, "test.greeting.tmpl"), []byte("Pranam {{.Name}}"), 0o644)
	os.WriteFile(filepath.Join(dir, "test.unknown.tmpl"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	n, err := r.LoadOverrides(dir)
	if err != nil {
		t.Fatalf("LoadOverrides() error = %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d overrides, want 1", n)
	}

	resolved, err := r.Resolve("test.greeting")
	if err != nil {
		t.Fatal(err)
	}
	if !resolved.IsOverride {
		t.Error("expected override")
	}

	out, err := r.Render("test.greeting", struct{ Name string }{"Hanuman"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "Pranam Hanuman" {
		t.Errorf("Text = %q", out.Text)
	}
	if out.CID != HashText("Pranam {{.Name}}") {
		t.Error("CID should track the override text")
	}
}

func TestResolver_BadOverride(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "test.greeting", Text: "ok"})
	os.WriteFile(filepath.Join(dir, "test.greeting.tmpl"), []byte("{{.Name"), 0o644)

	if _, err := r.LoadOverrides(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestResolver_OverrideCallsUndefinedTemplate(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "test.user", Text: `{{template "chapter" .}}`})
	r.Register(EmbeddedPrompt{Key: "test.system", Text: "be terse"})
	os.WriteFile(filepath.Join(dir, "test.system.tmpl"), []byte("be brief"), 0o644)
	os.WriteFile(filepath.Join(dir, "test.user.tmpl"), []byte(`{{template "chaptr" .}}`), 0o644)

	_, err := r.LoadOverrides(dir)
	if err == nil || !strings.Contains(err.Error(), "chaptr") {
		t.Fatalf("LoadOverrides() error = %v, want undefined template chaptr", err)
	}
	if p, _ := r.Resolve("test.system"); p.IsOverride {
		t.Error("no override should apply when one is invalid")
	}

	// A call to the shared chapter block or one defined in the same file is fine.
	os.WriteFile(filepath.Join(dir, "test.user.tmpl"), []byte(`{{define "head"}}x{{end}}{{template "head" .}}{{template "chapter" .}}`), 0o644)
	if n, err := r.LoadOverrides(dir); err != nil || n != 2 {
		t.Errorf("LoadOverrides() = %d, %v, want 2, nil", n, err)
	}
}

func TestAllEmbedded_Sorted(t *testing.T) {
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "b", Text: "b"})
	r.Register(EmbeddedPrompt{Key: "a", Text: "a"})

	all := r.AllEmbedded()
	for i := 1; i < len(all); i++ {
		if all[i-1].Key > all[i].Key {
			t.Fatalf("not sorted: %s > %s", all[i-1].Key, all[i].Key)
		}
	}
}

func TestNewChapterView(t *testing.T) {
	src := &types.ChapterSource{EpicID: "ramayana", Book: "bala", Sarga: 2}
	for i := 1; i <= 50; i++ {
		src.Verses = append(src.Verses, types.Verse{
			Number:      i,
			Original:    strings.Repeat("क", 400),
			Translation: strings.Repeat("a", 600),
		})
	}

	view := NewChapterView(src, src.Verses, Limits{})
	if len(view.Verses) != MaxVerses || !view.Truncated {
		t.Errorf("got %d verses, truncated=%v", len(view.Verses), view.Truncated)
	}
	if n := len([]rune(view.Verses[0].Original)); n != MaxOriginalChars {
		t.Errorf("original truncated to %d runes", n)
	}
	if n := len([]rune(view.Verses[0].Translation)); n != MaxTranslationChars {
		t.Errorf("translation truncated to %d runes", n)
	}
	if view.BookTitle != "Bala Kanda" || view.TotalVerses != 50 {
		t.Errorf("view = %+v", view)
	}
	if src.Verses[0].Original != strings.Repeat("क", 400) {
		t.Error("source verses must not be modified")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("  short  ", 10); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("रामायण", 3); got != "राम" {
		t.Errorf("Truncate() = %q", got)
	}
}
