package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/itihasa/internal/segment"
)

// chapterPage has 21 raw text lines and three well-formed verses.
const chapterPage = `<html><head>
<title>Bala Kanda - Sarga 1</title>
<style>p { color: red; }</style>
<script>var verses = "1. not a verse";</script>
</head><body>
<!-- 9. commented out verse -->
<h3>Bala Kanda</h3>
<p>Sarga 1</p>
<p>Introduction to the chapter</p>
<p>1. तपःस्वाध्यायनिरतं तपस्वी वाग्विदां वरम् ।</p>
<p>नारदं परिपप्रच्छ वाल्मीकिर्मुनिपुङ्गवम् ॥</p>
<p>The ascetic Valmiki asked Narada, who was devoted to penance and study,</p>
<p>eminent among the eloquent and foremost among sages.</p>
<p>2) को न्वस्मिन् साम्प्रतं लोके गुणवान् कश्च वीर्यवान् ।</p>
<p>short line</p>
<p>Who in this world today is endowed with good qualities and valour?</p>
<p>3: धर्मज्ञश्च कृतज्ञश्च सत्यवाक्यो दृढव्रतः ॥</p>
<p>Who knows dharma, is grateful, truthful and firm in his vows?</p>
<p>4. A numbered line with only translation text in it</p>
<p>Footer text</p>
<p>Copyright notice</p>
</body></html>`

const framePage = `<html><frameset cols="20%,80%">
<frame name="nav" src="nav.htm">
<frame name="main" src="bala_1_text.htm">
</frameset></html>`

func TestExtractVerses(t *testing.T) {
	text := strings.Join([]string{
		"heading",
		"1. रामो विग्रहवान् धर्मः",
		"Rama is righteousness incarnate, this translation is long.",
		"2 - सीता",
		"tiny",
		"3| no original script in this numbered line at all",
		"4. कौसल्या",
		"Kausalya rejoiced at the birth of her son Rama.",
		"and she gave gifts to the brahmanas of the city.",
	}, "\n")

	verses := ExtractVerses(text)
	if len(verses) != 2 {
		t.Fatalf("got %d verses, want 2: %+v", len(verses), verses)
	}
	if verses[0].Number != 1 || verses[1].Number != 4 {
		t.Errorf("numbers = %d, %d", verses[0].Number, verses[1].Number)
	}
	if !strings.HasSuffix(verses[1].Translation, "city.") || !strings.HasPrefix(verses[1].Translation, "Kausalya") {
		t.Errorf("translation lines not joined: %q", verses[1].Translation)
	}
}

func TestFetch(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/utf8/baala/sarga1/bala_1_frame.htm":
			w.Write([]byte(framePage))
		case "/utf8/baala/sarga1/bala_1_text.htm":
			w.Write([]byte(chapterPage))
		case "/utf8/ayodhya/sarga2/ayodhya_2_frame.htm":
			w.Write([]byte(chapterPage))
		case "/utf8/ayodhya/sarga3/ayodhya_3_frame.htm":
			w.Write([]byte("<html><body><p>nothing here</p></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := New(Config{BaseURL: server.URL, RetryWait: time.Millisecond})

	t.Run("frameset is followed", func(t *testing.T) {
		src, err := f.Fetch(context.Background(), "bala", 1)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(src.Verses) != 3 {
			t.Fatalf("got %d verses, want 3: %+v", len(src.Verses), src.Verses)
		}
		if !strings.HasSuffix(src.SourceURL, "bala_1_text.htm") {
			t.Errorf("SourceURL = %s", src.SourceURL)
		}
		if !strings.Contains(src.Verses[0].Original, "नारदं") {
			t.Errorf("original lines not joined: %q", src.Verses[0].Original)
		}
		if strings.Contains(src.Verses[1].Translation, "short line") {
			t.Error("short lines should be ignored")
		}
		if src.EpicID != "ramayana" || src.ExtractedAt.IsZero() {
			t.Errorf("metadata = %+v", src)
		}

		passes, err := segment.Split(len(src.Verses))
		if err != nil {
			t.Fatal(err)
		}
		for i, p := range passes {
			if p.Start != i+1 || p.End != i+1 {
				t.Errorf("pass %d = [%d,%d]", i, p.Start, p.End)
			}
		}
	})

	t.Run("plain page", func(t *testing.T) {
		src, err := f.Fetch(context.Background(), "ayodhya", 2)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(src.Verses) != 3 {
			t.Errorf("got %d verses", len(src.Verses))
		}
	})

	t.Run("zero verses is not an error", func(t *testing.T) {
		src, err := f.Fetch(context.Background(), "ayodhya", 3)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(src.Verses) != 0 {
			t.Errorf("got %d verses", len(src.Verses))
		}
		if !errors.Is(segment.RequireVerses(src), segment.ErrNoVerses) {
			t.Error("RequireVerses should reject an empty chapter")
		}
	})

	t.Run("404 is a FetchError", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "uttara", 5)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FetchError, got %v", err)
		}
		if fe.StatusCode != http.StatusNotFound || fe.Sarga != 5 {
			t.Errorf("FetchError = %+v", fe)
		}
	})

	t.Run("unknown book", func(t *testing.T) {
		var fe *FetchError
		if _, err := f.Fetch(context.Background(), "mahabharata", 1); !errors.As(err, &fe) {
			t.Errorf("expected FetchError, got %v", err)
		}
	})
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(chapterPage))
	}))
	defer server.Close()

	f := New(Config{BaseURL: server.URL, Retries: 2, RetryWait: time.Millisecond})
	src, err := f.Fetch(context.Background(), "bala", 1)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(src.Verses) != 3 || hits.Load() != 2 {
		t.Errorf("verses=%d hits=%d", len(src.Verses), hits.Load())
	}
}

func TestChapterURL(t *testing.T) {
	got, err := ChapterURL("https://www.valmikiramayan.net/", "utf8", "kishkindha", 12)
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://www.valmikiramayan.net/utf8/kish/sarga12/kish_12_frame.htm" {
		t.Errorf("ChapterURL() = %s", got)
	}
	if _, err := ChapterURL("https://x", "utf8", "bala", 0); err == nil {
		t.Error("expected error for sarga 0")
	}
}

func TestStoreAndLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chapterPage))
	}))
	defer server.Close()

	src, err := New(Config{BaseURL: server.URL}).Fetch(context.Background(), "bala", 1)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path, err := Store(dir, src)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if filepath.Base(path) != "bala_sarga_1_verses.json" {
		t.Errorf("path = %s", path)
	}

	loaded, err := LoadChapter(path)
	if err != nil {
		t.Fatalf("LoadChapter() error = %v", err)
	}
	if len(loaded.Verses) != 3 || loaded.Key() != src.Key() {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestNormalizeSpace(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Rama   goes\tto the forest ", "Rama goes to the forest"},
		{"Sita\u00a0and\u00a0\u00a0Rama", "Sita and Rama"},
		{"line\none\r\ntwo", "line one two"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeSpace(tt.in); got != tt.want {
			t.Errorf("normalizeSpace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
