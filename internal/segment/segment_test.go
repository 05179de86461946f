package segment

import (
	"errors"
	"testing"

	"github.com/jackzampolin/itihasa/internal/types"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		n    int
		want [][2]int
	}{
		{1, [][2]int{{1, 1}, {2, 1}, {2, 1}}},
		{2, [][2]int{{1, 1}, {2, 2}, {3, 2}}},
		{3, [][2]int{{1, 1}, {2, 2}, {3, 3}}},
		{4, [][2]int{{1, 2}, {3, 4}, {5, 4}}},
		{5, [][2]int{{1, 2}, {3, 4}, {5, 5}}},
		{9, [][2]int{{1, 3}, {4, 6}, {7, 9}}},
		{10, [][2]int{{1, 4}, {5, 8}, {9, 10}}},
	}
	for _, tt := range tests {
		passes, err := Split(tt.n)
		if err != nil {
			t.Fatalf("Split(%d) error = %v", tt.n, err)
		}
		if len(passes) != PassCount {
			t.Fatalf("Split(%d) returned %d passes", tt.n, len(passes))
		}
		for i, p := range passes {
			if p.Start != tt.want[i][0] || p.End != tt.want[i][1] {
				t.Errorf("Split(%d)[%d] = [%d,%d], want %v", tt.n, i, p.Start, p.End, tt.want[i])
			}
		}
	}
}

func TestSplit_CoversRange(t *testing.T) {
	for n := 1; n <= 200; n++ {
		passes, err := Split(n)
		if err != nil {
			t.Fatalf("Split(%d) error = %v", n, err)
		}
		covered := make([]int, n+1)
		next := 1
		for _, p := range passes {
			if p.Empty() {
				continue
			}
			if p.Start != next {
				t.Fatalf("Split(%d): gap or overlap at %d", n, p.Start)
			}
			for v := p.Start; v <= p.End; v++ {
				covered[v]++
			}
			next = p.End + 1
		}
		for v := 1; v <= n; v++ {
			if covered[v] != 1 {
				t.Fatalf("Split(%d): verse %d covered %d times", n, v, covered[v])
			}
		}
	}
}

func TestSplit_Templates(t *testing.T) {
	passes, _ := Split(30)
	want := []struct {
		name     string
		category types.Category
	}{
		{"characters_setting", types.CategoryCharacters},
		{"events_actions", types.CategoryEvents},
		{"themes_philosophy", types.CategoryThemes},
	}
	for i, w := range want {
		if passes[i].Name != w.name || passes[i].Category != w.category {
			t.Errorf("pass %d = %s/%s", i, passes[i].Name, passes[i].Category)
		}
		if passes[i].Focus == "" {
			t.Errorf("pass %d has no focus", i)
		}
	}
}

func TestSplit_NoVerses(t *testing.T) {
	if _, err := Split(0); !errors.Is(err, ErrNoVerses) {
		t.Errorf("Split(0) error = %v, want ErrNoVerses", err)
	}
}

func chapter(n int) *types.ChapterSource {
	src := &types.ChapterSource{EpicID: "ramayana", Book: "bala", Sarga: 1}
	for i := 1; i <= n; i++ {
		src.Verses = append(src.Verses, types.Verse{Number: i, Original: "श्लोक", Translation: "a verse translation long enough"})
	}
	return src
}

func TestSlice(t *testing.T) {
	src := chapter(5)
	passes, _ := Split(5)

	got := Slice(src, passes[1])
	if len(got) != 2 || got[0].Number != 3 || got[1].Number != 4 {
		t.Errorf("Slice(pass 2) = %+v", got)
	}

	if got := Slice(src, types.ThematicPass{Start: 3, End: 2}); got != nil {
		t.Errorf("empty pass should slice to nil, got %+v", got)
	}
	if got := Slice(src, types.ThematicPass{Start: 4, End: 99}); len(got) != 2 {
		t.Errorf("range past the end should clamp, got %d verses", len(got))
	}
}

func TestRequireVerses(t *testing.T) {
	if err := RequireVerses(chapter(1)); err != nil {
		t.Errorf("RequireVerses() error = %v", err)
	}
	empty := &types.ChapterSource{Verses: []types.Verse{{Number: 1, Original: "x"}}}
	if err := RequireVerses(empty); !errors.Is(err, ErrNoVerses) {
		t.Errorf("RequireVerses() error = %v, want ErrNoVerses", err)
	}
}
