// Package segment splits a chapter's verses into thematic passes so that each
// generation request stays within the provider's input budget.
package segment

import (
	"errors"

	"github.com/jackzampolin/itihasa/internal/types"
)

// PassCount is the number of passes every chapter is split into.
const PassCount = 3

// ErrNoVerses is returned when a chapter has no usable verses.
var ErrNoVerses = errors.New("chapter has no usable verses")

type template struct {
	name     string
	focus    string
	category types.Category
}

var templates = [PassCount]template{
	{"characters_setting", "who appears, their relationships, and where the scene takes place", types.CategoryCharacters},
	{"events_actions", "what happens, in what order, and who acts", types.CategoryEvents},
	{"themes_philosophy", "dharma, moral teaching, and the cultural practices shown", types.CategoryThemes},
}

// Split divides n verses into exactly three contiguous, non-overlapping
// passes whose union is [1, n]. The first two passes hold ceil(n/3) verses
// each and the third takes the rest. For small n a trailing pass may be
// empty (Start > End); it is kept so pass positions stay stable.
func Split(n int) ([]types.ThematicPass, error) {
	if n < 1 {
		return nil, ErrNoVerses
	}

	size := (n + PassCount - 1) / PassCount
	passes := make([]types.ThematicPass, PassCount)
	start := 1
	for i, t := range templates {
		end := start + size - 1
		if i == PassCount-1 || end > n {
			end = n
		}
		passes[i] = types.ThematicPass{
			Name:     t.name,
			Start:    start,
			End:      end,
			Focus:    t.focus,
			Category: t.category,
		}
		if end >= start {
			start = end + 1
		}
	}
	return passes, nil
}

// Slice returns the verses of src covered by pass. Verses are addressed by
// position, so a chapter whose numbering has gaps is still fully covered.
func Slice(src *types.ChapterSource, pass types.ThematicPass) []types.Verse {
	if pass.Empty() || pass.Start > len(src.Verses) {
		return nil
	}
	end := pass.End
	if end > len(src.Verses) {
		end = len(src.Verses)
	}
	return src.Verses[pass.Start-1 : end]
}

// RequireVerses returns ErrNoVerses when src has no usable verse.
func RequireVerses(src *types.ChapterSource) error {
	for _, v := range src.Verses {
		if v.Usable() {
			return nil
		}
	}
	return ErrNoVerses
}
