package importer

import (
	"fmt"

	"github.com/jackzampolin/itihasa/internal/types"
)

// ImportError reports one record that could not be imported. The batch
// continues past it.
type ImportError struct {
	Index        int
	QuestionText string
	Attempts     uint
	Err          error
}

func (e *ImportError) Error() string {
	text := e.QuestionText
	if r := []rune(text); len(r) > 60 {
		text = string(r[:60]) + "..."
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("record %d (%q) failed after %d attempts: %v", e.Index, text, e.Attempts, e.Err)
	}
	return fmt.Sprintf("record %d (%q): %v", e.Index, text, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// VerificationWarning reports a post-import count that does not match the
// expected count. It is a warning: nothing is rolled back.
type VerificationWarning struct {
	Chapter  types.ChapterKey `json:"chapter" yaml:"chapter"`
	Expected int              `json:"expected" yaml:"expected"`
	Actual   int              `json:"actual" yaml:"actual"`
}

func (w *VerificationWarning) String() string {
	return fmt.Sprintf("%s: expected %d questions after import, found %d", w.Chapter, w.Expected, w.Actual)
}
