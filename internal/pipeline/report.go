package pipeline

import (
	"github.com/jackzampolin/itihasa/internal/generate"
	"github.com/jackzampolin/itihasa/internal/review"
)

// ChapterReport summarizes one chapter run.
type ChapterReport struct {
	Book          string            `json:"book" yaml:"book"`
	Sarga         int               `json:"sarga" yaml:"sarga"`
	Verses        int               `json:"verses" yaml:"verses"`
	Stages        []string          `json:"stages" yaml:"stages"`
	Generation    generate.Report   `json:"generation" yaml:"generation"`
	Summary       bool              `json:"summary" yaml:"summary"`
	Questions     int               `json:"questions" yaml:"questions"`
	HardQuestions int               `json:"hard_questions" yaml:"hard_questions"`
	Files         map[string]string `json:"files,omitempty" yaml:"files,omitempty"`
	Review        *review.Report    `json:"review,omitempty" yaml:"review,omitempty"`
	FailedStage   string            `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error         string            `json:"error,omitempty" yaml:"error,omitempty"`
	Duration      string            `json:"duration" yaml:"duration"`
}

// OK reports whether every enabled stage completed.
func (c *ChapterReport) OK() bool {
	return c.Error == ""
}

// BatchReport aggregates the chapter reports of a batch.
type BatchReport struct {
	Book      string           `json:"book" yaml:"book"`
	From      int              `json:"from" yaml:"from"`
	To        int              `json:"to" yaml:"to"`
	Succeeded int              `json:"succeeded" yaml:"succeeded"`
	Failed    int              `json:"failed" yaml:"failed"`
	Questions int              `json:"questions" yaml:"questions"`
	Chapters  []*ChapterReport `json:"chapters" yaml:"chapters"`
}

func (b *BatchReport) add(c *ChapterReport, err error) {
	b.Chapters = append(b.Chapters, c)
	if err != nil {
		b.Failed++
		return
	}
	b.Succeeded++
	b.Questions += c.Questions + c.HardQuestions
}
