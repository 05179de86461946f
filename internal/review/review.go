// Package review stages generated rows where a human can approve or reject
// them before import. Rows are appended as pending and only approved rows
// are read back.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Status is the review state of a staged row.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus accepts a status in any case. Blank means pending.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusPending, nil
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown review status %q", s)
}

// SummaryRowID is the row id of a chapter's summary row.
const SummaryRowID = "summary"

// ErrRowNotFound is returned by SetStatus for an unknown row.
var ErrRowNotFound = errors.New("review row not found")

// Surface is a place generated rows are staged for review.
type Surface interface {
	// AppendQuestions stages questions as pending rows. Rows already staged
	// for the chapter are skipped; the count of new rows is returned.
	AppendQuestions(ctx context.Context, key types.ChapterKey, qs []types.QuestionRecord) (int, error)
	// AppendSummary stages the summary unless one is already staged.
	AppendSummary(ctx context.Context, s *types.ChapterSummary) (bool, error)

	ApprovedQuestions(ctx context.Context, key types.ChapterKey) ([]types.QuestionRecord, error)
	// ApprovedSummary returns nil when the summary is missing or not approved.
	ApprovedSummary(ctx context.Context, key types.ChapterKey) (*types.ChapterSummary, error)

	SetStatus(ctx context.Context, key types.ChapterKey, rowID string, status Status) error
	Close(ctx context.Context) error
}

// RowID is the stable id of a staged question: a prefix of its content hash,
// so staging the same question twice is detected.
func RowID(q *types.QuestionRecord) string {
	return quiz.ContentHash(q.Key(), q.QuestionText)[:16]
}

// Report summarizes one staging run.
type Report struct {
	Chapter          types.ChapterKey `json:"chapter" yaml:"chapter"`
	QuestionsStaged  int              `json:"questions_staged" yaml:"questions_staged"`
	QuestionsSkipped int              `json:"questions_skipped" yaml:"questions_skipped"`
	SummaryStaged    bool             `json:"summary_staged" yaml:"summary_staged"`
	Location         string           `json:"location" yaml:"location"`
}

// Located is implemented by surfaces that can say where a chapter's rows live.
type Located interface {
	Location(key types.ChapterKey) string
}

// Stage appends a chapter's generated output to the surface.
func Stage(ctx context.Context, s Surface, key types.ChapterKey, sum *types.ChapterSummary, qs []types.QuestionRecord) (*Report, error) {
	rep := &Report{Chapter: key}
	if l, ok := s.(Located); ok {
		rep.Location = l.Location(key)
	}

	n, err := s.AppendQuestions(ctx, key, qs)
	if err != nil {
		return rep, fmt.Errorf("stage questions: %w", err)
	}
	rep.QuestionsStaged = n
	rep.QuestionsSkipped = len(qs) - n

	if sum != nil {
		ok, err := s.AppendSummary(ctx, sum)
		if err != nil {
			return rep, fmt.Errorf("stage summary: %w", err)
		}
		rep.SummaryStaged = ok
	}
	return rep, nil
}
