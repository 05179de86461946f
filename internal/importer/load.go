package importer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/review"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Sources of an import.
const (
	SourceFiles  = "files"
	SourceReview = "review"
)

// FromFiles reads a chapter's generator output: the questions and hard
// questions files plus the summary file. Missing files are skipped; an
// input with nothing at all is an error.
func FromFiles(h *home.Dir, key types.ChapterKey) (Input, error) {
	in := Input{Chapter: key, Source: SourceFiles}
	found := 0

	for _, kind := range []home.Kind{home.KindQuestions, home.KindHardQuestions} {
		path := h.ChapterFile(key.Book, key.Sarga, kind)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return in, err
		}
		found++
		qs, itemErrs, err := quiz.DecodeList(data)
		if err != nil {
			return in, fmt.Errorf("%s: %w", path, err)
		}
		in.Questions = append(in.Questions, qs...)
		in.DecodeErrors = append(in.DecodeErrors, itemErrs...)
	}

	path := h.ChapterFile(key.Book, key.Sarga, home.KindSummary)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return in, err
	default:
		found++
		raw, err := quiz.DecodeSummary(data)
		if err != nil {
			return in, fmt.Errorf("%s: %w", path, err)
		}
		sum := quiz.NormalizeSummary(raw, key, "")
		in.Summary = &sum
	}

	if found == 0 {
		return in, fmt.Errorf("no generated output for %s in %s", key, h.DataPath())
	}
	return in, nil
}

// FromReview reads the approved rows of a chapter from a review surface.
func FromReview(ctx context.Context, s review.Surface, key types.ChapterKey) (Input, error) {
	in := Input{Chapter: key, Source: SourceReview}

	qs, err := s.ApprovedQuestions(ctx, key)
	if err != nil {
		return in, err
	}
	for i := range qs {
		in.Questions = append(in.Questions, quiz.FromRecord(&qs[i]))
	}

	sum, err := s.ApprovedSummary(ctx, key)
	if err != nil {
		return in, err
	}
	in.Summary = sum
	return in, nil
}
