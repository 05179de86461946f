// Package cleanup finds and merges near-duplicate questions that repeated
// imports left behind.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/store"
	"github.com/jackzampolin/itihasa/internal/types"
)

// DefaultThreshold is the similarity at or above which two questions are
// treated as the same question.
const DefaultThreshold = 0.9

// Pair is a near-duplicate pair. Keep is the earlier record.
type Pair struct {
	Chapter    types.ChapterKey `json:"chapter" yaml:"chapter"`
	KeepID     string           `json:"keep_id" yaml:"keep_id"`
	DropID     string           `json:"drop_id" yaml:"drop_id"`
	KeepText   string           `json:"keep_text" yaml:"keep_text"`
	DropText   string           `json:"drop_text" yaml:"drop_text"`
	Similarity float64          `json:"similarity" yaml:"similarity"`
}

// Similarity is 1 minus the edit distance over the longer length, computed
// on normalized text. Two empty strings are identical.
func Similarity(a, b string) float64 {
	a, b = quiz.NormalizeText(a), quiz.NormalizeText(b)
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// FindNearDuplicates compares questions within each chapter and returns the
// pairs at or above threshold. A record already marked for dropping is not
// compared again, so each drop appears once.
func FindNearDuplicates(questions []types.QuestionRecord, threshold float64) []Pair {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	byChapter := map[types.ChapterKey][]int{}
	var keys []types.ChapterKey
	for i := range questions {
		k := questions[i].Key()
		if _, ok := byChapter[k]; !ok {
			keys = append(keys, k)
		}
		byChapter[k] = append(byChapter[k], i)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var pairs []Pair
	for _, k := range keys {
		idx := byChapter[k]
		dropped := map[int]bool{}
		for a := 0; a < len(idx); a++ {
			if dropped[a] {
				continue
			}
			qa := &questions[idx[a]]
			for b := a + 1; b < len(idx); b++ {
				if dropped[b] {
					continue
				}
				qb := &questions[idx[b]]
				sim := Similarity(qa.QuestionText, qb.QuestionText)
				if sim < threshold {
					continue
				}
				dropped[b] = true
				pairs = append(pairs, Pair{
					Chapter:    k,
					KeepID:     qa.ID,
					DropID:     qb.ID,
					KeepText:   qa.QuestionText,
					DropText:   qb.QuestionText,
					Similarity: sim,
				})
			}
		}
	}
	return pairs
}

// Options configures a cleanup run.
type Options struct {
	EpicID    string
	Book      string // empty scans every book
	Threshold float64
	DryRun    bool
	Logger    *slog.Logger
}

// Report summarizes a cleanup run.
type Report struct {
	Scanned int      `json:"scanned" yaml:"scanned"`
	Pairs   []Pair   `json:"pairs" yaml:"pairs"`
	Merged  int      `json:"merged" yaml:"merged"`
	DryRun  bool     `json:"dry_run" yaml:"dry_run"`
	Errors  []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Run scans the store and merges every near-duplicate pair unless DryRun.
// A failed merge is reported and the run continues.
func Run(ctx context.Context, s store.Store, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qs, err := s.ListQuestions(ctx, store.QuestionFilter{EpicID: opts.EpicID, Book: opts.Book})
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	rep := &Report{Scanned: len(qs), DryRun: opts.DryRun}
	rep.Pairs = FindNearDuplicates(qs, opts.Threshold)
	logger.Info("near-duplicate scan complete", "scanned", rep.Scanned, "pairs", len(rep.Pairs))

	if opts.DryRun {
		return rep, nil
	}
	for _, p := range rep.Pairs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.MergeDuplicate(ctx, p.KeepID, p.DropID); err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("merge %s into %s: %v", p.DropID, p.KeepID, err))
			logger.Error("merge failed", "keep_id", p.KeepID, "drop_id", p.DropID, "error", err)
			continue
		}
		rep.Merged++
		logger.Debug("merged duplicate", "keep_id", p.KeepID, "drop_id", p.DropID, "similarity", p.Similarity)
	}
	return rep, nil
}
