// Package store persists imported quiz content in the backend database.
// Records are append-only: nothing here updates a question in place except
// MergeDuplicate, which folds one record into another and deletes it.
package store

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/jackzampolin/itihasa/internal/types"
)

var (
	// ErrDuplicate is returned when a record with the same content hash
	// (or, for summaries, the same chapter) already exists.
	ErrDuplicate = errors.New("record already exists")

	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("record not found")
)

// Store is the backend store of questions and chapter summaries.
type Store interface {
	// InsertQuestion writes one question and returns its id.
	InsertQuestion(ctx context.Context, batchID string, q *types.QuestionRecord) (string, error)
	InsertSummary(ctx context.Context, s *types.ChapterSummary) error

	CountQuestions(ctx context.Context, key types.ChapterKey) (int, error)
	ListQuestions(ctx context.Context, f QuestionFilter) ([]types.QuestionRecord, error)
	GetQuestion(ctx context.Context, id string) (*types.QuestionRecord, error)
	GetSummary(ctx context.Context, key types.ChapterKey) (*types.ChapterSummary, error)

	// MergeDuplicate folds the tags of dropID into keepID and deletes dropID.
	MergeDuplicate(ctx context.Context, keepID, dropID string) error

	Ping(ctx context.Context) error
	Close() error
}

// QuestionFilter narrows ListQuestions. Zero fields match everything.
type QuestionFilter struct {
	EpicID     string
	Book       string
	Sarga      int
	Category   types.Category
	Difficulty types.Difficulty
	Limit      int
	Random     bool // random order instead of insertion order
}

// ForChapter returns a filter matching every question of a chapter.
func ForChapter(key types.ChapterKey) QuestionFilter {
	return QuestionFilter{EpicID: key.EpicID, Book: key.Book, Sarga: key.Sarga}
}

// Match reports whether q passes the filter's field constraints.
func (f QuestionFilter) Match(q *types.QuestionRecord) bool {
	switch {
	case f.EpicID != "" && q.EpicID != f.EpicID:
		return false
	case f.Book != "" && q.Book != f.Book:
		return false
	case f.Sarga != 0 && q.Sarga != f.Sarga:
		return false
	case f.Category != "" && q.Category != f.Category:
		return false
	case f.Difficulty != "" && q.Difficulty != f.Difficulty:
		return false
	}
	return true
}

// pick applies the ordering and limit of f to already filtered records.
func pick(records []types.QuestionRecord, f QuestionFilter) []types.QuestionRecord {
	if f.Random {
		rand.Shuffle(len(records), func(i, j int) {
			records[i], records[j] = records[j], records[i]
		})
	}
	if f.Limit > 0 && len(records) > f.Limit {
		records = records[:f.Limit]
	}
	return records
}

// MergeTags returns the union of a and b, keeping first-seen order.
func MergeTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
