package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/types"
)

// MemoryStore keeps everything in process. It enforces the same uniqueness
// rules as the database stores and is used by tests and dry runs.
type MemoryStore struct {
	mu        sync.RWMutex
	questions []types.QuestionRecord
	hashes    map[string]string // content hash -> id
	summaries map[types.ChapterKey]types.ChapterSummary

	// FailInserts makes the next N InsertQuestion calls fail with InsertErr.
	FailInserts int
	InsertErr   error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hashes:    map[string]string{},
		summaries: map[types.ChapterKey]types.ChapterSummary{},
	}
}

func (s *MemoryStore) InsertQuestion(ctx context.Context, batchID string, q *types.QuestionRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInserts > 0 {
		s.FailInserts--
		return "", s.InsertErr
	}

	hash := quiz.ContentHash(q.Key(), q.QuestionText)
	if _, ok := s.hashes[hash]; ok {
		return "", ErrDuplicate
	}
	rec := *q
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Options = append([]string(nil), q.Options...)
	s.questions = append(s.questions, rec)
	s.hashes[hash] = rec.ID
	return rec.ID, nil
}

func (s *MemoryStore) InsertSummary(ctx context.Context, sum *types.ChapterSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sum.Key()
	if _, ok := s.summaries[key]; ok {
		return ErrDuplicate
	}
	s.summaries[key] = *sum
	return nil
}

func (s *MemoryStore) CountQuestions(ctx context.Context, key types.ChapterKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.questions {
		if s.questions[i].Key() == key {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListQuestions(ctx context.Context, f QuestionFilter) ([]types.QuestionRecord, error) {
	s.mu.RLock()
	var out []types.QuestionRecord
	for i := range s.questions {
		if f.Match(&s.questions[i]) {
			out = append(out, s.questions[i])
		}
	}
	s.mu.RUnlock()
	return pick(out, f), nil
}

func (s *MemoryStore) GetQuestion(ctx context.Context, id string) (*types.QuestionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.questions {
		if s.questions[i].ID == id {
			q := s.questions[i]
			return &q, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetSummary(ctx context.Context, key types.ChapterKey) (*types.ChapterSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &sum, nil
}

func (s *MemoryStore) MergeDuplicate(ctx context.Context, keepID, dropID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep, drop := -1, -1
	for i := range s.questions {
		switch s.questions[i].ID {
		case keepID:
			keep = i
		case dropID:
			drop = i
		}
	}
	if keep < 0 || drop < 0 {
		return ErrNotFound
	}

	k, d := &s.questions[keep], s.questions[drop]
	k.Tags = MergeTags(k.Tags, d.Tags)
	k.CrossEpicTags = MergeTags(k.CrossEpicTags, d.CrossEpicTags)

	if h := quiz.ContentHash(d.Key(), d.QuestionText); s.hashes[h] == d.ID {
		delete(s.hashes, h)
	}
	s.questions = append(s.questions[:drop], s.questions[drop+1:]...)
	return nil
}

// Insert adds a record without the duplicate check. Tests use it to seed
// the near-duplicates that older imports could produce.
func (s *MemoryStore) Insert(q types.QuestionRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	s.questions = append(s.questions, q)
	return q.ID
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
