package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	supabase "github.com/supabase-community/supabase-go"

	"github.com/jackzampolin/itihasa/internal/types"
)

// SupabaseConfig configures a SupabaseStore.
type SupabaseConfig struct {
	URL    string
	Key    string // service role key; imports bypass row level security
	Logger *slog.Logger
}

// SupabaseStore talks to a hosted database through its REST interface.
// It needs no direct database connection.
type SupabaseStore struct {
	client *supabase.Client
	logger *slog.Logger
}

// OpenSupabase creates the REST client.
func OpenSupabase(cfg SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, fmt.Errorf("supabase store requires a URL and key")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseStore{client: client, logger: logger}, nil
}

// InsertQuestion writes one question.
func (s *SupabaseStore) InsertQuestion(ctx context.Context, batchID string, q *types.QuestionRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	row := NewQuestionModel(batchID, q)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	_, _, err := s.client.From("questions").Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		return "", restError(err)
	}
	return row.ID, nil
}

// InsertSummary writes the chapter summary.
func (s *SupabaseStore) InsertSummary(ctx context.Context, sum *types.ChapterSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.client.From("chapter_summaries").Insert(NewSummaryModel(sum), false, "", "minimal", "").Execute()
	return restError(err)
}

// CountQuestions counts the chapter's questions with an exact count request.
func (s *SupabaseStore) CountQuestions(ctx context.Context, key types.ChapterKey) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_, count, err := s.client.From("questions").
		Select("id", "exact", true).
		Eq("epic_id", key.EpicID).
		Eq("kanda", key.Book).
		Eq("sarga", strconv.Itoa(key.Sarga)).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", restError(err))
	}
	return int(count), nil
}

// ListQuestions returns questions matching the filter. Random order is
// applied client side since the REST interface has no random ordering.
func (s *SupabaseStore) ListQuestions(ctx context.Context, f QuestionFilter) ([]types.QuestionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.client.From("questions").Select("*", "", false)
	if f.EpicID != "" {
		q = q.Eq("epic_id", f.EpicID)
	}
	if f.Book != "" {
		q = q.Eq("kanda", f.Book)
	}
	if f.Sarga != 0 {
		q = q.Eq("sarga", strconv.Itoa(f.Sarga))
	}
	if f.Category != "" {
		q = q.Eq("category", string(f.Category))
	}
	if f.Difficulty != "" {
		q = q.Eq("difficulty", string(f.Difficulty))
	}
	if !f.Random && f.Limit > 0 {
		q = q.Limit(f.Limit, "")
	}

	var rows []QuestionModel
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", restError(err))
	}
	out := make([]types.QuestionRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].Record()
	}
	return pick(out, f), nil
}

// GetQuestion returns one question by id.
func (s *SupabaseStore) GetQuestion(ctx context.Context, id string) (*types.QuestionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var rows []QuestionModel
	if _, err := s.client.From("questions").Select("*", "", false).Eq("id", id).ExecuteTo(&rows); err != nil {
		return nil, restError(err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	rec := rows[0].Record()
	return &rec, nil
}

// GetSummary returns the chapter summary.
func (s *SupabaseStore) GetSummary(ctx context.Context, key types.ChapterKey) (*types.ChapterSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []SummaryModel
	_, err := s.client.From("chapter_summaries").
		Select("*", "", false).
		Eq("epic_id", key.EpicID).
		Eq("kanda", key.Book).
		Eq("sarga", strconv.Itoa(key.Sarga)).
		ExecuteTo(&rows)
	if err != nil {
		return nil, restError(err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	sum := rows[0].Summary()
	return &sum, nil
}

// MergeDuplicate folds dropID into keepID. The REST interface has no
// transactions, so the keep row is updated before the drop row is deleted.
func (s *SupabaseStore) MergeDuplicate(ctx context.Context, keepID, dropID string) error {
	keep, err := s.GetQuestion(ctx, keepID)
	if err != nil {
		return err
	}
	drop, err := s.GetQuestion(ctx, dropID)
	if err != nil {
		return err
	}

	update := map[string]any{
		"tags":            nonNil(MergeTags(keep.Tags, drop.Tags)),
		"cross_epic_tags": nonNil(MergeTags(keep.CrossEpicTags, drop.CrossEpicTags)),
	}
	if _, _, err := s.client.From("questions").Update(update, "minimal", "").Eq("id", keepID).Execute(); err != nil {
		return fmt.Errorf("failed to update %s: %w", keepID, restError(err))
	}
	if _, _, err := s.client.From("questions").Delete("minimal", "").Eq("id", dropID).Execute(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dropID, restError(err))
	}
	return nil
}

// Ping issues a one-row select.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.client.From("questions").Select("id", "", false).Limit(1, "").Execute()
	return restError(err)
}

// Close is a no-op; the REST client holds no connections open.
func (s *SupabaseStore) Close() error {
	return nil
}

// restError maps PostgREST unique violations to ErrDuplicate.
func restError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), uniqueViolation) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

var _ Store = (*SupabaseStore)(nil)
