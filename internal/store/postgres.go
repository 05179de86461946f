package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/jackzampolin/itihasa/internal/types"
)

const uniqueViolation = "23505"

// PostgresConfig configures a PostgresStore.
type PostgresConfig struct {
	DSN             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	Logger          *slog.Logger
}

// PostgresStore writes through bun and reads counts and health through a
// pgx pool over the same database.
type PostgresStore struct {
	pool   *pgxpool.Pool
	db     *bun.DB
	logger *slog.Logger
}

// OpenPostgres connects to the database and verifies the connection.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres store requires a DSN")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return &PostgresStore{
		pool:   pool,
		db:     bun.NewDB(sqldb, pgdialect.New()),
		logger: logger,
	}, nil
}

// CreateSchema creates the tables and indexes when missing. Intended for
// development databases; production schemas are managed elsewhere.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	for _, model := range []any{(*QuestionModel)(nil), (*SummaryModel)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_questions_chapter ON questions(epic_id, kanda, sarga);",
		"CREATE INDEX IF NOT EXISTS idx_questions_category ON questions(category, difficulty);",
	}
	for _, idx := range indexes {
		if _, err := s.pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	s.logger.Info("schema ready")
	return nil
}

// InsertQuestion writes one question. A content hash collision returns ErrDuplicate.
func (s *PostgresStore) InsertQuestion(ctx context.Context, batchID string, q *types.QuestionRecord) (string, error) {
	row := NewQuestionModel(batchID, q)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", mapError(err)
	}
	return row.ID, nil
}

// InsertSummary writes the chapter summary. A second summary for the same
// chapter returns ErrDuplicate.
func (s *PostgresStore) InsertSummary(ctx context.Context, sum *types.ChapterSummary) error {
	if _, err := s.db.NewInsert().Model(NewSummaryModel(sum)).Exec(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// CountQuestions counts the chapter's questions.
func (s *PostgresStore) CountQuestions(ctx context.Context, key types.ChapterKey) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM questions WHERE epic_id = $1 AND kanda = $2 AND sarga = $3`,
		key.EpicID, key.Book, key.Sarga,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return n, nil
}

// ListQuestions returns questions matching the filter.
func (s *PostgresStore) ListQuestions(ctx context.Context, f QuestionFilter) ([]types.QuestionRecord, error) {
	var rows []QuestionModel
	q := s.db.NewSelect().Model(&rows)
	if f.EpicID != "" {
		q = q.Where("epic_id = ?", f.EpicID)
	}
	if f.Book != "" {
		q = q.Where("kanda = ?", f.Book)
	}
	if f.Sarga != 0 {
		q = q.Where("sarga = ?", f.Sarga)
	}
	if f.Category != "" {
		q = q.Where("category = ?", string(f.Category))
	}
	if f.Difficulty != "" {
		q = q.Where("difficulty = ?", string(f.Difficulty))
	}
	if f.Random {
		q = q.OrderExpr("random()")
	} else {
		q = q.OrderExpr("created_at ASC, id ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	out := make([]types.QuestionRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].Record()
	}
	return out, nil
}

// GetQuestion returns one question by id.
func (s *PostgresStore) GetQuestion(ctx context.Context, id string) (*types.QuestionRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := new(QuestionModel)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, mapError(err)
	}
	rec := row.Record()
	return &rec, nil
}

// GetSummary returns the chapter summary.
func (s *PostgresStore) GetSummary(ctx context.Context, key types.ChapterKey) (*types.ChapterSummary, error) {
	row := new(SummaryModel)
	err := s.db.NewSelect().Model(row).
		Where("epic_id = ?", key.EpicID).
		Where("kanda = ?", key.Book).
		Where("sarga = ?", key.Sarga).
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	sum := row.Summary()
	return &sum, nil
}

// MergeDuplicate folds dropID into keepID inside one transaction.
func (s *PostgresStore) MergeDuplicate(ctx context.Context, keepID, dropID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		keep := new(QuestionModel)
		if err := tx.NewSelect().Model(keep).Where("id = ?", keepID).For("UPDATE").Scan(ctx); err != nil {
			return mapError(err)
		}
		drop := new(QuestionModel)
		if err := tx.NewSelect().Model(drop).Where("id = ?", dropID).For("UPDATE").Scan(ctx); err != nil {
			return mapError(err)
		}

		keep.Tags = nonNil(MergeTags(keep.Tags, drop.Tags))
		keep.CrossEpicTags = nonNil(MergeTags(keep.CrossEpicTags, drop.CrossEpicTags))
		if _, err := tx.NewUpdate().Model(keep).Column("tags", "cross_epic_tags").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("failed to update %s: %w", keepID, err)
		}
		if _, err := tx.NewDelete().Model(drop).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete %s: %w", dropID, err)
		}
		return nil
	})
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PoolStats reports connection pool usage.
func (s *PostgresStore) PoolStats() map[string]any {
	st := s.pool.Stat()
	return map[string]any{
		"total_conns":    st.TotalConns(),
		"idle_conns":     st.IdleConns(),
		"acquired_conns": st.AcquiredConns(),
		"max_conns":      st.MaxConns(),
	}
}

// Close releases both connection pools.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	s.pool.Close()
	return err
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.Field('n'))
	}
	return err
}

var _ Store = (*PostgresStore)(nil)
