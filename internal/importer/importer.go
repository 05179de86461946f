// Package importer writes generated or reviewed quiz content to the backend
// store, either as a rendered SQL script or as direct writes, and verifies
// the resulting row counts.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/sqlgen"
	"github.com/jackzampolin/itihasa/internal/store"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Mode selects how records reach the store.
type Mode string

const (
	// ModeRender writes a SQL script for someone to apply.
	ModeRender Mode = "render"
	// ModeDirect writes through the store.
	ModeDirect Mode = "direct"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeRender, ModeDirect:
		return m, nil
	case "":
		return ModeDirect, nil
	}
	return "", fmt.Errorf("unknown import mode %q (want render or direct)", s)
}

// Defaults for write retries.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

const maxReportErrors = 5

// Config configures an Importer.
type Config struct {
	Mode  Mode
	Store store.Store // required in direct mode
	// SQLDir receives rendered scripts in render mode.
	SQLDir string

	// Retry enables backoff retries of failed writes. MaxAttempts and
	// BaseDelay bound them; the delay doubles per attempt.
	Retry       bool
	MaxAttempts uint
	BaseDelay   time.Duration

	Logger *slog.Logger
}

// Importer imports one chapter at a time.
type Importer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Importer.
func New(cfg Config) (*Importer, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeDirect
	}
	if cfg.Mode == ModeDirect && cfg.Store == nil {
		return nil, fmt.Errorf("direct import requires a store")
	}
	if cfg.Mode == ModeRender && cfg.SQLDir == "" {
		return nil, fmt.Errorf("render import requires an output directory")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if !cfg.Retry {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Importer{cfg: cfg, logger: cfg.Logger}, nil
}

// Input is the content of one chapter to import.
type Input struct {
	Chapter   types.ChapterKey
	Questions []quiz.RawQuestion
	Summary   *types.ChapterSummary
	Source    string // where the content came from: files or review

	// DecodeErrors are items that could not be decoded at all. They are
	// counted as failed records.
	DecodeErrors []error
}

// Report summarizes one chapter import.
type Report struct {
	BatchID           string               `json:"batch_id" yaml:"batch_id"`
	Chapter           types.ChapterKey     `json:"chapter" yaml:"chapter"`
	Mode              Mode                 `json:"mode" yaml:"mode"`
	Source            string               `json:"source,omitempty" yaml:"source,omitempty"`
	Attempted         int                  `json:"attempted" yaml:"attempted"`
	Imported          int                  `json:"imported" yaml:"imported"`
	Failed            int                  `json:"failed" yaml:"failed"`
	SkippedDuplicates int                  `json:"skipped_duplicates" yaml:"skipped_duplicates"`
	Summary           bool                 `json:"summary" yaml:"summary"`
	SQLPath           string               `json:"sql_path,omitempty" yaml:"sql_path,omitempty"`
	Verification      *VerificationWarning `json:"verification,omitempty" yaml:"verification,omitempty"`
	Errors            []string             `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (r *Report) fail(err error) {
	r.Failed++
	r.addError(err)
}

func (r *Report) addError(err error) {
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, err.Error())
	}
}

// prepared is the validated content of an input.
type prepared struct {
	questions []types.QuestionRecord
	indexes   []int // input index of each question, for error reports
	summary   *types.ChapterSummary
}

// prepare normalizes and validates every record. Invalid records are
// counted as failed and left out.
func (im *Importer) prepare(in Input, rep *Report) prepared {
	var p prepared
	sourceRef := (&types.ChapterSource{EpicID: in.Chapter.EpicID, Book: in.Chapter.Book, Sarga: in.Chapter.Sarga}).SourceReference()

	for _, err := range in.DecodeErrors {
		rep.Attempted++
		rep.fail(err)
	}
	for i, raw := range in.Questions {
		rep.Attempted++
		q, err := quiz.Normalize(raw, in.Chapter, sourceRef)
		if err == nil {
			err = quiz.Validate(&q)
		}
		if err != nil {
			rep.fail(&ImportError{Index: i, QuestionText: q.QuestionText, Err: err})
			im.logger.Warn("skipping invalid record", "chapter", in.Chapter.String(), "index", i, "error", err)
			continue
		}
		p.questions = append(p.questions, q)
		p.indexes = append(p.indexes, i)
	}

	if in.Summary != nil {
		sum := *in.Summary
		sum.EpicID, sum.Book, sum.Sarga = in.Chapter.EpicID, in.Chapter.Book, in.Chapter.Sarga
		if sum.SourceReference == "" {
			sum.SourceReference = sourceRef
		}
		if err := quiz.ValidateSummary(&sum); err != nil {
			rep.addError(fmt.Errorf("summary: %w", err))
			im.logger.Warn("skipping invalid summary", "chapter", in.Chapter.String(), "error", err)
		} else {
			p.summary = &sum
		}
	}
	return p
}

// Import imports one chapter. Individual record failures are reported, not
// returned; the error is reserved for failures that stop the whole batch.
func (im *Importer) Import(ctx context.Context, in Input) (*Report, error) {
	batch := types.ImportBatch{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Chapter:   in.Chapter,
		Source:    in.Source,
	}
	rep := &Report{BatchID: batch.ID, Chapter: in.Chapter, Mode: im.cfg.Mode, Source: in.Source}
	logger := im.logger.With("batch_id", batch.ID, "chapter", in.Chapter.String(), "mode", string(im.cfg.Mode))

	p := im.prepare(in, rep)

	var err error
	switch im.cfg.Mode {
	case ModeRender:
		err = im.render(p, rep)
	default:
		err = im.direct(ctx, batch, p, rep, logger)
	}
	if err != nil {
		return rep, err
	}

	logger.Info("import complete",
		"attempted", rep.Attempted, "imported", rep.Imported, "failed", rep.Failed,
		"skipped_duplicates", rep.SkippedDuplicates, "summary", rep.Summary)
	return rep, nil
}

func (im *Importer) render(p prepared, rep *Report) error {
	script := sqlgen.NewScript(rep.Chapter)
	if p.summary != nil {
		script.AddSummary(p.summary)
		rep.Summary = true
	}
	for i := range p.questions {
		if err := script.AddQuestion(&p.questions[i]); err != nil {
			rep.fail(&ImportError{Index: p.indexes[i], QuestionText: p.questions[i].QuestionText, Err: err})
			continue
		}
		rep.Imported++
	}

	path := filepath.Join(im.cfg.SQLDir, home.FileName(rep.Chapter.Book, rep.Chapter.Sarga, home.KindImportSQL))
	if err := home.WriteFile(path, []byte(script.String())); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	rep.SQLPath = path
	return nil
}

func (im *Importer) direct(ctx context.Context, batch types.ImportBatch, p prepared, rep *Report, logger *slog.Logger) error {
	before, err := im.cfg.Store.CountQuestions(ctx, rep.Chapter)
	if err != nil {
		return fmt.Errorf("failed to count existing questions: %w", err)
	}

	if p.summary != nil {
		err := im.write(ctx, func() error { return im.cfg.Store.InsertSummary(ctx, p.summary) })
		switch {
		case err == nil:
			rep.Summary = true
		case errors.Is(err, store.ErrDuplicate):
			logger.Info("summary already imported")
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rep.addError(fmt.Errorf("summary: %w", err))
			logger.Error("summary import failed", "error", err)
		}
	}

	for i := range p.questions {
		q := &p.questions[i]
		err := im.write(ctx, func() error {
			_, err := im.cfg.Store.InsertQuestion(ctx, batch.ID, q)
			return err
		})
		switch {
		case err == nil:
			rep.Imported++
		case errors.Is(err, store.ErrDuplicate):
			rep.SkippedDuplicates++
			logger.Debug("skipping duplicate question", "index", p.indexes[i])
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rep.fail(&ImportError{Index: p.indexes[i], QuestionText: q.QuestionText, Attempts: im.cfg.MaxAttempts, Err: err})
			logger.Error("question import failed", "index", p.indexes[i], "error", err)
		}
	}

	after, err := im.cfg.Store.CountQuestions(ctx, rep.Chapter)
	if err != nil {
		rep.addError(fmt.Errorf("verification count: %w", err))
		logger.Warn("verification count failed", "error", err)
		return nil
	}
	if expected := before + rep.Imported; after != expected {
		rep.Verification = &VerificationWarning{Chapter: rep.Chapter, Expected: expected, Actual: after}
		logger.Warn("import verification mismatch", "expected", expected, "actual", after)
	}
	return nil
}

// write runs one store write with exponential backoff. Duplicates are final.
func (im *Importer) write(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(im.cfg.MaxAttempts),
		retry.Delay(im.cfg.BaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, store.ErrDuplicate) &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			im.logger.Warn("retrying store write", "attempt", n+1, "error", err)
		}),
	)
}
