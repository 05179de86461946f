// Package pipeline runs the per-chapter content pipeline: fetch, generate,
// write outputs and stage them for review.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/itihasa/internal/generate"
	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/review"
	"github.com/jackzampolin/itihasa/internal/themes"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Fetcher retrieves one chapter.
type Fetcher interface {
	Fetch(ctx context.Context, book string, sarga int) (*types.ChapterSource, error)
}

// Options selects the optional stages of a run.
type Options struct {
	Deep  bool // run the pass-by-pass and hard question requests
	Stage bool // append outputs to the review surface

	// AutoTheme derives a theme from the chapter when the themes file has no
	// entry for it. The derived theme is not saved.
	AutoTheme bool
}

// Config configures a Runner.
type Config struct {
	Fetcher   Fetcher
	Generator *generate.Generator
	Home      *home.Dir
	Themes    *themes.File  // Nil uses generic themes
	Review    review.Surface // Required when Options.Stage is set

	// BatchDelay is slept between chapters of a batch.
	BatchDelay time.Duration

	Logger *slog.Logger

	// Sleep waits between chapters; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Runner runs chapters through the registered stages.
type Runner struct {
	cfg      Config
	registry *Registry
	logger   *slog.Logger
}

// NewRunner creates a Runner with the standard stages registered.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("runner requires a fetcher")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("runner requires a generator")
	}
	if cfg.Home == nil {
		return nil, fmt.Errorf("runner requires a home directory")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}

	r := &Runner{cfg: cfg, registry: NewRegistry(), logger: cfg.Logger}
	for _, s := range r.stages() {
		if err := r.registry.Register(s); err != nil {
			return nil, err
		}
	}
	if _, err := r.registry.Ordered(); err != nil {
		return nil, err
	}
	return r, nil
}

// Registry exposes the runner's stages.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// ChapterRun carries one chapter through the stages.
type ChapterRun struct {
	Book    string
	Sarga   int
	Options Options

	Source   *types.ChapterSource
	Theme    themes.Theme
	Standard *generate.Result
	Deep     *generate.Result

	Report *ChapterReport
}

// RunChapter runs one chapter through every enabled stage. The report is
// returned even when a stage fails.
func (r *Runner) RunChapter(ctx context.Context, book string, sarga int, opts Options) (*ChapterReport, error) {
	start := time.Now()
	run := &ChapterRun{
		Book:    book,
		Sarga:   sarga,
		Options: opts,
		Report:  &ChapterReport{Book: book, Sarga: sarga, Files: map[string]string{}},
	}
	if opts.Stage && r.cfg.Review == nil {
		return run.Report, fmt.Errorf("staging requested but no review surface is configured")
	}

	stages, err := r.registry.Ordered()
	if err != nil {
		return run.Report, err
	}

	logger := r.logger.With("book", book, "sarga", sarga)
	for _, s := range stages {
		if !s.Enabled(opts) {
			continue
		}
		logger.Debug("running stage", "stage", s.Name())
		if err := s.Run(ctx, run); err != nil {
			run.Report.FailedStage = s.Name()
			run.Report.Error = err.Error()
			run.Report.Duration = time.Since(start).Round(time.Millisecond).String()
			logger.Error("chapter failed", "stage", s.Name(), "error", err)
			return run.Report, fmt.Errorf("%s sarga %d: %s: %w", book, sarga, s.Name(), err)
		}
		run.Report.Stages = append(run.Report.Stages, s.Name())
	}

	run.Report.Duration = time.Since(start).Round(time.Millisecond).String()
	logger.Info("chapter complete",
		"questions", run.Report.Questions, "hard_questions", run.Report.HardQuestions,
		"summary", run.Report.Summary, "duration", run.Report.Duration)
	return run.Report, nil
}

// RunBatch runs chapters from..to of a book in order, sleeping BatchDelay
// between them. A failed chapter is reported and the batch continues; a
// cancelled context stops it between chapters.
func (r *Runner) RunBatch(ctx context.Context, book string, from, to int, opts Options) (*BatchReport, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("invalid sarga range %d-%d", from, to)
	}
	rep := &BatchReport{Book: book, From: from, To: to}

	for sarga := from; sarga <= to; sarga++ {
		if sarga > from {
			if err := r.cfg.Sleep(ctx, r.cfg.BatchDelay); err != nil {
				return rep, err
			}
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		chapter, err := r.RunChapter(ctx, book, sarga, opts)
		rep.add(chapter, err)
		if err != nil && ctx.Err() != nil {
			return rep, ctx.Err()
		}
	}

	r.logger.Info("batch complete", "book", book, "from", from, "to", to,
		"succeeded", rep.Succeeded, "failed", rep.Failed)
	return rep, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
