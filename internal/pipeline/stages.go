package pipeline

import (
	"context"
	"fmt"

	"github.com/jackzampolin/itihasa/internal/fetch"
	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/review"
	"github.com/jackzampolin/itihasa/internal/segment"
	"github.com/jackzampolin/itihasa/internal/themes"
	"github.com/jackzampolin/itihasa/internal/types"
)

func (r *Runner) stages() []Stage {
	return []Stage{
		&fetchStage{r},
		&generateStage{r},
		&deepStage{r},
		&writeStage{r},
		&reviewStage{r},
	}
}

type fetchStage struct{ r *Runner }

func (s *fetchStage) Name() string              { return StageFetch }
func (s *fetchStage) Dependencies() []string    { return nil }
func (s *fetchStage) Description() string       { return "download the chapter and extract its verses" }
func (s *fetchStage) Enabled(opts Options) bool { return true }

func (s *fetchStage) Run(ctx context.Context, run *ChapterRun) error {
	src, err := s.r.cfg.Fetcher.Fetch(ctx, run.Book, run.Sarga)
	if err != nil {
		return err
	}
	run.Source = src
	run.Report.Verses = len(src.Verses)

	// The verses file is replaced even when empty so later runs never read
	// an older fetch.
	path, err := fetch.Store(s.r.cfg.Home.DataPath(), src)
	if err != nil {
		return err
	}
	run.Report.Files[string(home.KindVerses)] = path
	if err := segment.RequireVerses(src); err != nil {
		return err
	}

	run.Theme = s.r.theme(src, run.Options)
	return nil
}

func (r *Runner) theme(src *types.ChapterSource, opts Options) themes.Theme {
	t, configured := r.cfg.Themes.Lookup(src.Book, src.Sarga)
	if !configured && opts.AutoTheme {
		return themes.AutoConfigure(src)
	}
	return t
}

type generateStage struct{ r *Runner }

func (s *generateStage) Name() string              { return StageGenerate }
func (s *generateStage) Dependencies() []string    { return []string{StageFetch} }
func (s *generateStage) Description() string       { return "generate the summary and standard questions" }
func (s *generateStage) Enabled(opts Options) bool { return true }

func (s *generateStage) Run(ctx context.Context, run *ChapterRun) error {
	res, err := s.r.cfg.Generator.Standard(ctx, run.Source, run.Theme)
	if res != nil {
		run.Report.Generation.Merge(res.Report)
	}
	if err != nil {
		return err
	}
	run.Standard = res
	run.Report.Summary = res.Summary != nil
	run.Report.Questions = len(res.Questions)
	return nil
}

type deepStage struct{ r *Runner }

func (s *deepStage) Name() string              { return StageDeep }
func (s *deepStage) Dependencies() []string    { return []string{StageFetch, StageGenerate} }
func (s *deepStage) Description() string       { return "generate pass-by-pass and hard questions" }
func (s *deepStage) Enabled(opts Options) bool { return opts.Deep }

func (s *deepStage) Run(ctx context.Context, run *ChapterRun) error {
	res, err := s.r.cfg.Generator.Deep(ctx, run.Source, run.Theme)
	if res != nil {
		run.Report.Generation.Merge(res.Report)
	}
	if err != nil {
		return err
	}
	run.Deep = res
	run.Report.HardQuestions = len(res.Questions)
	return nil
}

type writeStage struct{ r *Runner }

func (s *writeStage) Name() string              { return StageWrite }
func (s *writeStage) Dependencies() []string    { return []string{StageGenerate, StageDeep} }
func (s *writeStage) Description() string       { return "write generated output files" }
func (s *writeStage) Enabled(opts Options) bool { return true }

func (s *writeStage) Run(ctx context.Context, run *ChapterRun) error {
	h := s.r.cfg.Home
	write := func(kind home.Kind, v any) error {
		path := h.ChapterFile(run.Book, run.Sarga, kind)
		if err := home.WriteJSON(path, v); err != nil {
			return fmt.Errorf("write %s: %w", kind, err)
		}
		run.Report.Files[string(kind)] = path
		return nil
	}

	if run.Standard != nil {
		if run.Standard.Summary != nil {
			if err := write(home.KindSummary, run.Standard.Summary); err != nil {
				return err
			}
		}
		if err := write(home.KindQuestions, nonNil(run.Standard.Questions)); err != nil {
			return err
		}
	}
	if run.Deep != nil {
		if err := write(home.KindHardQuestions, nonNil(run.Deep.Questions)); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(qs []types.QuestionRecord) []types.QuestionRecord {
	if qs == nil {
		return []types.QuestionRecord{}
	}
	return qs
}

type reviewStage struct{ r *Runner }

func (s *reviewStage) Name() string              { return StageReview }
func (s *reviewStage) Dependencies() []string    { return []string{StageWrite} }
func (s *reviewStage) Description() string       { return "append outputs to the review surface as pending rows" }
func (s *reviewStage) Enabled(opts Options) bool { return opts.Stage }

func (s *reviewStage) Run(ctx context.Context, run *ChapterRun) error {
	var (
		sum *types.ChapterSummary
		qs  []types.QuestionRecord
	)
	if run.Standard != nil {
		sum = run.Standard.Summary
		qs = append(qs, run.Standard.Questions...)
	}
	if run.Deep != nil {
		qs = append(qs, run.Deep.Questions...)
	}

	rep, err := review.Stage(ctx, s.r.cfg.Review, run.Source.Key(), sum, qs)
	run.Report.Review = rep
	return err
}
