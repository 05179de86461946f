package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackzampolin/itihasa/internal/prompts/questions"
	"github.com/jackzampolin/itihasa/internal/prompts/summary"
	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/segment"
	"github.com/jackzampolin/itihasa/internal/themes"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Result is the output of one generation operation on a chapter.
type Result struct {
	Summary   *types.ChapterSummary  `json:"summary,omitempty"`
	Questions []types.QuestionRecord `json:"questions"`
	Report    Report                 `json:"report"`
}

// Standard asks for a summary and a question set in one request. When the
// reply cannot be used, it falls back to separate summary and question
// requests.
func (g *Generator) Standard(ctx context.Context, src *types.ChapterSource, theme themes.Theme) (*Result, error) {
	if err := segment.RequireVerses(src); err != nil {
		return nil, err
	}
	res := &Result{}

	rendered, err := questions.Standard(g.cfg.Prompts, src, theme, g.questionOpts(g.cfg.StandardCount))
	if err != nil {
		return nil, err
	}
	spec := callSpec{stage: StageStandard, chapter: src.Key(), prompt: rendered, format: jsonObject()}

	raw, err := g.call(ctx, spec, &res.Report)
	if err != nil {
		var genErr *GenerationError
		if errors.As(err, &genErr) && genErr.Kind == KindParse {
			return g.fallback(ctx, src, theme, res)
		}
		return res, err
	}

	records, err := g.parseQuestions(raw, src, g.cfg.StandardCount, nil, spec, &res.Report)
	if err != nil {
		res.Report.callFailed(err)
		return g.fallback(ctx, src, theme, res)
	}
	res.Report.Succeeded++
	res.Questions = records

	sum, err := g.decodeSummary(raw, src)
	if err != nil {
		g.logger.Warn("summary in combined reply unusable, requesting separately",
			"book", src.Book, "sarga", src.Sarga, "error", err)
		if err := g.cfg.Sleep(ctx, g.cfg.PassDelay); err != nil {
			return res, err
		}
		sum, err = g.summary(ctx, src, &res.Report)
		if err != nil {
			res.Report.addError(err)
		}
	}
	res.Summary = sum
	res.Report.Questions = len(res.Questions)
	return res, nil
}

// fallback replaces a failed combined request with a summary request and a
// questions-only request.
func (g *Generator) fallback(ctx context.Context, src *types.ChapterSource, theme themes.Theme, res *Result) (*Result, error) {
	g.logger.Warn("combined reply unusable, falling back to separate requests", "book", src.Book, "sarga", src.Sarga)
	res.Report.Fallback = true

	if err := g.cfg.Sleep(ctx, g.cfg.PassDelay); err != nil {
		return res, err
	}
	sum, sumErr := g.summary(ctx, src, &res.Report)
	res.Summary = sum

	if err := g.cfg.Sleep(ctx, g.cfg.PassDelay); err != nil {
		return res, err
	}
	records, qErr := g.questions(ctx, src, theme, &res.Report)
	res.Questions = records
	res.Report.Questions = len(records)

	if sumErr != nil && qErr != nil {
		return res, fmt.Errorf("generate %s: %w", src.Key(), errors.Join(sumErr, qErr))
	}
	return res, nil
}

// Summary requests only the chapter summary.
func (g *Generator) Summary(ctx context.Context, src *types.ChapterSource) (*Result, error) {
	if err := segment.RequireVerses(src); err != nil {
		return nil, err
	}
	res := &Result{}
	sum, err := g.summary(ctx, src, &res.Report)
	res.Summary = sum
	return res, err
}

// Questions requests only questions, covering the whole chapter.
func (g *Generator) Questions(ctx context.Context, src *types.ChapterSource, theme themes.Theme) (*Result, error) {
	if err := segment.RequireVerses(src); err != nil {
		return nil, err
	}
	res := &Result{}
	records, err := g.questions(ctx, src, theme, &res.Report)
	res.Questions = records
	res.Report.Questions = len(records)
	return res, err
}

func (g *Generator) summary(ctx context.Context, src *types.ChapterSource, rep *Report) (*types.ChapterSummary, error) {
	rendered, err := summary.UserPrompt(g.cfg.Prompts, src, g.cfg.Limits)
	if err != nil {
		return nil, err
	}
	spec := callSpec{
		stage:    StageSummary,
		chapter:  src.Key(),
		prompt:   rendered,
		format:   jsonSchema(summary.Schema),
		validate: true,
	}
	raw, err := g.call(ctx, spec, rep)
	if err != nil {
		return nil, err
	}
	sum, err := g.decodeSummary(raw, src)
	if err != nil {
		err = g.parseFailure(spec, string(raw), err, g.logger)
		rep.callFailed(err)
		return nil, err
	}
	rep.Succeeded++
	return sum, nil
}

func (g *Generator) decodeSummary(raw json.RawMessage, src *types.ChapterSource) (*types.ChapterSummary, error) {
	rs, err := quiz.DecodeSummary(raw)
	if err != nil {
		return nil, err
	}
	sum := quiz.NormalizeSummary(rs, src.Key(), src.SourceReference())
	if err := quiz.ValidateSummary(&sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (g *Generator) questions(ctx context.Context, src *types.ChapterSource, theme themes.Theme, rep *Report) ([]types.QuestionRecord, error) {
	rendered, err := questions.Questions(g.cfg.Prompts, src, theme, g.questionOpts(g.cfg.StandardCount))
	if err != nil {
		return nil, err
	}
	spec := callSpec{stage: StageQuestions, chapter: src.Key(), prompt: rendered, format: jsonSchema(questions.ListSchema)}
	raw, err := g.call(ctx, spec, rep)
	if err != nil {
		return nil, err
	}
	records, err := g.parseQuestions(raw, src, g.cfg.StandardCount, nil, spec, rep)
	if err != nil {
		rep.callFailed(err)
		return nil, err
	}
	rep.Succeeded++
	return records, nil
}

func (g *Generator) questionOpts(count int) questions.Options {
	return questions.Options{Count: count, Limits: g.cfg.Limits}
}
