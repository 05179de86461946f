package generate

import (
	"context"
	"fmt"

	"github.com/jackzampolin/itihasa/internal/prompts/questions"
	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/segment"
	"github.com/jackzampolin/itihasa/internal/themes"
	"github.com/jackzampolin/itihasa/internal/types"
)

// HardPassName tags records produced by the hard-question request.
const HardPassName = "hard"

// Deep generates questions pass by pass over verse ranges of the chapter,
// then asks for hard questions from the theme's prompts. A failed request is
// recorded and the run moves on; it only fails when every request failed.
func (g *Generator) Deep(ctx context.Context, src *types.ChapterSource, theme themes.Theme) (*Result, error) {
	if err := segment.RequireVerses(src); err != nil {
		return nil, err
	}
	passes, err := segment.Split(len(src.Verses))
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var all []types.QuestionRecord
	first := true
	wait := func() error {
		if first {
			first = false
			return nil
		}
		return g.cfg.Sleep(ctx, g.cfg.PassDelay)
	}

	for _, pass := range passes {
		if pass.Empty() {
			g.logger.Debug("skipping empty pass", "book", src.Book, "sarga", src.Sarga, "pass", pass.Name)
			continue
		}
		if err := wait(); err != nil {
			return res, err
		}
		records, err := g.pass(ctx, src, pass, theme, &res.Report)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			continue
		}
		all = append(all, records...)
	}

	if len(theme.HardPrompts) > 0 {
		if err := wait(); err != nil {
			return res, err
		}
		records, err := g.hard(ctx, src, theme, &res.Report)
		if err == nil {
			all = append(all, records...)
		} else if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	res.Questions = quiz.Dedup(all)
	res.Report.Duplicates = len(all) - len(res.Questions)
	res.Report.Questions = len(res.Questions)

	g.logger.Info("deep generation complete",
		"book", src.Book, "sarga", src.Sarga,
		"calls", res.Report.Calls, "failed", res.Report.Failed,
		"questions", res.Report.Questions, "duplicates", res.Report.Duplicates)

	if res.Report.Calls > 0 && res.Report.Succeeded == 0 {
		return res, fmt.Errorf("deep generation of %s: all %d requests failed", src.Key(), res.Report.Calls)
	}
	return res, nil
}

func (g *Generator) pass(ctx context.Context, src *types.ChapterSource, pass types.ThematicPass, theme themes.Theme, rep *Report) ([]types.QuestionRecord, error) {
	rendered, err := questions.Pass(g.cfg.Prompts, src, pass, theme, g.questionOpts(g.cfg.PassCount))
	if err != nil {
		rep.Calls++
		rep.callFailed(err)
		return nil, err
	}
	tag := pass.Tag()
	spec := callSpec{stage: StagePass, pass: passName(tag), chapter: src.Key(), prompt: rendered, format: jsonSchema(questions.ListSchema)}

	raw, err := g.call(ctx, spec, rep)
	if err != nil {
		return nil, err
	}
	records, err := g.parseQuestions(raw, src, g.cfg.PassCount, tag, spec, rep)
	if err != nil {
		rep.callFailed(err)
		return nil, err
	}
	rep.Succeeded++
	return records, nil
}

func (g *Generator) hard(ctx context.Context, src *types.ChapterSource, theme themes.Theme, rep *Report) ([]types.QuestionRecord, error) {
	rendered, err := questions.Hard(g.cfg.Prompts, src, theme, questions.Options{Limits: g.cfg.Limits})
	if err != nil {
		rep.Calls++
		rep.callFailed(err)
		return nil, err
	}
	tag := &types.PassTag{Name: HardPassName, Start: 1, End: len(src.Verses)}
	spec := callSpec{stage: StageHard, pass: HardPassName, chapter: src.Key(), prompt: rendered, format: jsonSchema(questions.ListSchema)}

	raw, err := g.call(ctx, spec, rep)
	if err != nil {
		return nil, err
	}
	records, err := g.parseQuestions(raw, src, len(theme.HardPrompts), tag, spec, rep)
	if err != nil {
		rep.callFailed(err)
		return nil, err
	}
	rep.Succeeded++
	return records, nil
}
