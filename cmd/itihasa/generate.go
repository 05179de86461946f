package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/generate"
	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/types"
)

// GenerateReport is printed by the generation commands.
type GenerateReport struct {
	Book       string            `json:"book" yaml:"book"`
	Sarga      int               `json:"sarga" yaml:"sarga"`
	Summary    bool              `json:"summary" yaml:"summary"`
	Questions  int               `json:"questions" yaml:"questions"`
	Generation generate.Report   `json:"generation" yaml:"generation"`
	Files      map[string]string `json:"files,omitempty" yaml:"files,omitempty"`
}

var (
	genProvider      string
	genModel         string
	genQuestionsOnly bool
	genAutoTheme     bool
)

// generation runs fn against a fetched chapter and writes the outputs.
func generation(ctx context.Context, book string, sarga int, questionsKind home.Kind,
	fn func(ctx context.Context, a *app, g *generate.Generator, src *types.ChapterSource) (*generate.Result, error)) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	src, err := a.loadChapter(book, sarga)
	if err != nil {
		return err
	}
	gen, stop, err := a.generator(ctx, genProvider, genModel)
	if err != nil {
		return err
	}
	defer stop()

	res, runErr := fn(ctx, a, gen, src)
	if res == nil {
		return runErr
	}

	rep := GenerateReport{
		Book:       book,
		Sarga:      sarga,
		Summary:    res.Summary != nil,
		Questions:  len(res.Questions),
		Generation: res.Report,
		Files:      map[string]string{},
	}
	if res.Summary != nil {
		path := a.home.ChapterFile(book, sarga, home.KindSummary)
		if err := home.WriteJSON(path, res.Summary); err != nil {
			return err
		}
		rep.Files[string(home.KindSummary)] = path
	}
	if questionsKind != "" && len(res.Questions) > 0 {
		path := a.home.ChapterFile(book, sarga, questionsKind)
		if err := home.WriteJSON(path, res.Questions); err != nil {
			return err
		}
		rep.Files[string(questionsKind)] = path
	}
	if err := api.Output(rep); err != nil {
		return err
	}
	return runErr
}

var generateCmd = &cobra.Command{
	Use:   "generate <book> <sarga>",
	Short: "Generate a summary and standard questions for a fetched sarga",
	Long: `Generate asks the configured chat model for a chapter summary and a set of
standard questions in one request. When the reply cannot be used it falls
back to two smaller requests.

Examples:
  itihasa generate bala 1
  itihasa generate bala 1 --provider openai --model gpt-4o-mini
  itihasa generate bala 1 --questions-only`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, sarga, err := parseChapter(args[0], args[1])
		if err != nil {
			return err
		}
		return generation(cmd.Context(), book, sarga, home.KindQuestions,
			func(ctx context.Context, a *app, g *generate.Generator, src *types.ChapterSource) (*generate.Result, error) {
				t, err := a.chapterTheme(src, genAutoTheme)
				if err != nil {
					return nil, err
				}
				if genQuestionsOnly {
					return g.Questions(ctx, src, t)
				}
				return g.Standard(ctx, src, t)
			})
	},
}

var deepCmd = &cobra.Command{
	Use:   "deep <book> <sarga>",
	Short: "Generate pass-by-pass and hard questions for a fetched sarga",
	Long: `Deep splits the sarga into three thematic verse ranges and asks for questions
on each, then asks the chapter's hard prompts from the themes file.
Output goes to <book>_sarga_<N>_hard_questions.json.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, sarga, err := parseChapter(args[0], args[1])
		if err != nil {
			return err
		}
		return generation(cmd.Context(), book, sarga, home.KindHardQuestions,
			func(ctx context.Context, a *app, g *generate.Generator, src *types.ChapterSource) (*generate.Result, error) {
				t, err := a.chapterTheme(src, genAutoTheme)
				if err != nil {
					return nil, err
				}
				return g.Deep(ctx, src, t)
			})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <book> <sarga>",
	Short: "Generate only the chapter summary for a fetched sarga",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, sarga, err := parseChapter(args[0], args[1])
		if err != nil {
			return err
		}
		return generation(cmd.Context(), book, sarga, "",
			func(ctx context.Context, a *app, g *generate.Generator, src *types.ChapterSource) (*generate.Result, error) {
				return g.Summary(ctx, src)
			})
	},
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, deepCmd, summaryCmd} {
		c.Flags().StringVar(&genProvider, "provider", "", "LLM provider (default: defaults.llm_provider)")
		c.Flags().StringVar(&genModel, "model", "", "Model override (default: the provider's model)")
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{generateCmd, deepCmd} {
		c.Flags().BoolVar(&genAutoTheme, "auto-theme", false, "Derive a theme from the chapter when none is configured")
	}
	generateCmd.Flags().BoolVar(&genQuestionsOnly, "questions-only", false, "Skip the summary")
}
