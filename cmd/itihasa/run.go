package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/pipeline"
	"github.com/jackzampolin/itihasa/internal/review"
)

var (
	runProvider  string
	runModel     string
	runDeep      bool
	runStage     bool
	runAutoTheme bool
)

var runCmd = &cobra.Command{
	Use:   "run <book> <from-sarga> [to-sarga]",
	Short: "Fetch, generate and write a range of chapters",
	Long: `Run takes each chapter of the range through the pipeline: fetch the
verses, generate the summary and standard questions, optionally the deep
pass-by-pass and hard questions, write the output files and optionally
stage them for review.

A failed chapter is reported and the batch moves on to the next one.

Examples:
  itihasa run bala 1
  itihasa run bala 1 20 --deep --stage
  itihasa run sundara 1 5 --auto-theme --provider openai`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		book := args[0]
		from, to, err := parseRange(book, args[1:])
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		gen, stop, err := a.generator(ctx, runProvider, runModel)
		if err != nil {
			return err
		}
		defer stop()

		th, err := a.themes()
		if err != nil {
			return err
		}

		var surface review.Surface
		if runStage {
			if surface, err = a.reviewSurface(ctx); err != nil {
				return err
			}
			defer surface.Close(ctx)
		}

		runner, err := pipeline.NewRunner(pipeline.Config{
			Fetcher:    a.fetcher(),
			Generator:  gen,
			Home:       a.home,
			Themes:     th,
			Review:     surface,
			BatchDelay: a.cfg().Defaults.BatchDelay(),
			Logger:     a.logger,
		})
		if err != nil {
			return err
		}

		opts := pipeline.Options{Deep: runDeep, Stage: runStage, AutoTheme: runAutoTheme}
		if from == to {
			rep, err := runner.RunChapter(ctx, book, from, opts)
			if rep != nil {
				if outErr := api.Output(rep); outErr != nil && err == nil {
					err = outErr
				}
			}
			return err
		}
		rep, err := runner.RunBatch(ctx, book, from, to, opts)
		if rep != nil {
			if outErr := api.Output(rep); outErr != nil && err == nil {
				err = outErr
			}
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runProvider, "provider", "", "LLM provider (default from config)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model override")
	runCmd.Flags().BoolVar(&runDeep, "deep", false, "Also generate pass-by-pass and hard questions")
	runCmd.Flags().BoolVar(&runStage, "stage", false, "Append outputs to the review surface")
	runCmd.Flags().BoolVar(&runAutoTheme, "auto-theme", false, "Derive themes for chapters without an entry")
	rootCmd.AddCommand(runCmd)
}
