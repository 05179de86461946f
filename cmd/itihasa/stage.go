package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/review"
	"github.com/jackzampolin/itihasa/internal/types"
)

var stageCmd = &cobra.Command{
	Use:   "stage <book> <sarga>",
	Short: "Append a sarga's generated output to the review surface",
	Long: `Stage appends the generated summary, questions and hard questions of a sarga
to the configured review surface (CSV files or a MongoDB collection) as
pending rows. Rows already staged are skipped.

Reviewers mark rows approved or rejected, either by editing the status
column or with "itihasa stage status". "itihasa import --from-review"
imports approved rows only.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, sarga, err := parseChapter(args[0], args[1])
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var qs []types.QuestionRecord
		found := false
		for _, kind := range []home.Kind{home.KindQuestions, home.KindHardQuestions} {
			var batch []types.QuestionRecord
			ok, err := readOutput(a.home.ChapterFile(book, sarga, kind), &batch)
			if err != nil {
				return err
			}
			found = found || ok
			qs = append(qs, batch...)
		}
		var sum *types.ChapterSummary
		ok, err := readOutput(a.home.ChapterFile(book, sarga, home.KindSummary), &sum)
		if err != nil {
			return err
		}
		if !ok && !found {
			return fmt.Errorf("no generated output for %s sarga %d (run \"itihasa generate\" first)", book, sarga)
		}

		surface, err := a.reviewSurface(ctx)
		if err != nil {
			return err
		}
		defer surface.Close(ctx)

		rep, err := review.Stage(ctx, surface, chapterKey(book, sarga), sum, qs)
		if err != nil {
			return err
		}
		return api.Output(rep)
	},
}

var stageStatusCmd = &cobra.Command{
	Use:   "status <book> <sarga> <row-id> <pending|approved|rejected>",
	Short: "Set the review status of a staged row",
	Long: `Status sets the review status of one staged row. Question row ids are shown
in the review surface; the summary row id is "summary".`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, sarga, err := parseChapter(args[0], args[1])
		if err != nil {
			return err
		}
		status, err := review.ParseStatus(args[3])
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		surface, err := a.reviewSurface(ctx)
		if err != nil {
			return err
		}
		defer surface.Close(ctx)

		if err := surface.SetStatus(ctx, chapterKey(book, sarga), args[2], status); err != nil {
			return err
		}
		a.logger.Info("review status set", "book", book, "sarga", sarga, "row", args[2], "status", status)
		return nil
	},
}

// readOutput decodes a generator output file. A missing file reports false.
func readOutput(path string, v any) (bool, error) {
	if err := home.ReadJSON(path, v); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func init() {
	stageCmd.AddCommand(stageStatusCmd)
	rootCmd.AddCommand(stageCmd)
}
