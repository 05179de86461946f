package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/importer"
	"github.com/jackzampolin/itihasa/internal/review"
	"github.com/jackzampolin/itihasa/internal/store"
)

var (
	importMode       string
	importFromReview bool
	importSchema     bool
)

// ImportBatchReport collects the reports of a range of chapters.
type ImportBatchReport struct {
	Imported          int                `json:"imported" yaml:"imported"`
	Failed            int                `json:"failed" yaml:"failed"`
	SkippedDuplicates int                `json:"skipped_duplicates" yaml:"skipped_duplicates"`
	Chapters          []*importer.Report `json:"chapters" yaml:"chapters"`
}

func runImport(ctx context.Context, mode importer.Mode, book string, args []string) error {
	from, to, err := parseRange(book, args)
	if err != nil {
		return err
	}
	a, err := loadApp()
	if err != nil {
		return err
	}

	var st store.Store
	if mode == importer.ModeDirect {
		if st, err = a.openStore(ctx); err != nil {
			return err
		}
		defer st.Close()
		if importSchema {
			pg, ok := st.(*store.PostgresStore)
			if !ok {
				return fmt.Errorf("--create-schema needs the postgres driver")
			}
			if err := pg.CreateSchema(ctx); err != nil {
				return err
			}
		}
	}

	var surface review.Surface
	if importFromReview {
		if surface, err = a.reviewSurface(ctx); err != nil {
			return err
		}
		defer surface.Close(ctx)
	}

	im, err := a.importer(mode, st)
	if err != nil {
		return err
	}

	batch := ImportBatchReport{}
	for sarga := from; sarga <= to; sarga++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := chapterKey(book, sarga)

		var in importer.Input
		if surface != nil {
			in, err = importer.FromReview(ctx, surface, key)
		} else {
			in, err = importer.FromFiles(a.home, key)
		}
		if err != nil {
			a.logger.Error("failed to load chapter content", "book", book, "sarga", sarga, "error", err)
			batch.Failed++
			continue
		}

		rep, err := im.Import(ctx, in)
		if rep != nil {
			batch.Chapters = append(batch.Chapters, rep)
			batch.Imported += rep.Imported
			batch.Failed += rep.Failed
			batch.SkippedDuplicates += rep.SkippedDuplicates
		}
		if err != nil {
			_ = api.Output(batch)
			return err
		}
	}
	return api.Output(batch)
}

var importCmd = &cobra.Command{
	Use:   "import <book> <from-sarga> [to-sarga]",
	Short: "Import generated or approved content into the quiz database",
	Long: `Import normalizes and validates each generated record and writes it to the
configured store. Records already present (same content hash) are skipped
and counted, so re-running an import is safe.

With --from-review only rows approved on the review surface are imported.
With --mode render nothing is written to the database; a SQL script is
written next to the chapter files instead.

Examples:
  itihasa import bala 1
  itihasa import bala 1 10 --from-review
  itihasa import bala 1 --mode render`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := importer.ParseMode(importMode)
		if err != nil {
			return err
		}
		return runImport(cmd.Context(), mode, args[0], args[1:])
	},
}

var renderSQLCmd = &cobra.Command{
	Use:   "render-sql <book> <from-sarga> [to-sarga]",
	Short: "Write SQL import scripts instead of importing",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.Context(), importer.ModeRender, args[0], args[1:])
	},
}

func init() {
	importCmd.Flags().StringVar(&importMode, "mode", string(importer.ModeDirect), "render or direct")
	importCmd.Flags().BoolVar(&importSchema, "create-schema", false, "Create tables and indexes first (postgres)")
	for _, c := range []*cobra.Command{importCmd, renderSQLCmd} {
		c.Flags().BoolVar(&importFromReview, "from-review", false, "Import approved review rows instead of output files")
		rootCmd.AddCommand(c)
	}
}
