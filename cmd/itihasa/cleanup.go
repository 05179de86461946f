package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/cleanup"
	"github.com/jackzampolin/itihasa/internal/types"
)

var (
	cleanupBook      string
	cleanupThreshold float64
	cleanupDryRun    bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Merge near-duplicate questions in the quiz database",
	Long: `Cleanup compares questions of the same chapter and merges pairs whose
normalized text is at least --threshold similar. The earlier question is
kept; tags of the dropped question are merged into it.

Examples:
  itihasa cleanup --dry-run
  itihasa cleanup --book bala --threshold 0.95`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cleanupBook != "" {
			if _, ok := types.LookupBook(cleanupBook); !ok {
				return errUnknownBook(cleanupBook)
			}
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		st, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rep, err := cleanup.Run(ctx, st, cleanup.Options{
			EpicID:    types.DefaultEpicID,
			Book:      cleanupBook,
			Threshold: cleanupThreshold,
			DryRun:    cleanupDryRun,
			Logger:    a.logger,
		})
		if rep != nil {
			if outErr := api.Output(rep); outErr != nil && err == nil {
				err = outErr
			}
		}
		return err
	},
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupBook, "book", "", "Only scan this book")
	cleanupCmd.Flags().Float64Var(&cleanupThreshold, "threshold", cleanup.DefaultThreshold, "Similarity at which questions are merged (0-1)")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Report pairs without merging")
	rootCmd.AddCommand(cleanupCmd)
}
