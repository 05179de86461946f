package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/fetch"
	"github.com/jackzampolin/itihasa/internal/segment"
)

// FetchReport is printed by the fetch command.
type FetchReport struct {
	Book   string `json:"book" yaml:"book"`
	Sarga  int    `json:"sarga" yaml:"sarga"`
	URL    string `json:"url" yaml:"url"`
	Verses int    `json:"verses" yaml:"verses"`
	Path   string `json:"path" yaml:"path"`
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <book> <sarga>",
	Short: "Download a sarga's verses and translations",
	Long: `Fetch downloads one sarga from the source site, extracts its verses and
writes <book>_sarga_<N>_verses.json into the home data directory.

Examples:
  itihasa fetch bala 1
  itihasa fetch sundara 15 -o json`,
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

		src, err := a.fetcher().Fetch(cmd.Context(), book, sarga)
		if err != nil {
			return err
		}
		if err := segment.RequireVerses(src); err != nil {
			a.logger.Warn("no verses extracted", "book", book, "sarga", sarga, "url", src.SourceURL)
		}
		path, err := fetch.Store(a.home.DataPath(), src)
		if err != nil {
			return err
		}
		return api.Output(FetchReport{Book: book, Sarga: sarga, URL: src.SourceURL, Verses: len(src.Verses), Path: path})
	},
}

var segmentCmd = &cobra.Command{
	Use:   "segment <book> <sarga>",
	Short: "Show the thematic passes of a fetched sarga",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, sarga, err := parseChapter(args[0], args[1])
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		src, err := a.loadChapter(book, sarga)
		if err != nil {
			return err
		}
		passes, err := segment.Split(len(src.Verses))
		if err != nil {
			return err
		}
		return api.Output(passes)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(segmentCmd)
}
