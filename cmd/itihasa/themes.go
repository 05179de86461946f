package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/themes"
)

// ThemeView is a theme with the chapter it applies to.
type ThemeView struct {
	Chapter    string       `json:"chapter" yaml:"chapter"`
	Configured bool         `json:"configured" yaml:"configured"`
	Theme      themes.Theme `json:"theme" yaml:"theme"`
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Inspect and edit per-chapter generation themes",
}

var themesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chapters with a configured theme",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		f, err := a.themes()
		if err != nil {
			return err
		}
		return api.Output(map[string]any{
			"path":     a.themesPath(),
			"version":  f.Version,
			"chapters": f.Keys(),
		})
	},
}

var themesShowCmd = &cobra.Command{
	Use:   "show <book> <sarga>",
	Short: "Show the theme a chapter is generated with",
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
		f, err := a.themes()
		if err != nil {
			return err
		}
		t, ok := f.Lookup(book, sarga)
		return api.Output(ThemeView{Chapter: themes.ChapterID(book, sarga), Configured: ok, Theme: t})
	},
}

var themesAutoForce bool

var themesAutoCmd = &cobra.Command{
	Use:   "auto <book> <sarga>",
	Short: "Derive a theme from the fetched chapter and save it",
	Long: `Auto derives a theme from the chapter's opening verse and saves it to
the themes file. A chapter that already has an entry is left alone unless
--force is set.`,
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
		f, err := a.themes()
		if err != nil {
			return err
		}
		if t, ok := f.Lookup(book, sarga); ok && !themesAutoForce {
			a.logger.Info("theme already configured, use --force to replace", "chapter", themes.ChapterID(book, sarga))
			return api.Output(ThemeView{Chapter: themes.ChapterID(book, sarga), Configured: true, Theme: t})
		}

		src, err := a.loadChapter(book, sarga)
		if err != nil {
			return err
		}
		t := themes.AutoConfigure(src)
		if err := themes.Save(a.themesPath(), f.With(book, sarga, t)); err != nil {
			return err
		}
		return api.Output(ThemeView{Chapter: themes.ChapterID(book, sarga), Configured: true, Theme: t})
	},
}

func init() {
	themesAutoCmd.Flags().BoolVar(&themesAutoForce, "force", false, "Replace an existing entry")
	themesCmd.AddCommand(themesListCmd, themesShowCmd, themesAutoCmd)
	rootCmd.AddCommand(themesCmd)
}
