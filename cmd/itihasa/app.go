package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackzampolin/itihasa/internal/config"
	"github.com/jackzampolin/itihasa/internal/fetch"
	"github.com/jackzampolin/itihasa/internal/generate"
	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/importer"
	"github.com/jackzampolin/itihasa/internal/llmcall"
	"github.com/jackzampolin/itihasa/internal/providers"
	"github.com/jackzampolin/itihasa/internal/review"
	"github.com/jackzampolin/itihasa/internal/store"
	"github.com/jackzampolin/itihasa/internal/themes"
	"github.com/jackzampolin/itihasa/internal/types"
)

// app holds what every command needs: the home directory, configuration
// and logger.
type app struct {
	home   *home.Dir
	cfgMgr *config.Manager
	logger *slog.Logger
}

func loadApp() (*app, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &app{home: h, cfgMgr: mgr, logger: slog.Default()}, nil
}

func (a *app) cfg() *config.Config {
	return a.cfgMgr.Get()
}

func (a *app) fetcher() *fetch.Fetcher {
	c := a.cfg().Fetch
	return fetch.New(fetch.Config{
		BaseURL:   c.BaseURL(),
		Encoding:  c.Encoding,
		EpicID:    types.DefaultEpicID,
		Timeout:   c.Timeout(),
		Retries:   c.Retries,
		UserAgent: c.UserAgent,
		Logger:    a.logger,
	})
}

func (a *app) themesPath() string {
	if p := a.cfg().ThemesFile; p != "" {
		return p
	}
	return a.home.ThemesPath()
}

func (a *app) themes() (*themes.File, error) {
	return themes.Load(a.themesPath())
}

// chapterTheme returns the configured theme of a chapter. With auto set, a
// chapter without an entry gets a theme derived from its verses.
func (a *app) chapterTheme(src *types.ChapterSource, auto bool) (themes.Theme, error) {
	f, err := a.themes()
	if err != nil {
		return themes.Theme{}, err
	}
	t, ok := f.Lookup(src.Book, src.Sarga)
	if !ok && auto {
		t = themes.AutoConfigure(src)
	}
	return t, nil
}

// generator wires a generator to the configured provider. The returned stop
// function flushes recorded LLM calls and must be called before exit.
func (a *app) generator(ctx context.Context, provider, model string) (*generate.Generator, func(), error) {
	cfg := a.cfg()
	if provider == "" {
		provider = cfg.Defaults.LLMProvider
	}

	client, err := a.llmClient(provider)
	if err != nil {
		return nil, nil, err
	}

	resolver := generate.DefaultResolver(a.logger)
	if _, err := resolver.LoadOverrides(a.home.PromptsDir()); err != nil {
		return nil, nil, err
	}

	var limiter *providers.RateLimiter
	if rl, ok := client.(interface{ RequestsPerMinute() float64 }); ok && rl.RequestsPerMinute() > 0 {
		limiter = providers.NewRateLimiter(rl.RequestsPerMinute())
	}

	sink := llmcall.NewSink(llmcall.SinkConfig{Path: a.home.LLMCallLogPath(), Logger: a.logger})
	sink.Start(ctx)

	temp := cfg.Defaults.Temperature
	gen, err := generate.New(generate.Config{
		Client:         client,
		Prompts:        resolver,
		Model:          model,
		MaxTokens:      cfg.Defaults.MaxTokens,
		Temperature:    &temp,
		StandardCount:  cfg.Defaults.QuestionCount,
		PassCount:      cfg.Defaults.PassQuestionCount,
		PassDelay:      cfg.Defaults.PassDelay(),
		RateLimiter:    limiter,
		DiagnosticsDir: a.home.DiagnosticsDir(),
		Recorder:       llmcall.NewRecorder(sink),
		Logger:         a.logger,
	})
	if err != nil {
		sink.Stop()
		return nil, nil, err
	}
	return gen, sink.Stop, nil
}

func (a *app) llmClient(name string) (providers.LLMClient, error) {
	registry := providers.NewRegistry()
	registry.SetLogger(a.logger)
	registry.Reload(a.cfg().ToProviderRegistryConfig())
	client, err := registry.GetLLM(name)
	if err != nil {
		return nil, fmt.Errorf("LLM provider %q: %w (enabled: %v)", name, err, registry.ListLLM())
	}
	return client, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	c := a.cfg().Store
	switch c.Driver {
	case "postgres", "":
		dsn := c.ResolvedDSN()
		if dsn == "" {
			return nil, fmt.Errorf("store.dsn is empty (set DATABASE_URL or run \"itihasa db up\")")
		}
		return store.OpenPostgres(ctx, store.PostgresConfig{
			DSN:      dsn,
			MaxConns: c.MaxConns,
			MinConns: c.MinConns,
			Logger:   a.logger,
		})
	case "supabase":
		return store.OpenSupabase(store.SupabaseConfig{
			URL:    config.ResolveEnvVars(c.SupabaseURL),
			Key:    config.ResolveEnvVars(c.SupabaseKey),
			Logger: a.logger,
		})
	case "memory":
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q (want postgres, supabase or memory)", c.Driver)
}

func (a *app) reviewSurface(ctx context.Context) (review.Surface, error) {
	c := a.cfg().Review
	switch c.Backend {
	case "csv", "":
		dir := c.Dir
		if dir == "" {
			dir = a.home.ReviewDir()
		}
		return review.NewCSVSurface(dir), nil
	case "mongo":
		return review.NewMongoSurface(ctx, review.MongoConfig{
			URI:        config.ResolveEnvVars(c.MongoURI),
			Database:   c.Database,
			Collection: c.Collection,
		})
	}
	return nil, fmt.Errorf("unknown review backend %q (want csv or mongo)", c.Backend)
}

func (a *app) importer(mode importer.Mode, st store.Store) (*importer.Importer, error) {
	c := a.cfg().Import
	return importer.New(importer.Config{
		Mode:        mode,
		Store:       st,
		SQLDir:      a.home.DataPath(),
		Retry:       c.Retry,
		MaxAttempts: uint(max(c.MaxAttempts, 0)),
		BaseDelay:   c.BaseDelay(),
		Logger:      a.logger,
	})
}

// loadChapter reads the verses file written by fetch.
func (a *app) loadChapter(book string, sarga int) (*types.ChapterSource, error) {
	path := a.home.ChapterFile(book, sarga, home.KindVerses)
	src, err := fetch.LoadChapter(path)
	if err != nil {
		return nil, fmt.Errorf("%w (run \"itihasa fetch %s %d\" first)", err, book, sarga)
	}
	return src, nil
}

// parseChapter validates a book id and sarga argument.
func parseChapter(bookArg, sargaArg string) (string, int, error) {
	book, ok := types.LookupBook(bookArg)
	if !ok {
		return "", 0, errUnknownBook(bookArg)
	}
	sarga, err := strconv.Atoi(sargaArg)
	if err != nil || sarga < 1 {
		return "", 0, fmt.Errorf("invalid sarga %q", sargaArg)
	}
	if book.Sargas > 0 && sarga > book.Sargas {
		return "", 0, fmt.Errorf("%s has %d sargas, got %d", book.Title, book.Sargas, sarga)
	}
	return book.ID, sarga, nil
}

func errUnknownBook(id string) error {
	return fmt.Errorf("unknown book %q (want one of %v)", id, types.BookIDs())
}

// parseRange reads "<from>" or "<from> <to>" sarga arguments.
func parseRange(book string, args []string) (int, int, error) {
	_, from, err := parseChapter(book, args[0])
	if err != nil {
		return 0, 0, err
	}
	to := from
	if len(args) > 1 {
		if _, to, err = parseChapter(book, args[1]); err != nil {
			return 0, 0, err
		}
	}
	if to < from {
		return 0, 0, fmt.Errorf("invalid range %d..%d", from, to)
	}
	return from, to, nil
}

func chapterKey(book string, sarga int) types.ChapterKey {
	return types.ChapterKey{EpicID: types.DefaultEpicID, Book: book, Sarga: sarga}
}
