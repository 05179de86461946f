package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/dbcontainer"
	"github.com/jackzampolin/itihasa/internal/generate"
	"github.com/jackzampolin/itihasa/internal/llmcall"
	"github.com/jackzampolin/itihasa/internal/server"
	"github.com/jackzampolin/itihasa/internal/server/endpoints"
	"github.com/jackzampolin/itihasa/internal/store"
)

var (
	serveHost    string
	servePort    string
	serveLocalDB bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quiz API server",
	Long: `Start the quiz HTTP server.

The server opens the configured store and serves:
  - POST /api/quiz                                 random questions
  - POST /api/quiz/submit                          grade answers
  - GET  /api/chapters/{book}/{sarga}/deep-dive    summary and all questions
  - /health, /ready, /status and /swagger

With --local-db the development PostgreSQL container is started first and
stopped when the server shuts down.

Examples:
  itihasa serve                    # Start on default port 8080
  itihasa serve --port 3000        # Start on custom port
  itihasa serve --local-db         # Use the local container`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := loadApp()
		if err != nil {
			return err
		}
		a.cfgMgr.WatchConfig()

		resolver := generate.DefaultResolver(a.logger)
		if _, err := resolver.LoadOverrides(a.home.PromptsDir()); err != nil {
			return err
		}

		openStore := a.openStore
		var container *dbcontainer.Manager
		if serveLocalDB {
			if container, err = a.container(); err != nil {
				return err
			}
			defer container.Close()
			defer func() {
				if err := container.Down(context.Background(), false); err != nil {
					a.logger.Error("failed to stop database container", "error", err)
				}
			}()
			openStore = func(ctx context.Context) (store.Store, error) {
				dsn, err := a.startLocalDB(ctx, container)
				if err != nil {
					return nil, err
				}
				c := a.cfg().Store
				return store.OpenPostgres(ctx, store.PostgresConfig{
					DSN:      dsn,
					MaxConns: c.MaxConns,
					MinConns: c.MinConns,
					Logger:   a.logger,
				})
			}
		}

		srv, err := server.New(server.Config{
			Host:            serveHost,
			Port:            servePort,
			OpenStore:       openStore,
			Container:       container,
			Home:            a.home,
			LLMCalls:        llmcall.NewStore(a.home.LLMCallLogPath()),
			Prompts:         resolver,
			SwaggerSpecPath: endpoints.GetSwaggerSpecPath(),
			ConfigManager:   a.cfgMgr,
			Logger:          a.logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().BoolVar(&serveLocalDB, "local-db", false, "Start and use the local PostgreSQL container")

	rootCmd.AddCommand(serveCmd)
}
