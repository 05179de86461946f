package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/dbcontainer"
	"github.com/jackzampolin/itihasa/internal/store"
)

// container returns a manager for the local development database.
func (a *app) container() (*dbcontainer.Manager, error) {
	c := a.cfg().Container
	name := c.Name
	if name == "" {
		name = dbcontainer.ContainerName(a.home.Path())
	}
	return dbcontainer.New(dbcontainer.Config{
		ContainerName: name,
		Image:         c.Image,
		DataPath:      a.home.PostgresDataDir(),
		HostPort:      c.Port,
		Password:      c.Password,
		Logger:        a.logger,
	})
}

// startLocalDB brings the container up and creates the schema. It returns
// the DSN of the database.
func (a *app) startLocalDB(ctx context.Context, m *dbcontainer.Manager) (string, error) {
	if err := m.Up(ctx); err != nil {
		return "", err
	}
	dsn := m.DSN()
	pg, err := store.OpenPostgres(ctx, store.PostgresConfig{DSN: dsn, Logger: a.logger})
	if err != nil {
		return "", err
	}
	defer pg.Close()
	if err := pg.CreateSchema(ctx); err != nil {
		return "", err
	}
	return dsn, nil
}

// DBStatus is the output of "db status".
type DBStatus struct {
	Container string             `json:"container" yaml:"container"`
	Status    dbcontainer.Status `json:"status" yaml:"status"`
	DSN       string             `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local PostgreSQL container",
	Long: `The db commands run a PostgreSQL container for development. Its data
directory lives under the itihasa home, so "db down" keeps the data.

Point the store at it with:
  export DATABASE_URL=$(itihasa db up -o json | jq -r .dsn)`,
}

// withContainer loads the app and a container manager and closes the
// manager afterwards.
func withContainer(fn func(a *app, m *dbcontainer.Manager) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	m, err := a.container()
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(a, m)
}

var dbUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the container and create the schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(a *app, m *dbcontainer.Manager) error {
			dsn, err := a.startLocalDB(cmd.Context(), m)
			if err != nil {
				return err
			}
			return api.Output(DBStatus{Container: m.Name(), Status: dbcontainer.StatusRunning, DSN: dsn})
		})
	},
}

var dbRemove bool

var dbDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the container",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(a *app, m *dbcontainer.Manager) error {
			if err := m.Down(cmd.Context(), dbRemove); err != nil {
				return err
			}
			a.logger.Info("database container stopped", "name", m.Name(), "removed", dbRemove)
			return nil
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the container state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(a *app, m *dbcontainer.Manager) error {
			status, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := DBStatus{Container: m.Name(), Status: status}
			if status == dbcontainer.StatusRunning {
				out.DSN = m.DSN()
			}
			return api.Output(out)
		})
	},
}

var dbTail string

var dbLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the container logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(a *app, m *dbcontainer.Manager) error {
			logs, err := m.Logs(cmd.Context(), dbTail)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), logs)
			return nil
		})
	},
}

var dbWaitTimeout time.Duration

var dbWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the database accepts connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(a *app, m *dbcontainer.Manager) error {
			return m.WaitReady(cmd.Context(), dbWaitTimeout)
		})
	},
}

func init() {
	dbDownCmd.Flags().BoolVar(&dbRemove, "remove", false, "Remove the container after stopping it")
	dbLogsCmd.Flags().StringVar(&dbTail, "tail", "100", "Number of lines, or \"all\"")
	dbWaitCmd.Flags().DurationVar(&dbWaitTimeout, "timeout", time.Minute, "How long to wait")
	dbCmd.AddCommand(dbUpCmd, dbDownCmd, dbStatusCmd, dbLogsCmd, dbWaitCmd)
	rootCmd.AddCommand(dbCmd)
}
