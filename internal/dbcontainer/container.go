// Package dbcontainer manages a local PostgreSQL container for development.
package dbcontainer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5"
)

const (
	DefaultImage        = "postgres:16-alpine"
	ContainerNamePrefix = "itihasa-postgres"
	DefaultPort         = "5432"
	ContainerPort       = "5432/tcp"
	DataDir             = "/var/lib/postgresql/data"
	Label               = "itihasa-postgres"

	DefaultUser     = "itihasa"
	DefaultPassword = "itihasa"
	DefaultDatabase = "itihasa"

	defaultReadyTimeout = 60 * time.Second
)

// Status is the state of the container.
type Status string

const (
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusNotFound Status = "not_found"
	StatusStarting Status = "starting"
)

// ContainerName derives a container name from the home path so two home
// directories on one host get separate databases.
func ContainerName(homePath string) string {
	sum := sha256.Sum256([]byte(homePath))
	return ContainerNamePrefix + "-" + hex.EncodeToString(sum[:])[:8]
}

// Config configures a Manager.
type Config struct {
	ContainerName string
	Image         string
	DataPath      string // host directory bind-mounted as the data dir
	HostPort      string
	User          string
	Password      string
	Database      string
	Labels        map[string]string
	Logger        *slog.Logger
}

func (c *Config) setDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = ContainerNamePrefix
	}
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.HostPort == "" {
		c.HostPort = DefaultPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Password == "" {
		c.Password = DefaultPassword
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager runs the container through the Docker API.
type Manager struct {
	cli    *client.Client
	cfg    Config
	labels map[string]string
	logger *slog.Logger
}

// New creates a Manager using the Docker environment of the process.
func New(cfg Config) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	cfg.setDefaults()

	labels := map[string]string{Label: "true"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	return &Manager{cli: cli, cfg: cfg, labels: labels, logger: cfg.Logger}, nil
}

// Close closes the Docker client.
func (m *Manager) Close() error {
	return m.cli.Close()
}

// Name returns the container name.
func (m *Manager) Name() string {
	return m.cfg.ContainerName
}

// DSN returns the connection string of the containerized database.
func (m *Manager) DSN() string {
	return DSN(m.cfg.User, m.cfg.Password, "localhost", m.cfg.HostPort, m.cfg.Database)
}

// DSN builds a postgres:// URL with sslmode disabled.
func DSN(user, password, host, port, database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Up creates or starts the container and waits until the database accepts
// connections. A running container is left alone.
func (m *Manager) Up(ctx context.Context) error {
	if _, err := m.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	status, id, err := m.inspect(ctx)
	if err != nil {
		return err
	}

	switch status {
	case StatusRunning:
		m.logger.Info("database container already running", "name", m.cfg.ContainerName)
		return m.WaitReady(ctx, defaultReadyTimeout)
	case StatusStopped, StatusStarting:
		if err := m.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start existing container: %w", err)
		}
		m.logger.Info("database container started", "name", m.cfg.ContainerName)
		return m.WaitReady(ctx, defaultReadyTimeout)
	case StatusNotFound:
		return m.create(ctx)
	default:
		return fmt.Errorf("container in unexpected state: %s", status)
	}
}

// Down stops the container. With remove set it is deleted as well; the
// bind-mounted data directory survives either way.
func (m *Manager) Down(ctx context.Context, remove bool) error {
	status, id, err := m.inspect(ctx)
	if err != nil {
		return err
	}
	if status == StatusNotFound {
		return nil
	}

	if status == StatusRunning {
		timeout := 10
		if err := m.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
			return fmt.Errorf("failed to stop container: %w", err)
		}
	}
	if !remove {
		return nil
	}
	if err := m.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Status returns the container state.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	status, _, err := m.inspect(ctx)
	return status, err
}

// Logs returns the last tail lines of the container output.
func (m *Manager) Logs(ctx context.Context, tail string) (string, error) {
	status, id, err := m.inspect(ctx)
	if err != nil {
		return "", err
	}
	if status == StatusNotFound {
		return "", fmt.Errorf("container %s not found", m.cfg.ContainerName)
	}

	logs, err := m.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer logs.Close()

	data, err := io.ReadAll(logs)
	if err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	return string(data), nil
}

// WaitReady polls the database with a real connection until it answers a
// ping or the timeout passes.
func (m *Manager) WaitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dsn := m.DSN()
	return retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			conn, err := pgx.Connect(pingCtx, dsn)
			if err != nil {
				return err
			}
			defer conn.Close(context.Background())
			return conn.Ping(pingCtx)
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func (m *Manager) create(ctx context.Context) error {
	if err := m.ensureImage(ctx); err != nil {
		return err
	}

	cfg := &container.Config{
		Image: m.cfg.Image,
		Env: []string{
			"POSTGRES_USER=" + m.cfg.User,
			"POSTGRES_PASSWORD=" + m.cfg.Password,
			"POSTGRES_DB=" + m.cfg.Database,
		},
		Labels:       m.labels,
		ExposedPorts: nat.PortSet{ContainerPort: struct{}{}},
		Healthcheck: &container.HealthConfig{
			Test:        []string{"CMD", "pg_isready", "-U", m.cfg.User, "-d", m.cfg.Database},
			Interval:    2 * time.Second,
			Timeout:     5 * time.Second,
			Retries:     15,
			StartPeriod: 3 * time.Second,
		},
	}
	host := &container.HostConfig{
		PortBindings: nat.PortMap{
			ContainerPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: m.cfg.HostPort}},
		},
	}
	if m.cfg.DataPath != "" {
		host.Mounts = []mount.Mount{{Type: mount.TypeBind, Source: m.cfg.DataPath, Target: DataDir}}
	}

	resp, err := m.cli.ContainerCreate(ctx, cfg, host, nil, nil, m.cfg.ContainerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container: %w", err)
	}
	m.logger.Info("database container created", "name", m.cfg.ContainerName, "port", m.cfg.HostPort)
	return m.WaitReady(ctx, defaultReadyTimeout)
}

func (m *Manager) inspect(ctx context.Context) (Status, string, error) {
	args := filters.NewArgs()
	args.Add("name", "^/"+m.cfg.ContainerName+"$")

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return "", "", fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return StatusNotFound, "", nil
	}
	c := containers[0]
	return stateStatus(string(c.State)), c.ID, nil
}

func stateStatus(state string) Status {
	switch state {
	case "running":
		return StatusRunning
	case "exited", "dead":
		return StatusStopped
	case "created", "restarting":
		return StatusStarting
	default:
		return Status(state)
	}
}

func (m *Manager) ensureImage(ctx context.Context) error {
	if _, err := m.cli.ImageInspect(ctx, m.cfg.Image); err == nil {
		return nil
	}
	m.logger.Info("pulling image", "image", m.cfg.Image)
	reader, err := m.cli.ImagePull(ctx, m.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}
