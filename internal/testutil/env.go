// Package testutil holds helpers shared by tests that need Docker, a real
// database or a free port.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"testing"
)

// PostgresDSNEnv names the variable holding a DSN for database tests.
const PostgresDSNEnv = "ITIHASA_TEST_POSTGRES_DSN"

// PostgresDSN returns the test database DSN, skipping the test when none
// is configured.
func PostgresDSN(t testing.TB) string {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	return dsn
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FindFreePort finds an available TCP port and returns it as a string.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}
