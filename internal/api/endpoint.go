package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint defines an HTTP route together with the CLI command that calls it.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresStore reports whether the handler needs the quiz store to be
	// open. Such routes answer 503 until it is.
	RequiresStore() bool

	// Command returns a cobra command that calls this endpoint over HTTP.
	// getServerURL is evaluated when the command runs.
	Command(getServerURL func() string) *cobra.Command
}
