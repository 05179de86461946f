package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running itihasa server via HTTP.

These commands require a running server (itihasa serve).
Use --server to specify a custom server URL.

Examples:
  itihasa api health                     # Check server health
  itihasa api quiz --book bala -n 5      # Draw five questions
  itihasa api deep-dive bala 1           # Summary and questions of a chapter
  itihasa api llmcalls list --book bala  # Recorded LLM calls`,
}

var llmcallsCmd = &cobra.Command{
	Use:   "llmcalls",
	Short: "LLM call history commands",
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt inspection commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func addCommands(parent *cobra.Command, eps []api.Endpoint) {
	for _, ep := range eps {
		parent.AddCommand(ep.Command(getServerURL))
	}
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	addCommands(apiCmd, []api.Endpoint{
		&endpoints.HealthEndpoint{},
		&endpoints.ReadyEndpoint{},
		&endpoints.StatusEndpoint{},
		&endpoints.SwaggerEndpoint{},
	})

	// Quiz, submit and deep-dive at top level
	addCommands(apiCmd, endpoints.QuizCommands(endpoints.Config{}))

	addCommands(llmcallsCmd, endpoints.LLMCallCommands())
	addCommands(promptsCmd, endpoints.PromptCommands())

	apiCmd.AddCommand(llmcallsCmd)
	apiCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(apiCmd)
}
