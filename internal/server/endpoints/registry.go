package endpoints

import (
	"time"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/dbcontainer"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	Container         *dbcontainer.Manager
	DeepDiveCacheSize int
	DeepDiveCacheTTL  time.Duration
	SwaggerSpecPath   string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	swagger := &SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath}
	eps := []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{Container: cfg.Container},

		// Swagger/OpenAPI endpoints
		swagger,
		&SwaggerUIEndpoint{},
	}
	eps = append(eps, QuizCommands(cfg)...)
	eps = append(eps, LLMCallCommands()...)
	eps = append(eps, PromptCommands()...)
	swagger.Routes = eps
	return eps
}

// QuizCommands returns the quiz and chapter study endpoints.
func QuizCommands(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		&QuizEndpoint{},
		&SubmitEndpoint{},
		NewDeepDiveEndpoint(cfg.DeepDiveCacheSize, cfg.DeepDiveCacheTTL),
	}
}

// LLMCallCommands returns endpoints for LLM call history operations.
// This groups llmcall-related commands under "llmcalls" subcommand.
func LLMCallCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},
		&LLMCallCountsEndpoint{},
	}
}

// PromptCommands returns the prompt inspection endpoints.
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
	}
}
