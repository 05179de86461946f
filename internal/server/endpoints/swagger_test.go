package endpoints

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/itihasa/internal/api"
)

func TestSwaggerDocument_AddsUndescribedRoutes(t *testing.T) {
	specPath := filepath.Join(t.TempDir(), "swagger.json")
	spec := `{"swagger": "2.0", "host": "localhost:8080", "paths": {
		"/api/quiz": {"post": {"summary": "Generate a quiz"}}
	}}`
	if err := os.WriteFile(specPath, []byte(spec), 0o644); err != nil {
		t.Fatal(err)
	}

	ep := &SwaggerEndpoint{SpecPath: specPath}
	ep.Routes = []api.Endpoint{ep, &SwaggerUIEndpoint{}, &HealthEndpoint{}, &QuizEndpoint{}, &GetLLMCallEndpoint{}}
	doc, err := ep.document("quiz.example:9000")
	if err != nil {
		t.Fatalf("document() error = %v", err)
	}

	if doc["host"] != "quiz.example:9000" {
		t.Errorf("host = %v, want the request host", doc["host"])
	}
	paths := doc["paths"].(map[string]any)
	quiz := paths["/api/quiz"].(map[string]any)["post"].(map[string]any)
	if quiz["summary"] != "Generate a quiz" {
		t.Errorf("documented operation replaced: %v", quiz)
	}
	if _, ok := paths["/health"].(map[string]any)["get"]; !ok {
		t.Errorf("/health missing from %v", paths)
	}
	if _, ok := paths[swaggerPath]; ok {
		t.Error("the description should not list itself")
	}

	call := paths["/api/llmcalls/{id}"].(map[string]any)["get"].(map[string]any)
	if tags := call["tags"].([]any); len(tags) != 1 || tags[0] != "llmcalls" {
		t.Errorf("tags = %v, want [llmcalls]", tags)
	}
	params := call["parameters"].([]any)
	if len(params) != 1 || params[0].(map[string]any)["name"] != "id" {
		t.Errorf("parameters = %v, want the id path parameter", params)
	}

	lines := strings.Join(routeList(doc), "\n")
	for _, want := range []string{"GET /api/llmcalls/{id}", "GET /health", "POST /api/quiz"} {
		if !strings.Contains(lines, want) {
			t.Errorf("routeList() missing %q:\n%s", want, lines)
		}
	}
}

func TestSwaggerDocument_MissingFile(t *testing.T) {
	ep := &SwaggerEndpoint{SpecPath: filepath.Join(t.TempDir(), "missing.json")}
	ep.Routes = []api.Endpoint{&ReadyEndpoint{}}
	doc, err := ep.document("")
	if err != nil {
		t.Fatalf("document() error = %v", err)
	}
	if doc["swagger"] != "2.0" {
		t.Errorf("swagger = %v", doc["swagger"])
	}
	if _, ok := doc["paths"].(map[string]any)["/ready"]; !ok {
		t.Errorf("paths = %v, want /ready", doc["paths"])
	}
}

func TestSwaggerDocument_InvalidFile(t *testing.T) {
	specPath := filepath.Join(t.TempDir(), "swagger.json")
	os.WriteFile(specPath, []byte("{"), 0o644)
	if _, err := (&SwaggerEndpoint{SpecPath: specPath}).document(""); err == nil {
		t.Error("expected error for unparsable description")
	}
}
