package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
)

const swaggerPath = "/swagger.json"

// SwaggerEndpoint serves the API description. The checked-in
// docs/swagger/swagger.json supplies the documented operations; any
// registered route it does not describe is added as a stub so the document
// always lists every route the server answers.
type SwaggerEndpoint struct {
	// SpecPath is the path to the swagger.json file. Empty uses
	// docs/swagger/swagger.json under the working directory.
	SpecPath string

	// Routes are the endpoints served next to this one.
	Routes []api.Endpoint
}

func (e *SwaggerEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", swaggerPath, e.handler
}

func (e *SwaggerEndpoint) RequiresStore() bool { return false }

func (e *SwaggerEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	doc, err := e.document(r.Host)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, doc)
}

// document loads the checked-in description and fills in undescribed routes.
func (e *SwaggerEndpoint) document(host string) (map[string]any, error) {
	specPath := e.SpecPath
	if specPath == "" {
		specPath = "docs/swagger/swagger.json"
	}

	doc := map[string]any{}
	data, err := os.ReadFile(specPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", filepath.Base(specPath), err)
		}
	case os.IsNotExist(err):
		doc = map[string]any{
			"swagger":  "2.0",
			"info":     map[string]any{"title": "Itihasa API", "version": "1.0"},
			"basePath": "/",
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(specPath), err)
	}
	if host != "" {
		doc["host"] = host
	}

	paths, _ := doc["paths"].(map[string]any)
	if paths == nil {
		paths = map[string]any{}
	}
	for _, ep := range e.Routes {
		method, path, _ := ep.Route()
		if path == swaggerPath || path == swaggerUIPath {
			continue
		}
		item, _ := paths[path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[path] = item
		}
		op := strings.ToLower(method)
		if _, ok := item[op]; !ok {
			item[op] = stubOperation(method, path)
		}
	}
	doc["paths"] = paths
	return doc, nil
}

// stubOperation describes a route from its pattern alone: a tag from the
// first segment after /api and one required string parameter per {name}.
func stubOperation(method, path string) map[string]any {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	tag := segments[0]
	if tag == "api" && len(segments) > 1 {
		tag = segments[1]
	}

	var params []any
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params = append(params, map[string]any{
				"name":     strings.Trim(seg, "{}"),
				"in":       "path",
				"required": true,
				"type":     "string",
			})
		}
	}

	op := map[string]any{
		"summary":   method + " " + path,
		"tags":      []any{tag},
		"produces":  []any{"application/json"},
		"responses": map[string]any{"200": map[string]any{"description": "OK"}},
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return op
}

func (e *SwaggerEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outputFile string
	var listPaths bool
	cmd := &cobra.Command{
		Use:   "swagger",
		Short: "Fetch the API description from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			var spec map[string]any
			if err := client.Get(ctx, swaggerPath, &spec); err != nil {
				return err
			}

			if listPaths {
				return api.Output(routeList(spec))
			}
			if outputFile != "" {
				return api.OutputToFile(spec, outputFile)
			}
			return api.Output(spec)
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")
	cmd.Flags().BoolVar(&listPaths, "paths", false, "Only list METHOD /path for each operation")
	return cmd
}

// routeList flattens a description's paths into sorted "METHOD /path" lines.
func routeList(spec map[string]any) []string {
	paths, _ := spec["paths"].(map[string]any)
	var out []string
	for path, item := range paths {
		ops, _ := item.(map[string]any)
		for method := range ops {
			out = append(out, strings.ToUpper(method)+" "+path)
		}
	}
	sort.Strings(out)
	return out
}

const swaggerUIPath = "/swagger"

// SwaggerUIEndpoint serves Swagger UI.
type SwaggerUIEndpoint struct{}

func (e *SwaggerUIEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", swaggerUIPath, e.handler
}

func (e *SwaggerUIEndpoint) RequiresStore() bool { return false }

func (e *SwaggerUIEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
  <title>Itihasa API</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '` + swaggerPath + `', dom_id: '#swagger-ui'});
  </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

func (e *SwaggerUIEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:    "swagger-ui",
		Hidden: true,
		Short:  "Print the Swagger UI address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("Open in browser:", getServerURL()+swaggerUIPath)
			return nil
		},
	}
}

// GetSwaggerSpecPath finds docs/swagger/swagger.json next to the executable,
// falling back to the working directory.
func GetSwaggerSpecPath() string {
	if exe, err := os.Executable(); err == nil {
		specPath := filepath.Join(filepath.Dir(exe), "docs", "swagger", "swagger.json")
		if _, err := os.Stat(specPath); err == nil {
			return specPath
		}
	}
	return "docs/swagger/swagger.json"
}
