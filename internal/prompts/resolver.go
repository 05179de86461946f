package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
)

// OverrideExt is the file extension of prompt override files.
const OverrideExt = ".tmpl"

// ChapterPartialKey is the shared {{template "chapter" .}} block.
const ChapterPartialKey = "shared.chapter"

//go:embed chapter.tmpl
var chapterPartial string

// Resolver resolves prompts with file overrides.
// Resolution order: override file > embedded default
type Resolver struct {
	embedded  map[string]EmbeddedPrompt
	overrides map[string]string
	parsed    map[string]*template.Template // keyed by CID plus partial CIDs
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewResolver creates a new prompt resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		embedded:  make(map[string]EmbeddedPrompt),
		overrides: make(map[string]string),
		parsed:    make(map[string]*template.Template),
		logger:    logger,
	}
	r.Register(EmbeddedPrompt{
		Key:         ChapterPartialKey,
		Text:        chapterPartial,
		Description: "Chapter header and verse listing shared by all stage prompts",
		Partial:     true,
	})
	return r
}

// Register registers an embedded prompt.
// This should be called during initialization by each stage.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// LoadOverrides reads <key>.tmpl files from dir. Files for unknown keys are
// ignored with a warning. A missing directory is not an error. Nothing is
// applied unless every override parses and all its {{template}} calls
// resolve.
func (r *Resolver) LoadOverrides(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read prompt overrides: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	found := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), OverrideExt) {
			continue
		}
		key := strings.TrimSuffix(e.Name(), OverrideExt)
		if _, ok := r.embedded[key]; !ok {
			r.logger.Warn("ignoring override for unknown prompt", "key", key, "dir", dir)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return 0, fmt.Errorf("failed to read override %s: %w", e.Name(), err)
		}
		if _, err := template.New(key).Funcs(Funcs).Parse(string(data)); err != nil {
			return 0, fmt.Errorf("invalid override %s: %w", e.Name(), err)
		}
		found[key] = string(data)
	}

	// Partial overrides in the same directory count when checking calls.
	known := make(map[string]bool)
	for key, p := range r.embedded {
		if !p.Partial {
			continue
		}
		text := p.Text
		if o, ok := found[key]; ok {
			text = o
		}
		if refs, err := scanTemplate(text); err == nil {
			for name := range refs.defines {
				known[name] = true
			}
		}
	}
	for key, text := range found {
		if err := checkTemplateCalls(text, known); err != nil {
			return 0, fmt.Errorf("invalid override %s%s: %w", key, OverrideExt, err)
		}
	}

	for key, text := range found {
		r.overrides[key] = text
	}
	if len(found) > 0 {
		r.logger.Info("loaded prompt overrides", "count", len(found), "dir", dir)
	}
	return len(found), nil
}

// Resolve returns the override if one exists, otherwise the embedded default.
func (r *Resolver) Resolve(key string) (*ResolvedPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if text, ok := r.overrides[key]; ok {
		return &ResolvedPrompt{
			Key:        key,
			Text:       text,
			Variables:  ExtractVariables(text),
			IsOverride: true,
			CID:        HashText(text),
		}, nil
	}

	embedded, ok := r.embedded[key]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}
	return &ResolvedPrompt{
		Key:       key,
		Text:      embedded.Text,
		Variables: embedded.Variables,
		CID:       embedded.Hash,
	}, nil
}

// Render resolves key and executes it against data.
func (r *Resolver) Render(key string, data any) (*Rendered, error) {
	resolved, err := r.Resolve(key)
	if err != nil {
		return nil, err
	}

	tmpl, err := r.template(resolved)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render prompt %s: %w", key, err)
	}
	return &Rendered{Key: key, Text: buf.String(), CID: resolved.CID}, nil
}

func (r *Resolver) template(p *ResolvedPrompt) (*template.Template, error) {
	partials, err := r.partials()
	if err != nil {
		return nil, err
	}

	cacheKey := p.CID
	for _, pt := range partials {
		cacheKey += "+" + pt.CID
	}

	r.mu.RLock()
	tmpl, ok := r.parsed[cacheKey]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err = template.New(p.Key).Funcs(Funcs).Parse(p.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", p.Key, err)
	}
	for _, pt := range partials {
		if pt.Key == p.Key {
			continue
		}
		if _, err := tmpl.New(pt.Key).Parse(pt.Text); err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", pt.Key, err)
		}
	}

	r.mu.Lock()
	r.parsed[cacheKey] = tmpl
	r.mu.Unlock()
	return tmpl, nil
}

func (r *Resolver) partials() ([]*ResolvedPrompt, error) {
	r.mu.RLock()
	var keys []string
	for k, p := range r.embedded {
		if p.Partial {
			keys = append(keys, k)
		}
	}
	r.mu.RUnlock()
	sort.Strings(keys)

	out := make([]*ResolvedPrompt, 0, len(keys))
	for _, k := range keys {
		p, err := r.Resolve(k)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// GetEmbedded returns the embedded default for a key.
func (r *Resolver) GetEmbedded(key string) (*EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return &p, ok
}

// AllEmbedded returns all registered embedded prompts sorted by key.
func (r *Resolver) AllEmbedded() []EmbeddedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}
