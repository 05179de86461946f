package home

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the itihasa home directory.
	DefaultDirName = ".itihasa"

	// DataDirName is the subdirectory for per-chapter stage outputs.
	DataDirName = "data"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// ThemesFileName is the default per-chapter theme file name.
	ThemesFileName = "themes.toml"
)

// Kind names one stage output file of a chapter.
type Kind string

const (
	KindVerses        Kind = "verses"
	KindSummary       Kind = "summary"
	KindQuestions     Kind = "questions"
	KindHardQuestions Kind = "hard_questions"
	KindImportSQL     Kind = "import"
)

// Dir represents the itihasa home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.itihasa).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ThemesPath returns the path to the default theme file.
func (d *Dir) ThemesPath() string {
	return filepath.Join(d.path, ThemesFileName)
}

// DiagnosticsDir holds raw provider replies that failed to parse.
func (d *Dir) DiagnosticsDir() string {
	return filepath.Join(d.path, "diagnostics")
}

// ReviewDir holds the CSV review sheets.
func (d *Dir) ReviewDir() string {
	return filepath.Join(d.path, "review")
}

// LLMCallLogPath is the JSONL file LLM calls are recorded to.
func (d *Dir) LLMCallLogPath() string {
	return filepath.Join(d.path, "llm_calls.jsonl")
}

// PromptsDir holds prompt override files named <key>.tmpl.
func (d *Dir) PromptsDir() string {
	return filepath.Join(d.path, "prompts")
}

// PostgresDataDir is bind-mounted into the local database container.
func (d *Dir) PostgresDataDir() string {
	return filepath.Join(d.path, "postgres")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.DataPath(), d.DiagnosticsDir(), d.ReviewDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// FileName returns the stage output file name for a chapter,
// e.g. "bala_sarga_1_questions.json".
func FileName(book string, sarga int, kind Kind) string {
	ext := "json"
	if kind == KindImportSQL {
		ext = "sql"
	}
	return fmt.Sprintf("%s_sarga_%d_%s.%s", book, sarga, kind, ext)
}

// ChapterFile returns the path of a chapter's stage output file.
func (d *Dir) ChapterFile(book string, sarga int, kind Kind) string {
	return filepath.Join(d.DataPath(), FileName(book, sarga, kind))
}

// WriteJSON writes v as indented JSON to path, replacing any previous file.
// The write goes through a temp file so readers never see a partial document.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
