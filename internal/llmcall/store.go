package llmcall

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// ErrNotFound is returned by Get when no call has the id.
var ErrNotFound = errors.New("llm call not found")

// Store reads recorded LLM calls back from the JSONL file.
type Store struct {
	path string
}

// NewStore creates a new LLMCall store over a JSONL file.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	Book      string
	Sarga     int
	Stage     string
	PromptKey string
	Provider  string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

func (f QueryFilter) match(c *Call) bool {
	switch {
	case f.Book != "" && c.Book != f.Book:
		return false
	case f.Sarga > 0 && c.Sarga != f.Sarga:
		return false
	case f.Stage != "" && c.Stage != f.Stage:
		return false
	case f.PromptKey != "" && c.PromptKey != f.PromptKey:
		return false
	case f.Provider != "" && c.Provider != f.Provider:
		return false
	case f.Model != "" && c.Model != f.Model:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	case f.Before != nil && !c.Timestamp.Before(*f.Before):
		return false
	case f.Success != nil && c.Success != *f.Success:
		return false
	}
	return true
}

func (s *Store) scan(fn func(*Call)) error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open llm call log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			return fmt.Errorf("llm call log line %d: %w", line, err)
		}
		fn(&c)
	}
	return sc.Err()
}

// List returns matching calls, newest first.
func (s *Store) List(filter QueryFilter) ([]Call, error) {
	var calls []Call
	if err := s.scan(func(c *Call) {
		if filter.match(c) {
			calls = append(calls, *c)
		}
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(calls, func(i, j int) bool { return calls[i].Timestamp.After(calls[j].Timestamp) })

	if filter.Offset > 0 {
		if filter.Offset >= len(calls) {
			return []Call{}, nil
		}
		calls = calls[filter.Offset:]
	}
	if filter.Limit > 0 && len(calls) > filter.Limit {
		calls = calls[:filter.Limit]
	}
	return calls, nil
}

// Get retrieves a single LLM call by ID.
func (s *Store) Get(id string) (*Call, error) {
	var found *Call
	if err := s.scan(func(c *Call) {
		if c.ID == id {
			cp := *c
			found = &cp
		}
	}); err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found, nil
}

// CountByPromptKey returns call counts grouped by prompt key for a book.
// An empty book counts all calls.
func (s *Store) CountByPromptKey(book string) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.scan(func(c *Call) {
		if book == "" || c.Book == book {
			counts[c.PromptKey]++
		}
	})
	return counts, err
}
