package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrStageAlreadyRegistered = errors.New("stage already registered")
	ErrStageNotFound          = errors.New("stage not found")
	ErrDependencyCycle        = errors.New("dependency cycle detected")
)

// Registry holds the stages of a pipeline and orders them by dependency.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string // registration order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Names must be unique.
func (r *Registry) Register(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, name)
	}
	r.stages[name] = s
	r.order = append(r.order, name)
	return nil
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}

// Names returns the stage names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Ordered returns the stages so that every stage follows its dependencies.
// Ties keep registration order.
func (r *Registry) Ordered() ([]Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make(map[string]int, len(r.order))
	for _, name := range r.order {
		deps := r.stages[name].Dependencies()
		for _, dep := range deps {
			if _, ok := r.stages[dep]; !ok {
				return nil, fmt.Errorf("%w: %q needs %q", ErrStageNotFound, name, dep)
			}
		}
		pending[name] = len(deps)
	}

	ordered := make([]Stage, 0, len(r.order))
	done := make(map[string]bool, len(r.order))
	for len(ordered) < len(r.order) {
		progressed := false
		for _, name := range r.order {
			if done[name] || pending[name] > 0 {
				continue
			}
			done[name] = true
			ordered = append(ordered, r.stages[name])
			progressed = true
			for _, other := range r.order {
				for _, dep := range r.stages[other].Dependencies() {
					if dep == name {
						pending[other]--
					}
				}
			}
			// Restart so earlier-registered stages that just became ready go first.
			break
		}
		if !progressed {
			return nil, ErrDependencyCycle
		}
	}
	return ordered, nil
}
