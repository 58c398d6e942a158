package job

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/cron"
)

// Registry maps job names to definitions. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds def. It fails with nuts.ErrDuplicateName if the name is
// taken and nuts.ErrInvalidSchedule if the schedule does not parse.
func (r *Registry) Register(def *Definition) error {
	if err := validateName(def.Name); err != nil {
		return err
	}
	if def.Handler == nil {
		return fmt.Errorf("job %q: nil handler", def.Name)
	}
	if err := cron.ValidateSchedule(def.Schedule); err != nil {
		return fmt.Errorf("job %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("job %q: %w", def.Name, nuts.ErrDuplicateName)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// process start-up.
func (r *Registry) MustRegister(defs ...*Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the definition registered under name, or
// nuts.ErrUnknownJob.
func (r *Registry) Resolve(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", name, nuts.ErrUnknownJob)
	}
	return def, nil
}

// Names returns all registered job names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schedules returns the cron expression of every recurring job.
func (r *Registry) Schedules() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string)
	for name, def := range r.defs {
		if def.Schedule != "" {
			out[name] = def.Schedule
		}
	}
	return out
}

// validateName rejects names that would corrupt identity or running keys.
func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("job name is empty")
	case strings.Contains(name, Separator):
		return fmt.Errorf("job name %q contains %q", name, Separator)
	case strings.HasPrefix(name, workflowPrefix):
		return fmt.Errorf("job name %q uses the reserved %q prefix", name, workflowPrefix)
	}
	return nil
}
