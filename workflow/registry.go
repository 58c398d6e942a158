package workflow

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/cron"
	"github.com/huffmsa/nuts/job"
)

type registered struct {
	def   *Definition
	order []string
}

// Registry maps workflow names to validated definitions. It is safe for
// concurrent use.
type Registry struct {
	jobs *job.Registry

	mu   sync.RWMutex
	defs map[string]registered
}

// NewRegistry creates an empty workflow registry. Jobs named by a
// workflow must be registered in jobs; a nil jobs skips that check.
func NewRegistry(jobs *job.Registry) *Registry {
	return &Registry{jobs: jobs, defs: make(map[string]registered)}
}

// Register validates def and adds it. It fails with nuts.ErrDuplicateName
// if the name is taken, nuts.ErrUnknownJob if a job is not registered or a
// requirement is not declared in the workflow, nuts.ErrCyclicDependency if
// the graph has a cycle and nuts.ErrInvalidSchedule for a bad schedule.
func (r *Registry) Register(def *Definition) error {
	switch {
	case def == nil:
		return fmt.Errorf("workflow: nil definition")
	case def.Name == "":
		return fmt.Errorf("workflow name is empty")
	case strings.Contains(def.Name, job.Separator):
		return fmt.Errorf("workflow name %q contains %q", def.Name, job.Separator)
	}
	if err := cron.ValidateSchedule(def.Schedule); err != nil {
		return fmt.Errorf("workflow %q: %w", def.Name, err)
	}
	if r.jobs != nil {
		for _, j := range def.Jobs {
			if _, err := r.jobs.Resolve(j.Name); err != nil {
				return fmt.Errorf("workflow %q: %w", def.Name, err)
			}
		}
	}
	order, err := topoOrder(def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("workflow %q: %w", def.Name, nuts.ErrDuplicateName)
	}
	r.defs[def.Name] = registered{def: def, order: order}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(defs ...*Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the definition registered under name, or
// nuts.ErrUnknownWorkflow.
func (r *Registry) Resolve(name string) (*Definition, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return reg.def, nil
}

// Order returns the jobs of the named workflow in dependency order.
func (r *Registry) Order(name string) ([]string, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), reg.order...), nil
}

func (r *Registry) lookup(name string) (registered, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.defs[name]
	if !ok {
		return registered{}, fmt.Errorf("workflow %q: %w", name, nuts.ErrUnknownWorkflow)
	}
	return reg, nil
}

// Names returns all registered workflow names, sorted.
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

// Schedules returns the cron expression of every recurring workflow.
func (r *Registry) Schedules() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string)
	for name, reg := range r.defs {
		if reg.def.Schedule != "" {
			out[name] = reg.def.Schedule
		}
	}
	return out
}
