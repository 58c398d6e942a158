package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// JobSpec names one job of a workflow and the jobs it waits on.
type JobSpec struct {
	Name     string   `yaml:"name" json:"name"`
	Requires []string `yaml:"requires,omitempty" json:"requires"`
}

// Definition is a named dependency graph of registered jobs.
type Definition struct {
	Name string `yaml:"name"`

	// Schedule is an optional cron expression. A workflow with a schedule
	// is started at every fire time.
	Schedule string `yaml:"schedule,omitempty"`

	Jobs []JobSpec `yaml:"jobs"`
}

// Option configures a Definition.
type Option func(*Definition)

// WithSchedule makes the workflow recurring.
func WithSchedule(expr string) Option {
	return func(d *Definition) { d.Schedule = expr }
}

// WithJob adds a job that runs once every job in requires has completed.
func WithJob(name string, requires ...string) Option {
	return func(d *Definition) {
		d.Jobs = append(d.Jobs, JobSpec{Name: name, Requires: requires})
	}
}

// NewDefinition creates a workflow definition.
func NewDefinition(name string, opts ...Option) *Definition {
	d := &Definition{Name: name}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Job returns the named job of the definition.
func (d *Definition) Job(name string) (JobSpec, bool) {
	for _, j := range d.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobSpec{}, false
}

// ParseDefinitions decodes workflow definitions from YAML:
//
//	workflows:
//	  - name: etl
//	    schedule: "0 2 * * *"
//	    jobs:
//	      - name: ExtractData
//	      - name: TransformData
//	        requires: [ExtractData]
//
// Unknown fields are rejected. The definitions are not validated; pass
// them to Registry.Register.
func ParseDefinitions(data []byte) ([]*Definition, error) {
	var doc struct {
		Workflows []*Definition `yaml:"workflows"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("workflow: parse definitions: %w", err)
	}
	return doc.Workflows, nil
}
