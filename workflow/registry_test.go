package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/workflow"
)

func noop(context.Context, job.Params) (any, error) { return nil, nil }

func jobRegistry(names ...string) *job.Registry {
	r := job.NewRegistry()
	for _, n := range names {
		r.MustRegister(job.NewDefinition(n, noop))
	}
	return r
}

func TestRegistry_Register(t *testing.T) {
	jobs := jobRegistry("A", "B", "C", "D")

	tests := []struct {
		name    string
		def     *workflow.Definition
		wantErr error
	}{
		{
			name: "diamond",
			def: workflow.NewDefinition("diamond",
				workflow.WithJob("A"),
				workflow.WithJob("B", "A"),
				workflow.WithJob("C", "A"),
				workflow.WithJob("D", "B", "C"),
			),
		},
		{
			name: "cycle",
			def: workflow.NewDefinition("cycle",
				workflow.WithJob("A", "C"),
				workflow.WithJob("B", "A"),
				workflow.WithJob("C", "B"),
			),
			wantErr: nuts.ErrCyclicDependency,
		},
		{
			name:    "self dependency",
			def:     workflow.NewDefinition("self", workflow.WithJob("A", "A")),
			wantErr: nuts.ErrCyclicDependency,
		},
		{
			name:    "undeclared requirement",
			def:     workflow.NewDefinition("undeclared", workflow.WithJob("B", "A")),
			wantErr: nuts.ErrUnknownJob,
		},
		{
			name:    "unregistered job",
			def:     workflow.NewDefinition("ghost", workflow.WithJob("Ghost")),
			wantErr: nuts.ErrUnknownJob,
		},
		{
			name:    "job listed twice",
			def:     workflow.NewDefinition("twice", workflow.WithJob("A"), workflow.WithJob("A")),
			wantErr: nuts.ErrDuplicateName,
		},
		{
			name:    "bad schedule",
			def:     workflow.NewDefinition("sched", workflow.WithSchedule("every day"), workflow.WithJob("A")),
			wantErr: nuts.ErrInvalidSchedule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := workflow.NewRegistry(jobs)
			err := r.Register(tt.def)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Register: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register error = %v, want %v", err, tt.wantErr)
			}
			if _, err := r.Resolve(tt.def.Name); !errors.Is(err, nuts.ErrUnknownWorkflow) {
				t.Errorf("rejected workflow must not be registered, Resolve = %v", err)
			}
		})
	}
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	r := workflow.NewRegistry(jobRegistry("A", "B", "C", "D"))
	r.MustRegister(
		workflow.NewDefinition("diamond",
			workflow.WithJob("D", "B", "C"),
			workflow.WithJob("C", "A"),
			workflow.WithJob("B", "A"),
			workflow.WithJob("A"),
		),
		workflow.NewDefinition("nightly", workflow.WithSchedule("0 2 * * *"), workflow.WithJob("A")),
	)

	order, err := r.Order("diamond")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"A", "B", "C", "D"}
	if len(order) != len(want) {
		t.Fatalf("Order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Order = %v, want %v", order, want)
		}
	}

	if err := r.Register(workflow.NewDefinition("nightly", workflow.WithJob("B"))); !errors.Is(err, nuts.ErrDuplicateName) {
		t.Errorf("duplicate Register = %v", err)
	}
	if got := r.Names(); len(got) != 2 || got[0] != "diamond" || got[1] != "nightly" {
		t.Errorf("Names = %v", got)
	}
	if got := r.Schedules(); len(got) != 1 || got["nightly"] != "0 2 * * *" {
		t.Errorf("Schedules = %v", got)
	}
	if _, err := r.Resolve("missing"); !errors.Is(err, nuts.ErrUnknownWorkflow) {
		t.Errorf("Resolve(missing) = %v", err)
	}
}

func TestParseDefinitions(t *testing.T) {
	data := []byte(`
workflows:
  - name: etl
    schedule: "0 2 * * *"
    jobs:
      - name: ExtractData
      - name: TransformData
        requires: [ExtractData]
      - name: LoadData
        requires: [TransformData]
`)
	defs, err := workflow.ParseDefinitions(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 1 {
		t.Fatalf("got %d definitions", len(defs))
	}
	etl := defs[0]
	if etl.Name != "etl" || etl.Schedule != "0 2 * * *" || len(etl.Jobs) != 3 {
		t.Fatalf("parsed %+v", etl)
	}
	if spec, ok := etl.Job("LoadData"); !ok || len(spec.Requires) != 1 || spec.Requires[0] != "TransformData" {
		t.Errorf("LoadData = %+v", spec)
	}

	r := workflow.NewRegistry(jobRegistry("ExtractData", "TransformData", "LoadData"))
	if err := r.Register(etl); err != nil {
		t.Errorf("Register parsed definition: %v", err)
	}

	if _, err := workflow.ParseDefinitions([]byte("workflows:\n  - name: x\n    retries: 3\n")); err == nil {
		t.Error("unknown fields must be rejected")
	}
	if defs, err := workflow.ParseDefinitions(nil); err != nil || len(defs) != 0 {
		t.Errorf("empty document = %v, %v", defs, err)
	}
}
