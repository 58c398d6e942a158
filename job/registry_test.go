package job_test

import (
	"context"
	"errors"
	"testing"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/job"
)

func noop(context.Context, job.Params) (any, error) { return nil, nil }

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := job.NewRegistry()
	def := job.NewDefinition("AddOne", noop)
	if err := r.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := r.Resolve("AddOne")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != def {
		t.Error("resolve returned a different definition")
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	r := job.NewRegistry()
	r.MustRegister(job.NewDefinition("AddOne", noop))

	err := r.Register(job.NewDefinition("AddOne", noop))
	if !errors.Is(err, nuts.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestRegistry_Unknown(t *testing.T) {
	r := job.NewRegistry()
	_, err := r.Resolve("nope")
	if !errors.Is(err, nuts.ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestRegistry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		def     *job.Definition
		wantErr error
	}{
		{"empty name", job.NewDefinition("", noop), nil},
		{"separator", job.NewDefinition("a|b", noop), nil},
		{"reserved prefix", job.NewDefinition("workflow-x", noop), nil},
		{"nil handler", job.NewDefinition("x", nil), nil},
		{"bad schedule", job.NewDefinition("x", noop, job.WithSchedule("not a cron")), nuts.ErrInvalidSchedule},
		{"bad year", job.NewDefinition("x", noop, job.WithSchedule("0 * * * * ? 2030")), nuts.ErrInvalidSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := job.NewRegistry().Register(tt.def)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegistry_Schedules(t *testing.T) {
	r := job.NewRegistry()
	r.MustRegister(
		job.NewDefinition("Plain", noop),
		job.NewDefinition("Hourly", noop, job.WithSchedule("0 * * * * ? *")),
		job.NewDefinition("Fast", noop, job.WithSchedule("@every 30s")),
	)

	got := r.Schedules()
	if len(got) != 2 {
		t.Fatalf("expected 2 schedules, got %v", got)
	}
	if got["Hourly"] != "0 * * * * ? *" {
		t.Errorf("Hourly = %q", got["Hourly"])
	}
	if names := r.Names(); len(names) != 3 || names[0] != "Fast" {
		t.Errorf("Names() = %v", names)
	}
}

func TestTypedDefinition(t *testing.T) {
	type input struct {
		Base int `json:"base"`
	}
	def := job.NewTypedDefinition("AddOne", func(_ context.Context, in input) (any, error) {
		return in.Base + 1, nil
	})

	got, err := def.Handler(context.Background(), job.Params{map[string]any{"base": 5}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got != 6 {
		t.Fatalf("got %v, want 6", got)
	}
}
