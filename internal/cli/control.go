package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/engine"
)

// withEngine opens an engine for the duration of one control command.
func withEngine(fn func(eng *engine.Engine) error) error {
	eng, closeStore, err := openEngine(settings)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	return fn(eng)
}

func newEnqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "enqueue JOB [PARAM_JSON...]",
		Short:   "Add a job to the pending queue",
		Example: `  nuts enqueue AddOne '{"base": 5}'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]any, 0, len(args)-1)
			for i, raw := range args[1:] {
				var v any
				if err := json.Unmarshal([]byte(raw), &v); err != nil {
					return fmt.Errorf("param %d: %w", i+1, err)
				}
				params = append(params, v)
			}
			return withEngine(func(eng *engine.Engine) error {
				if err := eng.Enqueue(cmd.Context(), args[0], params...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job '%s' enqueued\n", args[0])
				return nil
			})
		},
	}
}

func newScheduleCmd() *cobra.Command {
	var in time.Duration
	cmd := &cobra.Command{
		Use:   "schedule JOB [RFC3339_TIME]",
		Short: "Schedule a job for a future time",
		Example: `  nuts schedule AddOne 2030-01-01T12:00:00Z
  nuts schedule AddOne --in 10m`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runAt time.Time
			switch {
			case len(args) == 2:
				t, err := time.Parse(time.RFC3339, args[1])
				if err != nil {
					return fmt.Errorf("run time: %w", err)
				}
				runAt = t
			case in > 0:
				runAt = time.Now().Add(in)
			default:
				return fmt.Errorf("a run time or --in is required")
			}
			return withEngine(func(eng *engine.Engine) error {
				if err := eng.ScheduleJob(cmd.Context(), args[0], runAt); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job '%s' scheduled for %s\n", args[0], formatTime(runAt))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&in, "in", 0, "Run after this delay instead of at a fixed time")
	return cmd
}

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger WORKFLOW",
		Short: "Start a workflow on the next leader cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(eng *engine.Engine) error {
				if err := eng.TriggerWorkflow(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow '%s' triggered\n", args[0])
				return nil
			})
		},
	}
}

func newCancelCmd() *cobra.Command {
	var workflowRun bool
	cmd := &cobra.Command{
		Use:   "cancel NAME",
		Short: "Cancel a pending job, request cancellation of a running one, or cancel a workflow run",
		Long: `Without --workflow, NAME is a job: pending instances are removed and, if
none were pending, a running instance with that identity is asked to stop.
With --workflow, the running workflow NAME is cancelled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]
			return withEngine(func(eng *engine.Engine) error {
				out := cmd.OutOrStdout()
				if workflowRun {
					if err := eng.CancelWorkflow(ctx, name); err != nil {
						return err
					}
					fmt.Fprintf(out, "Cancellation requested for workflow '%s'\n", name)
					return nil
				}
				n, err := eng.CancelPending(ctx, name)
				switch {
				case err == nil:
					fmt.Fprintf(out, "Removed %d pending instance(s) of '%s'\n", n, name)
					return nil
				case !errors.Is(err, nuts.ErrNotFound):
					return err
				}
				if err := eng.RequestCancel(ctx, name); err != nil {
					return err
				}
				fmt.Fprintf(out, "Cancellation requested for job '%s'\n", name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&workflowRun, "workflow", "w", false, "NAME is a workflow")
	return cmd
}
