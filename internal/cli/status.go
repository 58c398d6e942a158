package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/workflow"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the leader, the job queues and workflow runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, closeStore, err := openEngine(settings)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			out := cmd.OutOrStdout()

			leader, ok, err := eng.Leader(ctx)
			if err != nil {
				return err
			}
			if !ok {
				leader = "(none)"
			}
			fmt.Fprintf(out, "Leader: %s\n", leader)

			tw := tabwriter.NewWriter(out, 10, 4, 2, ' ', 0)

			pending, err := eng.ListPending(ctx)
			if err != nil {
				return err
			}
			section(tw, "PENDING", "IDENTITY", "PARAMS")
			for _, inst := range pending {
				fmt.Fprintf(tw, "%s\t%d\n", inst.Identity(), len(inst.Params))
			}

			running, err := eng.ListRunning(ctx)
			if err != nil {
				return err
			}
			section(tw, "RUNNING", "IDENTITY", "WORKER", "STARTED")
			for _, e := range running {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Identity(), e.WorkerID, formatTime(e.StartedAt))
			}

			scheduled, err := eng.ListScheduled(ctx)
			if err != nil {
				return err
			}
			section(tw, "SCHEDULED", "JOB", "NEXT RUN")
			for _, e := range scheduled {
				fmt.Fprintf(tw, "%s\t%s\n", e.Name, formatTime(e.RunAt))
			}

			completed, err := eng.ListCompleted(ctx)
			if err != nil {
				return err
			}
			section(tw, "COMPLETED", "IDENTITY", "SUCCESS", "ERROR")
			for _, e := range completed {
				fmt.Fprintf(tw, "%s\t%t\t%s\n", job.Identity(e.Workflow, e.Name), e.Success, e.Error)
			}

			states, err := eng.ListWorkflowStates(ctx)
			if err != nil {
				return err
			}
			section(tw, "WORKFLOWS", "NAME", "STATUS", "JOBS", "ERROR")
			for _, st := range states {
				done := 0
				for _, j := range st.Jobs {
					if j.Status == workflow.JobCompleted {
						done++
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", st.Name, st.Status, done, len(st.Jobs), st.Error)
			}
			return tw.Flush()
		},
	}
}

func section(w io.Writer, title string, columns ...string) {
	fmt.Fprintf(w, "\n%s\n", title)
	for i, c := range columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
