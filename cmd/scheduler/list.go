package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Tsukikage7/command-scheduler/job"
)

// ListCommand list 子命令.
type ListCommand struct {
	global *GlobalOptions
}

// Execute 实现 flags.Commander.
func (c *ListCommand) Execute(_ []string) error {
	return execute(c.global, false, c.run)
}

func (c *ListCommand) run(ctx context.Context, rt *runtime) error {
	jobs, err := rt.store.List(ctx, job.Filter{})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOMMAND\tCRON\tLAST EXECUTION\tCODE\tSTATE")
	for _, j := range jobs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			j.ID,
			j.Name,
			commandLine(j),
			j.CronExpression,
			j.LastExecution.Format(time.RFC3339),
			j.LastReturnCode,
			state(j),
		)
	}
	return w.Flush()
}

func commandLine(j *job.Job) string {
	if j.Arguments == "" {
		return j.Command
	}
	return j.Command + " " + j.Arguments
}

func state(j *job.Job) string {
	switch {
	case j.Disabled:
		return "disabled"
	case j.Locked:
		return "locked"
	case j.ExecuteImmediately:
		return "immediate"
	default:
		return "enabled"
	}
}
