package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Tsukikage7/command-scheduler/schedule"
)

// ValidateCommand validate 子命令.
type ValidateCommand struct {
	Count int `short:"n" long:"count" default:"5" description:"显示的下次执行时间数量"`

	Args struct {
		Expression string `positional-arg-name:"cron" required:"yes" description:"cron 表达式"`
	} `positional-args:"yes" required:"yes"`

	out io.Writer
	now func() time.Time
}

// Execute 实现 flags.Commander.
func (c *ValidateCommand) Execute(_ []string) error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}

	if err := schedule.Validate(c.Args.Expression); err != nil {
		fmt.Fprintf(out, "Invalid: %v\n", err)
		return err
	}
	sched, err := schedule.Parse(c.Args.Expression)
	if err != nil {
		fmt.Fprintf(out, "Invalid: %v\n", err)
		return err
	}

	fmt.Fprintf(out, "Valid: %s\n", c.Args.Expression)
	next := now()
	for range c.Count {
		next = sched.Next(next)
		if next.IsZero() {
			break
		}
		fmt.Fprintln(out, next.Format(time.RFC3339))
	}
	return nil
}
