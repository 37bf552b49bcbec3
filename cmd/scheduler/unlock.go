package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tsukikage7/command-scheduler/unlock"
)

var errUnlockTarget = errors.New("either the name of a scheduled command or the --all option must be set")

// UnlockCommand unlock 子命令.
type UnlockCommand struct {
	global *GlobalOptions

	All         bool `short:"A" long:"all" description:"解锁全部超时的任务"`
	LockTimeout int  `long:"lock-timeout" default:"-1" description:"覆盖配置中的锁超时（秒）"`

	Args struct {
		Name string `positional-arg-name:"name" description:"要解锁的任务名称"`
	} `positional-args:"yes"`
}

// Execute 实现 flags.Commander.
func (c *UnlockCommand) Execute(_ []string) error {
	return execute(c.global, false, c.run)
}

func (c *UnlockCommand) timeout(rt *runtime) time.Duration {
	if c.LockTimeout >= 0 {
		return time.Duration(c.LockTimeout) * time.Second
	}
	return rt.cfg.LockTimeout
}

func (c *UnlockCommand) run(ctx context.Context, rt *runtime) error {
	if !c.All && c.Args.Name == "" {
		fmt.Fprintln(rt.out, "Either the name of a scheduled command or the --all option must be set.")
		return errUnlockTarget
	}

	tool := unlock.New(rt.store, rt.locks, rt.log)
	timeout := c.timeout(rt)

	if c.All {
		outcomes, err := tool.UnlockAll(ctx, timeout)
		if err != nil {
			return err
		}
		unlocked := 0
		for _, o := range outcomes {
			fmt.Fprintln(rt.out, o.String())
			if o.Status == unlock.Unlocked && o.Err == nil {
				unlocked++
			}
		}
		if rt.metrics != nil {
			rt.metrics.AddUnlocked(unlocked)
		}
		return nil
	}

	outcome, err := tool.UnlockByName(ctx, c.Args.Name, timeout)
	if errors.Is(err, unlock.ErrNotFound) {
		fmt.Fprintf(rt.out, "Error: Scheduled Command with name %q not found or is disabled.\n", c.Args.Name)
		return err
	}
	fmt.Fprintln(rt.out, outcome.String())
	if err == nil && outcome.Status == unlock.Unlocked && rt.metrics != nil {
		rt.metrics.AddUnlocked(1)
	}
	return err
}
