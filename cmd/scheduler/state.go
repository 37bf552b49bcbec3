package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tsukikage7/command-scheduler/job"
)

// JobArgs 按名称定位一个任务.
type JobArgs struct {
	Name string `positional-arg-name:"name" description:"任务名称"`
}

// EnableCommand enable 子命令.
type EnableCommand struct {
	global *GlobalOptions

	Args JobArgs `positional-args:"yes" required:"yes"`
}

// Execute 实现 flags.Commander.
func (c *EnableCommand) Execute(_ []string) error {
	return execute(c.global, false, c.run)
}

func (c *EnableCommand) run(ctx context.Context, rt *runtime) error {
	_, err := updateByName(ctx, rt, c.Args.Name, "enabled", func(j *job.Job) {
		j.Disabled = false
	})
	return err
}

// DisableCommand disable 子命令.
//
// 正在执行的任务不受影响，只是不再被调度.
type DisableCommand struct {
	global *GlobalOptions

	Args JobArgs `positional-args:"yes" required:"yes"`
}

// Execute 实现 flags.Commander.
func (c *DisableCommand) Execute(_ []string) error {
	return execute(c.global, false, c.run)
}

func (c *DisableCommand) run(ctx context.Context, rt *runtime) error {
	_, err := updateByName(ctx, rt, c.Args.Name, "disabled", func(j *job.Job) {
		j.Disabled = true
	})
	return err
}

// RunNowCommand run-now 子命令，设置立即执行标记，下一次 dispatch 时执行.
type RunNowCommand struct {
	global *GlobalOptions

	Args JobArgs `positional-args:"yes" required:"yes"`
}

// Execute 实现 flags.Commander.
func (c *RunNowCommand) Execute(_ []string) error {
	return execute(c.global, false, c.run)
}

func (c *RunNowCommand) run(ctx context.Context, rt *runtime) error {
	j, err := updateByName(ctx, rt, c.Args.Name, "marked for immediate execution", func(j *job.Job) {
		j.ExecuteImmediately = true
	})
	if err != nil {
		return err
	}
	if j.Disabled {
		fmt.Fprintf(rt.out, "Warning: %q is disabled and will not run until it is enabled.\n", j.Name)
	}
	return nil
}

// updateByName 在存储事务内修改指定任务并输出结果.
func updateByName(ctx context.Context, rt *runtime, name, done string, mutate func(*job.Job)) (*job.Job, error) {
	current, err := rt.store.GetByName(ctx, name)
	if errors.Is(err, job.ErrNotFound) {
		fmt.Fprintf(rt.out, "Error: Scheduled Command with name %q not found.\n", name)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	updated, err := rt.store.Update(ctx, current.ID, func(j *job.Job) error {
		mutate(j)
		return nil
	})
	if err != nil {
		rt.log.Errorf("[Scheduler] 更新任务失败: job=%s, error=%v", name, err)
		return nil, err
	}

	rt.log.Infof("[Scheduler] 任务已更新: job=%s, state=%s", name, state(updated))
	fmt.Fprintf(rt.out, "Scheduled Command %q has been %s.\n", name, done)
	return updated, nil
}
