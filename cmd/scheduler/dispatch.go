package main

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/command-scheduler/runner"
	"github.com/Tsukikage7/command-scheduler/scheduler"
	"github.com/Tsukikage7/command-scheduler/tracing"
	"github.com/Tsukikage7/command-scheduler/unlock"
)

// DispatchCommand dispatch 子命令.
type DispatchCommand struct {
	global *GlobalOptions

	Dump     bool `long:"dump" description:"只显示到期任务，不执行"`
	NoOutput bool `long:"no-output" description:"不输出调度报告，日志只保留错误"`
}

// Execute 实现 flags.Commander.
func (c *DispatchCommand) Execute(_ []string) error {
	return execute(c.global, c.NoOutput, c.run)
}

func (c *DispatchCommand) run(ctx context.Context, rt *runtime) error {
	out := rt.out
	if c.NoOutput {
		out = io.Discard
	}

	mode := "Execute"
	if c.Dump {
		mode = "Dump"
	}
	fmt.Fprintf(out, "Start : %s all scheduled command\n", mode)

	opts := []scheduler.Option{
		scheduler.WithLogger(rt.log),
		scheduler.WithLocation(rt.cfg.Location()),
		scheduler.WithLogDir(rt.cfg.Dispatch.LogDir),
		scheduler.WithEnvironment(rt.cfg.Dispatch.Environment),
		scheduler.WithInput(rt.in),
	}
	var hooks []*scheduler.Hooks
	if rt.metrics != nil {
		hooks = append(hooks, rt.metrics.Hooks())
	}
	if rt.tracer != nil {
		var span trace.Span
		ctx, span = tracing.StartDispatch(ctx, rt.tracer, c.Dump)
		defer span.End()
		hooks = append(hooks, tracing.Hooks(rt.tracer))
	}
	if len(hooks) > 0 {
		opts = append(opts, scheduler.WithHooks(scheduler.Merge(hooks...)))
	}

	sched, err := scheduler.New(rt.store, rt.locks, newRegistry(rt), opts...)
	if err != nil {
		return err
	}

	report, err := sched.RunOnce(ctx, c.Dump)
	if report != nil {
		for _, line := range report.Lines() {
			fmt.Fprintln(out, line)
		}
		if rt.metrics != nil {
			rt.metrics.RecordReport(report)
		}
	}
	return err
}

// newRegistry 创建命令注册表，包含内置命令与配置的别名.
func newRegistry(rt *runtime) *runner.Registry {
	registry := runner.NewRegistry(
		runner.WithAliases(rt.cfg.Dispatch.Commands),
		runner.WithPathLookup(rt.cfg.Dispatch.AllowPath),
	)

	// 内置命令，便于把监控与解锁本身配置成定时任务
	registry.MustRegister("scheduler:monitor", func(ctx context.Context, inv *runner.Invocation) (int, error) {
		mon, closeFn, err := newMonitor(rt, false)
		if err != nil {
			return 1, err
		}
		defer closeFn()

		entries, err := mon.Scan(ctx, rt.cfg.LockTimeout)
		if err != nil {
			return 1, err
		}
		if !mon.Report(ctx, inv.Output, entries, false, rt.cfg.Monitor.SendIfEmpty) {
			return 1, nil
		}
		return 0, nil
	})

	registry.MustRegister("scheduler:unlock", func(ctx context.Context, inv *runner.Invocation) (int, error) {
		outcomes, err := unlock.New(rt.store, rt.locks, rt.log).UnlockAll(ctx, rt.cfg.LockTimeout)
		if err != nil {
			return 1, err
		}
		code := 0
		for _, o := range outcomes {
			fmt.Fprintln(inv.Output, o.String())
			if o.Err != nil {
				code = 1
			}
		}
		return code, nil
	})

	return registry
}
