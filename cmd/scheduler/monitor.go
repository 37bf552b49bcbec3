package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tsukikage7/command-scheduler/messaging"
	"github.com/Tsukikage7/command-scheduler/monitor"
)

// errFailingJobs --json 模式下存在失败任务，进程以非零状态退出.
var errFailingJobs = errors.New("monitor: failing jobs found")

// MonitorCommand monitor 子命令.
type MonitorCommand struct {
	global *GlobalOptions

	Dump bool `long:"dump" description:"输出报告而不发送通知"`
	JSON bool `long:"json" description:"以 JSON 输出报告而不发送通知，存在失败任务时退出码非零"`
}

// Execute 实现 flags.Commander.
func (c *MonitorCommand) Execute(_ []string) error {
	return execute(c.global, false, c.run)
}

func (c *MonitorCommand) run(ctx context.Context, rt *runtime) error {
	dumpOnly := c.Dump || c.JSON
	if !dumpOnly && len(rt.cfg.Monitor.Receivers) == 0 {
		fmt.Fprintln(rt.out, "Please add receiver in configuration")
		return monitor.ErrNoReceivers
	}

	mon, closeFn, err := newMonitor(rt, dumpOnly)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := mon.Scan(ctx, rt.cfg.LockTimeout)
	if err != nil {
		return err
	}
	if rt.metrics != nil {
		rt.metrics.SetFailingJobs(len(entries))
	}

	if c.JSON {
		return writeEntries(rt, entries)
	}

	// 投递失败已记录错误日志，不影响退出码
	mon.Report(ctx, rt.out, entries, c.Dump, rt.cfg.Monitor.SendIfEmpty)
	return nil
}

func writeEntries(rt *runtime, entries []monitor.Entry) error {
	if entries == nil {
		entries = []monitor.Entry{}
	}
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %d", errFailingJobs, len(entries))
	}
	return nil
}

// newMonitor 创建监控器，非预演模式下按配置连接通知通道.
func newMonitor(rt *runtime, dumpOnly bool) (*monitor.Monitor, func(), error) {
	opts := []monitor.Option{
		monitor.WithLogger(rt.log),
		monitor.WithSubject(rt.cfg.Monitor.Subject),
	}
	closeFn := func() {}

	if !dumpOnly {
		notifier, err := messaging.NewNotifier(&rt.cfg.Notifier, messaging.WithLogger(rt.log))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, monitor.WithNotifier(notifier, rt.cfg.Monitor.Receivers...))
		closeFn = func() {
			if err := notifier.Close(); err != nil {
				rt.log.Warnf("[Monitor] 关闭通知通道失败: %v", err)
			}
		}
	}

	return monitor.New(rt.store, rt.locks, opts...), closeFn, nil
}
