// Command scheduler 是定时命令调度器的命令行入口.
//
// 由外部定时器（通常是每分钟一次的 cron）调用 dispatch，
// 每次调用检查全部启用的任务，执行到期任务后退出.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

var version = "dev"

// GlobalOptions 全局选项.
type GlobalOptions struct {
	Config  string `short:"c" long:"config" env:"SCHEDULER_CONFIG" description:"配置文件路径 (yaml, json, toml)"`
	Verbose bool   `short:"v" long:"verbose" description:"输出调试日志"`
}

func newParser() *flags.Parser {
	global := &GlobalOptions{}
	parser := flags.NewParser(global, flags.Default)
	parser.Name = "scheduler"

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"dispatch", "执行到期任务", "检查所有启用的任务，执行到期的任务后退出", &DispatchCommand{global: global}},
		{"monitor", "报告失败或锁超时的任务", "扫描返回码非零或锁超时的任务，并通过配置的通知通道发送报告", &MonitorCommand{global: global}},
		{"unlock", "释放超时的任务锁", "释放一个或全部已超过锁超时时间的任务锁", &UnlockCommand{global: global}},
		{"sync", "同步任务定义", "将配置文件 jobs 段中的任务定义写入存储", &SyncCommand{global: global}},
		{"list", "列出任务", "列出存储中的全部任务", &ListCommand{global: global}},
		{"enable", "启用任务", "启用指定名称的任务", &EnableCommand{global: global}},
		{"disable", "禁用任务", "禁用指定名称的任务，正在执行的任务不受影响", &DisableCommand{global: global}},
		{"run-now", "下次调度时立即执行任务", "设置立即执行标记，下一次 dispatch 时忽略 cron 执行该任务", &RunNowCommand{global: global}},
		{"validate", "校验 cron 表达式", "校验 cron 表达式并输出接下来的执行时间", &ValidateCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(err)
		}
	}
	return parser
}

func main() {
	if _, err := newParser().Parse(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode 将命令错误映射为进程退出码.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
