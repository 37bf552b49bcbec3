package scheduler

import (
	"io"
	"time"

	"github.com/Tsukikage7/command-scheduler/logger"
	"github.com/Tsukikage7/command-scheduler/runner"
	"github.com/Tsukikage7/command-scheduler/schedule"
)

// Option 调度器配置选项.
type Option func(*options)

// options 调度器内部配置.
type options struct {
	logger      logger.Logger
	hooks       *Hooks
	runner      *runner.Runner
	evaluator   schedule.Evaluator
	location    *time.Location
	logDir      string
	environment string
	input       io.Reader
	now         func() time.Time
}

// defaultOptions 返回默认配置.
func defaultOptions() *options {
	return &options{
		now: time.Now,
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithHooks 设置钩子.
//
// 对所有任务生效.
func WithHooks(hooks *Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithRunner 设置命令执行器.
//
// 默认使用 runner.New 创建.
func WithRunner(r *runner.Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

// WithEvaluator 设置 Cron 计算器.
func WithEvaluator(e schedule.Evaluator) Option {
	return func(o *options) {
		o.evaluator = e
	}
}

// WithLocation 设置 Cron 表达式使用的时区.
//
// 默认: 沿用 LastExecution 的时区.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// WithLogDir 设置任务日志目录.
//
// 非空时每次调度前检查目录是否可写，任务日志写入 <dir>/<job.LogFile>.
func WithLogDir(dir string) Option {
	return func(o *options) {
		o.logDir = dir
	}
}

// WithEnvironment 设置追加到命令参数的 --env 值.
func WithEnvironment(env string) Option {
	return func(o *options) {
		o.environment = env
	}
}

// WithInput 设置交互模式下命令的标准输入.
func WithInput(r io.Reader) Option {
	return func(o *options) {
		o.input = r
	}
}

// WithClock 设置时钟，用于测试.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
