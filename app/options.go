package app

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// Hook 任务前后执行的钩子.
type Hook func(ctx context.Context) error

// CleanupFunc 清理函数，ctx 在 gracefulTimeout 后超时.
type CleanupFunc func(ctx context.Context) error

// Cleanup 清理任务，Priority 小的先执行.
type Cleanup struct {
	Name     string
	Fn       CleanupFunc
	Priority int
}

type options struct {
	name            string
	version         string
	logger          logger.Logger
	beforeRun       []Hook
	afterRun        []Hook
	gracefulTimeout time.Duration
	signals         []os.Signal
	cleanups        []Cleanup
}

// 外部定时器通常用 SIGTERM 结束超时的进程.
func defaultOptions() *options {
	return &options{
		name:            "command-scheduler",
		version:         "dev",
		gracefulTimeout: 10 * time.Second,
		signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Option 配置选项.
type Option func(*options)

// Name 设置应用名称.
func Name(name string) Option {
	return func(o *options) { o.name = name }
}

// Version 设置应用版本.
func Version(version string) Option {
	return func(o *options) { o.version = version }
}

// Logger 设置日志记录器（必需）.
func Logger(log logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// BeforeRun 添加任务前钩子，任一钩子失败时任务不执行，清理仍会执行.
func BeforeRun(hooks ...Hook) Option {
	return func(o *options) { o.beforeRun = append(o.beforeRun, hooks...) }
}

// AfterRun 添加清理完成后的钩子.
func AfterRun(hooks ...Hook) Option {
	return func(o *options) { o.afterRun = append(o.afterRun, hooks...) }
}

// GracefulTimeout 设置清理阶段的超时时间.
func GracefulTimeout(d time.Duration) Option {
	return func(o *options) { o.gracefulTimeout = d }
}

// Signals 设置取消任务的系统信号.
func Signals(signals ...os.Signal) Option {
	return func(o *options) { o.signals = signals }
}

// RegisterCleanup 注册清理任务.
func RegisterCleanup(name string, fn CleanupFunc, priority int) Option {
	return func(o *options) {
		o.cleanups = append(o.cleanups, Cleanup{Name: name, Fn: fn, Priority: priority})
	}
}

// RegisterCloser 注册 io.Closer 作为清理任务.
func RegisterCloser(name string, closer interface{ Close() error }, priority int) Option {
	return RegisterCleanup(name, closerCleanup(closer), priority)
}

func closerCleanup(closer interface{ Close() error }) CleanupFunc {
	return func(context.Context) error { return closer.Close() }
}

func runHooks(ctx context.Context, hooks []Hook) error {
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}
