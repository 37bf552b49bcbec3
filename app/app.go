// Package app 管理一次命令行调用的生命周期.
//
// 每次调用只执行一个任务函数，收到退出信号时取消上下文，
// 任务结束后按优先级执行清理，确保连接关闭与指标推送在进程退出前完成.
package app

import (
	"context"
	"errors"
	"os/signal"
	"sort"
	"sync"
	"time"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// 预定义错误.
var (
	// ErrRunning 应用正在运行.
	ErrRunning = errors.New("app: 应用正在运行")
	// ErrNilTask 任务函数为空.
	ErrNilTask = errors.New("app: 任务函数为空")
)

// Task 一次调用要执行的任务.
type Task func(ctx context.Context) error

// Application 单次调用的运行环境.
type Application struct {
	opts     *options
	mu       sync.Mutex
	running  bool
	cleanups []Cleanup
}

// New 创建应用程序.
func New(opts ...Option) *Application {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		panic("app: logger is required")
	}

	return &Application{
		opts:     o,
		cleanups: append([]Cleanup(nil), o.cleanups...),
	}
}

// Name 获取应用名称.
func (a *Application) Name() string {
	return a.opts.name
}

// Version 获取应用版本.
func (a *Application) Version() string {
	return a.opts.version
}

// AddCleanup 在运行期间注册清理任务.
func (a *Application) AddCleanup(name string, fn CleanupFunc, priority int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleanups = append(a.cleanups, Cleanup{Name: name, Fn: fn, Priority: priority})
}

// AddCloser 注册 io.Closer 作为清理任务.
func (a *Application) AddCloser(name string, closer interface{ Close() error }, priority int) {
	a.AddCleanup(name, closerCleanup(closer), priority)
}

// Run 执行任务并在结束后清理.
//
// 任务的返回值原样返回，钩子与清理的错误只记录日志.
func (a *Application) Run(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrRunning
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	runCtx, stop := signal.NotifyContext(ctx, a.opts.signals...)
	defer stop()

	start := time.Now()
	a.opts.logger.With(
		logger.String("name", a.opts.name),
		logger.String("version", a.opts.version),
	).Debug("[App] starting")

	err := runHooks(runCtx, a.opts.beforeRun)
	if err == nil {
		err = task(runCtx)
	} else {
		a.opts.logger.With(logger.Err(err)).Error("[App] before run hook failed")
	}

	if runCtx.Err() != nil && ctx.Err() == nil {
		a.opts.logger.Warn("[App] received signal, stopping")
	}

	a.opts.logger.With(logger.Duration("elapsed", time.Since(start))).Debug("[App] task finished")
	a.shutdown()
	return err
}

func (a *Application) shutdown() {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), a.opts.gracefulTimeout)
	defer cancel()

	a.runCleanups(cleanupCtx)

	if err := runHooks(cleanupCtx, a.opts.afterRun); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] after run hook failed")
	}
}

func (a *Application) runCleanups(ctx context.Context) {
	a.mu.Lock()
	cleanups := make([]Cleanup, len(a.cleanups))
	copy(cleanups, a.cleanups)
	a.mu.Unlock()

	if len(cleanups) == 0 {
		return
	}

	sort.SliceStable(cleanups, func(i, j int) bool {
		return cleanups[i].Priority < cleanups[j].Priority
	})

	for _, c := range cleanups {
		if err := c.Fn(ctx); err != nil {
			a.opts.logger.With(
				logger.String("cleanup", c.Name),
				logger.Err(err),
			).Error("[App] cleanup failed")
		} else {
			a.opts.logger.With(logger.String("cleanup", c.Name)).Debug("[App] cleanup done")
		}
	}
}
