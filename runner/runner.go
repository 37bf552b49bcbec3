// Package runner 执行任务对应的命令.
//
// 命令可以是注册在进程内的函数，也可以是外部可执行文件.
// 执行期间的 panic 会被捕获并转换为 *PanicError，不会越过单个任务的边界.
package runner

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// Invocation 单次命令调用.
type Invocation struct {
	// Name 任务名称.
	Name string
	// Args 命令参数.
	Args []string
	// Interactive 是否允许交互.
	Interactive bool
	// Output 标准输出和标准错误.
	Output io.Writer
	// Input 交互模式下的标准输入.
	Input io.Reader
	// Env 追加的环境变量，KEY=VALUE.
	Env []string
}

// Runner 命令执行器.
type Runner struct {
	logger logger.Logger
}

// panicStackSize panic 时捕获的堆栈上限.
const panicStackSize = 64 << 10

// Option 执行器配置选项.
type Option func(*Runner)

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) {
		r.logger = log
	}
}

// New 创建执行器.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 执行命令并返回退出码.
//
// 非零退出码不是错误；启动失败、被信号终止或 panic 时返回 -1 和错误.
func (r *Runner) Run(ctx context.Context, cmd Command, inv *Invocation) (code int, err error) {
	if inv == nil {
		return -1, ErrNilInvocation
	}
	if inv.Output == nil {
		inv.Output = io.Discard
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			stack := captureStack(panicStackSize)
			r.logger.Errorf("[Runner] 命令 panic: job=%s, command=%s, panic=%v", inv.Name, cmd.Name(), p)
			code, err = -1, &PanicError{Value: p, Stack: stack}
		}
		r.logger.Debugf("[Runner] 命令结束: job=%s, command=%s, code=%d, duration=%v",
			inv.Name, cmd.Name(), code, time.Since(start))
	}()

	r.logger.Debugf("[Runner] 执行命令: job=%s, command=%s, args=%q, interactive=%t",
		inv.Name, cmd.Name(), inv.Args, inv.Interactive)
	return cmd.Run(ctx, inv)
}

// captureStack 捕获当前 goroutine 的堆栈.
func captureStack(size int) []byte {
	stack := make([]byte, size)
	n := runtime.Stack(stack, false)
	return stack[:n]
}
