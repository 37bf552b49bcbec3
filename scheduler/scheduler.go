// Package scheduler 实现单次调度：找出到期任务并逐个执行.
//
// 调度由外部定时器（如每分钟一次的 cron）触发，每次触发启动一个短生命周期进程，
// 依次处理所有到期任务后退出. 多个调用可能重叠，同一任务的互斥完全依赖
// lock.Manager 在任务存储上的比较并设置.
//
// 单次调用内的处理流程:
//  1. 检查日志目录可写，否则在触碰任何任务前失败
//  2. 读取所有启用的任务，逐个重新读取最新状态
//  3. 跳过已禁用或已锁定的任务
//  4. 立即执行标记或 Cron 下次触发时间早于当前时间即为到期
//  5. 到期任务：加锁 → 执行 → 记录返回码 → 解锁
//
// 示例:
//
//	s := scheduler.MustNew(store, locks, registry,
//	    scheduler.WithLogger(log),
//	    scheduler.WithLogDir("/var/log/jobs"),
//	)
//
//	report, err := s.RunOnce(ctx, false)
//	if err != nil {
//	    return err
//	}
//	for _, line := range report.Lines() {
//	    fmt.Println(line)
//	}
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/lock"
	"github.com/Tsukikage7/command-scheduler/logger"
	"github.com/Tsukikage7/command-scheduler/runner"
	"github.com/Tsukikage7/command-scheduler/schedule"
)

// Scheduler 调度器.
type Scheduler struct {
	store    job.Store
	locks    *lock.Manager
	resolver runner.Resolver
	opts     *options
}

// New 创建调度器.
func New(store job.Store, locks *lock.Manager, resolver runner.Resolver, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if locks == nil {
		return nil, ErrNilLockManager
	}
	if resolver == nil {
		return nil, ErrNilResolver
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.evaluator == nil {
		o.evaluator = schedule.NewEvaluator(o.location)
	}
	if o.runner == nil {
		o.runner = runner.New(runner.WithLogger(loggerOrNop(o.logger)))
	}

	return &Scheduler{
		store:    store,
		locks:    locks,
		resolver: resolver,
		opts:     o,
	}, nil
}

// MustNew 创建调度器，失败时 panic.
func MustNew(store job.Store, locks *lock.Manager, resolver runner.Resolver, opts ...Option) *Scheduler {
	s, err := New(store, locks, resolver, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// RunOnce 执行一次调度.
//
// dumpOnly 为 true 时只报告到期任务，不加锁也不执行.
// 单个任务的失败只记录在报告中，仅日志目录不可写或任务列表无法读取时返回错误.
func (s *Scheduler) RunOnce(ctx context.Context, dumpOnly bool) (*Report, error) {
	if s.opts.logDir != "" {
		if err := runner.CheckLogDir(s.opts.logDir); err != nil {
			s.logErrorf("日志目录不可用 [path:%s] [error:%v]", s.opts.logDir, err)
			return nil, fmt.Errorf("%w: %s: %v", ErrLogPathNotWritable, s.opts.logDir, err)
		}
	}

	report := &Report{DumpOnly: dumpOnly, StartedAt: s.opts.now()}

	jobs, err := s.store.List(ctx, job.Enabled())
	if err != nil {
		s.logErrorf("读取任务列表失败 [error:%v]", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logDebugf("开始调度 [jobs:%d] [dump:%t]", len(jobs), dumpOnly)

	for _, listed := range jobs {
		if err := ctx.Err(); err != nil {
			s.logWarnf("调度被中断 [error:%v]", err)
			report.FinishedAt = s.opts.now()
			return report, err
		}
		report.Entries = append(report.Entries, s.process(ctx, listed.ID, dumpOnly))
	}

	report.FinishedAt = s.opts.now()
	sum := report.Summary()
	s.logInfof("调度完成 [due:%d] [executed:%d] [failed:%d] [contended:%d] [duration:%v]",
		sum.Due, sum.Executed, sum.Failed, sum.Contended, report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// process 处理单个任务.
func (s *Scheduler) process(ctx context.Context, id int64, dumpOnly bool) Entry {
	// 列表可能在处理前面的任务期间过期，按 ID 重新读取
	current, err := s.store.Get(ctx, id)
	if err != nil {
		s.logErrorf("重新读取任务失败 [id:%d] [error:%v]", id, err)
		return Entry{Job: &job.Job{ID: id}, Decision: DecisionUnavailable, Err: err}
	}

	entry := Entry{Job: current}
	switch {
	case current.Disabled:
		entry.Decision = DecisionDisabled
		return entry
	case current.Locked:
		entry.Decision = DecisionLocked
		s.skip(ctx, current, SkipLocked)
		return entry
	}

	due, err := s.isDue(current)
	if err != nil {
		s.logErrorf("任务 Cron 表达式无效 [job:%s] [cron:%s] [error:%v]", current.Name, current.CronExpression, err)
		entry.Decision = DecisionInvalidSchedule
		entry.Err = err
		return entry
	}
	if !due {
		entry.Decision = DecisionNotDue
		return entry
	}

	entry.Due = true
	entry.Immediate = current.ExecuteImmediately
	if dumpOnly {
		entry.Decision = DecisionDue
		return entry
	}

	entry.Decision, entry.Result, entry.Err = s.execute(ctx, current)
	return entry
}

// isDue 判断任务是否到期.
func (s *Scheduler) isDue(j *job.Job) (bool, error) {
	next, err := s.opts.evaluator.Next(j.CronExpression, j.LastExecution)
	if err != nil {
		return false, err
	}
	if j.ExecuteImmediately {
		return true, nil
	}
	if next.IsZero() {
		s.logWarnf("任务 Cron 表达式没有下一次触发时间 [job:%s] [cron:%s]", j.Name, j.CronExpression)
		return false, nil
	}
	return next.Before(s.opts.now()), nil
}

// execute 加锁、执行并解锁.
func (s *Scheduler) execute(ctx context.Context, j *job.Job) (Decision, *Result, error) {
	jc := &JobContext{Job: j, StartTime: s.opts.now()}

	if err := s.opts.hooks.before(ctx, jc); err != nil {
		s.logInfof("前置钩子阻止任务执行 [job:%s] [error:%v]", j.Name, err)
		s.skip(ctx, j, SkipVetoed)
		return DecisionVetoed, nil, fmt.Errorf("%w: %w", ErrJobVetoed, err)
	}

	acq, err := s.locks.TryAcquire(ctx, j.ID)
	if acq != lock.Acquired {
		if err != nil {
			s.logErrorf("获取任务锁失败 [job:%s] [error:%v]", j.Name, err)
		} else {
			s.logInfof("任务已被其他进程锁定，跳过 [job:%s]", j.Name)
		}
		s.skip(ctx, j, SkipContended)
		return DecisionContended, nil, err
	}

	res := s.run(ctx, j)

	// 无论执行结果如何都必须释放锁
	if err := s.locks.Release(ctx, j.ID, res.Code); err != nil {
		s.logErrorf("释放任务锁失败，需要手动解锁 [job:%s] [error:%v]", j.Name, err)
		res.Err = errors.Join(res.Err, err)
	}

	jc.Result = res
	s.opts.hooks.finished(ctx, jc)

	return DecisionExecuted, res, nil
}

// run 在独立作用域内执行任务命令，作用域内的资源在任何退出路径上都会被释放.
func (s *Scheduler) run(ctx context.Context, j *job.Job) (res *Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = infrastructureFailure(&runner.PanicError{Value: p})
		}
		res.Duration = time.Since(start)
		if res.Kind == ResultInfrastructureFailure {
			s.logErrorf("任务执行失败 [job:%s] [error:%v]", j.Name, res.Err)
		} else {
			s.logInfof("任务执行完成 [job:%s] [code:%d] [duration:%v]", j.Name, res.Code, res.Duration)
		}
	}()

	cmd, err := s.resolver.Resolve(j.Command)
	if err != nil {
		return infrastructureFailure(err)
	}

	sink, err := runner.OpenSink(s.opts.logDir, j.LogFile)
	if err != nil {
		return infrastructureFailure(err)
	}
	defer sink.Close()

	args, err := runner.ParseArguments(j.Arguments, s.opts.environment)
	if err != nil {
		fmt.Fprintln(sink, err)
		return infrastructureFailure(err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logInfof("执行任务 [job:%s] [command:%s] [args:%q]", j.Name, j.Command, args)
	code, err := s.opts.runner.Run(runCtx, cmd, &runner.Invocation{
		Name:        j.Name,
		Args:        args,
		Interactive: runner.Interactive(args),
		Output:      sink,
		Input:       s.opts.input,
		Env:         []string{"SCHEDULER_JOB=" + j.Name},
	})
	if err != nil {
		fmt.Fprintln(sink, err)
		var perr *runner.PanicError
		if errors.As(err, &perr) {
			_, _ = sink.Write(perr.Stack)
		}
		return infrastructureFailure(err)
	}
	return completed(code)
}

func (s *Scheduler) skip(ctx context.Context, j *job.Job, reason string) {
	s.opts.hooks.skipped(ctx, &JobContext{Job: j, StartTime: s.opts.now(), SkipReason: reason})
}

// 日志辅助方法.

func loggerOrNop(log logger.Logger) logger.Logger {
	if log == nil {
		return logger.NewNop()
	}
	return log
}

func (s *Scheduler) logDebugf(format string, args ...any) {
	if log := s.opts.logger; log != nil {
		log.Debugf("[Scheduler] "+format, args...)
	}
}

func (s *Scheduler) logInfof(format string, args ...any) {
	if log := s.opts.logger; log != nil {
		log.Infof("[Scheduler] "+format, args...)
	}
}

func (s *Scheduler) logWarnf(format string, args ...any) {
	if log := s.opts.logger; log != nil {
		log.Warnf("[Scheduler] "+format, args...)
	}
}

func (s *Scheduler) logErrorf(format string, args ...any) {
	if log := s.opts.logger; log != nil {
		log.Errorf("[Scheduler] "+format, args...)
	}
}
