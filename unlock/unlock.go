// Package unlock 手动释放超时的任务锁.
//
// 锁未超时的任务视为仍在合法执行，不会被释放.
// 判断和写入在同一存储事务内完成，避免与调度进程的释放互相覆盖.
package unlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/lock"
	"github.com/Tsukikage7/command-scheduler/logger"
)

// ErrNotFound 没有名称完全匹配的启用任务.
var ErrNotFound = errors.New("unlock: job not found or disabled")

// Status 解锁结果.
type Status int

const (
	// NotLocked 任务未锁定.
	NotLocked Status = iota
	// TooRecent 锁尚未超时.
	TooRecent
	// Unlocked 已解锁.
	Unlocked
)

// String 实现 fmt.Stringer.
func (s Status) String() string {
	switch s {
	case NotLocked:
		return "not_locked"
	case TooRecent:
		return "too_recent"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Outcome 单个任务的解锁结果.
type Outcome struct {
	Name   string
	Status Status
	Err    error
}

// String 返回人类可读的描述.
func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("Error: Scheduled Command %q could not be unlocked: %v", o.Name, o.Err)
	}
	switch o.Status {
	case NotLocked:
		return fmt.Sprintf("Skipping: Scheduled Command %q is not locked.", o.Name)
	case TooRecent:
		return fmt.Sprintf("Skipping: Timeout for scheduled Command %q has not run out.", o.Name)
	default:
		return fmt.Sprintf("Scheduled Command %q has been unlocked.", o.Name)
	}
}

// errStop 放弃写入的内部标记.
var errStop = errors.New("unlock: precondition failed")

// Tool 解锁工具.
type Tool struct {
	store  job.Store
	locks  *lock.Manager
	logger logger.Logger
}

// New 创建解锁工具.
func New(store job.Store, locks *lock.Manager, log logger.Logger) *Tool {
	if log == nil {
		log = logger.NewNop()
	}
	return &Tool{store: store, locks: locks, logger: log}
}

// UnlockOne 解锁单个任务.
//
// 未锁定返回 NotLocked；LastExecution 距今不足 timeout 返回 TooRecent；
// 否则只清除 Locked 并返回 Unlocked.
func (t *Tool) UnlockOne(ctx context.Context, j *job.Job, timeout time.Duration) (Status, error) {
	status := NotLocked
	_, err := t.store.Update(ctx, j.ID, func(current *job.Job) error {
		switch {
		case !current.Locked:
			status = NotLocked
			return errStop
		case !t.locks.IsStale(current, timeout):
			status = TooRecent
			return errStop
		}
		current.Locked = false
		status = Unlocked
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		t.logger.Errorf("[Unlock] 解锁失败: job=%s, error=%v", j.Name, err)
		return status, err
	}

	t.logger.Infof("[Unlock] job=%s, status=%s", j.Name, status)
	return status, nil
}

// UnlockAll 尝试解锁所有已锁定任务，包括已禁用的任务.
//
// 单个任务的失败记录在结果中，不影响其他任务.
func (t *Tool) UnlockAll(ctx context.Context, timeout time.Duration) ([]Outcome, error) {
	jobs, err := t.store.List(ctx, job.Locked())
	if err != nil {
		return nil, fmt.Errorf("unlock: list locked jobs: %w", err)
	}

	outcomes := make([]Outcome, 0, len(jobs))
	for _, j := range jobs {
		status, err := t.UnlockOne(ctx, j, timeout)
		outcomes = append(outcomes, Outcome{Name: j.Name, Status: status, Err: err})
	}
	return outcomes, nil
}

// UnlockByName 按名称解锁启用的任务.
func (t *Tool) UnlockByName(ctx context.Context, name string, timeout time.Duration) (Outcome, error) {
	j, err := t.store.GetByName(ctx, name)
	if errors.Is(err, job.ErrNotFound) || (err == nil && j.Disabled) {
		return Outcome{Name: name}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Outcome{Name: name}, err
	}

	status, err := t.UnlockOne(ctx, j, timeout)
	return Outcome{Name: name, Status: status, Err: err}, err
}
