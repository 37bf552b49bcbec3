// Package lock 基于任务存储实现跨进程的任务执行锁.
//
// 调度器的多个调用是互不共享内存的独立进程，互斥完全依赖
// job.Store.Update 的事务性比较并设置，不使用任何进程内互斥量.
//
// 基本用法:
//
//	locks := lock.NewManager(store, lock.WithLogger(log))
//
//	acq, err := locks.TryAcquire(ctx, j.ID)
//	if acq != lock.Acquired {
//	    return // 其他进程已抢先
//	}
//	defer locks.Release(ctx, j.ID, code)
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/logger"
)

// Acquisition 锁获取结果.
type Acquisition int

const (
	// Contended 锁已被持有或竞争失败.
	Contended Acquisition = iota
	// Acquired 成功获取锁.
	Acquired
)

// String 实现 fmt.Stringer.
func (a Acquisition) String() string {
	if a == Acquired {
		return "acquired"
	}
	return "contended"
}

// errContended 锁已被持有，放弃写入.
var errContended = errors.New("lock: contended")

// Manager 任务锁管理器.
type Manager struct {
	store        job.Store
	logger       logger.Logger
	now          func() time.Time
	releaseTries uint
	releaseWait  time.Duration
}

// Option 锁管理器配置选项.
type Option func(*Manager)

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.logger = log
	}
}

// WithClock 设置时钟，用于测试.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithReleaseRetry 设置释放锁遇到写冲突时的重试次数和初始间隔.
//
// 默认 5 次，初始间隔 100ms.
func WithReleaseRetry(tries uint, wait time.Duration) Option {
	return func(m *Manager) {
		m.releaseTries = tries
		m.releaseWait = wait
	}
}

// NewManager 创建锁管理器.
func NewManager(store job.Store, opts ...Option) *Manager {
	if store == nil {
		panic(ErrNilStore)
	}
	m := &Manager{
		store:        store,
		logger:       logger.NewNop(),
		now:          time.Now,
		releaseTries: 5,
		releaseWait:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now 返回管理器时钟的当前时间.
func (m *Manager) Now() time.Time {
	return m.now()
}

// TryAcquire 尝试获取任务锁.
//
// 在单个存储事务内读取 locked，未锁定时置为 true 并把 LastExecution 设为当前时间.
// 已锁定、已禁用或写入冲突均返回 Contended，这不是错误.
// 其他存储错误同样返回 Contended，并附带错误供调用方记录.
func (m *Manager) TryAcquire(ctx context.Context, id int64) (Acquisition, error) {
	_, err := m.store.Update(ctx, id, func(j *job.Job) error {
		if j.Locked || j.Disabled {
			return errContended
		}
		j.Locked = true
		if now := m.now(); now.After(j.LastExecution) {
			j.LastExecution = now
		}
		return nil
	})

	switch {
	case err == nil:
		m.logger.Debugf("[Lock] 获取任务锁成功: id=%d", id)
		return Acquired, nil
	case errors.Is(err, errContended):
		m.logger.Debugf("[Lock] 任务已被锁定: id=%d", id)
		return Contended, nil
	case errors.Is(err, job.ErrConflict):
		m.logger.Debugf("[Lock] 获取任务锁时发生写冲突: id=%d", id)
		return Contended, nil
	default:
		m.logger.Errorf("[Lock] 获取任务锁失败: id=%d, error=%v", id, err)
		return Contended, err
	}
}

// Release 释放任务锁并记录返回码，同时清除立即执行标记.
//
// 每次成功获取后必须在所有退出路径上调用一次.
// 释放不受 ctx 取消影响，写冲突时按指数退避重试.
func (m *Manager) Release(ctx context.Context, id int64, code int) error {
	ctx = context.WithoutCancel(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.releaseWait

	_, err := backoff.Retry(ctx, func() (*job.Job, error) {
		j, err := m.store.Update(ctx, id, func(j *job.Job) error {
			if !j.Locked {
				m.logger.Warnf("[Lock] 释放时任务未锁定: id=%d", id)
			}
			j.Locked = false
			j.ExecuteImmediately = false
			j.LastReturnCode = code
			return nil
		})
		if err != nil && !errors.Is(err, job.ErrConflict) {
			return nil, backoff.Permanent(err)
		}
		return j, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(m.releaseTries))
	if err != nil {
		m.logger.Errorf("[Lock] 释放任务锁失败: id=%d, error=%v", id, err)
		return err
	}

	m.logger.Debugf("[Lock] 释放任务锁: id=%d, code=%d", id, code)
	return nil
}

// IsStale 判断任务锁是否已超时.
func (m *Manager) IsStale(j *job.Job, timeout time.Duration) bool {
	return IsStale(j, timeout, m.now())
}

// IsStale 当任务已锁定且距 LastExecution 不少于 timeout 时返回 true.
func IsStale(j *job.Job, timeout time.Duration, now time.Time) bool {
	if j == nil || !j.Locked {
		return false
	}
	return now.Sub(j.LastExecution) >= timeout
}
