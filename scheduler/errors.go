package scheduler

import "errors"

// 预定义错误.
var (
	// ErrNilStore 任务存储为空.
	ErrNilStore = errors.New("scheduler: store is required")

	// ErrNilLockManager 锁管理器为空.
	ErrNilLockManager = errors.New("scheduler: lock manager is required")

	// ErrNilResolver 命令解析器为空.
	ErrNilResolver = errors.New("scheduler: command resolver is required")

	// ErrLogPathNotWritable 日志目录不存在或不可写.
	ErrLogPathNotWritable = errors.New("scheduler: log path not found or not writable")

	// ErrStoreUnavailable 无法读取任务列表.
	ErrStoreUnavailable = errors.New("scheduler: store unavailable")

	// ErrJobVetoed 前置钩子阻止任务执行.
	ErrJobVetoed = errors.New("scheduler: job vetoed by hook")
)
