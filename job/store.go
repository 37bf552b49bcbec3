package job

import "context"

// MutateFunc 在事务内修改任务副本.
//
// 返回错误时放弃写入，错误原样返回给调用方.
type MutateFunc func(j *Job) error

// Filter 列表查询条件，nil 字段表示不过滤.
type Filter struct {
	Enabled *bool
	Locked  *bool
}

// Match 判断任务是否满足条件.
func (f Filter) Match(j *Job) bool {
	if f.Enabled != nil && j.Enabled() != *f.Enabled {
		return false
	}
	if f.Locked != nil && j.Locked != *f.Locked {
		return false
	}
	return true
}

// Enabled 返回仅包含启用任务的过滤条件.
func Enabled() Filter {
	v := true
	return Filter{Enabled: &v}
}

// Locked 返回仅包含已锁定任务的过滤条件.
func Locked() Filter {
	v := true
	return Filter{Locked: &v}
}

// Store 任务存储接口.
//
// 调度器以多个互不共享内存的短生命周期进程运行，
// Update 是唯一的跨进程互斥手段，实现必须保证读取-判断-写入在同一事务内完成.
type Store interface {
	// Create 创建任务并分配 ID，名称重复返回 ErrDuplicateName.
	Create(ctx context.Context, j *Job) error

	// Get 按 ID 读取任务的当前状态.
	Get(ctx context.Context, id int64) (*Job, error)

	// GetByName 按名称精确查找任务.
	GetByName(ctx context.Context, name string) (*Job, error)

	// List 按 ID 升序列出满足条件的任务.
	List(ctx context.Context, filter Filter) ([]*Job, error)

	// Update 在单个事务内读取任务、调用 fn 修改副本并写回.
	//
	// 写入以版本号为条件，期间被其他进程修改时返回 ErrConflict.
	Update(ctx context.Context, id int64, fn MutateFunc) (*Job, error)

	// Close 释放存储资源.
	Close() error
}

// Apply 将 src 中可配置的字段复制到 dst，保留运行时状态.
//
// 用于从配置同步任务定义，Locked、LastExecution、LastReturnCode 不受影响.
func Apply(dst, src *Job) {
	dst.Command = src.Command
	dst.Arguments = src.Arguments
	dst.CronExpression = src.CronExpression
	dst.LogFile = src.LogFile
	dst.Priority = src.Priority
	dst.Disabled = src.Disabled
	if src.ExecuteImmediately {
		dst.ExecuteImmediately = true
	}
}
