package job

import (
	"errors"
	"fmt"
)

// 预定义错误.
var (
	// ErrNotFound 任务不存在.
	ErrNotFound = errors.New("job: not found")

	// ErrDuplicateName 任务名称已存在.
	ErrDuplicateName = errors.New("job: duplicate name")

	// ErrConflict 并发写入冲突，记录已被其他进程修改.
	ErrConflict = errors.New("job: concurrent modification")

	// ErrEmptyName 任务名称为空.
	ErrEmptyName = errors.New("job: name is required")

	// ErrEmptyCommand 命令为空.
	ErrEmptyCommand = errors.New("job: command is required")

	// ErrInvalidLogFile 日志文件必须是日志目录内的相对路径.
	ErrInvalidLogFile = errors.New("job: log file must be a relative path inside the log directory")

	// ErrStoreClosed 存储已关闭.
	ErrStoreClosed = errors.New("job: store closed")
)

// ValidationError 任务配置校验错误.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("job: invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
