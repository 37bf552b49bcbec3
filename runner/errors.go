package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandNotFound 无法解析命令标识.
	ErrCommandNotFound = errors.New("runner: command not found")

	// ErrInvalidArguments 参数字符串无法解析.
	ErrInvalidArguments = errors.New("runner: invalid arguments")

	// ErrDuplicateCommand 命令重复注册.
	ErrDuplicateCommand = errors.New("runner: command already registered")

	// ErrNilInvocation 未提供调用参数.
	ErrNilInvocation = errors.New("runner: invocation is nil")
)

// PanicError 命令执行过程中发生的 panic.
type PanicError struct {
	// Value panic 的值.
	Value any
	// Stack 堆栈信息.
	Stack []byte
}

// Error 实现 error 接口.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap 返回原始错误（如果 panic 值是 error）.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
