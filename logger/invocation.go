package logger

import (
	"context"

	"github.com/google/uuid"
)

// InvocationField 调用标识的字段名.
const InvocationField = "invocation"

type invocationKey struct{}

// NewInvocationID 生成一次命令行调用的标识.
//
// 外部定时器可能同时启动多个调度进程，日志靠这个标识区分来源.
func NewInvocationID() string {
	return uuid.NewString()
}

// ContextWithInvocationID 将调用标识注入到 context.
func ContextWithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey{}, id)
}

// InvocationIDFromContext 读取 context 中的调用标识.
func InvocationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(invocationKey{}).(string)
	return id, ok && id != ""
}
