package scheduler

import (
	"time"

	"github.com/Tsukikage7/command-scheduler/job"
)

// ResultKind 执行结果类型.
type ResultKind int

const (
	// ResultCompleted 命令已执行完毕，Code 为命令的退出码.
	ResultCompleted ResultKind = iota
	// ResultInfrastructureFailure 命令未能执行或执行中发生异常，Code 固定为 -1.
	ResultInfrastructureFailure
)

// String 实现 fmt.Stringer.
func (k ResultKind) String() string {
	switch k {
	case ResultCompleted:
		return "completed"
	case ResultInfrastructureFailure:
		return "infrastructure_failure"
	default:
		return "unknown"
	}
}

// Result 单个任务的执行结果.
type Result struct {
	Kind     ResultKind
	Code     int
	Err      error
	Duration time.Duration
}

// completed 创建正常完成的结果.
func completed(code int) *Result {
	return &Result{Kind: ResultCompleted, Code: code}
}

// infrastructureFailure 创建基础设施故障结果.
func infrastructureFailure(err error) *Result {
	return &Result{Kind: ResultInfrastructureFailure, Code: job.CodeInfrastructureFailure, Err: err}
}

// Success 命令是否执行成功.
func (r *Result) Success() bool {
	return r != nil && r.Kind == ResultCompleted && r.Code == job.CodeSuccess
}
