package scheduler

import (
	"context"
	"time"

	"github.com/Tsukikage7/command-scheduler/job"
)

// JobContext 一个到期任务在本次调度中的处理状态.
type JobContext struct {
	Job       *job.Job
	StartTime time.Time

	// Result 仅在 After/Failed 中有值.
	Result *Result

	// SkipReason 仅在 Skipped 中有值，取 Skip* 常量之一.
	SkipReason string
}

// 跳过原因，取值固定，可直接用作指标标签.
const (
	SkipLocked    = "locked"
	SkipVetoed    = "vetoed"
	SkipContended = "contended"
)

// Hooks 调度事件回调，未设置的字段不调用.
//
// Before 在抢锁前调用，返回错误时任务不执行，报告中记为 DecisionVetoed,
// Entry.Err 包装 ErrJobVetoed 与钩子返回的错误，随后以 SkipVetoed 调用 Skipped.
// Failed 在返回码非零或基础设施故障时调用，先于 After.
type Hooks struct {
	Before  func(ctx context.Context, jc *JobContext) error
	After   func(ctx context.Context, jc *JobContext)
	Failed  func(ctx context.Context, jc *JobContext)
	Skipped func(ctx context.Context, jc *JobContext)
}

func (h *Hooks) before(ctx context.Context, jc *JobContext) error {
	if h == nil || h.Before == nil {
		return nil
	}
	return h.Before(ctx, jc)
}

func (h *Hooks) finished(ctx context.Context, jc *JobContext) {
	if h == nil {
		return
	}
	if h.Failed != nil && !jc.Result.Success() {
		h.Failed(ctx, jc)
	}
	if h.After != nil {
		h.After(ctx, jc)
	}
}

func (h *Hooks) skipped(ctx context.Context, jc *JobContext) {
	if h != nil && h.Skipped != nil {
		h.Skipped(ctx, jc)
	}
}

// Merge 按顺序组合多组钩子，Before 遇到第一个错误即返回.
func Merge(hooks ...*Hooks) *Hooks {
	var set []*Hooks
	for _, h := range hooks {
		if h != nil {
			set = append(set, h)
		}
	}
	return &Hooks{
		Before: func(ctx context.Context, jc *JobContext) error {
			for _, h := range set {
				if err := h.before(ctx, jc); err != nil {
					return err
				}
			}
			return nil
		},
		After: func(ctx context.Context, jc *JobContext) {
			for _, h := range set {
				if h.After != nil {
					h.After(ctx, jc)
				}
			}
		},
		Failed: func(ctx context.Context, jc *JobContext) {
			for _, h := range set {
				if h.Failed != nil {
					h.Failed(ctx, jc)
				}
			}
		},
		Skipped: func(ctx context.Context, jc *JobContext) {
			for _, h := range set {
				h.skipped(ctx, jc)
			}
		},
	}
}
