package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/runner"
)

// Decision 单个任务在本次调度中的处理结果.
type Decision int

const (
	// DecisionNotDue 未到执行时间.
	DecisionNotDue Decision = iota
	// DecisionDue 已到期，预演模式下未执行.
	DecisionDue
	// DecisionExecuted 已执行.
	DecisionExecuted
	// DecisionContended 获取锁失败，被其他调用抢先.
	DecisionContended
	// DecisionVetoed 被前置钩子阻止.
	DecisionVetoed
	// DecisionLocked 任务已锁定，跳过.
	DecisionLocked
	// DecisionDisabled 任务已禁用，跳过.
	DecisionDisabled
	// DecisionInvalidSchedule 存储的 Cron 表达式无效.
	DecisionInvalidSchedule
	// DecisionUnavailable 重新读取任务失败.
	DecisionUnavailable
)

var decisionNames = map[Decision]string{
	DecisionNotDue:          "not_due",
	DecisionDue:             "due",
	DecisionExecuted:        "executed",
	DecisionContended:       "contended",
	DecisionVetoed:          "vetoed",
	DecisionLocked:          "locked",
	DecisionDisabled:        "disabled",
	DecisionInvalidSchedule: "invalid_schedule",
	DecisionUnavailable:     "unavailable",
}

// String 实现 fmt.Stringer.
func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return "unknown"
}

// Entry 单个任务的处理记录.
type Entry struct {
	// Job 处理时读取到的任务状态.
	Job *job.Job
	// Decision 处理结果.
	Decision Decision
	// Due 任务是否到期.
	Due bool
	// Immediate 是否因立即执行标记而到期.
	Immediate bool
	// Result 执行结果，仅 DecisionExecuted 时有值.
	Result *Result
	// Err 读取任务、计算调度、获取锁或被前置钩子阻止时的错误.
	Err error
}

// Line 返回人类可读的描述，不需要输出时返回空字符串.
func (e Entry) Line() string {
	if e.Job == nil {
		return ""
	}
	j := e.Job

	var b strings.Builder
	switch {
	case e.Decision == DecisionInvalidSchedule:
		return fmt.Sprintf("Command %s has an invalid cron expression %q", j.Command, j.CronExpression)
	case !e.Due:
		return ""
	case e.Immediate:
		fmt.Fprintf(&b, "Immediately execution asked for : %s", j.Command)
	default:
		fmt.Fprintf(&b, "Command %s should be executed - last execution : %s.",
			j.Command, j.LastExecution.Format(time.RFC3339))
	}

	switch e.Decision {
	case DecisionContended:
		b.WriteString("\nCommand " + j.Command + " is locked")
	case DecisionVetoed:
		b.WriteString("\nCommand " + j.Command + " was vetoed")
	case DecisionExecuted:
		r := e.Result
		if r.Kind == ResultInfrastructureFailure && errors.Is(r.Err, runner.ErrCommandNotFound) {
			b.WriteString("\nCannot find " + j.Command)
			break
		}
		b.WriteString("\nExecute : " + strings.TrimSpace(j.Command+" "+j.Arguments))
		fmt.Fprintf(&b, " (returncode %d, %s)", r.Code, r.Duration.Round(time.Millisecond))
	}
	return b.String()
}

// Summary 调度统计.
type Summary struct {
	Total     int
	Due       int
	Executed  int
	Succeeded int
	Failed    int
	Contended int
}

// Report 单次调度报告.
type Report struct {
	DumpOnly   bool
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    []Entry
}

// Lines 返回报告的文本行，没有到期任务时返回 "Nothing to do.".
func (r *Report) Lines() []string {
	var lines []string
	for _, e := range r.Entries {
		if line := e.Line(); line != "" {
			lines = append(lines, strings.Split(line, "\n")...)
		}
	}
	if r.Summary().Due == 0 {
		lines = append(lines, "Nothing to do.")
	}
	return lines
}

// String 实现 fmt.Stringer.
func (r *Report) String() string {
	return strings.Join(r.Lines(), "\n")
}

// Summary 统计报告.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Entries)}
	for _, e := range r.Entries {
		if e.Due {
			s.Due++
		}
		switch e.Decision {
		case DecisionExecuted:
			s.Executed++
			if e.Result.Success() {
				s.Succeeded++
			} else {
				s.Failed++
			}
		case DecisionContended:
			s.Contended++
		}
	}
	return s
}

// Results 返回已执行任务的结果，按任务名索引.
func (r *Report) Results() map[string]*Result {
	out := make(map[string]*Result)
	for _, e := range r.Entries {
		if e.Decision == DecisionExecuted {
			out[e.Job.Name] = e.Result
		}
	}
	return out
}
