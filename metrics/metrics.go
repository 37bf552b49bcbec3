// Package metrics 记录调度结果的 Prometheus 指标.
//
// 调度进程每次只运行几秒，指标在进程退出前推送到 Pushgateway，
// 而不是通过 HTTP 暴露.
package metrics

import (
	"context"
	"time"

	"github.com/Tsukikage7/command-scheduler/scheduler"
)

// 执行结果标签值.
const (
	OutcomeSuccess               = "success"
	OutcomeFailure               = "failure"
	OutcomeInfrastructureFailure = "infrastructure_failure"
)

// Outcome 将执行结果归类为标签值.
func Outcome(res *scheduler.Result) string {
	switch {
	case res == nil || res.Kind == scheduler.ResultInfrastructureFailure:
		return OutcomeInfrastructureFailure
	case res.Success():
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}

// Hooks 返回把调度事件写入收集器的钩子.
func (c *PrometheusCollector) Hooks() *scheduler.Hooks {
	return &scheduler.Hooks{
		After: func(_ context.Context, jc *scheduler.JobContext) {
			c.RecordDispatch(jc.Job.Name, jc.Result, jc.StartTime)
		},
		Skipped: func(_ context.Context, jc *scheduler.JobContext) {
			c.RecordSkip(jc.Job.Name, jc.SkipReason)
		},
	}
}

// RecordReport 记录一次调度的汇总信息.
func (c *PrometheusCollector) RecordReport(report *scheduler.Report) {
	if report == nil {
		return
	}
	c.dispatchRuns.Inc()
	c.lastDispatch.Set(float64(report.FinishedAt.Unix()))
	c.dueJobs.Set(float64(report.Summary().Due))
}

// NewMetrics 创建指标收集器.
func NewMetrics(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	return NewPrometheus(cfg)
}

// MustNewMetrics 创建指标收集器，失败时 panic.
func MustNewMetrics(cfg *Config) *PrometheusCollector {
	c, err := NewMetrics(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}
