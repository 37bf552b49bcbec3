package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/scheduler"
)

// InstrumentationName 调度器 tracer 名称.
const InstrumentationName = "github.com/Tsukikage7/command-scheduler/scheduler"

// 属性键.
const (
	AttrJobName       = attribute.Key("scheduler.job.name")
	AttrJobCommand    = attribute.Key("scheduler.job.command")
	AttrJobCron       = attribute.Key("scheduler.job.cron")
	AttrReturnCode    = attribute.Key("scheduler.job.return_code")
	AttrResultKind    = attribute.Key("scheduler.job.result")
	AttrSkipReason    = attribute.Key("scheduler.job.skip_reason")
	AttrDumpOnly      = attribute.Key("scheduler.dispatch.dump_only")
	AttrImmediateExec = attribute.Key("scheduler.job.execute_immediately")
)

// StartDispatch 开始一次调度的根 span.
func StartDispatch(ctx context.Context, tp trace.TracerProvider, dumpOnly bool) (context.Context, trace.Span) {
	return tp.Tracer(InstrumentationName).Start(ctx, "scheduler.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrDumpOnly.Bool(dumpOnly)),
	)
}

// Hooks 返回把已执行任务记录为 span 的调度钩子.
//
// 任务 span 从 JobContext.StartTime 开始，跳过的任务记录为当前 span 上的事件.
func Hooks(tp trace.TracerProvider) *scheduler.Hooks {
	tracer := tp.Tracer(InstrumentationName)

	return &scheduler.Hooks{
		After: func(ctx context.Context, jc *scheduler.JobContext) {
			_, span := tracer.Start(ctx, "scheduler.job "+jc.Job.Name,
				trace.WithTimestamp(jc.StartTime),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(jobAttributes(jc.Job)...),
			)
			defer span.End()

			res := jc.Result
			span.SetAttributes(
				AttrReturnCode.Int(res.Code),
				AttrResultKind.String(res.Kind.String()),
			)
			switch {
			case res.Err != nil:
				span.RecordError(res.Err)
				span.SetStatus(codes.Error, res.Err.Error())
			case !res.Success():
				span.SetStatus(codes.Error, fmt.Sprintf("returncode %d", res.Code))
			default:
				span.SetStatus(codes.Ok, "")
			}
		},
		Skipped: func(ctx context.Context, jc *scheduler.JobContext) {
			trace.SpanFromContext(ctx).AddEvent("scheduler.job.skipped", trace.WithAttributes(
				AttrJobName.String(jc.Job.Name),
				AttrSkipReason.String(jc.SkipReason),
			))
		},
	}
}

func jobAttributes(j *job.Job) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrJobName.String(j.Name),
		AttrJobCommand.String(j.Command),
		AttrJobCron.String(j.CronExpression),
		AttrImmediateExec.Bool(j.ExecuteImmediately),
	}
}
