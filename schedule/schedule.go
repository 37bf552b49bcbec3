// Package schedule 计算 Cron 表达式的下一次触发时间.
//
// 支持标准五段式（分 时 日 月 周）、带秒的六段式以及 @daily 等描述符.
// 表达式应在保存任务时通过 Validate 校验，调度时假定存储的表达式有效.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression 无效的 Cron 表达式.
var ErrInvalidExpression = errors.New("schedule: invalid cron expression")

// parser 可选秒字段的解析器.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule 已解析的调度计划.
type Schedule interface {
	// Next 返回严格晚于 t 的下一次触发时间.
	Next(t time.Time) time.Time
}

// Evaluator Cron 计算器接口.
type Evaluator interface {
	// Next 返回 since 之后的下一次触发时间.
	Next(expr string, since time.Time) (time.Time, error)
}

// Parse 解析 Cron 表达式.
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}
	return s, nil
}

// Validate 校验 Cron 表达式，永远不会触发的表达式（如 2 月 30 日）同样无效.
func Validate(expr string) error {
	s, err := Parse(expr)
	if err != nil {
		return err
	}
	if s.Next(time.Now()).IsZero() {
		return fmt.Errorf("%w: %q never fires", ErrInvalidExpression, strings.TrimSpace(expr))
	}
	return nil
}

// Next 返回 expr 在 since 之后的下一次触发时间.
//
// 五年内没有匹配的时间点时返回零值，调用方应将其视为不会到期.
func Next(expr string, since time.Time) (time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(since), nil
}

// cronEvaluator 基于 robfig/cron 的默认实现.
type cronEvaluator struct {
	location *time.Location
}

// NewEvaluator 创建 Cron 计算器.
//
// loc 为 nil 时沿用 since 自身的时区.
func NewEvaluator(loc *time.Location) Evaluator {
	return &cronEvaluator{location: loc}
}

func (e *cronEvaluator) Next(expr string, since time.Time) (time.Time, error) {
	if e.location != nil {
		since = since.In(e.location)
	}
	return Next(expr, since)
}
