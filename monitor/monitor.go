// Package monitor 检查失败或锁超时的任务并发送报告.
//
// Scan 只读取任务存储，连续调用在没有调度活动时结果相同.
// 报告投递失败只通过返回值体现，不重试，也不影响扫描结果.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/lock"
	"github.com/Tsukikage7/command-scheduler/logger"
	"github.com/Tsukikage7/command-scheduler/messaging"
)

// NoErrors 没有失败任务时的报告内容.
const NoErrors = "No errors found."

// DefaultSubject 默认通知标题，参数依次为主机名和当前时间.
const DefaultSubject = "cronjob monitoring %s, %s"

// ErrNoReceivers 非预演模式下未配置接收者.
var ErrNoReceivers = errors.New("monitor: no receivers configured")

// Entry 失败任务记录.
type Entry struct {
	Name          string    `json:"name"`
	ReturnCode    int       `json:"return_code"`
	Locked        bool      `json:"locked"`
	Stale         bool      `json:"stale"`
	LastExecution time.Time `json:"last_execution"`
}

// String 返回单行描述.
func (e Entry) String() string {
	return fmt.Sprintf("%s: returncode %d, locked: %t, last execution: %s",
		e.Name, e.ReturnCode, e.Locked, e.LastExecution.Format(time.RFC3339))
}

// Monitor 任务监控.
type Monitor struct {
	store     job.Store
	locks     *lock.Manager
	notifier  messaging.Notifier
	receivers []string
	subject   string
	logger    logger.Logger
	hostname  func() (string, error)
}

// Option 监控配置选项.
type Option func(*Monitor)

// WithNotifier 设置通知器和接收者.
func WithNotifier(n messaging.Notifier, receivers ...string) Option {
	return func(m *Monitor) {
		m.notifier = n
		m.receivers = receivers
	}
}

// WithSubject 设置通知标题格式.
func WithSubject(subject string) Option {
	return func(m *Monitor) {
		m.subject = subject
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) {
		m.logger = log
	}
}

// WithHostname 设置主机名获取函数，用于测试.
func WithHostname(fn func() (string, error)) Option {
	return func(m *Monitor) {
		m.hostname = fn
	}
}

// New 创建监控.
func New(store job.Store, locks *lock.Manager, opts ...Option) *Monitor {
	m := &Monitor{
		store:    store,
		locks:    locks,
		subject:  DefaultSubject,
		logger:   logger.NewNop(),
		hostname: os.Hostname,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CanNotify 是否配置了通知器和接收者.
func (m *Monitor) CanNotify() bool {
	return m.notifier != nil && len(m.receivers) > 0
}

// Scan 返回返回码非零或锁已超时的启用任务.
//
// 超时判断与 unlock 相同，timeout 为 0 时所有已锁定任务都视为超时.
func (m *Monitor) Scan(ctx context.Context, timeout time.Duration) ([]Entry, error) {
	jobs, err := m.store.List(ctx, job.Enabled())
	if err != nil {
		return nil, fmt.Errorf("monitor: list jobs: %w", err)
	}

	var entries []Entry
	for _, j := range jobs {
		stale := m.locks.IsStale(j, timeout)
		if !j.Failed() && !stale {
			continue
		}
		entries = append(entries, Entry{
			Name:          j.Name,
			ReturnCode:    j.LastReturnCode,
			Locked:        j.Locked,
			Stale:         stale,
			LastExecution: j.LastExecution,
		})
	}
	m.logger.Debugf("[Monitor] 扫描完成: jobs=%d, failures=%d", len(jobs), len(entries))
	return entries, nil
}

// Render 渲染报告正文.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return NoErrors
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Report 输出或投递报告.
//
// dumpOnly 时写入 w；否则没有失败且 sendIfEmpty 为 false 时不投递.
// 返回 false 表示投递失败.
func (m *Monitor) Report(ctx context.Context, w io.Writer, entries []Entry, dumpOnly, sendIfEmpty bool) bool {
	body := Render(entries)

	if dumpOnly {
		if _, err := fmt.Fprintln(w, strings.TrimRight(body, "\n")); err != nil {
			m.logger.Errorf("[Monitor] 输出报告失败: %v", err)
			return false
		}
		return true
	}

	if len(entries) == 0 && !sendIfEmpty {
		m.logger.Debug("[Monitor] 没有失败任务，跳过通知")
		return true
	}
	if !m.CanNotify() {
		m.logger.Error("[Monitor] 未配置通知接收者")
		return false
	}

	host, err := m.hostname()
	if err != nil {
		host = "localhost"
	}
	now := time.Now()
	err = m.notifier.Notify(ctx, &messaging.Notification{
		Subject:   fmt.Sprintf(m.subject, host, now.Format(time.DateTime)),
		Body:      body,
		Host:      host,
		Time:      now,
		Receivers: m.receivers,
	})
	if err != nil {
		m.logger.Errorf("[Monitor] 通知投递失败: %v", err)
		return false
	}
	m.logger.Infof("[Monitor] 通知已投递: receivers=%d, failures=%d", len(m.receivers), len(entries))
	return true
}
