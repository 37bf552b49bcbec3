package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Tsukikage7/command-scheduler/scheduler"
)

// PrometheusCollector Prometheus 指标收集器实现.
type PrometheusCollector struct {
	config *Config

	// 调度指标
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	skippedTotal     *prometheus.CounterVec
	lastReturnCode   *prometheus.GaugeVec
	lastRunTimestamp *prometheus.GaugeVec
	dispatchRuns     prometheus.Counter
	lastDispatch     prometheus.Gauge
	dueJobs          prometheus.Gauge

	// 运维工具指标
	failingJobs   prometheus.Gauge
	unlockedTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewPrometheus 创建 Prometheus 指标收集器.
func NewPrometheus(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.ApplyDefaults()
	namespace := cfg.Namespace

	// 使用独立注册表，避免推送默认注册表中的进程指标
	registry := prometheus.NewRegistry()

	c := &PrometheusCollector{
		config:   cfg,
		registry: registry,
	}

	c.dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "executions_total",
			Help:      "Total number of job executions by outcome",
		},
		[]string{"job", "outcome"},
	)

	c.dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "execution_duration_seconds",
			Help:      "Job execution duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		},
		[]string{"job"},
	)

	c.skippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "skipped_total",
			Help:      "Total number of due jobs that were skipped",
		},
		[]string{"job", "reason"},
	)

	c.lastReturnCode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "last_return_code",
			Help:      "Return code of the most recent execution",
		},
		[]string{"job"},
	)

	c.lastRunTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "last_execution_timestamp_seconds",
			Help:      "Unix time of the most recent execution start",
		},
		[]string{"job"},
	)

	c.dispatchRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "runs_total",
			Help:      "Total number of dispatch runs",
		},
	)

	c.lastDispatch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent dispatch run finished",
		},
	)

	c.dueJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "due_jobs",
			Help:      "Number of jobs found due in the most recent dispatch run",
		},
	)

	c.failingJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "failing_jobs",
			Help:      "Number of jobs reported by the most recent monitor scan",
		},
	)

	c.unlockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unlock",
			Name:      "released_total",
			Help:      "Total number of stale locks released",
		},
	)

	registry.MustRegister(
		c.dispatchTotal,
		c.dispatchDuration,
		c.skippedTotal,
		c.lastReturnCode,
		c.lastRunTimestamp,
		c.dispatchRuns,
		c.lastDispatch,
		c.dueJobs,
		c.failingJobs,
		c.unlockedTotal,
	)

	return c, nil
}

// RecordDispatch 记录一次任务执行.
func (c *PrometheusCollector) RecordDispatch(name string, res *scheduler.Result, startedAt time.Time) {
	c.dispatchTotal.WithLabelValues(name, Outcome(res)).Inc()
	c.dispatchDuration.WithLabelValues(name).Observe(seconds(res.Duration))
	c.lastReturnCode.WithLabelValues(name).Set(float64(res.Code))
	if !startedAt.IsZero() {
		c.lastRunTimestamp.WithLabelValues(name).Set(float64(startedAt.Unix()))
	}
}

// RecordSkip 记录一次被跳过的到期任务.
func (c *PrometheusCollector) RecordSkip(name, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	c.skippedTotal.WithLabelValues(name, reason).Inc()
}

// SetFailingJobs 记录监控扫描发现的问题任务数.
func (c *PrometheusCollector) SetFailingJobs(n int) {
	c.failingJobs.Set(float64(n))
}

// AddUnlocked 累加解锁数量.
func (c *PrometheusCollector) AddUnlocked(n int) {
	c.unlockedTotal.Add(float64(n))
}

// Registry 返回指标注册表.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Push 将注册表中的全部指标推送到 Pushgateway.
func (c *PrometheusCollector) Push() error {
	if c.config.PushGateway == "" {
		return ErrNoPushGateway
	}
	return push.New(c.config.PushGateway, c.config.JobName).
		Gatherer(c.registry).
		Push()
}
