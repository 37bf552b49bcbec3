package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/command-scheduler/app"
	"github.com/Tsukikage7/command-scheduler/config"
	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/lock"
	"github.com/Tsukikage7/command-scheduler/logger"
	"github.com/Tsukikage7/command-scheduler/metrics"
	"github.com/Tsukikage7/command-scheduler/storage/memory"
	"github.com/Tsukikage7/command-scheduler/storage/mongodb"
	"github.com/Tsukikage7/command-scheduler/storage/sqlstore"
	"github.com/Tsukikage7/command-scheduler/tracing"
)

// 清理顺序：先推送指标和链路，再关闭存储，最后刷新日志.
const (
	priorityMetrics = 10
	priorityTracing = 20
	priorityStore   = 50
	priorityLogger  = 100
)

// runtime 一次调用共享的依赖.
type runtime struct {
	cfg     *Config
	log     logger.Logger
	store   job.Store
	locks   *lock.Manager
	metrics *metrics.PrometheusCollector
	tracer  trace.TracerProvider
	out     io.Writer
	in      io.Reader
}

// task 子命令的执行体.
type task func(ctx context.Context, rt *runtime) error

// fileDefaults 配置文件与环境变量都未设置时的取值.
var fileDefaults = map[string]any{
	"notifier.rabbitmq.confirm":   true,
	"notifier.rabbitmq.mandatory": true,
}

// loadConfig 加载配置文件.
func loadConfig(path string) (*Config, error) {
	return config.Resolve[Config](path, config.WithDefaults(fileDefaults))
}

// newLogger 按配置与命令行开关创建日志记录器.
func newLogger(cfg *Config, verbose, quiet bool) (logger.Logger, error) {
	logCfg := cfg.Logger
	switch {
	case quiet:
		logCfg.Level = logger.LevelError
	case verbose:
		logCfg.Level = logger.LevelDebug
		logCfg.EnableCaller = true
	}
	return logger.NewLogger(&logCfg)
}

// openStore 按配置打开任务存储.
func openStore(ctx context.Context, cfg *Config, log logger.Logger) (job.Store, error) {
	switch cfg.Store.Type {
	case StoreSQL:
		return sqlstore.Open(ctx, &cfg.Store.SQL, log)
	case StoreMongoDB:
		return mongodb.Open(ctx, &cfg.Store.MongoDB, log)
	case StoreMemory:
		log.Warn("[Scheduler] 使用内存存储，任务状态不会跨进程保留")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedStore, cfg.Store.Type)
	}
}

// newRuntime 组装依赖，存储由调用方负责关闭.
func newRuntime(cfg *Config, log logger.Logger, store job.Store) *runtime {
	rt := &runtime{
		cfg:   cfg,
		log:   log,
		store: store,
		locks: lock.NewManager(store, lock.WithLogger(log)),
		out:   os.Stdout,
		in:    os.Stdin,
	}
	if cfg.Metrics.Enabled {
		rt.metrics = metrics.MustNewMetrics(&cfg.Metrics)
	}
	return rt
}

// execute 加载配置、创建运行环境并执行子命令.
func execute(g *GlobalOptions, quiet bool, fn task) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		bootLog := logger.MustNewLogger(logger.NewCLIConfig(g.Verbose, quiet))
		bootLog.Errorf("[Scheduler] 加载配置失败: %v", err)
		_ = bootLog.Sync()
		return err
	}

	base, err := newLogger(cfg, g.Verbose, quiet)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer base.Close()
	invocation := logger.NewInvocationID()
	log := base.With(logger.String(logger.InvocationField, invocation))

	application := app.New(
		app.Name("command-scheduler"),
		app.Version(version),
		app.Logger(log),
		app.RegisterCleanup("logger", func(context.Context) error {
			_ = base.Sync()
			return nil
		}, priorityLogger),
	)

	// 在打开存储之前设置全局 TracerProvider，GORM 插件才会使用它
	var tp trace.TracerProvider
	if cfg.Tracing.Enabled {
		provider, err := tracing.NewProvider(context.Background(), &cfg.Tracing, "command-scheduler", version)
		if err != nil {
			log.Errorf("[Scheduler] 初始化链路追踪失败: %v", err)
			return err
		}
		application.AddCleanup("tracing", provider.Shutdown, priorityTracing)
		tp = provider
	}

	ctx := logger.ContextWithInvocationID(context.Background(), invocation)
	return application.Run(ctx, func(ctx context.Context) error {
		store, err := openStore(ctx, cfg, log)
		if err != nil {
			log.Errorf("[Scheduler] 打开任务存储失败: %v", err)
			return err
		}
		application.AddCloser("store", store, priorityStore)

		rt := newRuntime(cfg, log, store)
		rt.tracer = tp
		if rt.metrics != nil && cfg.Metrics.PushGateway != "" {
			application.AddCleanup("metrics", func(context.Context) error {
				return rt.metrics.Push()
			}, priorityMetrics)
		}
		return fn(ctx, rt)
	})
}
