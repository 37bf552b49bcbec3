package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// openGORM 创建 GORM 连接并配置连接池.
func openGORM(config *Config, log logger.Logger) (*gorm.DB, error) {
	dialector, err := getDialector(config)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGORMLogger(log, config.SlowThreshold, config.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// 使用全局 TracerProvider，需在 tracing.NewProvider 之后打开连接
	if config.EnableTracing {
		if err = db.Use(tracing.NewPlugin()); err != nil {
			return nil, errors.Join(ErrRegisterTracingPlugin, err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(config.Pool.MaxOpen)
	sqlDB.SetMaxIdleConns(config.Pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(config.Pool.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.Pool.MaxIdleTime)

	log.Debugf("[Database] 连接已建立 driver=%s", config.Driver)
	return db, nil
}

// gormLogger 将 GORM 日志写入调度器日志.
//
// GORM 的 Info 级别对应 debug 输出，一次调度中每个任务都会产生多条 SQL.
type gormLogger struct {
	log           logger.Logger
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func newGORMLogger(log logger.Logger, slowThreshold time.Duration, level string) gormlogger.Interface {
	return &gormLogger{
		log:           log,
		slowThreshold: slowThreshold,
		level:         parseLogLevel(level),
	}
}

var gormLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
}

// parseLogLevel 解析 GORM 日志级别，未知值按 warn 处理.
func parseLogLevel(level string) gormlogger.LogLevel {
	if l, ok := gormLevels[level]; ok {
		return l
	}
	return gormlogger.Warn
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.WithContext(ctx).Debugf("[Database] "+msg, data...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.WithContext(ctx).Warnf("[Database] "+msg, data...)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.WithContext(ctx).Errorf("[Database] "+msg, data...)
	}
}

// Trace 记录单条 SQL.
//
// 记录不存在与唯一键冲突由存储层转换为业务错误，不按失败记录.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	var level gormlogger.LogLevel
	switch {
	case failed:
		level = gormlogger.Error
	case slow:
		level = gormlogger.Warn
	default:
		level = gormlogger.Info
	}
	if l.level < level {
		return
	}

	sql, rows := fc()
	log := l.log.WithContext(ctx).With(
		logger.Duration("elapsed", elapsed),
		logger.Int64("rows", rows),
		logger.String("sql", sql),
	)
	switch level {
	case gormlogger.Error:
		log.With(logger.Err(err)).Error("[Database] SQL执行失败")
	case gormlogger.Warn:
		log.With(logger.Duration("threshold", l.slowThreshold)).Warn("[Database] 慢查询")
	default:
		log.Debug("[Database] SQL执行成功")
	}
}
