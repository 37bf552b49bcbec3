// Package database 提供作业库的关系型数据库连接.
//
// 连接基于 GORM，支持 mysql、postgres 与 sqlite 三种驱动.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Tsukikage7/command-scheduler/logger"
)

const (
	DriverMySQL      = "mysql"
	DriverPostgres   = "postgres"
	DriverPostgreSQL = "postgresql"
	DriverSQLite     = "sqlite"
	DriverSQLite3    = "sqlite3"
)

var (
	ErrNilConfig             = errors.New("database: 配置为空")
	ErrNilLogger             = errors.New("database: 日志记录器为空")
	ErrEmptyDriver           = errors.New("database: 驱动类型为空")
	ErrEmptyDSN              = errors.New("database: 连接字符串为空")
	ErrUnsupportedDriver     = errors.New("database: 不支持的驱动类型")
	ErrRegisterTracingPlugin = errors.New("database: 注册追踪插件失败")
	ErrUnavailable           = errors.New("database: 数据库不可用")
)

// Config 作业库连接配置.
//
//	store:
//	  type: sql
//	  sql:
//	    driver: sqlite
//	    dsn: /var/lib/command-scheduler/jobs.db
//	    auto_migrate: true
type Config struct {
	Driver      string `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN         string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	AutoMigrate bool   `json:"auto_migrate" yaml:"auto_migrate" mapstructure:"auto_migrate"`

	Pool PoolConfig `json:"pool" yaml:"pool" mapstructure:"pool"`

	// SlowThreshold 超过该耗时的 SQL 以 warn 记录
	SlowThreshold time.Duration `json:"slow_threshold" yaml:"slow_threshold" mapstructure:"slow_threshold"`
	// LogLevel GORM 日志级别: silent, error, warn, info
	LogLevel      string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	EnableTracing bool   `json:"enable_tracing" yaml:"enable_tracing" mapstructure:"enable_tracing"`

	// PingTimeout 打开后连通性检查的超时，负数表示不检查
	PingTimeout time.Duration `json:"ping_timeout" yaml:"ping_timeout" mapstructure:"ping_timeout"`

	// SQLite 仅 sqlite 驱动使用
	SQLite SQLiteConfig `json:"sqlite" yaml:"sqlite" mapstructure:"sqlite"`
}

// SQLiteConfig 多个进程共享同一数据库文件时的参数.
type SQLiteConfig struct {
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout" mapstructure:"busy_timeout"`
	JournalMode string        `json:"journal_mode" yaml:"journal_mode" mapstructure:"journal_mode"`
	TxLock      string        `json:"tx_lock" yaml:"tx_lock" mapstructure:"tx_lock"`
}

// PoolConfig 连接池配置.
//
// 调度进程生命周期很短且串行访问存储，默认连接池很小.
type PoolConfig struct {
	MaxOpen     int           `json:"max_open" yaml:"max_open" mapstructure:"max_open"`
	MaxIdle     int           `json:"max_idle" yaml:"max_idle" mapstructure:"max_idle"`
	MaxLifetime time.Duration `json:"max_lifetime" yaml:"max_lifetime" mapstructure:"max_lifetime"`
	MaxIdleTime time.Duration `json:"max_idle_time" yaml:"max_idle_time" mapstructure:"max_idle_time"`
}

// ApplyDefaults 填充未设置的字段.
func (c *Config) ApplyDefaults() {
	orDuration(&c.SlowThreshold, 200*time.Millisecond)
	orDuration(&c.PingTimeout, 5*time.Second)
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}

	if c.Pool.MaxOpen <= 0 {
		c.Pool.MaxOpen = 4
	}
	if c.Pool.MaxIdle <= 0 {
		c.Pool.MaxIdle = min(2, c.Pool.MaxOpen)
	}
	orDuration(&c.Pool.MaxLifetime, time.Hour)
	orDuration(&c.Pool.MaxIdleTime, 5*time.Minute)

	orDuration(&c.SQLite.BusyTimeout, 5*time.Second)
	if c.SQLite.JournalMode == "" {
		c.SQLite.JournalMode = "WAL"
	}
	if c.SQLite.TxLock == "" {
		c.SQLite.TxLock = "immediate"
	}
}

func orDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

// Validate 验证配置.
func (c *Config) Validate() error {
	switch {
	case c.Driver == "":
		return ErrEmptyDriver
	case c.DSN == "":
		return ErrEmptyDSN
	}
	return nil
}

// Open 打开连接并在 PingTimeout 内确认数据库可用.
func Open(ctx context.Context, config *Config, log logger.Logger) (*gorm.DB, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if log == nil {
		return nil, ErrNilLogger
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := openGORM(config, log)
	if err != nil {
		return nil, err
	}
	if err := ping(ctx, db, config.PingTimeout); err != nil {
		_ = Close(db)
		return nil, err
	}
	return db, nil
}

func ping(ctx context.Context, db *gorm.DB, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close 关闭底层连接池，db 为 nil 时什么都不做.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
