package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tsukikage7/command-scheduler/database"
	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/logger"
	"github.com/Tsukikage7/command-scheduler/messaging"
	"github.com/Tsukikage7/command-scheduler/metrics"
	"github.com/Tsukikage7/command-scheduler/monitor"
	"github.com/Tsukikage7/command-scheduler/storage/mongodb"
	"github.com/Tsukikage7/command-scheduler/tracing"
)

// 存储类型.
const (
	StoreSQL     = "sql"
	StoreMongoDB = "mongodb"
	StoreMemory  = "memory"
)

var (
	errUnsupportedStore = errors.New("config: 不支持的存储类型")
	errNegativeTimeout  = errors.New("config: lock_timeout 不能为负数")
)

// Config 命令行配置文件结构.
type Config struct {
	// Logger 日志配置，命令行的 --verbose 与 --no-output 会覆盖级别
	Logger logger.Config `mapstructure:"logger"`

	// Store 任务存储
	Store StoreConfig `mapstructure:"store"`

	// Dispatch 调度配置
	Dispatch DispatchConfig `mapstructure:"dispatch"`

	// LockTimeout 锁超时，monitor 与 unlock 共用，0 表示所有已锁定任务都视为超时
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	// Monitor 监控报告配置
	Monitor MonitorConfig `mapstructure:"monitor"`

	// Notifier 通知通道配置
	Notifier messaging.Config `mapstructure:"notifier"`

	// Metrics 指标配置
	Metrics metrics.Config `mapstructure:"metrics"`

	// Tracing 链路追踪配置
	Tracing tracing.Config `mapstructure:"tracing"`

	// Jobs sync 子命令同步的任务定义
	Jobs []JobDefinition `mapstructure:"jobs"`
}

// StoreConfig 存储配置.
type StoreConfig struct {
	// Type 存储类型: sql（默认）、mongodb、memory
	Type    string          `mapstructure:"type"`
	SQL     database.Config `mapstructure:"sql"`
	MongoDB mongodb.Config  `mapstructure:"mongodb"`
}

// DispatchConfig 调度配置.
type DispatchConfig struct {
	// LogDir 任务输出目录，为空时丢弃任务输出
	LogDir string `mapstructure:"log_dir"`
	// Environment 非空时向每个命令追加 --env=<value>
	Environment string `mapstructure:"environment"`
	// Timezone 计算 cron 下次执行时间使用的时区，为空时使用本地时区
	Timezone string `mapstructure:"timezone"`
	// Commands 命令别名，name → 可执行文件路径
	Commands map[string]string `mapstructure:"commands"`
	// AllowPath 是否允许在 PATH 中查找未注册的命令
	AllowPath bool `mapstructure:"allow_path"`
}

// MonitorConfig 监控配置.
type MonitorConfig struct {
	// Receivers 接收者，含义由通知通道决定
	Receivers []string `mapstructure:"receivers"`
	// Subject 通知标题模板，参数依次为主机名和当前时间
	Subject string `mapstructure:"subject"`
	// SendIfEmpty 没有失败任务时也发送报告
	SendIfEmpty bool `mapstructure:"send_if_empty"`
}

// JobDefinition 配置文件中的任务定义.
type JobDefinition struct {
	Name               string `mapstructure:"name"`
	Command            string `mapstructure:"command"`
	Arguments          string `mapstructure:"arguments"`
	Cron               string `mapstructure:"cron"`
	LogFile            string `mapstructure:"log_file"`
	Priority           int    `mapstructure:"priority"`
	Disabled           bool   `mapstructure:"disabled"`
	ExecuteImmediately bool   `mapstructure:"execute_immediately"`
}

// Job 转换为任务模型.
func (d JobDefinition) Job() *job.Job {
	j := job.New(d.Name, d.Command, d.Cron)
	j.Arguments = d.Arguments
	j.LogFile = d.LogFile
	j.Priority = d.Priority
	j.Disabled = d.Disabled
	j.ExecuteImmediately = d.ExecuteImmediately
	return j
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = StoreSQL
	}
	c.Logger.ApplyDefaults()
	c.Store.SQL.ApplyDefaults()
	c.Store.MongoDB.ApplyDefaults()
	c.Notifier.ApplyDefaults()
	c.Metrics.ApplyDefaults()
	c.Tracing.ApplyDefaults()
	if c.Monitor.Subject == "" {
		c.Monitor.Subject = monitor.DefaultSubject
	}
}

// Validate 验证配置.
//
// 通知通道只在 monitor 真正投递时验证.
func (c *Config) Validate() error {
	if c.LockTimeout < 0 {
		return errNegativeTimeout
	}
	if c.Dispatch.Timezone != "" {
		if _, err := time.LoadLocation(c.Dispatch.Timezone); err != nil {
			return fmt.Errorf("config: dispatch.timezone: %w", err)
		}
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}

	switch c.Store.Type {
	case StoreSQL:
		return c.Store.SQL.Validate()
	case StoreMongoDB:
		return c.Store.MongoDB.Validate()
	case StoreMemory:
		return nil
	default:
		return fmt.Errorf("%w: %s", errUnsupportedStore, c.Store.Type)
	}
}

// Location 返回调度使用的时区.
func (c *Config) Location() *time.Location {
	if c.Dispatch.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Dispatch.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
