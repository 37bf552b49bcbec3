// Package logger 提供结构化日志记录功能.
//
// 调度器的三个入口（dispatch、monitor、unlock）都是短生命周期进程，
// 日志默认输出到控制台，可选追加写入文件.
package logger

import (
	"context"
	"errors"
)

var (
	ErrCreateDir = errors.New("logger: 创建日志目录失败")
	ErrOpenFile  = errors.New("logger: 打开日志文件失败")
)

// TypeZap 目前唯一的实现.
const TypeZap = "zap"

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"

	FormatJSON    = "json"
	FormatConsole = "console"

	OutputConsole = "console"
	OutputFile    = "file"
	OutputBoth    = "both"

	TimeFormatISO8601     = "iso8601"
	TimeFormatRFC3339     = "rfc3339"
	TimeFormatRFC3339Nano = "rfc3339nano"
	TimeFormatEpoch       = "epoch"
	TimeFormatDateTime    = "datetime"

	EncodeLevelCapital      = "capital"
	EncodeLevelCapitalColor = "capitalcolor"
	EncodeLevelLower        = "lower"
)

// Field 日志字段.
type Field struct {
	Key   string
	Value any
}

// Logger 日志记录器.
//
// 带 f 后缀的方法按 fmt 格式化；With 返回附加字段的新实例，不修改原实例.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)

	With(fields ...Field) Logger
	// WithContext 附加 context 中的调用标识
	WithContext(ctx context.Context) Logger

	Sync() error
	Close() error
}

// NewLogger 按配置创建 logger.
func NewLogger(config *Config) (Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	if config.Type != TypeZap {
		return nil, &ConfigError{Field: "type", Message: "unsupported logger type: " + config.Type}
	}
	return newZapLogger(config)
}

// MustNewLogger 同 NewLogger，失败时 panic.
func MustNewLogger(config *Config) Logger {
	l, err := NewLogger(config)
	if err != nil {
		panic(err)
	}
	return l
}

// NewNop 返回丢弃所有输出的 logger.
func NewNop() Logger {
	return nopLogger()
}
