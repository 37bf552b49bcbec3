package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger zap 日志实现.
type zapLogger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	files  []*os.File
	// invocation 已附加的调用标识
	invocation string
}

// newZapLogger 创建 zap logger.
func newZapLogger(config *Config) (Logger, error) {
	level := parseLevel(config.Level)
	encoder := newEncoder(config)

	var (
		cores []zapcore.Core
		files []*os.File
	)

	// 文件输出
	if config.needsFileOutput() {
		file, err := openLogFile(config.LogDir, config.ServiceName)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(file), level))
	}

	// 控制台输出写入 stderr，stdout 留给命令报告
	if config.shouldOutputToConsole() {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}

	if len(cores) == 0 {
		return nil, &ConfigError{Field: "output", Message: "no valid output configured"}
	}

	zapLog := zap.New(zapcore.NewTee(cores...), buildOptions(config)...)

	return &zapLogger{
		logger: zapLog,
		sugar:  zapLog.Sugar(),
		files:  files,
	}, nil
}

// nopLogger 返回丢弃所有输出的 zap logger.
func nopLogger() *zapLogger {
	l := zap.NewNop()
	return &zapLogger{logger: l, sugar: l.Sugar()}
}

// buildOptions 构建 zap 选项.
func buildOptions(config *Config) []zap.Option {
	var options []zap.Option
	if config.EnableCaller {
		options = append(options, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if config.EnableStacktrace {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return options
}

// openLogFile 以追加模式打开 <dir>/<name>.log.
func openLogFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateDir, err)
	}
	file, err := os.OpenFile(filepath.Join(dir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFile, err)
	}
	return file, nil
}

func (z *zapLogger) Debug(args ...any)                 { z.sugar.Debug(args...) }
func (z *zapLogger) Debugf(format string, args ...any) { z.sugar.Debugf(format, args...) }
func (z *zapLogger) Info(args ...any)                  { z.sugar.Info(args...) }
func (z *zapLogger) Infof(format string, args ...any)  { z.sugar.Infof(format, args...) }
func (z *zapLogger) Warn(args ...any)                  { z.sugar.Warn(args...) }
func (z *zapLogger) Warnf(format string, args ...any)  { z.sugar.Warnf(format, args...) }
func (z *zapLogger) Error(args ...any)                 { z.sugar.Error(args...) }
func (z *zapLogger) Errorf(format string, args ...any) { z.sugar.Errorf(format, args...) }
func (z *zapLogger) Fatal(args ...any)                 { z.sugar.Fatal(args...) }
func (z *zapLogger) Fatalf(format string, args ...any) { z.sugar.Fatalf(format, args...) }

// With 返回带有附加字段的 logger.
func (z *zapLogger) With(fields ...Field) Logger {
	invocation := z.invocation
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		zapFields[i] = toZapField(f)
		if id, ok := f.Value.(string); ok && f.Key == InvocationField {
			invocation = id
		}
	}

	newLogger := z.logger.With(zapFields...)
	return &zapLogger{
		logger:     newLogger,
		sugar:      newLogger.Sugar(),
		files:      z.files,
		invocation: invocation,
	}
}

// toZapField 将 Field 转换为 zap.Field.
func toZapField(f Field) zap.Field {
	switch v := f.Value.(type) {
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	case time.Time:
		return zap.Time(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case error:
		return zap.NamedError(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}

// WithContext 返回带有 context 中调用标识的 logger，已附加相同标识时返回自身.
func (z *zapLogger) WithContext(ctx context.Context) Logger {
	if id, ok := InvocationIDFromContext(ctx); ok && id != z.invocation {
		return z.With(String(InvocationField, id))
	}
	return z
}

// Sync 同步日志缓冲区.
func (z *zapLogger) Sync() error {
	return z.logger.Sync()
}

// Close 关闭 logger 并释放资源.
func (z *zapLogger) Close() error {
	// 忽略 stdout 的 sync 错误: https://github.com/uber-go/zap/issues/328
	_ = z.logger.Sync()

	var errs []error
	for _, f := range z.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// String 创建字符串字段.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int 创建整数字段.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 创建 int64 字段.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool 创建布尔字段.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Time 创建时间字段.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Duration 创建持续时间字段.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err 创建错误字段.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any 创建任意类型字段.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
