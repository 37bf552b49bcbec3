package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var timeEncoders = map[string]zapcore.TimeEncoder{
	TimeFormatISO8601:     zapcore.ISO8601TimeEncoder,
	TimeFormatRFC3339:     zapcore.RFC3339TimeEncoder,
	TimeFormatRFC3339Nano: zapcore.RFC3339NanoTimeEncoder,
	TimeFormatEpoch:       zapcore.EpochTimeEncoder,
	TimeFormatDateTime:    zapcore.TimeEncoderOfLayout(time.DateTime),
}

var levelEncoders = map[string]zapcore.LevelEncoder{
	EncodeLevelCapital:      zapcore.CapitalLevelEncoder,
	EncodeLevelCapitalColor: zapcore.CapitalColorLevelEncoder,
	EncodeLevelLower:        zapcore.LowercaseLevelEncoder,
}

var levels = map[string]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	"warning":  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
	LevelFatal: zapcore.FatalLevel,
}

// newEncoder 按配置创建编码器.
//
// console 格式面向终端里的运维人员，json 格式面向日志收集.
func newEncoder(config *Config) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = config.TimeKey
	cfg.LevelKey = config.LevelKey
	cfg.MessageKey = config.MessageKey
	cfg.CallerKey = config.CallerKey
	cfg.EncodeCaller = zapcore.ShortCallerEncoder

	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(config.TimeFormat)
	if enc, ok := timeEncoders[strings.ToLower(config.TimeFormat)]; ok {
		cfg.EncodeTime = enc
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if enc, ok := levelEncoders[strings.ToLower(config.EncodeLevel)]; ok {
		cfg.EncodeLevel = enc
	}

	if strings.EqualFold(config.Format, FormatJSON) {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.ConsoleSeparator = " "
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// parseLevel 解析日志级别，未知值按 info 处理.
func parseLevel(level string) zapcore.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return zapcore.InfoLevel
}
