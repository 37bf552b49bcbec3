package logger

import (
	"fmt"
	"slices"
	"strings"
)

// Config 日志配置.
//
// 示例配置:
//
//	logger:
//	  level: info
//	  format: json
//	  output: both
//	  log_dir: /var/log/command-scheduler
type Config struct {
	Type string `json:"type" yaml:"type" mapstructure:"type"`
	// ServiceName 日志文件名（不含扩展名）
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	Level       string `json:"level" yaml:"level" mapstructure:"level"`
	Format      string `json:"format" yaml:"format" mapstructure:"format"`

	// Output console 写 stderr，stdout 保留给命令报告
	Output string `json:"output" yaml:"output" mapstructure:"output"`
	LogDir string `json:"log_dir" yaml:"log_dir" mapstructure:"log_dir"`

	EnableCaller     bool `json:"enable_caller" yaml:"enable_caller" mapstructure:"enable_caller"`
	EnableStacktrace bool `json:"enable_stacktrace" yaml:"enable_stacktrace" mapstructure:"enable_stacktrace"`

	TimeFormat  string `json:"time_format" yaml:"time_format" mapstructure:"time_format"`
	TimeKey     string `json:"time_key" yaml:"time_key" mapstructure:"time_key"`
	LevelKey    string `json:"level_key" yaml:"level_key" mapstructure:"level_key"`
	MessageKey  string `json:"message_key" yaml:"message_key" mapstructure:"message_key"`
	CallerKey   string `json:"caller_key" yaml:"caller_key" mapstructure:"caller_key"`
	EncodeLevel string `json:"encode_level" yaml:"encode_level" mapstructure:"encode_level"`
}

// ConfigError 配置错误.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("logger config error [%s]: %s", e.Field, e.Message)
}

var (
	validLevels  = []string{LevelDebug, LevelInfo, LevelWarn, "warning", LevelError, LevelFatal}
	validFormats = []string{FormatJSON, FormatConsole}
	validOutputs = []string{OutputConsole, OutputFile, OutputBoth}
)

// oneOf 空值视为合法，由 ApplyDefaults 填充.
func oneOf(value string, allowed []string) bool {
	return value == "" || slices.Contains(allowed, strings.ToLower(value))
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Field: "config", Message: "config cannot be nil"}
	}
	switch {
	case !oneOf(c.Level, validLevels):
		return &ConfigError{Field: "level", Message: "invalid log level: " + c.Level}
	case !oneOf(c.Format, validFormats):
		return &ConfigError{Field: "format", Message: "invalid format: " + c.Format}
	case !oneOf(c.Output, validOutputs):
		return &ConfigError{Field: "output", Message: "invalid output: " + c.Output}
	case c.needsFileOutput() && c.LogDir == "":
		return &ConfigError{Field: "log_dir", Message: "log_dir is required when output is file or both"}
	}
	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	setDefault := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	setDefault(&c.Type, TypeZap)
	setDefault(&c.Level, LevelInfo)
	setDefault(&c.Format, FormatConsole)
	setDefault(&c.Output, OutputConsole)
	setDefault(&c.ServiceName, "scheduler")
	setDefault(&c.TimeKey, "timestamp")
	setDefault(&c.LevelKey, "level")
	setDefault(&c.MessageKey, "msg")
	setDefault(&c.CallerKey, "caller")
	setDefault(&c.TimeFormat, TimeFormatDateTime)
	setDefault(&c.EncodeLevel, EncodeLevelCapital)
}

func (c *Config) needsFileOutput() bool {
	output := strings.ToLower(c.Output)
	return output == OutputFile || output == OutputBoth
}

func (c *Config) shouldOutputToConsole() bool {
	output := strings.ToLower(c.Output)
	return output == OutputConsole || output == OutputBoth
}

// DefaultConfig 返回默认配置.
func DefaultConfig() *Config {
	config := &Config{}
	config.ApplyDefaults()
	return config
}

// NewCLIConfig 返回读取配置文件之前使用的配置.
//
// quiet 为 true 时只保留错误级别日志，对应 dispatch 的 --no-output.
func NewCLIConfig(verbose, quiet bool) *Config {
	config := &Config{
		Type:        TypeZap,
		Level:       LevelInfo,
		Format:      FormatConsole,
		Output:      OutputConsole,
		EncodeLevel: EncodeLevelCapitalColor,
	}
	switch {
	case quiet:
		config.Level = LevelError
	case verbose:
		config.Level = LevelDebug
		config.EnableCaller = true
	}
	return config
}
