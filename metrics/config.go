package metrics

import "errors"

// 预定义错误.
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("metrics: 配置为空")
	// ErrNoPushGateway 未配置 Pushgateway 地址.
	ErrNoPushGateway = errors.New("metrics: 未配置 Pushgateway 地址")
)

// Config 指标配置.
type Config struct {
	// Enabled 是否收集指标
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// Namespace 指标命名空间
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	// PushGateway Pushgateway 地址，例如 http://pushgateway:9091
	PushGateway string `json:"push_gateway" yaml:"push_gateway" mapstructure:"push_gateway"`
	// JobName 推送时使用的 job 标签
	JobName string `json:"job_name" yaml:"job_name" mapstructure:"job_name"`
}

// DefaultConfig 返回默认配置.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "command_scheduler",
		JobName:   "command-scheduler",
	}
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Namespace == "" {
		c.Namespace = defaults.Namespace
	}
	if c.JobName == "" {
		c.JobName = defaults.JobName
	}
}
