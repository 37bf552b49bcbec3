package tracing

// Config 链路追踪配置.
//
// 示例配置:
//
//	tracing:
//	  enabled: true
//	  endpoint: "otel-collector:4318"
//	  sampling_rate: 0.5
type Config struct {
	// Enabled 是否启用链路追踪
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// Endpoint OTLP HTTP 端点，可带 http:// 前缀
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	// Headers 请求头[可选]
	Headers map[string]string `json:"headers" yaml:"headers" mapstructure:"headers"`
	// SamplingRate 采样率 (0.0-1.0)，超出范围时按 1.0 处理
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" mapstructure:"sampling_rate"`
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.SamplingRate <= 0 || c.SamplingRate > 1 {
		c.SamplingRate = 1.0
	}
}

// Validate 验证配置，未启用时总是通过.
func (c *Config) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return ErrEmptyEndpoint
	}
	return nil
}
