// Package config 基于 viper 加载调度器配置.
//
// 配置文件支持 yaml、json、toml，环境变量以 SCHEDULER_ 为前缀覆盖同名键，
// 例如 SCHEDULER_STORE_TYPE 覆盖 store.type.
package config

import "strings"

const (
	// DefaultEnvPrefix 默认环境变量前缀.
	DefaultEnvPrefix = "SCHEDULER"
	// DefaultConfigName 搜索时使用的配置文件名（不含扩展名）.
	DefaultConfigName = "scheduler"
)

// SearchPaths 未指定配置文件时依次查找的目录.
var SearchPaths = []string{".", "/etc/command-scheduler"}

// Validatable 加载后需要验证的配置.
type Validatable interface {
	Validate() error
}

// Defaulter 验证前需要填充默认值的配置.
type Defaulter interface {
	ApplyDefaults()
}

// Option 加载选项.
type Option func(*loader)

type loader struct {
	envPrefix   string
	env         bool
	searchPaths []string
	defaults    map[string]any
}

func newLoader(opts []Option) *loader {
	l := &loader{
		envPrefix:   DefaultEnvPrefix,
		env:         true,
		searchPaths: SearchPaths,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithEnvPrefix 替换环境变量前缀.
func WithEnvPrefix(prefix string) Option {
	return func(l *loader) { l.envPrefix = strings.ToUpper(prefix) }
}

// WithoutEnv 不读取环境变量.
func WithoutEnv() Option {
	return func(l *loader) { l.env = false }
}

// WithDefaults 设置键的默认值，文件与环境变量均可覆盖.
func WithDefaults(defaults map[string]any) Option {
	return func(l *loader) { l.defaults = defaults }
}

// WithSearchPaths 替换配置搜索目录.
func WithSearchPaths(paths ...string) Option {
	return func(l *loader) { l.searchPaths = paths }
}
