package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load 从文件加载配置，类型由扩展名识别.
//
// 实现 Defaulter 与 Validatable 的配置会先填充默认值再验证.
func Load[T any](path string, opts ...Option) (*T, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	v := newLoader(opts).viper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	return decode[T](v)
}

// LoadFromBytes 从内存中的配置内容加载.
func LoadFromBytes[T any](data []byte, configType string, opts ...Option) (*T, error) {
	v := newLoader(opts).viper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	return decode[T](v)
}

// LoadWithSearch 在搜索目录中查找名为 name 的配置文件.
func LoadWithSearch[T any](name string, opts ...Option) (*T, error) {
	l := newLoader(opts)
	v := l.viper()
	v.SetConfigName(name)
	for _, dir := range l.searchPaths {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		if errors.As(err, new(viper.ConfigFileNotFoundError)) {
			return nil, fmt.Errorf("%w: %w", ErrFileNotFound, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	return decode[T](v)
}

// Resolve 按命令行约定加载配置.
//
// 指定路径时必须存在；未指定时在搜索目录中查找，找不到则只使用默认值与环境变量.
func Resolve[T any](path string, opts ...Option) (*T, error) {
	if path != "" {
		return Load[T](path, opts...)
	}

	cfg, err := LoadWithSearch[T](DefaultConfigName, opts...)
	if errors.Is(err, ErrFileNotFound) {
		return decode[T](newLoader(opts).viper())
	}
	return cfg, err
}

// 开启 ExperimentalBindStruct 后，文件中没有出现的字段也能被环境变量覆盖.
func (l *loader) viper() *viper.Viper {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	for key, value := range l.defaults {
		v.SetDefault(key, value)
	}
	if l.env {
		v.SetEnvPrefix(l.envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	return v
}

func decode[T any](v *viper.Viper) (*T, error) {
	cfg := new(T)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshal, err)
	}

	if d, ok := any(cfg).(Defaulter); ok {
		d.ApplyDefaults()
	}
	if val, ok := any(cfg).(Validatable); ok {
		if err := val.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return cfg, nil
}
