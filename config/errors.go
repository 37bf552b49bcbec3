package config

import "errors"

// 加载阶段的错误，均可用 errors.Is 判断，原始错误通过 %w 保留.
var (
	// ErrFileNotFound 指定的配置文件不存在，或搜索目录中没有配置文件.
	ErrFileNotFound = errors.New("config: 配置文件不存在")

	// ErrReadConfig 配置文件无法读取或格式错误.
	ErrReadConfig = errors.New("config: 读取配置失败")

	// ErrUnmarshal 配置无法映射到目标结构体.
	ErrUnmarshal = errors.New("config: 解析配置失败")

	// ErrValidation 填充默认值后验证失败.
	ErrValidation = errors.New("config: 配置验证失败")
)
