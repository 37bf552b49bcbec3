package runner

import (
	"fmt"
	"slices"

	"github.com/google/shlex"
)

// NoInteractionFlags 关闭交互模式的参数.
var NoInteractionFlags = []string{"--no-interaction", "-n"}

// ParseArguments 按 shell 规则切分参数字符串.
//
// 支持引号和转义，保留所有位置参数.
// environment 非空时追加 --env=<environment>.
func ParseArguments(raw, environment string) ([]string, error) {
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if environment != "" {
		args = append(args, "--env="+environment)
	}
	return args, nil
}

// Interactive 参数中不含 NoInteractionFlags 时返回 true.
func Interactive(args []string) bool {
	for _, flag := range NoInteractionFlags {
		if slices.Contains(args, flag) {
			return false
		}
	}
	return true
}
