package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// nopCloser 丢弃输出.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// OpenSink 打开任务日志.
//
// file 为空时丢弃输出，否则以追加模式打开 <dir>/<file>.
func OpenSink(dir, file string) (io.WriteCloser, error) {
	if file == "" {
		return nopCloser{io.Discard}, nil
	}
	path := filepath.Join(dir, file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("runner: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runner: open log file: %w", err)
	}
	return f, nil
}

// CheckLogDir 检查日志目录存在且可写.
func CheckLogDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".scheduler-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
