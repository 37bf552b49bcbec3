package runner

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"
)

// Command 可执行的命令.
type Command interface {
	// Name 命令标识.
	Name() string
	// Run 执行命令并返回退出码.
	Run(ctx context.Context, inv *Invocation) (int, error)
}

// CommandFunc 进程内命令函数.
type CommandFunc func(ctx context.Context, inv *Invocation) (int, error)

// Resolver 将命令标识解析为可执行目标.
type Resolver interface {
	Resolve(name string) (Command, error)
}

// Registry 命令注册表.
//
// 解析顺序: 进程内命令、配置的别名、PATH 查找（需开启）.
type Registry struct {
	mu        sync.RWMutex
	funcs     map[string]CommandFunc
	aliases   map[string]string
	allowPath bool
	lookPath  func(file string) (string, error)
}

// RegistryOption 注册表配置选项.
type RegistryOption func(*Registry)

// WithAliases 设置命令别名，name → 可执行文件路径.
func WithAliases(aliases map[string]string) RegistryOption {
	return func(r *Registry) {
		for name, path := range aliases {
			r.aliases[name] = path
		}
	}
}

// WithPathLookup 允许在 PATH 中查找未注册的命令.
func WithPathLookup(allow bool) RegistryOption {
	return func(r *Registry) {
		r.allowPath = allow
	}
}

// NewRegistry 创建命令注册表.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		funcs:    make(map[string]CommandFunc),
		aliases:  make(map[string]string),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 注册进程内命令.
func (r *Registry) Register(name string, fn CommandFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.funcs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	r.funcs[name] = fn
	return nil
}

// MustRegister 注册进程内命令，失败时 panic.
func (r *Registry) MustRegister(name string, fn CommandFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Names 返回已注册的命令名和别名.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs)+len(r.aliases))
	for name := range r.funcs {
		names = append(names, name)
	}
	for name := range r.aliases {
		if _, ok := r.funcs[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve 解析命令标识.
func (r *Registry) Resolve(name string) (Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.funcs[name]; ok {
		return &funcCommand{name: name, fn: fn}, nil
	}
	if path, ok := r.aliases[name]; ok {
		return &execCommand{name: name, path: path}, nil
	}
	if r.allowPath && name != "" {
		if path, err := r.lookPath(name); err == nil {
			return &execCommand{name: name, path: path}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrCommandNotFound, name)
}

// funcCommand 进程内命令.
type funcCommand struct {
	name string
	fn   CommandFunc
}

func (c *funcCommand) Name() string { return c.name }

func (c *funcCommand) Run(ctx context.Context, inv *Invocation) (int, error) {
	return c.fn(ctx, inv)
}

// execCommand 外部进程命令.
type execCommand struct {
	name string
	path string
}

func (c *execCommand) Name() string { return c.name }

func (c *execCommand) Run(ctx context.Context, inv *Invocation) (int, error) {
	cmd := exec.CommandContext(ctx, c.path, inv.Args...)
	cmd.Stdout = inv.Output
	cmd.Stderr = inv.Output
	if inv.Interactive && inv.Input != nil {
		cmd.Stdin = inv.Input
	}
	cmd.Env = append(cmd.Environ(), inv.Env...)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
	}
	return -1, fmt.Errorf("runner: %s: %w", c.name, err)
}
