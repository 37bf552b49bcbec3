package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tsukikage7/command-scheduler/job"
)

var errDuplicateDefinition = errors.New("sync: 任务名称重复")

// SyncCommand sync 子命令.
type SyncCommand struct {
	global *GlobalOptions

	DisableMissing bool `long:"disable-missing" description:"禁用存储中存在但配置中没有的任务"`
	DryRun         bool `long:"dry-run" description:"只校验并显示变更，不写入"`
}

// Execute 实现 flags.Commander.
func (c *SyncCommand) Execute(_ []string) error {
	return execute(c.global, false, c.run)
}

func (c *SyncCommand) run(ctx context.Context, rt *runtime) error {
	defs, err := validateDefinitions(rt.cfg.Jobs)
	if err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		wanted[def.Name] = struct{}{}

		existing, err := rt.store.GetByName(ctx, def.Name)
		switch {
		case errors.Is(err, job.ErrNotFound):
			fmt.Fprintf(rt.out, "Created: %s\n", def.Name)
			if !c.DryRun {
				if err := rt.store.Create(ctx, def); err != nil {
					return fmt.Errorf("创建任务 %q 失败: %w", def.Name, err)
				}
			}
		case err != nil:
			return err
		default:
			fmt.Fprintf(rt.out, "Updated: %s\n", def.Name)
			if !c.DryRun {
				if _, err := rt.store.Update(ctx, existing.ID, func(j *job.Job) error {
					job.Apply(j, def)
					return nil
				}); err != nil {
					return fmt.Errorf("更新任务 %q 失败: %w", def.Name, err)
				}
			}
		}
	}

	if !c.DisableMissing {
		return nil
	}

	enabled, err := rt.store.List(ctx, job.Enabled())
	if err != nil {
		return err
	}
	for _, j := range enabled {
		if _, ok := wanted[j.Name]; ok {
			continue
		}
		fmt.Fprintf(rt.out, "Disabled: %s\n", j.Name)
		if c.DryRun {
			continue
		}
		if _, err := rt.store.Update(ctx, j.ID, func(j *job.Job) error {
			j.Disabled = true
			return nil
		}); err != nil {
			return fmt.Errorf("禁用任务 %q 失败: %w", j.Name, err)
		}
	}
	return nil
}

// validateDefinitions 校验全部任务定义，任一失败时不做任何写入.
func validateDefinitions(defs []JobDefinition) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for i, def := range defs {
		j := def.Job()
		if err := j.Validate(); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if _, ok := seen[j.Name]; ok {
			return nil, fmt.Errorf("jobs[%d]: %w: %s", i, errDuplicateDefinition, j.Name)
		}
		seen[j.Name] = struct{}{}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
