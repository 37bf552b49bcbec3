// Package job 定义调度任务模型与持久化接口.
//
// Job 是调度的基本单元，由外部（配置同步或管理界面）创建，
// 每次调度都会读取并有条件地修改它，核心逻辑从不删除任务.
package job

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tsukikage7/command-scheduler/schedule"
)

// 返回码约定.
const (
	// CodeSuccess 命令执行成功.
	CodeSuccess = 0
	// CodeInfrastructureFailure 基础设施故障（命令不存在、执行异常等）.
	CodeInfrastructureFailure = -1
)

// Job 调度任务.
type Job struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Command            string    `json:"command"`
	Arguments          string    `json:"arguments"`
	CronExpression     string    `json:"cron_expression"`
	LastExecution      time.Time `json:"last_execution"`
	LastReturnCode     int       `json:"last_return_code"`
	LogFile            string    `json:"log_file"`
	Priority           int       `json:"priority"`
	ExecuteImmediately bool      `json:"execute_immediately"`
	Disabled           bool      `json:"disabled"`
	Locked             bool      `json:"locked"`

	// Version 乐观锁版本号，每次成功写入递增，由存储层维护.
	Version int64 `json:"version"`
}

// New 创建新任务，LastExecution 初始化为当前时间.
func New(name, command, cronExpression string) *Job {
	return &Job{
		Name:           name,
		Command:        command,
		CronExpression: cronExpression,
		LastExecution:  time.Now(),
	}
}

// Clone 返回任务的副本.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

// Enabled 任务是否启用.
func (j *Job) Enabled() bool {
	return !j.Disabled
}

// Failed 上次执行是否失败.
func (j *Job) Failed() bool {
	return j.LastReturnCode != CodeSuccess
}

// String 实现 fmt.Stringer.
func (j *Job) String() string {
	return fmt.Sprintf("%s(#%d)", j.Name, j.ID)
}

// Validate 保存前校验任务配置.
//
// Cron 表达式在此处校验，调度时假定存储的表达式有效.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if strings.TrimSpace(j.Command) == "" {
		return &ValidationError{Field: "command", Err: ErrEmptyCommand}
	}
	if err := schedule.Validate(j.CronExpression); err != nil {
		return &ValidationError{Field: "cron_expression", Err: err}
	}
	if j.LogFile != "" {
		if filepath.IsAbs(j.LogFile) {
			return &ValidationError{Field: "log_file", Err: ErrInvalidLogFile}
		}
		clean := filepath.Clean(j.LogFile)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return &ValidationError{Field: "log_file", Err: ErrInvalidLogFile}
		}
	}
	return nil
}
