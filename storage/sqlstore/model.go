package sqlstore

import (
	"time"

	"github.com/Tsukikage7/command-scheduler/job"
)

// TableName 作业表名.
const TableName = "scheduled_jobs"

// jobRecord 作业表的行模型.
type jobRecord struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name               string    `gorm:"column:name;size:150;not null;uniqueIndex"`
	Command            string    `gorm:"column:command;size:200;not null"`
	Arguments          string    `gorm:"column:arguments;size:250"`
	CronExpression     string    `gorm:"column:cron_expression;size:200;not null"`
	LastExecution      time.Time `gorm:"column:last_execution;not null"`
	LastReturnCode     int       `gorm:"column:last_return_code"`
	LogFile            string    `gorm:"column:log_file;size:150"`
	Priority           int       `gorm:"column:priority"`
	ExecuteImmediately bool      `gorm:"column:execute_immediately"`
	Disabled           bool      `gorm:"column:disabled;index"`
	Locked             bool      `gorm:"column:locked;index"`
	Version            int64     `gorm:"column:version;not null"`
	CreatedTime        time.Time `gorm:"column:created_time;autoCreateTime"`
	UpdatedTime        time.Time `gorm:"column:updated_time;autoUpdateTime"`
}

// TableName 实现 gorm 的 Tabler 接口.
func (jobRecord) TableName() string { return TableName }

func fromJob(j *job.Job) *jobRecord {
	return &jobRecord{
		ID:                 j.ID,
		Name:               j.Name,
		Command:            j.Command,
		Arguments:          j.Arguments,
		CronExpression:     j.CronExpression,
		LastExecution:      j.LastExecution,
		LastReturnCode:     j.LastReturnCode,
		LogFile:            j.LogFile,
		Priority:           j.Priority,
		ExecuteImmediately: j.ExecuteImmediately,
		Disabled:           j.Disabled,
		Locked:             j.Locked,
		Version:            j.Version,
	}
}

func (r *jobRecord) toJob() *job.Job {
	return &job.Job{
		ID:                 r.ID,
		Name:               r.Name,
		Command:            r.Command,
		Arguments:          r.Arguments,
		CronExpression:     r.CronExpression,
		LastExecution:      r.LastExecution,
		LastReturnCode:     r.LastReturnCode,
		LogFile:            r.LogFile,
		Priority:           r.Priority,
		ExecuteImmediately: r.ExecuteImmediately,
		Disabled:           r.Disabled,
		Locked:             r.Locked,
		Version:            r.Version,
	}
}

// columns 返回一次写回需要更新的全部列.
//
// 使用 map 以便 false 与 0 也能写入.
func columns(j *job.Job, now time.Time) map[string]any {
	return map[string]any{
		"command":             j.Command,
		"arguments":           j.Arguments,
		"cron_expression":     j.CronExpression,
		"last_execution":      j.LastExecution,
		"last_return_code":    j.LastReturnCode,
		"log_file":            j.LogFile,
		"priority":            j.Priority,
		"execute_immediately": j.ExecuteImmediately,
		"disabled":            j.Disabled,
		"locked":              j.Locked,
		"version":             j.Version,
		"updated_time":        now,
	}
}
