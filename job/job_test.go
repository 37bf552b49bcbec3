package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/command-scheduler/schedule"
)

func TestNew(t *testing.T) {
	j := New("cleanup", "app:cleanup", "@daily")

	assert.Equal(t, "cleanup", j.Name)
	assert.False(t, j.Locked)
	assert.False(t, j.Disabled)
	assert.Equal(t, CodeSuccess, j.LastReturnCode)
	assert.False(t, j.LastExecution.IsZero())
}

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(j *Job)
		field   string
		wantErr error
	}{
		{"valid", func(*Job) {}, "", nil},
		{"empty name", func(j *Job) { j.Name = " " }, "name", ErrEmptyName},
		{"empty command", func(j *Job) { j.Command = "" }, "command", ErrEmptyCommand},
		{"empty cron", func(j *Job) { j.CronExpression = "" }, "cron_expression", schedule.ErrInvalidExpression},
		{"invalid cron", func(j *Job) { j.CronExpression = "every day" }, "cron_expression", schedule.ErrInvalidExpression},
		{"cron never fires", func(j *Job) { j.CronExpression = "0 0 30 2 *" }, "cron_expression", schedule.ErrInvalidExpression},
		{"absolute log file", func(j *Job) { j.LogFile = "/var/log/x.log" }, "log_file", ErrInvalidLogFile},
		{"escaping log file", func(j *Job) { j.LogFile = "../x.log" }, "log_file", ErrInvalidLogFile},
		{"nested log file", func(j *Job) { j.LogFile = "jobs/x.log" }, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New("job", "app:run", "*/5 * * * *")
			tt.mutate(j)

			err := j.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestJob_Clone(t *testing.T) {
	j := New("a", "cmd", "@hourly")
	c := j.Clone()
	c.Locked = true

	assert.False(t, j.Locked)
	assert.Nil(t, (*Job)(nil).Clone())
}

func TestFilter_Match(t *testing.T) {
	enabled := &Job{}
	disabled := &Job{Disabled: true}
	locked := &Job{Locked: true, Disabled: true}

	assert.True(t, Filter{}.Match(disabled))
	assert.True(t, Enabled().Match(enabled))
	assert.False(t, Enabled().Match(disabled))
	assert.True(t, Locked().Match(locked))
	assert.False(t, Locked().Match(enabled))
}

func TestApply_KeepsRuntimeState(t *testing.T) {
	dst := New("a", "old", "@hourly")
	dst.Locked = true
	dst.LastReturnCode = 3

	src := New("a", "new", "@daily")
	src.Arguments = "--force"
	Apply(dst, src)

	assert.Equal(t, "new", dst.Command)
	assert.Equal(t, "@daily", dst.CronExpression)
	assert.Equal(t, "--force", dst.Arguments)
	assert.True(t, dst.Locked)
	assert.Equal(t, 3, dst.LastReturnCode)
}
