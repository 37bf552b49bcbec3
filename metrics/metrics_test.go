package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/scheduler"
)

func TestNewMetrics_NilConfig(t *testing.T) {
	c, err := NewMetrics(nil)

	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestMustNewMetrics_NilConfig(t *testing.T) {
	assert.Panics(t, func() {
		MustNewMetrics(nil)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "command_scheduler", cfg.Namespace)
	assert.Equal(t, "command-scheduler", cfg.JobName)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Outcome(&scheduler.Result{Kind: scheduler.ResultCompleted}))
	assert.Equal(t, OutcomeFailure, Outcome(&scheduler.Result{Kind: scheduler.ResultCompleted, Code: 2}))
	assert.Equal(t, OutcomeInfrastructureFailure, Outcome(&scheduler.Result{Kind: scheduler.ResultInfrastructureFailure, Code: -1}))
	assert.Equal(t, OutcomeInfrastructureFailure, Outcome(nil))
}

func TestRecordDispatch(t *testing.T) {
	c := MustNewMetrics(&Config{})
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.RecordDispatch("backup", &scheduler.Result{Kind: scheduler.ResultCompleted, Code: 3, Duration: time.Second}, start)
	c.RecordDispatch("backup", &scheduler.Result{Kind: scheduler.ResultCompleted}, start)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatchTotal.WithLabelValues("backup", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatchTotal.WithLabelValues("backup", OutcomeSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.lastReturnCode.WithLabelValues("backup")))
	assert.Equal(t, float64(start.Unix()), testutil.ToFloat64(c.lastRunTimestamp.WithLabelValues("backup")))
}

func TestHooks(t *testing.T) {
	c := MustNewMetrics(&Config{})
	hooks := c.Hooks()
	ctx := context.Background()
	j := job.New("report", "app:report", "@daily")

	hooks.After(ctx, &scheduler.JobContext{Job: j, StartTime: time.Now(), Result: &scheduler.Result{Kind: scheduler.ResultInfrastructureFailure, Code: -1, Err: errors.New("boom")}})
	hooks.Skipped(ctx, &scheduler.JobContext{Job: j, SkipReason: scheduler.SkipContended})
	hooks.Skipped(ctx, &scheduler.JobContext{Job: j})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatchTotal.WithLabelValues("report", OutcomeInfrastructureFailure)))
	assert.Equal(t, -1.0, testutil.ToFloat64(c.lastReturnCode.WithLabelValues("report")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.skippedTotal.WithLabelValues("report", scheduler.SkipContended)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.skippedTotal.WithLabelValues("report", "unknown")))
}

func TestRecordReport(t *testing.T) {
	c := MustNewMetrics(&Config{})
	finished := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	c.RecordReport(&scheduler.Report{FinishedAt: finished})
	c.RecordReport(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatchRuns))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(c.lastDispatch))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.dueJobs))
}

func TestMonitorAndUnlockGauges(t *testing.T) {
	c := MustNewMetrics(&Config{})

	c.SetFailingJobs(3)
	c.AddUnlocked(2)
	c.AddUnlocked(1)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.failingJobs))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.unlockedTotal))
}

func TestPush_NoGateway(t *testing.T) {
	c := MustNewMetrics(&Config{})
	assert.ErrorIs(t, c.Push(), ErrNoPushGateway)
}

func TestPush(t *testing.T) {
	var (
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := MustNewMetrics(&Config{PushGateway: srv.URL, JobName: "cron"})
	c.SetFailingJobs(1)

	require.NoError(t, c.Push())
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/cron", path)
}
