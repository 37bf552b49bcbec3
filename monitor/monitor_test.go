package monitor

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/lock"
	"github.com/Tsukikage7/command-scheduler/messaging"
	"github.com/Tsukikage7/command-scheduler/storage/memory"
)

// fakeNotifier 记录投递的通知.
type fakeNotifier struct {
	sent []*messaging.Notification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, n *messaging.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

type MonitorTestSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	store    *memory.Store
	locks    *lock.Manager
	notifier *fakeNotifier
	monitor  *Monitor
}

func (s *MonitorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = memory.New()
	s.locks = lock.NewManager(s.store, lock.WithClock(func() time.Time { return s.now }))
	s.notifier = &fakeNotifier{}
	s.monitor = New(s.store, s.locks,
		WithNotifier(s.notifier, "ops@example.com"),
		WithHostname(func() (string, error) { return "web-01", nil }),
	)
}

func (s *MonitorTestSuite) create(name string, mutate func(j *job.Job)) {
	j := job.New(name, "app:"+name, "@daily")
	j.LastExecution = s.now.Add(-time.Hour)
	mutate(j)
	s.Require().NoError(s.store.Create(s.ctx, j))
}

func (s *MonitorTestSuite) seed() {
	s.create("healthy", func(*job.Job) {})
	s.create("failed", func(j *job.Job) { j.LastReturnCode = 1 })
	s.create("B", func(j *job.Job) {
		j.Locked = true
		j.LastExecution = s.now.Add(-30 * time.Second)
	})
	s.create("C", func(j *job.Job) {
		j.Locked = true
		j.LastExecution = s.now.Add(-10 * time.Minute)
	})
	s.create("disabled", func(j *job.Job) {
		j.Disabled = true
		j.LastReturnCode = -1
	})
}

func (s *MonitorTestSuite) TestScan() {
	s.seed()

	entries, err := s.monitor.Scan(s.ctx, 300*time.Second)
	s.Require().NoError(err)

	s.Require().Len(entries, 2)
	s.Equal("failed", entries[0].Name)
	s.Equal(1, entries[0].ReturnCode)
	s.False(entries[0].Stale)
	s.Equal("C", entries[1].Name)
	s.True(entries[1].Locked)
	s.True(entries[1].Stale)
}

func (s *MonitorTestSuite) TestScanIdempotent() {
	s.seed()

	first, err := s.monitor.Scan(s.ctx, 300*time.Second)
	s.Require().NoError(err)
	second, err := s.monitor.Scan(s.ctx, 300*time.Second)
	s.Require().NoError(err)
	s.Equal(first, second)
}

// 超时为 0 时每个已锁定任务都是超时的，与 unlock 的判断一致.
func (s *MonitorTestSuite) TestScanZeroTimeoutMatchesUnlock() {
	s.seed()

	entries, err := s.monitor.Scan(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal("failed", entries[0].Name)
	s.False(entries[0].Stale)
	for _, e := range entries[1:] {
		s.True(e.Stale, e.Name)
		j, err := s.store.GetByName(s.ctx, e.Name)
		s.Require().NoError(err)
		s.True(s.locks.IsStale(j, 0), e.Name)
	}
	s.Equal("B", entries[1].Name)
	s.Equal("C", entries[2].Name)
}

func (s *MonitorTestSuite) TestRender() {
	s.Equal(NoErrors, Render(nil))

	body := Render([]Entry{{
		Name:          "backup",
		ReturnCode:    -1,
		Locked:        true,
		LastExecution: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}})
	s.Equal("backup: returncode -1, locked: true, last execution: 2024-06-01T09:00:00Z\n", body)
}

func (s *MonitorTestSuite) TestReportDump() {
	var buf bytes.Buffer
	s.True(s.monitor.Report(s.ctx, &buf, nil, true, false))
	s.Equal("No errors found.\n", buf.String())
	s.Empty(s.notifier.sent)
}

func (s *MonitorTestSuite) TestReportSkipsEmpty() {
	s.True(s.monitor.Report(s.ctx, nil, nil, false, false))
	s.Empty(s.notifier.sent)
}

func (s *MonitorTestSuite) TestReportSendsEmptyWhenAsked() {
	s.True(s.monitor.Report(s.ctx, nil, nil, false, true))
	s.Require().Len(s.notifier.sent, 1)
	s.Equal(NoErrors, s.notifier.sent[0].Body)
}

func (s *MonitorTestSuite) TestReportNotifies() {
	s.seed()
	entries, err := s.monitor.Scan(s.ctx, 300*time.Second)
	s.Require().NoError(err)

	s.True(s.monitor.Report(s.ctx, nil, entries, false, false))
	s.Require().Len(s.notifier.sent, 1)
	n := s.notifier.sent[0]
	s.Contains(n.Subject, "cronjob monitoring web-01, ")
	s.Equal([]string{"ops@example.com"}, n.Receivers)
	s.Contains(n.Body, "failed: returncode 1")
	s.Contains(n.Body, "C: returncode 0, locked: true")
}

func (s *MonitorTestSuite) TestReportDeliveryFailure() {
	s.notifier.err = errors.New("smtp down")

	ok := s.monitor.Report(s.ctx, nil, []Entry{{Name: "x", ReturnCode: 1}}, false, false)
	s.False(ok)
}

func (s *MonitorTestSuite) TestReportWithoutReceivers() {
	m := New(s.store, s.locks)
	s.False(m.CanNotify())
	s.False(m.Report(s.ctx, nil, []Entry{{Name: "x", ReturnCode: 1}}, false, false))
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}
