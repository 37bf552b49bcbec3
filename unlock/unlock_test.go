package unlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/lock"
	"github.com/Tsukikage7/command-scheduler/monitor"
	"github.com/Tsukikage7/command-scheduler/storage/memory"
)

const timeout = 300 * time.Second

type UnlockTestSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *memory.Store
	locks *lock.Manager
	tool  *Tool
}

func (s *UnlockTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = memory.New()
	s.locks = lock.NewManager(s.store, lock.WithClock(func() time.Time { return s.now }))
	s.tool = New(s.store, s.locks, nil)
}

func (s *UnlockTestSuite) create(name string, locked bool, age time.Duration, disabled bool) *job.Job {
	j := job.New(name, "app:"+name, "@daily")
	j.Locked = locked
	j.Disabled = disabled
	j.LastExecution = s.now.Add(-age)
	s.Require().NoError(s.store.Create(s.ctx, j))
	return j
}

func (s *UnlockTestSuite) locked(id int64) bool {
	j, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	return j.Locked
}

func (s *UnlockTestSuite) TestUnlockOne_TooRecent() {
	b := s.create("B", true, 30*time.Second, false)

	status, err := s.tool.UnlockOne(s.ctx, b, timeout)
	s.NoError(err)
	s.Equal(TooRecent, status)
	s.True(s.locked(b.ID))
}

func (s *UnlockTestSuite) TestUnlockOne_Stale() {
	c := s.create("C", true, 10*time.Minute, false)

	status, err := s.tool.UnlockOne(s.ctx, c, timeout)
	s.NoError(err)
	s.Equal(Unlocked, status)
	s.False(s.locked(c.ID))
}

func (s *UnlockTestSuite) TestUnlockOne_NotLocked() {
	j := s.create("free", false, time.Hour, false)

	status, err := s.tool.UnlockOne(s.ctx, j, timeout)
	s.NoError(err)
	s.Equal(NotLocked, status)
}

func (s *UnlockTestSuite) TestUnlockOne_UsesCurrentState() {
	// 传入的副本已过期，存储中的任务已被调度进程释放
	stale := s.create("moved", true, time.Hour, false)
	s.Require().NoError(s.locks.Release(s.ctx, stale.ID, 0))

	status, err := s.tool.UnlockOne(s.ctx, stale, timeout)
	s.NoError(err)
	s.Equal(NotLocked, status)
}

func (s *UnlockTestSuite) TestUnlockOne_OnlyClearsLock() {
	j := s.create("keep", true, time.Hour, false)
	_, err := s.store.Update(s.ctx, j.ID, func(j *job.Job) error {
		j.ExecuteImmediately = true
		j.LastReturnCode = 4
		return nil
	})
	s.Require().NoError(err)

	_, err = s.tool.UnlockOne(s.ctx, j, timeout)
	s.Require().NoError(err)

	got, _ := s.store.Get(s.ctx, j.ID)
	s.False(got.Locked)
	s.True(got.ExecuteImmediately)
	s.Equal(4, got.LastReturnCode)
}

func (s *UnlockTestSuite) TestUnlockAll() {
	b := s.create("B", true, 30*time.Second, false)
	c := s.create("C", true, 10*time.Minute, false)
	d := s.create("D", true, time.Hour, true)
	s.create("free", false, time.Hour, false)

	outcomes, err := s.tool.UnlockAll(s.ctx, timeout)
	s.Require().NoError(err)

	s.Equal([]Outcome{
		{Name: "B", Status: TooRecent},
		{Name: "C", Status: Unlocked},
		{Name: "D", Status: Unlocked},
	}, outcomes)
	s.True(s.locked(b.ID))
	s.False(s.locked(c.ID))
	s.False(s.locked(d.ID))
}

func (s *UnlockTestSuite) TestUnlockAllThenScanHasNoStaleLocks() {
	s.create("C", true, 10*time.Minute, false)
	s.create("E", true, time.Hour, false)
	s.create("B", true, 30*time.Second, false)

	_, err := s.tool.UnlockAll(s.ctx, timeout)
	s.Require().NoError(err)

	entries, err := monitor.New(s.store, s.locks).Scan(s.ctx, timeout)
	s.Require().NoError(err)
	for _, e := range entries {
		s.False(e.Stale, e.Name)
	}
}

func (s *UnlockTestSuite) TestUnlockByName() {
	c := s.create("C", true, 10*time.Minute, false)

	out, err := s.tool.UnlockByName(s.ctx, "C", timeout)
	s.Require().NoError(err)
	s.Equal(Unlocked, out.Status)
	s.Equal(`Scheduled Command "C" has been unlocked.`, out.String())
	s.False(s.locked(c.ID))
}

func (s *UnlockTestSuite) TestUnlockByName_NotFound() {
	s.create("hidden", true, time.Hour, true)

	_, err := s.tool.UnlockByName(s.ctx, "missing", timeout)
	s.ErrorIs(err, ErrNotFound)

	_, err = s.tool.UnlockByName(s.ctx, "hidden", timeout)
	s.ErrorIs(err, ErrNotFound)

	_, err = s.tool.UnlockByName(s.ctx, "HIDDEN", timeout)
	s.ErrorIs(err, ErrNotFound)
}

func (s *UnlockTestSuite) TestOutcomeString() {
	s.Equal(`Skipping: Scheduled Command "a" is not locked.`, Outcome{Name: "a", Status: NotLocked}.String())
	s.Equal(`Skipping: Timeout for scheduled Command "a" has not run out.`, Outcome{Name: "a", Status: TooRecent}.String())
}

func TestUnlockTestSuite(t *testing.T) {
	suite.Run(t, new(UnlockTestSuite))
}
