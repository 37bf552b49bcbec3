// Package jobtest 提供 job.Store 实现的通用一致性测试.
package jobtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/command-scheduler/job"
)

// StoreSuite job.Store 一致性测试套件.
//
// 使用方在 SetupTest 中为 Store 赋值，每个测试使用独立的空存储.
type StoreSuite struct {
	suite.Suite
	Store job.Store
	ctx   context.Context
}

// SetupSuite 初始化上下文.
func (s *StoreSuite) SetupSuite() {
	s.ctx = context.Background()
}

func (s *StoreSuite) create(name string, mutate ...func(*job.Job)) *job.Job {
	j := job.New(name, "app:"+name, "@daily")
	for _, fn := range mutate {
		fn(j)
	}
	s.Require().NoError(s.Store.Create(s.ctx, j))
	return j
}

func (s *StoreSuite) TestCreateAssignsID() {
	a := s.create("a")
	b := s.create("b")

	s.NotZero(a.ID)
	s.NotEqual(a.ID, b.ID)
	s.NotZero(a.Version)
}

func (s *StoreSuite) TestCreateDuplicateName() {
	s.create("dup")

	err := s.Store.Create(s.ctx, job.New("dup", "other", "@hourly"))
	s.ErrorIs(err, job.ErrDuplicateName)
}

func (s *StoreSuite) TestGet() {
	created := s.create("get", func(j *job.Job) {
		j.Arguments = "--force -v"
		j.LogFile = "get.log"
		j.Priority = 5
		j.LastReturnCode = 2
	})

	got, err := s.Store.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("get", got.Name)
	s.Equal("app:get", got.Command)
	s.Equal("--force -v", got.Arguments)
	s.Equal("@daily", got.CronExpression)
	s.Equal("get.log", got.LogFile)
	s.Equal(5, got.Priority)
	s.Equal(2, got.LastReturnCode)
	s.WithinDuration(created.LastExecution, got.LastExecution, time.Second)
}

func (s *StoreSuite) TestGetNotFound() {
	_, err := s.Store.Get(s.ctx, 424242)
	s.ErrorIs(err, job.ErrNotFound)
}

func (s *StoreSuite) TestGetByName() {
	s.create("alpha")
	s.create("beta")

	got, err := s.Store.GetByName(s.ctx, "beta")
	s.Require().NoError(err)
	s.Equal("beta", got.Name)

	_, err = s.Store.GetByName(s.ctx, "Beta")
	s.ErrorIs(err, job.ErrNotFound)
}

func (s *StoreSuite) TestListFilterAndOrder() {
	s.create("one")
	s.create("two", func(j *job.Job) { j.Disabled = true })
	s.create("three", func(j *job.Job) { j.Priority = 100 })

	all, err := s.Store.List(s.ctx, job.Filter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]string{"one", "two", "three"}, names(all))

	enabled, err := s.Store.List(s.ctx, job.Enabled())
	s.Require().NoError(err)
	s.Equal([]string{"one", "three"}, names(enabled))
}

func (s *StoreSuite) TestListLocked() {
	s.create("free")
	held := s.create("held")
	_, err := s.Store.Update(s.ctx, held.ID, func(j *job.Job) error {
		j.Locked = true
		j.Disabled = true
		return nil
	})
	s.Require().NoError(err)

	locked, err := s.Store.List(s.ctx, job.Locked())
	s.Require().NoError(err)
	s.Equal([]string{"held"}, names(locked))
}

func (s *StoreSuite) TestUpdate() {
	created := s.create("upd")
	at := time.Now().Add(time.Minute).Truncate(time.Second)

	updated, err := s.Store.Update(s.ctx, created.ID, func(j *job.Job) error {
		j.Locked = true
		j.LastExecution = at
		j.LastReturnCode = 7
		return nil
	})
	s.Require().NoError(err)
	s.True(updated.Locked)
	s.Greater(updated.Version, created.Version)

	got, err := s.Store.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(got.Locked)
	s.Equal(7, got.LastReturnCode)
	s.True(at.Equal(got.LastExecution), "got %v want %v", got.LastExecution, at)
}

func (s *StoreSuite) TestUpdateAbortedByMutator() {
	created := s.create("abort")
	boom := errors.New("boom")

	_, err := s.Store.Update(s.ctx, created.ID, func(j *job.Job) error {
		j.Locked = true
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.Store.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.False(got.Locked)
	s.Equal(created.Version, got.Version)
}

func (s *StoreSuite) TestUpdateNotFound() {
	_, err := s.Store.Update(s.ctx, 99999, func(*job.Job) error { return nil })
	s.ErrorIs(err, job.ErrNotFound)
}

func (s *StoreSuite) TestUpdateCannotChangeIdentity() {
	created := s.create("ident")

	updated, err := s.Store.Update(s.ctx, created.ID, func(j *job.Job) error {
		j.ID = created.ID + 100
		j.Version = 0
		return nil
	})
	s.Require().NoError(err)
	s.Equal(created.ID, updated.ID)
}

// TestConcurrentCompareAndSet 并发抢占同一任务时只有一个成功.
func (s *StoreSuite) TestConcurrentCompareAndSet() {
	created := s.create("race")

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Store.Update(s.ctx, created.ID, func(j *job.Job) error {
				if j.Locked {
					return errAlreadyLocked
				}
				j.Locked = true
				return nil
			})
			if err == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(1, acquired)
	got, err := s.Store.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(got.Locked)
}

var errAlreadyLocked = errors.New("already locked")

func names(jobs []*job.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Name)
	}
	return out
}
