package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/command-scheduler/database"
	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/job/jobtest"
	"github.com/Tsukikage7/command-scheduler/lock"
	"github.com/Tsukikage7/command-scheduler/logger"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	return openSQLiteAt(t, filepath.Join(t.TempDir(), "jobs.db"))
}

// openSQLiteAt 打开独立的连接池，多个 Store 可以共享同一个文件.
func openSQLiteAt(t *testing.T, path string) *Store {
	t.Helper()
	cfg := &database.Config{
		Driver:      database.DriverSQLite,
		DSN:         path + "?_busy_timeout=5000",
		AutoMigrate: true,
		LogLevel:    "silent",
		Pool:        database.PoolConfig{MaxOpen: 1, MaxIdle: 1},
	}
	s, err := Open(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type SQLStoreTestSuite struct {
	jobtest.StoreSuite
}

func (s *SQLStoreTestSuite) SetupTest() {
	s.Store = openSQLite(s.T())
}

func TestSQLStoreTestSuite(t *testing.T) {
	suite.Run(t, new(SQLStoreTestSuite))
}

func TestNew_NilDB(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilDB)
}

// 每个 Store 代表一个独立的 dispatch 进程，同一任务每轮只能有一个获得锁.
func TestTryAcquireAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	ctx := context.Background()

	const (
		processes = 4
		workers   = 3
		rounds    = 20
	)
	managers := make([]*lock.Manager, processes)
	stores := make([]*Store, processes)
	for i := range processes {
		stores[i] = openSQLiteAt(t, path)
		managers[i] = lock.NewManager(stores[i])
	}

	j := job.New("shared", "app:shared", "* * * * *")
	require.NoError(t, stores[0].Create(ctx, j))

	for round := range rounds {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			winners  []int
			failures []error
		)
		start := make(chan struct{})
		for i, m := range managers {
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					acq, err := m.TryAcquire(ctx, j.ID)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failures = append(failures, err)
					}
					if acq == lock.Acquired {
						winners = append(winners, i)
					}
				}()
			}
		}
		close(start)
		wg.Wait()

		require.Empty(t, failures, "round %d", round)
		require.Len(t, winners, 1, "round %d", round)

		got, err := stores[(winners[0]+1)%processes].Get(ctx, j.ID)
		require.NoError(t, err)
		assert.True(t, got.Locked)

		require.NoError(t, managers[winners[0]].Release(ctx, j.ID, round))
	}

	got, err := stores[0].Get(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked)
	assert.Equal(t, rounds-1, got.LastReturnCode)
}

func TestSQLiteDisablesRowLocks(t *testing.T) {
	s := openSQLite(t)
	assert.False(t, s.rowLocks)
}

func TestUpdateWritesFalseAndZero(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	j := job.New("zero", "app:zero", "@daily")
	j.Locked = true
	j.ExecuteImmediately = true
	j.LastReturnCode = 3
	require.NoError(t, s.Create(ctx, j))

	_, err := s.Update(ctx, j.ID, func(j *job.Job) error {
		j.Locked = false
		j.ExecuteImmediately = false
		j.LastReturnCode = 0
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked)
	assert.False(t, got.ExecuteImmediately)
	assert.Zero(t, got.LastReturnCode)
}

func TestLastExecutionRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	j := job.New("time", "app:time", "@daily")
	j.LastExecution = at
	require.NoError(t, s.Create(ctx, j))

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.LastExecution))
}
