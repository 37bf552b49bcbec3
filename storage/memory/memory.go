// Package memory 提供进程内的任务存储实现.
//
// 仅在单进程内提供互斥，适用于测试和 --dump 预演，
// 生产环境的跨进程互斥需使用 sqlstore 或 mongodb.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Tsukikage7/command-scheduler/job"
)

// Store 基于 map 的任务存储.
type Store struct {
	mu     sync.RWMutex
	jobs   map[int64]*job.Job
	nextID int64
	closed bool
}

// New 创建内存存储.
func New() *Store {
	return &Store{jobs: make(map[int64]*job.Job)}
}

var _ job.Store = (*Store)(nil)

// Create 创建任务.
func (s *Store) Create(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return job.ErrStoreClosed
	}
	for _, existing := range s.jobs {
		if existing.Name == j.Name {
			return job.ErrDuplicateName
		}
	}
	s.nextID++
	j.ID = s.nextID
	j.Version = 1
	s.jobs[j.ID] = j.Clone()
	return nil
}

// Get 按 ID 获取任务.
func (s *Store) Get(ctx context.Context, id int64) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, job.ErrStoreClosed
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	return j.Clone(), nil
}

// GetByName 按名称获取任务.
func (s *Store) GetByName(ctx context.Context, name string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, job.ErrStoreClosed
	}
	for _, j := range s.jobs {
		if j.Name == name {
			return j.Clone(), nil
		}
	}
	return nil, job.ErrNotFound
}

// List 列出任务.
func (s *Store) List(ctx context.Context, filter job.Filter) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, job.ErrStoreClosed
	}
	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filter.Match(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// Update 在写锁内完成读取、修改和写回.
func (s *Store) Update(ctx context.Context, id int64, fn job.MutateFunc) (*job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, job.ErrStoreClosed
	}
	current, ok := s.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Version = current.Version + 1
	s.jobs[id] = next
	return next.Clone(), nil
}

// Close 关闭存储.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
