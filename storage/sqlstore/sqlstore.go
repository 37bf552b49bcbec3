// Package sqlstore 提供基于 GORM 的关系型任务存储.
//
// Update 在事务内先读取行，再以 id 与 version 为条件写回，
// 非 sqlite 驱动额外使用 SELECT ... FOR UPDATE 锁定行.
package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tsukikage7/command-scheduler/database"
	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/logger"
)

// ErrNilDB 数据库连接为空.
var ErrNilDB = errors.New("sqlstore: 数据库连接为空")

// Store 关系型任务存储.
type Store struct {
	db       *gorm.DB
	logger   logger.Logger
	rowLocks bool
	ownsDB   bool
	now      func() time.Time
}

// Option 存储配置选项.
type Option func(*Store)

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.logger = log
		}
	}
}

// withOwnership Close 时关闭底层连接.
func withOwnership() Option {
	return func(s *Store) {
		s.ownsDB = true
	}
}

// New 基于已有连接创建存储.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	s := &Store{
		db:       db,
		logger:   logger.NewNop(),
		rowLocks: db.Dialector.Name() != "sqlite",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open 根据配置打开连接并创建存储，AutoMigrate 开启时同步表结构.
func Open(ctx context.Context, cfg *database.Config, log logger.Logger) (*Store, error) {
	db, err := database.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	s, err := New(db, WithLogger(log), withOwnership())
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

var _ job.Store = (*Store)(nil)

// Migrate 创建或更新作业表.
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Debug("[SQLStore] 开始自动迁移作业表")
	if err := s.db.WithContext(ctx).AutoMigrate(&jobRecord{}); err != nil {
		s.logger.Errorf("[SQLStore] 自动迁移失败: %v", err)
		return err
	}
	return nil
}

// Create 插入任务并回填 ID 与版本号.
func (s *Store) Create(ctx context.Context, j *job.Job) error {
	rec := fromJob(j)
	rec.ID = 0
	rec.Version = 1

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&jobRecord{}).Where("name = ?", j.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return job.ErrDuplicateName
		}
		return tx.Create(rec).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return job.ErrDuplicateName
	}
	if err != nil {
		return err
	}

	j.ID = rec.ID
	j.Version = rec.Version
	return nil
}

// Get 按 ID 读取任务.
func (s *Store) Get(ctx context.Context, id int64) (*job.Job, error) {
	var rec jobRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translate(err)
	}
	return rec.toJob(), nil
}

// GetByName 按名称读取任务.
func (s *Store) GetByName(ctx context.Context, name string) (*job.Job, error) {
	var rec jobRecord
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return rec.toJob(), nil
}

// List 按 ID 升序列出任务.
func (s *Store) List(ctx context.Context, filter job.Filter) ([]*job.Job, error) {
	q := s.db.WithContext(ctx).Model(&jobRecord{})
	if filter.Enabled != nil {
		q = q.Where("disabled = ?", !*filter.Enabled)
	}
	if filter.Locked != nil {
		q = q.Where("locked = ?", *filter.Locked)
	}

	var recs []jobRecord
	if err := q.Order("id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}

	jobs := make([]*job.Job, 0, len(recs))
	for i := range recs {
		jobs = append(jobs, recs[i].toJob())
	}
	return jobs, nil
}

// Update 在事务内读取-修改-写回任务.
func (s *Store) Update(ctx context.Context, id int64, fn job.MutateFunc) (*job.Job, error) {
	var updated *job.Job

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		read := tx
		if s.rowLocks {
			read = read.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var rec jobRecord
		if err := read.First(&rec, id).Error; err != nil {
			return translate(err)
		}

		current := rec.toJob()
		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.ID = current.ID
		next.Name = current.Name
		next.Version = current.Version + 1

		res := tx.Model(&jobRecord{}).
			Where("id = ? AND version = ?", current.ID, current.Version).
			Updates(columns(next, s.now()))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			s.logger.Debugf("[SQLStore] 版本冲突 id=%d version=%d", current.ID, current.Version)
			return job.ErrConflict
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Close 关闭存储，仅关闭由 Open 创建的连接.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return database.Close(s.db)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return job.ErrNotFound
	}
	return err
}
