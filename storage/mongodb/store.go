package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/logger"
)

const countersCollection = "counters"

// document 任务在集合中的文档结构.
type document struct {
	ID                 int64     `bson:"_id"`
	Name               string    `bson:"name"`
	Command            string    `bson:"command"`
	Arguments          string    `bson:"arguments"`
	CronExpression     string    `bson:"cron_expression"`
	LastExecution      time.Time `bson:"last_execution"`
	LastReturnCode     int       `bson:"last_return_code"`
	LogFile            string    `bson:"log_file"`
	Priority           int       `bson:"priority"`
	ExecuteImmediately bool      `bson:"execute_immediately"`
	Disabled           bool      `bson:"disabled"`
	Locked             bool      `bson:"locked"`
	Version            int64     `bson:"version"`
}

func fromJob(j *job.Job) *document {
	return &document{
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

func (d *document) toJob() *job.Job {
	return &job.Job{
		ID:                 d.ID,
		Name:               d.Name,
		Command:            d.Command,
		Arguments:          d.Arguments,
		CronExpression:     d.CronExpression,
		LastExecution:      d.LastExecution,
		LastReturnCode:     d.LastReturnCode,
		LogFile:            d.LogFile,
		Priority:           d.Priority,
		ExecuteImmediately: d.ExecuteImmediately,
		Disabled:           d.Disabled,
		Locked:             d.Locked,
		Version:            d.Version,
	}
}

// Store MongoDB 任务存储.
type Store struct {
	client   *mongo.Client
	jobs     *mongo.Collection
	counters *mongo.Collection
	counter  string
	logger   logger.Logger
	ownsConn bool
}

// NewStore 基于已有数据库句柄创建存储并确保名称唯一索引存在.
func NewStore(ctx context.Context, db *mongo.Database, collection string, log logger.Logger) (*Store, error) {
	if log == nil {
		return nil, ErrNilLogger
	}
	if collection == "" {
		collection = defaultCollection
	}

	s := &Store{
		client:   db.Client(),
		jobs:     db.Collection(collection),
		counters: db.Collection(countersCollection),
		counter:  collection,
		logger:   log,
	}

	_, err := s.jobs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_name"),
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open 根据配置连接 MongoDB 并创建存储.
func Open(ctx context.Context, config *Config, log logger.Logger) (*Store, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if log == nil {
		return nil, ErrNilLogger
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := connect(ctx, config, log)
	if err != nil {
		return nil, err
	}

	s, err := NewStore(ctx, client.Database(config.Database), config.Collection, log)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.ownsConn = true
	return s, nil
}

var _ job.Store = (*Store)(nil)

// nextID 原子递增计数器并返回新值.
func (s *Store) nextID(ctx context.Context) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: s.counter}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, err
	}
	return out.Seq, nil
}

// Create 插入任务.
func (s *Store) Create(ctx context.Context, j *job.Job) error {
	if _, err := s.GetByName(ctx, j.Name); err == nil {
		return job.ErrDuplicateName
	} else if !errors.Is(err, job.ErrNotFound) {
		return err
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}

	doc := fromJob(j)
	doc.ID = id
	doc.Version = 1

	if _, err := s.jobs.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return job.ErrDuplicateName
		}
		return err
	}

	j.ID = doc.ID
	j.Version = doc.Version
	return nil
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*job.Job, error) {
	var doc document
	if err := s.jobs.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, job.ErrNotFound
		}
		return nil, err
	}
	return doc.toJob(), nil
}

// Get 按 ID 读取任务.
func (s *Store) Get(ctx context.Context, id int64) (*job.Job, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetByName 按名称读取任务.
func (s *Store) GetByName(ctx context.Context, name string) (*job.Job, error) {
	return s.findOne(ctx, bson.D{{Key: "name", Value: name}})
}

// List 按 ID 升序列出任务.
func (s *Store) List(ctx context.Context, filter job.Filter) ([]*job.Job, error) {
	query := bson.D{}
	if filter.Enabled != nil {
		query = append(query, bson.E{Key: "disabled", Value: !*filter.Enabled})
	}
	if filter.Locked != nil {
		query = append(query, bson.E{Key: "locked", Value: *filter.Locked})
	}

	cursor, err := s.jobs.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	jobs := make([]*job.Job, 0, len(docs))
	for i := range docs {
		jobs = append(jobs, docs[i].toJob())
	}
	return jobs, nil
}

// Update 读取任务，修改副本后以版本号为条件写回.
func (s *Store) Update(ctx context.Context, id int64, fn job.MutateFunc) (*job.Job, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Name = current.Name
	next.Version = current.Version + 1

	doc := fromJob(next)
	res, err := s.jobs.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: current.ID}, {Key: "version", Value: current.Version}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "command", Value: doc.Command},
			{Key: "arguments", Value: doc.Arguments},
			{Key: "cron_expression", Value: doc.CronExpression},
			{Key: "last_execution", Value: doc.LastExecution},
			{Key: "last_return_code", Value: doc.LastReturnCode},
			{Key: "log_file", Value: doc.LogFile},
			{Key: "priority", Value: doc.Priority},
			{Key: "execute_immediately", Value: doc.ExecuteImmediately},
			{Key: "disabled", Value: doc.Disabled},
			{Key: "locked", Value: doc.Locked},
			{Key: "version", Value: doc.Version},
		}}},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		s.logger.Debugf("[MongoDB] 版本冲突 id=%d version=%d", current.ID, current.Version)
		return nil, job.ErrConflict
	}
	return next, nil
}

// Close 断开由 Open 建立的连接.
func (s *Store) Close() error {
	if !s.ownsConn {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
