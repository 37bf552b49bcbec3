// Package mongodb 提供基于 MongoDB 的任务存储.
//
// 任务保存在单个集合中，ID 由 counters 集合的自增计数器分配，
// Update 以 {_id, version} 为条件写回，实现跨进程的比较并交换.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/Tsukikage7/command-scheduler/logger"
)

var (
	ErrNilConfig     = errors.New("mongodb: 配置为空")
	ErrNilLogger     = errors.New("mongodb: 日志记录器为空")
	ErrEmptyURI      = errors.New("mongodb: 连接地址为空")
	ErrEmptyDatabase = errors.New("mongodb: 数据库名为空")
)

const (
	defaultCollection     = "scheduled_jobs"
	defaultConnectTimeout = 10 * time.Second
	defaultSelectTimeout  = 5 * time.Second
	// 每次调用只串行访问存储，连接池无需很大
	defaultMaxPoolSize = 4
	appName            = "command-scheduler"
)

// Config MongoDB 存储配置.
//
//	store:
//	  type: mongodb
//	  mongodb:
//	    uri: mongodb://mongo:27017/?replicaSet=rs0
//	    database: cron
type Config struct {
	URI        string `json:"uri" yaml:"uri" mapstructure:"uri"`
	Database   string `json:"database" yaml:"database" mapstructure:"database"`
	Collection string `json:"collection" yaml:"collection" mapstructure:"collection"`
	// ConnectTimeout 同时用作建立连接后 Ping 的超时
	ConnectTimeout         time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
	ServerSelectionTimeout time.Duration `json:"server_selection_timeout" yaml:"server_selection_timeout" mapstructure:"server_selection_timeout"`
	MaxPoolSize            uint64        `json:"max_pool_size" yaml:"max_pool_size" mapstructure:"max_pool_size"`
	ReplicaSet             string        `json:"replica_set" yaml:"replica_set" mapstructure:"replica_set"`
	Direct                 bool          `json:"direct" yaml:"direct" mapstructure:"direct"`
}

// ApplyDefaults 填充未设置的字段.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = defaultCollection
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ServerSelectionTimeout <= 0 {
		c.ServerSelectionTimeout = defaultSelectTimeout
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
}

// Validate 验证配置.
func (c *Config) Validate() error {
	switch {
	case c.URI == "":
		return ErrEmptyURI
	case c.Database == "":
		return ErrEmptyDatabase
	}
	return nil
}

// 锁状态的比较并交换依赖多数派读写，否则主节点切换后可能读到回滚的锁.
func (c *Config) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(c.URI).
		SetAppName(appName).
		SetConnectTimeout(c.ConnectTimeout).
		SetServerSelectionTimeout(c.ServerSelectionTimeout).
		SetMaxPoolSize(c.MaxPoolSize).
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Majority())

	if c.ReplicaSet != "" {
		opts.SetReplicaSet(c.ReplicaSet)
	}
	if c.Direct {
		opts.SetDirect(true)
	}
	return opts
}

func connect(ctx context.Context, c *Config, log logger.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(c.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("mongodb: 连接失败: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongodb: 服务不可用: %w", err)
	}

	log.Debugf("[MongoDB] 已连接 database=%s collection=%s", c.Database, c.Collection)
	return client, nil
}
