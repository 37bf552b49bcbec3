// Package messaging 投递监控通知.
//
// 支持多种投递方式，通过配置切换:
//   - mail: SMTP 邮件，接收者为邮箱地址
//   - kafka: 发送到 Kafka，接收者为 topic
//   - rabbitmq: 发布到 RabbitMQ 交换机，接收者为 routing key
//   - telegram: 发送到 Telegram，接收者为 chat ID
//
// 示例:
//
//	notifier, err := messaging.NewNotifier(cfg, messaging.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer notifier.Close()
//
//	err = notifier.Notify(ctx, &messaging.Notification{
//	    Subject:   "cronjob monitoring web-01",
//	    Body:      "backup: returncode 1, locked: false, last execution: ...",
//	    Receivers: []string{"ops@example.com"},
//	})
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// Notification 通知内容.
type Notification struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Host      string    `json:"host"`
	Time      time.Time `json:"time"`
	Receivers []string  `json:"-"`
}

// encode 序列化为 JSON，用于消息队列投递.
func (n *Notification) encode() ([]byte, error) {
	return json.Marshal(n)
}

// Notifier 通知投递接口.
type Notifier interface {
	// Notify 向 n.Receivers 中的每个接收者投递通知.
	//
	// 任一接收者投递失败都返回错误，不重试.
	Notify(ctx context.Context, n *Notification) error
	// Close 释放连接.
	Close() error
}

// Option 通知器配置选项.
type Option func(*options)

type options struct {
	logger logger.Logger
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.NewNop()
	}
	return o
}

// NewNotifier 根据配置创建通知器.
func NewNotifier(cfg *Config, opts ...Option) (Notifier, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeMail:
		return NewMailNotifier(cfg.Mail, opts...)
	case TypeKafka:
		return NewKafkaNotifier(cfg.Kafka, opts...)
	case TypeRabbitMQ:
		return NewRabbitMQNotifier(cfg.RabbitMQ, opts...)
	case TypeTelegram:
		return NewTelegramNotifier(cfg.Telegram, opts...)
	default:
		return nil, ErrUnsupportedType
	}
}

// validate 校验通知内容.
func validate(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n == nil {
		return ErrNilNotification
	}
	if len(n.Receivers) == 0 {
		return ErrNoReceivers
	}
	return nil
}
