package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// amqpChannel amqp.Channel 中用到的方法.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQNotifier 将通知以 JSON 发布到 RabbitMQ.
//
// 开启 Confirm 时每条消息等待 broker 确认后才算投递成功.
// Mandatory 的无法路由退回只有在 Confirm 开启时才能被发现.
type RabbitMQNotifier struct {
	conn      io.Closer
	ch        amqpChannel
	exchange  string
	mandatory bool
	logger    logger.Logger
	closed    atomic.Bool

	// mu 保证发布与等待确认成对进行
	mu       sync.Mutex
	confirms <-chan amqp.Confirmation
	returns  <-chan amqp.Return
	seq      uint64
}

// NewRabbitMQNotifier 创建 RabbitMQ 通知器.
//
// 配置了交换机时会先声明交换机.
func NewRabbitMQNotifier(cfg RabbitMQConfig, opts ...Option) (*RabbitMQNotifier, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateClient, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrCreateClient, err)
	}
	fail := func(format string, err error) error {
		ch.Close()
		conn.Close()
		return fmt.Errorf("%w: "+format, ErrCreateClient, err)
	}

	if cfg.Exchange != "" {
		kind := cfg.ExchangeType
		if kind == "" {
			kind = amqp.ExchangeDirect
		}
		if err := ch.ExchangeDeclare(cfg.Exchange, kind, cfg.Durable, false, false, false, nil); err != nil {
			return nil, fail("declare exchange: %v", err)
		}
	}

	n := newRabbitMQNotifier(conn, ch, cfg, opts...)
	if cfg.Confirm {
		if err := ch.Confirm(false); err != nil {
			return nil, fail("启用发布确认失败: %v", err)
		}
		n.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 8))
		if cfg.Mandatory {
			n.returns = ch.NotifyReturn(make(chan amqp.Return, 8))
		}
	}
	n.logger.Debugf("[Messaging] RabbitMQ 通知器启动: exchange=%s, confirm=%t", cfg.Exchange, cfg.Confirm)
	return n, nil
}

func newRabbitMQNotifier(conn io.Closer, ch amqpChannel, cfg RabbitMQConfig, opts ...Option) *RabbitMQNotifier {
	o := applyOptions(opts)
	return &RabbitMQNotifier{
		conn:      conn,
		ch:        ch,
		exchange:  cfg.Exchange,
		mandatory: cfg.Mandatory,
		logger:    o.logger,
	}
}

// Notify 以每个接收者作为 routing key 发布一条消息.
func (r *RabbitMQNotifier) Notify(ctx context.Context, n *Notification) error {
	if err := validate(ctx, n); err != nil {
		return err
	}
	if r.closed.Load() {
		return ErrNotifierClosed
	}

	payload, err := n.encode()
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range n.Receivers {
		if err := r.publish(ctx, key, payload); err != nil {
			r.logger.Errorf("[Messaging] RabbitMQ 发布失败: key=%s, error=%v", key, err)
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrSend, key, err))
			continue
		}
		r.logger.Debugf("[Messaging] RabbitMQ 消息已发布: exchange=%s, key=%s", r.exchange, key)
	}
	return errors.Join(errs...)
}

func (r *RabbitMQNotifier) publish(ctx context.Context, key string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	err := r.ch.PublishWithContext(ctx, r.exchange, key, r.mandatory, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    id,
		AppId:        "command-scheduler",
		Type:         "monitor.report",
		Body:         payload,
	})
	if err != nil || r.confirms == nil {
		return err
	}

	// 确认模式下 delivery tag 从 1 开始逐条递增
	r.seq++
	for {
		select {
		case c, ok := <-r.confirms:
			if !ok {
				return ErrConfirmChannelClosed
			}
			if c.DeliveryTag < r.seq {
				// 之前超时的消息迟到的确认
				continue
			}
			if !c.Ack {
				return ErrNotConfirmed
			}
			return r.returned(id)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// returned 检查消息是否被 broker 退回.
//
// broker 先发送 basic.return 再发送确认，收到确认时退回已在通道中.
func (r *RabbitMQNotifier) returned(id string) error {
	for {
		select {
		case ret, ok := <-r.returns:
			if !ok {
				return nil
			}
			if ret.MessageId == id {
				return fmt.Errorf("%w: %d %s", ErrUnroutable, ret.ReplyCode, ret.ReplyText)
			}
		default:
			return nil
		}
	}
}

// Close 关闭通道和连接，可重复调用.
func (r *RabbitMQNotifier) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	var errs []error
	if r.ch != nil {
		errs = append(errs, r.ch.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}
