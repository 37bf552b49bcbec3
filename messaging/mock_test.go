package messaging

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	tele "gopkg.in/telebot.v4"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// mockLogger 用于测试的模拟日志器.
type mockLogger struct {
	debugCalled bool
	errorCalled bool
	warnCalled  bool
}

func (m *mockLogger) Debug(args ...any)                             { m.debugCalled = true }
func (m *mockLogger) Debugf(format string, args ...any)             { m.debugCalled = true }
func (m *mockLogger) Info(args ...any)                              {}
func (m *mockLogger) Infof(format string, args ...any)              {}
func (m *mockLogger) Warn(args ...any)                              { m.warnCalled = true }
func (m *mockLogger) Warnf(format string, args ...any)              { m.warnCalled = true }
func (m *mockLogger) Error(args ...any)                             { m.errorCalled = true }
func (m *mockLogger) Errorf(format string, args ...any)             { m.errorCalled = true }
func (m *mockLogger) Fatal(args ...any)                             {}
func (m *mockLogger) Fatalf(format string, args ...any)             {}
func (m *mockLogger) With(fields ...logger.Field) logger.Logger     { return m }
func (m *mockLogger) WithContext(ctx context.Context) logger.Logger { return m }
func (m *mockLogger) Sync() error                                   { return nil }
func (m *mockLogger) Close() error                                  { return nil }

// published 记录一次 RabbitMQ 发布.
type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

// mockChannel 模拟 amqp 通道.
//
// confirms 非空时模拟确认模式: 每次发布分配递增的 delivery tag.
type mockChannel struct {
	mu        sync.Mutex
	published []published
	failKeys  map[string]error
	closed    bool

	confirms  chan amqp.Confirmation
	returns   chan amqp.Return
	tag       uint64
	nackKeys  map[string]bool
	noRoute   map[string]bool
	delayKeys map[string]bool
	delayed   []amqp.Confirmation
}

func newConfirmingChannel() *mockChannel {
	return &mockChannel{
		confirms:  make(chan amqp.Confirmation, 8),
		returns:   make(chan amqp.Return, 8),
		nackKeys:  map[string]bool{},
		noRoute:   map[string]bool{},
		delayKeys: map[string]bool{},
	}
}

func (c *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failKeys[key]; err != nil {
		return err
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	if c.confirms == nil {
		return nil
	}

	c.tag++
	confirm := amqp.Confirmation{DeliveryTag: c.tag, Ack: !c.nackKeys[key]}
	if c.delayKeys[key] {
		c.delayed = append(c.delayed, confirm)
		return nil
	}
	for _, d := range c.delayed {
		c.confirms <- d
	}
	c.delayed = nil
	if mandatory && c.noRoute[key] {
		c.returns <- amqp.Return{ReplyCode: amqp.NoRoute, ReplyText: "NO_ROUTE", RoutingKey: key, MessageId: msg.MessageId}
	}
	c.confirms <- confirm
	return nil
}

func (c *mockChannel) Close() error {
	c.closed = true
	return nil
}

// mockCloser 模拟连接.
type mockCloser struct{ closed bool }

func (c *mockCloser) Close() error {
	c.closed = true
	return nil
}

// sentMessage 记录一次 Telegram 发送.
type sentMessage struct {
	chatID int64
	text   string
}

// mockBot 模拟 Telegram bot.
type mockBot struct {
	sent    []sentMessage
	failFor map[int64]error
}

func (b *mockBot) Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error) {
	chat := to.(*tele.Chat)
	if err := b.failFor[chat.ID]; err != nil {
		return nil, err
	}
	b.sent = append(b.sent, sentMessage{chatID: chat.ID, text: what.(string)})
	return &tele.Message{}, nil
}
