package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// KafkaNotifier 将通知以 JSON 发送到 Kafka topic.
//
// 使用同步发送模式，内置配置:
//   - Idempotent: true
//   - RequiredAcks: WaitForAll
//   - Retry.Max: 3
type KafkaNotifier struct {
	producer sarama.SyncProducer
	closed   bool
	mu       sync.Mutex
	logger   logger.Logger
}

// NewKafkaNotifier 创建 Kafka 通知器.
func NewKafkaNotifier(cfg KafkaConfig, opts ...Option) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	config := sarama.NewConfig()
	config.Version = sarama.V3_8_0_0
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	if cfg.Timeout > 0 {
		config.Producer.Timeout = cfg.Timeout
		config.Net.DialTimeout = cfg.Timeout
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, errors.Join(ErrCreateProducer, err)
	}

	n := newKafkaNotifier(producer, opts...)
	n.logger.Debugf("[Messaging] Kafka 通知器启动: brokers=%v", cfg.Brokers)
	return n, nil
}

func newKafkaNotifier(producer sarama.SyncProducer, opts ...Option) *KafkaNotifier {
	o := applyOptions(opts)
	return &KafkaNotifier{producer: producer, logger: o.logger}
}

// Notify 向每个 topic 发送一条消息，key 为主机名.
func (k *KafkaNotifier) Notify(ctx context.Context, n *Notification) error {
	if err := validate(ctx, n); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrNotifierClosed
	}

	payload, err := n.encode()
	if err != nil {
		return err
	}

	var errs []error
	for _, topic := range n.Receivers {
		partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(n.Host),
			Value: sarama.ByteEncoder(payload),
		})
		if err != nil {
			k.logger.Errorf("[Messaging] Kafka 发送失败: topic=%s, error=%v", topic, err)
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrSend, topic, err))
			continue
		}
		k.logger.Debugf("[Messaging] Kafka 消息已发送: topic=%s, partition=%d, offset=%d", topic, partition, offset)
	}
	return errors.Join(errs...)
}

// Close 关闭生产者，可重复调用.
func (k *KafkaNotifier) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	if k.producer == nil {
		return nil
	}
	return k.producer.Close()
}
