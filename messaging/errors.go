package messaging

import "errors"

// 预定义错误.
//
// 所有错误均可通过 errors.Is 进行判断:
//
//	if errors.Is(err, messaging.ErrNoReceivers) {
//	    // 未配置接收者
//	}
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("messaging: 配置为空")

	// ErrNilNotification 通知为空.
	ErrNilNotification = errors.New("messaging: 通知为空")

	// ErrNoReceivers 未指定接收者.
	ErrNoReceivers = errors.New("messaging: 未指定接收者")

	// ErrUnsupportedType 不支持的通知类型.
	ErrUnsupportedType = errors.New("messaging: 不支持的通知类型")

	// ErrNotifierClosed 通知器已关闭.
	ErrNotifierClosed = errors.New("messaging: 通知器已关闭")

	// ErrNoBrokers 未配置 Kafka 服务器地址.
	ErrNoBrokers = errors.New("messaging: 未配置服务器地址")

	// ErrEmptyURL 未配置 RabbitMQ 连接地址.
	ErrEmptyURL = errors.New("messaging: 未配置连接地址")

	// ErrEmptySMTPHost 未配置 SMTP 服务器.
	ErrEmptySMTPHost = errors.New("messaging: 未配置 SMTP 服务器")

	// ErrInvalidTLSPolicy 不支持的邮件 TLS 策略.
	ErrInvalidTLSPolicy = errors.New("messaging: 不支持的 TLS 策略")

	// ErrEmptyToken 未配置 Telegram bot token.
	ErrEmptyToken = errors.New("messaging: 未配置 bot token")

	// ErrInvalidChatID 无效的 Telegram chat ID.
	ErrInvalidChatID = errors.New("messaging: 无效的 chat ID")

	// ErrCreateProducer 创建生产者失败.
	ErrCreateProducer = errors.New("messaging: 创建生产者失败")

	// ErrCreateClient 创建客户端失败.
	ErrCreateClient = errors.New("messaging: 创建客户端失败")

	// ErrNotConfirmed broker 拒绝确认消息.
	ErrNotConfirmed = errors.New("messaging: 消息未被确认")

	// ErrUnroutable mandatory 消息无法路由被退回.
	ErrUnroutable = errors.New("messaging: 消息无法路由")

	// ErrConfirmChannelClosed 等待确认时通道已关闭.
	ErrConfirmChannelClosed = errors.New("messaging: 确认通道已关闭")

	// ErrSend 通知投递失败.
	ErrSend = errors.New("messaging: 通知投递失败")
)
