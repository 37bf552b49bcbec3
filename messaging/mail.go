package messaging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// TLS 策略.
const (
	MailTLSOpportunistic = "opportunistic"
	MailTLSMandatory     = "mandatory"
	MailTLSNone          = "none"
)

const defaultMailTimeout = 30 * time.Second

var mailTLSPolicies = map[string]mail.TLSPolicy{
	MailTLSOpportunistic: mail.TLSOpportunistic,
	MailTLSMandatory:     mail.TLSMandatory,
	MailTLSNone:          mail.NoTLS,
}

// MailNotifier 通过 SMTP 发送邮件通知，每个接收者单独投递.
type MailNotifier struct {
	cfg    MailConfig
	logger logger.Logger
	client *mail.Client
	send   func(ctx context.Context, msg *mail.Msg) error
}

// NewMailNotifier 创建邮件通知器.
func NewMailNotifier(cfg MailConfig, opts ...Option) (*MailNotifier, error) {
	o := applyOptions(opts)
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMailTimeout
	}
	if cfg.TLS == "" {
		cfg.TLS = MailTLSOpportunistic
	}
	policy, ok := mailTLSPolicies[cfg.TLS]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTLSPolicy, cfg.TLS)
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(policy),
		mail.WithDialContextFunc(dialWithDeadline),
	}
	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateClient, err)
	}

	m := &MailNotifier{cfg: cfg, logger: o.logger, client: client}
	m.send = func(ctx context.Context, msg *mail.Msg) error {
		return m.client.DialAndSendWithContext(ctx, msg)
	}
	return m, nil
}

// dialWithDeadline 把拨号 context 的截止时间设置到连接上.
//
// go-mail 读取服务器问候语时不检查 context，不回应的服务器会一直阻塞.
// 拨号 context 的截止时间取调用方截止时间与 Timeout 中较早的一个.
func dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// Notify 逐个接收者发送邮件.
func (m *MailNotifier) Notify(ctx context.Context, n *Notification) error {
	if err := validate(ctx, n); err != nil {
		return err
	}

	from := m.from(n.Host)
	var errs []error
	for _, rcv := range n.Receivers {
		rcv = strings.TrimSpace(rcv)
		if rcv == "" {
			continue
		}
		msg, err := buildMail(from, rcv, n)
		if err == nil {
			err = m.send(ctx, msg)
		}
		if err != nil {
			m.logger.Errorf("[Messaging] 邮件发送失败: to=%s, error=%v", rcv, err)
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrSend, rcv, err))
			continue
		}
		m.logger.Debugf("[Messaging] 邮件已发送: to=%s", rcv)
	}
	return errors.Join(errs...)
}

// Close 实现 Notifier.
func (m *MailNotifier) Close() error {
	return nil
}

func (m *MailNotifier) from(host string) string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	if host == "" {
		host, _ = os.Hostname()
	}
	return "cron-monitor@" + host
}

// 主题来自可配置的模板，换行符替换为空格，避免拼出额外的头部.
var subjectSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

func buildMail(from, to string, n *Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(subjectSanitizer.Replace(n.Subject))
	msg.SetGenHeader(mail.HeaderXMailer, "command-scheduler")
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, n.Body)
	return msg, nil
}
