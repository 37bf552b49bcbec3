package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"github.com/Tsukikage7/command-scheduler/logger"
)

// telegramTextLimit Telegram 单条消息的最大字符数.
const telegramTextLimit = 4096

// telegramSender tele.Bot 中用到的方法.
type telegramSender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// TelegramNotifier 通过 Telegram Bot 发送通知.
type TelegramNotifier struct {
	bot    telegramSender
	logger logger.Logger
}

// NewTelegramNotifier 创建 Telegram 通知器.
//
// 以离线模式创建 bot，不会在启动时请求 Telegram API.
func NewTelegramNotifier(cfg TelegramConfig, opts ...Option) (*TelegramNotifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrEmptyToken
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.URL,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateClient, err)
	}
	return newTelegramNotifier(bot, opts...), nil
}

func newTelegramNotifier(bot telegramSender, opts ...Option) *TelegramNotifier {
	o := applyOptions(opts)
	return &TelegramNotifier{bot: bot, logger: o.logger}
}

// Notify 向每个 chat ID 发送通知，超长内容分段发送.
func (t *TelegramNotifier) Notify(ctx context.Context, n *Notification) error {
	if err := validate(ctx, n); err != nil {
		return err
	}

	text := n.Subject + "\n\n" + n.Body
	chunks := splitText(text, telegramTextLimit)

	var errs []error
	for _, rcv := range n.Receivers {
		id, err := strconv.ParseInt(strings.TrimSpace(rcv), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidChatID, rcv))
			continue
		}
		chat := &tele.Chat{ID: id}
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			if _, err := t.bot.Send(chat, chunk); err != nil {
				t.logger.Errorf("[Messaging] Telegram 发送失败: chat=%d, error=%v", id, err)
				errs = append(errs, fmt.Errorf("%w: %d: %v", ErrSend, id, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Close 实现 Notifier.
func (t *TelegramNotifier) Close() error {
	return nil
}

// splitText 按行切分文本，每段不超过 limit 个字符.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		size   int
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			size = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for utf8.RuneCountInString(line) > limit {
			flush()
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
		}
		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		cur.WriteString(line)
		size += n
	}
	flush()
	return chunks
}
