// Package notifier delivers admin messages to the school's chat.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"

	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
)

// MaxMessageLength is the Telegram limit for one text message, in runes.
const MaxMessageLength = 4096

const jobType = "telegram_message"

// Sender posts a text message to a chat.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// TelebotAdapter implements Sender with a telebot bot.
type TelebotAdapter struct {
	bot *telebot.Bot
}

// NewTelebotAdapter wraps a bot.
func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends plain text without link previews.
func (a *TelebotAdapter) SendMessage(chatID int64, text string) error {
	_, err := a.bot.Send(telebot.ChatID(chatID), text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}

type delivery struct {
	ChatID int64
	Text   string
}

// TelegramNotifier queues messages for the admin chat and delivers them with retries.
type TelegramNotifier struct {
	sender Sender
	chatID int64
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewTelegramNotifier builds the notifier. Call Start before Notify.
func NewTelegramNotifier(sender Sender, chatID int64, queueCfg jobs.QueueConfig, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &TelegramNotifier{sender: sender, chatID: chatID, logger: logger}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	queueCfg.OnGiveUp = func(job jobs.Job, err error) {
		n.logger.Error("telegram message dropped", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
	}
	n.queue = jobs.NewQueue("telegram", n.deliver, queueCfg)
	return n
}

// Start launches the delivery workers.
func (n *TelegramNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains queued messages and stops the workers.
func (n *TelegramNotifier) Stop() {
	n.queue.Stop()
}

// Notify queues message, split into chunks that fit one chat message.
func (n *TelegramNotifier) Notify(_ context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	for _, chunk := range SplitMessage(message, MaxMessageLength) {
		if _, err := n.queue.Submit(jobType, delivery{ChatID: n.chatID, Text: chunk}); err != nil {
			return fmt.Errorf("queue telegram message: %w", err)
		}
	}
	return nil
}

func (n *TelegramNotifier) deliver(_ context.Context, job jobs.Job) error {
	d, ok := job.Payload.(delivery)
	if !ok {
		n.logger.Error("unexpected telegram job payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := n.sender.SendMessage(d.ChatID, d.Text); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	n.logger.Debug("telegram message delivered", zap.String("job_id", job.ID), zap.Int("runes", utf8.RuneCountInString(d.Text)))
	return nil
}

// SplitMessage breaks text on line boundaries into chunks of at most limit runes.
// A single line longer than limit is cut by runes.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	size := 0
	flush := func() {
		if size > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		for n > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		current.WriteString(line)
		size += n
	}
	flush()
	return chunks
}
