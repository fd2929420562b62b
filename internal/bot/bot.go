// Package bot exposes the reconciliation flow to admins over Telegram.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/service"
)

const reportPrefix = "[REPORT]"

const helpText = `ส่งรายงานที่แก้ไขแล้ว (ขึ้นต้นด้วย [REPORT] YYYY-MM-DD) เพื่อยืนยันการสอนแทน
/pending - รายการที่รอยืนยันของวันนี้
/workload - ภาระงานสอนแทนเดือนนี้`

type reportConfirmer interface {
	Confirm(ctx context.Context, report, verifiedBy string) (*service.ConfirmResult, error)
	ListPending(ctx context.Context, date string) ([]models.PendingAssignment, error)
	DescribeError(err error, report string) string
	Today() string
}

type workloadReader interface {
	Workload(ctx context.Context, query dto.WorkloadQuery) (*service.WorkloadReport, error)
}

// Config holds bot settings.
type Config struct {
	AdminIDs []int64
	// Timeout bounds one confirm or lookup.
	Timeout time.Duration
}

// Bot routes admin messages to the orchestrator.
type Bot struct {
	substitutions reportConfirmer
	workload      workloadReader
	admins        map[int64]struct{}
	timeout       time.Duration
	logger        *zap.Logger
}

// New constructs the bot logic.
func New(substitutions reportConfirmer, workload workloadReader, cfg Config, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	admins := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Bot{substitutions: substitutions, workload: workload, admins: admins, timeout: cfg.Timeout, logger: logger}
}

// Register wires the handlers onto a telebot instance.
func (b *Bot) Register(tb *telebot.Bot) {
	reply := func(c telebot.Context, text string) error {
		if text == "" {
			return nil
		}
		return c.Send(text, &telebot.SendOptions{DisableWebPagePreview: true})
	}
	handle := func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		return reply(c, b.HandleText(context.Background(), sender.ID, sender.Username, c.Text()))
	}
	tb.Handle("/start", handle)
	tb.Handle("/help", handle)
	tb.Handle("/pending", handle)
	tb.Handle("/workload", handle)
	tb.Handle(telebot.OnText, handle)
}

// IsAdmin reports whether the Telegram user may confirm reports.
func (b *Bot) IsAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}

// HandleText returns the reply for one message. Non-admins and unrelated chatter get no reply.
func (b *Bot) HandleText(ctx context.Context, userID int64, username, text string) string {
	text = strings.TrimSpace(text)
	log := b.logger.With(zap.Int64("sender_id", userID))
	if !b.IsAdmin(userID) {
		log.Info("ignoring message from non-admin")
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	command := strings.Fields(text)
	switch {
	case strings.HasPrefix(text, reportPrefix):
		return b.confirm(ctx, log, verifier(userID, username), text)
	case len(command) == 0:
		return ""
	case command[0] == "/start" || command[0] == "/help":
		return helpText
	case command[0] == "/pending":
		return b.pending(ctx, log)
	case command[0] == "/workload":
		return b.workloadTable(ctx, log)
	default:
		return ""
	}
}

func (b *Bot) confirm(ctx context.Context, log *zap.Logger, verifiedBy, report string) string {
	result, err := b.substitutions.Confirm(service.WithReplyOnly(ctx), report, verifiedBy)
	if err != nil {
		log.Warn("report confirmation rejected", zap.Error(err))
		return b.substitutions.DescribeError(err, report)
	}
	log.Info("report confirmed",
		zap.String("date", result.Reconcile.Date),
		zap.Int("finalized", result.Finalize.FinalizedCount),
		zap.Int("failed", result.Finalize.FailedCount),
	)
	return result.Message
}

func (b *Bot) pending(ctx context.Context, log *zap.Logger) string {
	today := b.substitutions.Today()
	rows, err := b.substitutions.ListPending(ctx, today)
	if err != nil {
		log.Error("list pending failed", zap.Error(err))
		return b.substitutions.DescribeError(err, "")
	}
	summary := models.SummarizeCoverage(rows)
	return fmt.Sprintf("⏳ รอยืนยันวันที่ %s: %d คาบ\n✅ หาครูสอนแทนได้: %s", today, len(rows), summary)
}

func (b *Bot) workloadTable(ctx context.Context, log *zap.Logger) string {
	today := b.substitutions.Today()
	report, err := b.workload.Workload(ctx, dto.WorkloadQuery{From: monthStart(today), To: today})
	if err != nil {
		log.Error("workload lookup failed", zap.Error(err))
		return b.substitutions.DescribeError(err, "")
	}
	return service.FormatWorkload(report)
}

func verifier(userID int64, username string) string {
	if username != "" {
		return "telegram:@" + username
	}
	return "telegram:" + strconv.FormatInt(userID, 10)
}

func monthStart(date string) string {
	if len(date) < len("2006-01") {
		return date
	}
	return date[:len("2006-01")] + "-01"
}
