// Package notify sends run notifications to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Min interval between any two Telegram messages to the same chat to avoid 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

// RunSummary describes a finished (or interrupted) run.
type RunSummary struct {
	Target      string
	Total       int
	Cursor      int
	Succeeded   int
	Skipped     int
	Recycles    int
	Persisted   int
	PersistFail int
	StartedAt   time.Time
	Interrupted bool
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier queues messages and sends them from one background goroutine.
// A nil *TelegramNotifier is valid and drops everything.
type TelegramNotifier struct {
	bot      sender
	chatID   int64
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSend time.Time

	queue     chan string
	queueDone chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

// NewTelegramNotifier connects to the bot API. It returns nil when the token is
// empty or the bot cannot be reached, so callers can use the result unconditionally.
func NewTelegramNotifier(token string, chatID int64, logger *slog.Logger) *TelegramNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if token == "" || chatID == 0 {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create telegram bot", "error", err)
		return nil
	}
	bot.Debug = false

	n := newNotifier(bot, chatID, telegramSendInterval, logger)
	logger.Info("Telegram notifier initialized", "chat_id", chatID)
	return n
}

func newNotifier(bot sender, chatID int64, interval time.Duration, logger *slog.Logger) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		interval:  interval,
		logger:    logger,
		queue:     make(chan string, 100),
		queueDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go n.messageSender()
	return n
}

// messageSender sends queued messages with proper intervals, draining the queue on stop.
func (n *TelegramNotifier) messageSender() {
	defer close(n.queueDone)
	for {
		select {
		case <-n.ctx.Done():
			for {
				select {
				case text := <-n.queue:
					n.send(text)
				default:
					return
				}
			}
		case text := <-n.queue:
			n.send(text)
		}
	}
}

func (n *TelegramNotifier) send(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if wait := n.interval - time.Since(n.lastSend); wait > 0 && !n.lastSend.IsZero() {
		time.Sleep(wait)
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := n.bot.Send(msg)
	n.lastSend = time.Now()
	if err != nil {
		n.logger.Error("Telegram send: failed", "error", err, "message_preview", truncateString(text, 50))
		return
	}
	n.logger.Debug("Telegram send: success", "queue_length", len(n.queue))
}

func (n *TelegramNotifier) enqueue(ctx context.Context, text string) {
	if n == nil {
		return
	}
	select {
	case <-n.ctx.Done():
	case <-ctx.Done():
	case n.queue <- text:
	default:
		n.logger.Warn("Telegram message queue is full, dropping message", "message_preview", truncateString(text, 50))
	}
}

// Stop sends whatever is queued and stops the sender.
func (n *TelegramNotifier) Stop() {
	if n == nil {
		return
	}
	n.stopOnce.Do(n.cancel)
	<-n.queueDone
}

func (n *TelegramNotifier) RunStarted(ctx context.Context, target string, total, resumeFrom int) {
	var b strings.Builder
	fmt.Fprintf(&b, "🚀 *Scrape started*\n\n*%s*\n", escapeMarkdown(target))
	fmt.Fprintf(&b, "Matches: %s\n", humanize.Comma(int64(total)))
	if resumeFrom > 0 {
		fmt.Fprintf(&b, "Resuming at: %s\n", humanize.Comma(int64(resumeFrom)))
	}
	n.enqueue(ctx, b.String())
}

func (n *TelegramNotifier) SessionRecycled(ctx context.Context, reason string, cursor, recycles int) {
	text := fmt.Sprintf("♻️ *Browser recycled* (%s)\n\nAt item %s, %s recycle",
		escapeMarkdown(reason), humanize.Comma(int64(cursor)), humanize.Ordinal(recycles))
	n.enqueue(ctx, text)
}

func (n *TelegramNotifier) RunFinished(ctx context.Context, s RunSummary) {
	n.enqueue(ctx, FormatSummary(s, time.Now()))
}

// FormatSummary renders a run summary as a Markdown message.
func FormatSummary(s RunSummary, now time.Time) string {
	var b strings.Builder
	if s.Interrupted {
		b.WriteString("⏸ *Scrape interrupted*\n\n")
	} else {
		b.WriteString("✅ *Scrape finished*\n\n")
	}
	fmt.Fprintf(&b, "*%s*\n", escapeMarkdown(s.Target))
	fmt.Fprintf(&b, "Progress: %s / %s\n", humanize.Comma(int64(s.Cursor)), humanize.Comma(int64(s.Total)))
	fmt.Fprintf(&b, "Succeeded: %s, skipped: %s\n", humanize.Comma(int64(s.Succeeded)), humanize.Comma(int64(s.Skipped)))
	fmt.Fprintf(&b, "Persisted: %s, failed: %s\n", humanize.Comma(int64(s.Persisted)), humanize.Comma(int64(s.PersistFail)))
	fmt.Fprintf(&b, "Recycles: %d\n", s.Recycles)
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started %s", humanize.RelTime(s.StartedAt, now, "ago", "from now"))
	}
	return b.String()
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
