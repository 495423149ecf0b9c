package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends operator alerts to one chat, at most one per key per cooldown.
type Notifier struct {
	api      Sender
	chatID   int64
	cooldown time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewNotifier returns a notifier that drops every alert when api is nil or
// chatID is zero.
func NewNotifier(api Sender, chatID int64, cooldown time.Duration, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		api:      api,
		chatID:   chatID,
		cooldown: cooldown,
		log:      log,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.api != nil && n.chatID != 0
}

// Alert sends text unless an alert with the same key went out within the
// cooldown. It reports whether a message was sent. Send does not take a
// context, so Alert stops waiting once ctx is done and leaves the send to
// finish in the background.
func (n *Notifier) Alert(ctx context.Context, key, text string) bool {
	if !n.Enabled() || ctx.Err() != nil {
		return false
	}
	if !n.reserve(key) {
		return false
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			n.log.Warn("failed to send telegram alert", "key", key, "err", err)
			n.release(key)
			return false
		}
		return true
	case <-ctx.Done():
		n.log.Warn("telegram alert still in flight", "key", key, "err", ctx.Err())
		return false
	}
}

func (n *Notifier) reserve(key string) bool {
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.cooldown {
		return false
	}
	n.lastSent[key] = now
	return true
}

func (n *Notifier) release(key string) {
	n.mu.Lock()
	delete(n.lastSent, key)
	n.mu.Unlock()
}
