package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Telegram drops a chat action after 5 seconds.
const typingInterval = 4 * time.Second

// TypingNotifier repeats a chat action until stopped
type TypingNotifier struct {
	api    API
	chatID int64
	action string
	done   chan struct{}
	start  sync.Once
	stop   sync.Once
}

func NewTypingNotifier(api API, chatID int64, action string) *TypingNotifier {
	return &TypingNotifier{
		api:    api,
		chatID: chatID,
		action: action,
		done:   make(chan struct{}),
	}
}

// Start sends the action now and then every typingInterval
func (t *TypingNotifier) Start(ctx context.Context) {
	t.start.Do(func() {
		t.send(ctx)

		go func() {
			ticker := time.NewTicker(typingInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					t.send(ctx)
				case <-t.done:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// Stop may be called more than once
func (t *TypingNotifier) Stop() {
	t.stop.Do(func() { close(t.done) })
}

func (t *TypingNotifier) send(ctx context.Context) {
	if _, err := t.api.Request(tgbotapi.NewChatAction(t.chatID, t.action)); err != nil {
		ctxzap.Warn(ctx, "failed to send chat action", zap.Error(err))
	}
}
