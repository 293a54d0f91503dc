package middleware

import (
	"runtime/debug"

	"github.com/futig/docchat/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// RecoveryMiddleware recovers from panics
type RecoveryMiddleware struct {
	logger *zap.Logger
	sender Sender
}

func NewRecoveryMiddleware(logger *zap.Logger, sender Sender) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		logger: logger,
		sender: sender,
	}
}

// Handle recovers from a panic in next and tells the user something failed
func (m *RecoveryMiddleware) Handle(update tgbotapi.Update, next func(tgbotapi.Update)) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		m.logger.Error("panic recovered in telegram handler",
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
			zap.Int("update_id", update.UpdateID),
		)

		_, chatID := updateOrigin(update)
		if chatID == 0 {
			return
		}
		if _, err := m.sender.Send(tgbotapi.NewMessage(chatID, render.ErrGeneric)); err != nil {
			m.logger.Error("failed to send error message",
				zap.Error(err),
				zap.Int64("chat_id", chatID),
			)
		}
	}()

	next(update)
}
