package middleware

import (
	"sync"
	"testing"
	"time"

	"github.com/futig/docchat/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.texts = append(s.texts, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userID},
			Chat: &tgbotapi.Chat{ID: userID},
			Text: text,
		},
	}
}

func TestRateLimiter_BurstThenWarn(t *testing.T) {
	sender := &fakeSender{}
	rl := NewRateLimiterMiddleware(60, 2, zap.NewNop(), sender)
	defer rl.Close()

	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allowRequest(1, 1))
	assert.True(t, rl.allowRequest(1, 1))
	assert.False(t, rl.allowRequest(1, 1))
	assert.False(t, rl.allowRequest(1, 1))

	// one warning per interval
	assert.Equal(t, []string{render.MsgRateLimitFirst}, sender.sent())

	// other users have their own bucket
	assert.True(t, rl.allowRequest(2, 2))

	// 60/min refills one token per second
	now = now.Add(time.Second)
	assert.True(t, rl.allowRequest(1, 1))
}

func TestRateLimiter_HandleDropsOverLimit(t *testing.T) {
	rl := NewRateLimiterMiddleware(1, 1, zap.NewNop(), &fakeSender{})
	defer rl.Close()

	calls := 0
	next := func(tgbotapi.Update) { calls++ }

	rl.Handle(textUpdate(7, "a"), next)
	rl.Handle(textUpdate(7, "b"), next)
	assert.Equal(t, 1, calls)

	// updates without a user pass through
	rl.Handle(tgbotapi.Update{UpdateID: 9}, next)
	assert.Equal(t, 2, calls)
}

func TestRateLimiter_RemoveInactive(t *testing.T) {
	rl := NewRateLimiterMiddleware(10, 1, zap.NewNop(), &fakeSender{})
	defer rl.Close()

	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }
	require.True(t, rl.allowRequest(1, 1))

	rl.removeInactive(now.Add(2 * time.Hour))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.limits)
}

func TestRecovery_SendsErrorOnPanic(t *testing.T) {
	sender := &fakeSender{}
	mw := NewRecoveryMiddleware(zap.NewNop(), sender)

	assert.NotPanics(t, func() {
		mw.Handle(textUpdate(3, "hi"), func(tgbotapi.Update) { panic("boom") })
	})
	assert.Equal(t, []string{render.ErrGeneric}, sender.sent())
}

func TestLogging_CallsNext(t *testing.T) {
	mw := NewLoggingMiddleware(zap.NewNop())

	called := false
	mw.Handle(textUpdate(3, "hi"), func(tgbotapi.Update) { called = true })
	assert.True(t, called)
}

func TestMessageType(t *testing.T) {
	assert.Equal(t, "other", messageType(nil))
	assert.Equal(t, "text", messageType(&tgbotapi.Message{Text: "hi"}))
	assert.Equal(t, "document", messageType(&tgbotapi.Message{Document: &tgbotapi.Document{}}))
	assert.Equal(t, "command", messageType(&tgbotapi.Message{
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}))
}
