package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of the Bot API the middleware talks back through
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// updateOrigin returns the user and chat of an update, zero when unknown.
func updateOrigin(update tgbotapi.Update) (userID, chatID int64) {
	if update.Message != nil {
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}
		if update.Message.Chat != nil {
			chatID = update.Message.Chat.ID
		}
	}
	return userID, chatID
}
