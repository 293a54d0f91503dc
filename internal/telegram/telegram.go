package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/telegram/bot"
	"go.uber.org/zap"
)

// Bot is the main telegram bot interface
type Bot interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewBot creates the Telegram front-end over the chat workflows
func NewBot(
	cfg *config.TelegramConfig,
	uploadCfg config.FileUploadConfig,
	usecase bot.ChatUsecase,
	logger *zap.Logger,
) (Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is not set")
	}

	b, err := bot.New(cfg, uploadCfg, usecase, logger)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	logger.Info("telegram bot initialized successfully")

	return b, nil
}
