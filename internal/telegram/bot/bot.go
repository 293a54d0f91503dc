package bot

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/entity"
	"github.com/futig/docchat/internal/pkg/logger"
	"github.com/futig/docchat/internal/telegram/middleware"
	"github.com/futig/docchat/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	sessionIDPrefix = "tg_"
	downloadTimeout = 30 * time.Second
)

// ChatUsecase is the chat workflow the bot drives
type ChatUsecase interface {
	Session(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	UploadDocuments(ctx context.Context, sessionID string, files []entity.FileData) (*entity.IntakeResult, error)
	Ask(ctx context.Context, sessionID, question string) (*entity.AskResult, error)
	ClearHistory(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	Export(ctx context.Context, sessionID string, format entity.ExportFormat) (*entity.ExportResult, error)
}

// API is the part of the Telegram Bot API used to answer updates
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot represents the Telegram bot
type Bot struct {
	updates     *tgbotapi.BotAPI
	api         API
	cfg         *config.TelegramConfig
	usecase     ChatUsecase
	maxFileSize int64
	download    *http.Client
	httpsOnly   bool
	logger      *zap.Logger
	loggingMW   *middleware.LoggingMiddleware
	recoveryMW  *middleware.RecoveryMiddleware
	rateLimitMW *middleware.RateLimiterMiddleware
	sequencer   *chatSequencer
	updatesChan tgbotapi.UpdatesChannel
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// New authorizes against the Bot API and creates the bot
func New(
	cfg *config.TelegramConfig,
	uploadCfg config.FileUploadConfig,
	usecase ChatUsecase,
	logger *zap.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}
	api.Debug = false

	logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
		zap.Int64("id", api.Self.ID),
	)

	b := newBot(api, cfg, uploadCfg.MaxFileSize, usecase, logger)
	b.updates = api
	b.httpsOnly = true
	b.download = &http.Client{
		Timeout: downloadTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}

	return b, nil
}

func newBot(
	api API,
	cfg *config.TelegramConfig,
	maxFileSize int64,
	usecase ChatUsecase,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		api:         api,
		cfg:         cfg,
		usecase:     usecase,
		maxFileSize: maxFileSize,
		download:    &http.Client{Timeout: downloadTimeout},
		logger:      logger,
		loggingMW:   middleware.NewLoggingMiddleware(logger),
		recoveryMW:  middleware.NewRecoveryMiddleware(logger, api),
		rateLimitMW: middleware.NewRateLimiterMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst, logger, api),
		sequencer:   newChatSequencer(),
		stopChan:    make(chan struct{}),
	}
}

// Start begins long polling and returns once the update loop runs
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("starting telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeout
	b.updatesChan = b.updates.GetUpdatesChan(u)

	ctx = ctxzap.ToContext(ctx, b.logger)
	go b.processUpdates(ctx)

	b.logger.Info("telegram bot started successfully")
	return nil
}

// Stop stops polling and waits for running handlers up to the shutdown timeout
func (b *Bot) Stop() error {
	b.logger.Info("stopping telegram bot")

	b.stopOnce.Do(func() {
		close(b.stopChan)
		if b.updates != nil {
			b.updates.StopReceivingUpdates()
		}
		b.rateLimitMW.Close()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	shutdownTimeout := time.Duration(b.cfg.ShutdownTimeout) * time.Second
	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(shutdownTimeout):
		b.logger.Warn("shutdown timeout exceeded, some handlers may not have completed",
			zap.Duration("timeout", shutdownTimeout),
		)
		return fmt.Errorf("shutdown timeout exceeded")
	}

	b.logger.Info("telegram bot stopped successfully")
	return nil
}

func (b *Bot) processUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			ctxzap.Info(ctx, "context cancelled, stopping update processing")
			return
		case <-b.stopChan:
			ctxzap.Info(ctx, "stop signal received, stopping update processing")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch handles the update in its own goroutine. Updates of one chat are
// handled one at a time in the order they were received.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	var chatID int64
	if chat := update.FromChat(); chat != nil {
		chatID = chat.ID
	}
	prev, done := b.sequencer.enter(chatID)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer done()
		if prev != nil {
			<-prev
		}
		b.handleUpdateWithMiddleware(ctx, update)
	}()
}

// handleUpdateWithMiddleware runs rate limit, logging and recovery around the update
func (b *Bot) handleUpdateWithMiddleware(ctx context.Context, update tgbotapi.Update) {
	b.rateLimitMW.Handle(update, func(u tgbotapi.Update) {
		b.loggingMW.Handle(u, func(u2 tgbotapi.Update) {
			b.recoveryMW.Handle(u2, func(u3 tgbotapi.Update) {
				b.handleUpdate(ctx, u3)
			})
		})
	})
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.Chat == nil {
		return
	}

	ctx = ctxzap.ToContext(ctx, b.logger.With(zap.Int64("chat_id", message.Chat.ID)))
	ctx = logger.WithSession(ctx, sessionID(message.Chat.ID))

	switch {
	case message.IsCommand():
		b.handleCommand(ctx, message)
	case message.Document != nil:
		b.handleDocument(ctx, message)
	case message.Text != "":
		b.handleQuestion(ctx, message.Chat.ID, message.Text)
	default:
		b.sendText(ctx, message.Chat.ID, render.MsgUnsupported)
	}
}

// sessionID keys the chat state by Telegram chat, so a group shares one session.
func sessionID(chatID int64) string {
	return sessionIDPrefix + strconv.FormatInt(chatID, 10)
}

// sendText sends text, split into several messages when it is too long
func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	for _, part := range render.SplitMessage(text, render.MaxMessageLength) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			ctxzap.Error(ctx, "failed to send message", zap.Error(err))
			return
		}
	}
}

func (b *Bot) sendError(ctx context.Context, chatID int64, err error) {
	b.sendText(ctx, chatID, render.ClassifyError(err))
}
