package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/futig/docchat/internal/entity"
	"github.com/futig/docchat/internal/pkg/logger"
	"github.com/futig/docchat/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	chatID := message.Chat.ID

	ctx = logger.WithAction(ctx, "command_"+command)
	ctxzap.Info(ctx, "command received")

	switch command {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.sendText(ctx, chatID, render.MsgHelp)
	case "docs":
		b.handleDocs(ctx, chatID)
	case "clear":
		b.handleClear(ctx, chatID)
	case "export":
		b.handleExport(ctx, chatID)
	default:
		b.sendText(ctx, chatID, render.MsgUnknownCommand)
	}
}

// handleStart greets the user and initializes the session up front, so a
// missing backend is reported right away.
func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.sendText(ctx, chatID, render.MsgWelcome)

	if _, err := b.usecase.Session(ctx, sessionID(chatID)); err != nil {
		ctxzap.Error(ctx, "failed to initialize session", zap.Error(err))
		b.sendError(ctx, chatID, err)
	}
}

func (b *Bot) handleDocs(ctx context.Context, chatID int64) {
	session, err := b.usecase.Session(ctx, sessionID(chatID))
	if err != nil {
		ctxzap.Error(ctx, "failed to load session", zap.Error(err))
		b.sendError(ctx, chatID, err)
		return
	}

	b.sendText(ctx, chatID, render.RenderDocuments(session.Documents))
}

func (b *Bot) handleClear(ctx context.Context, chatID int64) {
	if _, err := b.usecase.ClearHistory(ctx, sessionID(chatID)); err != nil {
		ctxzap.Error(ctx, "failed to clear conversation", zap.Error(err))
		b.sendError(ctx, chatID, err)
		return
	}

	b.sendText(ctx, chatID, render.MsgCleared)
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	id := sessionID(chatID)

	session, err := b.usecase.Session(ctx, id)
	if err != nil {
		ctxzap.Error(ctx, "failed to load session", zap.Error(err))
		b.sendError(ctx, chatID, err)
		return
	}
	if len(session.Conversation) == 0 {
		b.sendText(ctx, chatID, render.MsgEmptyHistory)
		return
	}

	result, err := b.usecase.Export(ctx, id, entity.FormatMarkdown)
	if err != nil {
		ctxzap.Error(ctx, "failed to export conversation", zap.Error(err))
		b.sendError(ctx, chatID, err)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  result.Filename,
		Bytes: result.Content,
	})
	if _, err := b.api.Send(doc); err != nil {
		ctxzap.Error(ctx, "failed to send document", zap.Error(err))
		b.sendError(ctx, chatID, err)
	}
}

// handleDocument runs the intake workflow for one attached file. A caption
// is then asked as a question.
func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	doc := message.Document

	ctx = logger.WithAction(ctx, "document")
	ctx = logger.AddFields(ctx,
		zap.String("filename", doc.FileName),
		zap.Int("file_size", doc.FileSize),
	)

	if b.maxFileSize > 0 && int64(doc.FileSize) > b.maxFileSize {
		ctxzap.Warn(ctx, "document exceeds size limit")
		b.sendError(ctx, chatID, entity.ErrFileTooLarge)
		return
	}

	typing := NewTypingNotifier(b.api, chatID, tgbotapi.ChatUploadDocument)
	typing.Start(ctx)
	defer typing.Stop()

	content, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		ctxzap.Error(ctx, "failed to download document", zap.Error(err))
		b.sendError(ctx, chatID, err)
		return
	}

	result, err := b.usecase.UploadDocuments(ctx, sessionID(chatID), []entity.FileData{{
		Filename: doc.FileName,
		Content:  content,
	}})
	if err != nil {
		ctxzap.Error(ctx, "failed to add document", zap.Error(err))
		b.sendError(ctx, chatID, err)
		return
	}
	typing.Stop()

	b.sendText(ctx, chatID, render.RenderIntake(result))

	if caption := strings.TrimSpace(message.Caption); caption != "" {
		b.handleQuestion(ctx, chatID, caption)
	}
}

func (b *Bot) handleQuestion(ctx context.Context, chatID int64, question string) {
	ctx = logger.WithAction(ctx, "question")

	typing := NewTypingNotifier(b.api, chatID, tgbotapi.ChatTyping)
	typing.Start(ctx)
	defer typing.Stop()

	result, err := b.usecase.Ask(ctx, sessionID(chatID), question)
	if err != nil {
		ctxzap.Error(ctx, "failed to answer question", zap.Error(err))
		b.sendError(ctx, chatID, err)
		return
	}
	typing.Stop()

	ctxzap.Info(ctx, "question answered",
		zap.String("mode", string(result.Mode)),
		zap.Int("turns", result.Turns),
	)
	b.sendText(ctx, chatID, result.Answer.Message)
}

// downloadFile fetches a Telegram file, reading at most maxFileSize bytes.
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file info: %w", err)
	}

	parsedURL, err := url.Parse(fileURL)
	if err != nil {
		return nil, fmt.Errorf("invalid file URL: %w", err)
	}
	if b.httpsOnly && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("insecure URL scheme: %s (expected https)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if b.maxFileSize > 0 {
		body = io.LimitReader(resp.Body, b.maxFileSize+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if b.maxFileSize > 0 && int64(len(data)) > b.maxFileSize {
		return nil, entity.ErrFileTooLarge
	}

	return data, nil
}
