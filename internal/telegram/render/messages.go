package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/futig/docchat/internal/entity"
)

// MaxMessageLength is the Telegram limit for one text message.
const MaxMessageLength = 4096

const (
	MsgWelcome = `👋 Hi! I answer questions about your documents.

Send me a file (PDF, DOCX, TXT, MD and more) and I will add it to this chat.
Then just ask a question. Without documents I answer from the model alone.

/help shows all commands.`

	MsgHelp = `🤖 Commands:

/start - Show the welcome message
/help - Show this help
/docs - List the documents of this chat
/clear - Clear the conversation (documents stay)
/export - Download the conversation as Markdown`

	MsgNoDocuments    = `📂 No documents yet. Send a file to add one.`
	MsgCleared        = `🧹 Conversation cleared. Your documents are still here.`
	MsgEmptyHistory   = `📭 Nothing to export yet. Ask a question first.`
	MsgUnknownCommand = `❌ Unknown command. Use /help`
	MsgUnsupported    = `❌ I can only read documents and text messages.`

	MsgRateLimitFirst  = `⚠️ Too many requests. Please wait a moment.`
	MsgRateLimitSecond = `⚠️ Rate limit exceeded. Wait about 30 seconds before trying again.`
	MsgRateLimitLast   = `🛑 You are sending requests too often. Please wait a minute.`

	ErrGeneric            = `❌ Something went wrong. Please try again.`
	ErrInvalidFile        = `❌ This file cannot be added. Check the format and size.`
	ErrInvalidInput       = `❌ Please send a non-empty question.`
	ErrNetworkIssue       = `❌ Connection problem. Try again later.`
	ErrServiceUnavailable = `❌ The document service is not available right now.`
	ErrServiceFailed      = `❌ The document service could not process the request. Try again.`
	ErrTimeout            = `❌ The answer took too long. Try again.`
	ErrTooLarge           = `❌ The file is too large.`
)

// RenderDocuments lists the documents uploaded in a chat.
func RenderDocuments(names []string) string {
	if len(names) == 0 {
		return MsgNoDocuments
	}

	var sb strings.Builder
	sb.WriteString("📚 Documents in this chat:\n\n")
	for i, name := range names {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderIntake reports the outcome of one document message.
func RenderIntake(result *entity.IntakeResult) string {
	switch {
	case len(result.Uploaded) > 0 && result.Ingested:
		return fmt.Sprintf("✅ Added %s. Ask me anything about it.", strings.Join(result.Uploaded, ", "))
	case len(result.Skipped) > 0:
		return fmt.Sprintf("ℹ️ %s is already in this chat.", strings.Join(result.Skipped, ", "))
	default:
		return MsgNoDocuments
	}
}

// RenderRateLimitWarning escalates with the number of warnings already sent.
func RenderRateLimitWarning(warningCount int) string {
	switch {
	case warningCount <= 1:
		return MsgRateLimitFirst
	case warningCount == 2:
		return MsgRateLimitSecond
	default:
		return MsgRateLimitLast
	}
}

// SplitMessage cuts text into chunks Telegram accepts, preferring line breaks.
func SplitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// ClassifyError maps an error to a user-facing message
func ClassifyError(err error) string {
	if err == nil {
		return ErrGeneric
	}

	switch {
	case errors.Is(err, entity.ErrFileTooLarge), errors.Is(err, entity.ErrTotalSizeTooLarge):
		return ErrTooLarge
	case errors.Is(err, entity.ErrMissingField), errors.Is(err, entity.ErrEmptyQuestion):
		return ErrInvalidInput
	case entity.IsValidationError(err):
		return ErrInvalidFile
	case errors.Is(err, entity.ErrBackendUnavailable):
		return ErrServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrTimeout
	}

	// Transport failures keep their own wording
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return ErrServiceUnavailable
		}
		return ErrNetworkIssue
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetworkIssue
	}

	if entity.IsBackendError(err) {
		return ErrServiceFailed
	}

	return ErrGeneric
}
