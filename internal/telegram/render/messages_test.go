package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/futig/docchat/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ErrGeneric},
		{"file too large", fmt.Errorf("%w: a.pdf", entity.ErrFileTooLarge), ErrTooLarge},
		{"bad extension", entity.ErrInvalidExtension, ErrInvalidFile},
		{"empty question", entity.ErrEmptyQuestion, ErrInvalidInput},
		{"degraded", fmt.Errorf("%w: %w", entity.ErrBackendUnavailable, entity.ErrMissingCredentials), ErrServiceUnavailable},
		{"query deadline", fmt.Errorf("%w: %w", entity.ErrChatConnection, context.DeadlineExceeded), ErrTimeout},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrServiceUnavailable},
		{"service error", fmt.Errorf("%w: status 500", entity.ErrRAGService), ErrServiceFailed},
		{"unknown", errors.New("boom"), ErrGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestRenderDocuments(t *testing.T) {
	assert.Equal(t, MsgNoDocuments, RenderDocuments(nil))

	text := RenderDocuments([]string{"a.pdf", "b.txt"})
	assert.Contains(t, text, "1. a.pdf")
	assert.Contains(t, text, "2. b.txt")
	assert.False(t, strings.HasSuffix(text, "\n"))
}

func TestRenderIntake(t *testing.T) {
	added := RenderIntake(&entity.IntakeResult{Uploaded: []string{"a.pdf"}, Ingested: true})
	assert.Contains(t, added, "Added a.pdf")

	skipped := RenderIntake(&entity.IntakeResult{Skipped: []string{"a.pdf"}})
	assert.Contains(t, skipped, "already in this chat")
}

func TestRenderRateLimitWarning(t *testing.T) {
	assert.Equal(t, MsgRateLimitFirst, RenderRateLimitWarning(1))
	assert.Equal(t, MsgRateLimitSecond, RenderRateLimitWarning(2))
	assert.Equal(t, MsgRateLimitLast, RenderRateLimitWarning(7))
}

func TestSplitMessage(t *testing.T) {
	assert.Nil(t, SplitMessage("", 10))
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	parts := SplitMessage("line one\nline two\nline three", 12)
	assert.Equal(t, []string{"line one\n", "line two\n", "line three"}, parts)

	long := strings.Repeat("я", 25)
	parts = SplitMessage(long, 10)
	assert.Len(t, parts, 3)
	assert.Equal(t, long, strings.Join(parts, ""))
}
